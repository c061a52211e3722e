package route

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weaponwatch/internal/config"
	"weaponwatch/internal/handler"
	"weaponwatch/internal/logger"
	"weaponwatch/internal/middleware"
	"weaponwatch/internal/repository"
	"weaponwatch/internal/service/camera"
	"weaponwatch/internal/service/toggle"
	"weaponwatch/internal/service/websocket"
)

// Dependencies groups what the HTTP layer reads from the running pipeline.
type Dependencies struct {
	Config       *config.Config
	Logger       *logger.Logger
	Registry     *prometheus.Registry
	Incidents    repository.IncidentRepository
	Destinations repository.DestinationRepository
	Hub          *websocket.HubService
	Toggle       *toggle.Toggle
	Current      *camera.CurrentFrame
}

// SetupRoutes registers the video, incident, analytics, settings and operator endpoints
// and wraps the router with CORS.
func SetupRoutes(d Dependencies) http.Handler {
	cfg, logger := d.Config, d.Logger
	r := mux.NewRouter()

	// Live views
	r.HandleFunc("/video", handler.VideoStreamHandler(d.Current, cfg.StreamInterval, logger)).Methods(http.MethodGet)
	r.HandleFunc("/ws/incidents", handler.IncidentStreamHandler(d.Hub, logger)).Methods(http.MethodGet)

	// Incident history
	r.HandleFunc("/incidents", handler.ListIncidentsHandler(d.Incidents, logger)).Methods(http.MethodGet)
	r.PathPrefix(cfg.IncidentsURLPrefix + "/").Handler(
		http.StripPrefix(cfg.IncidentsURLPrefix+"/", http.FileServer(http.Dir(cfg.IncidentsDirectory))),
	).Methods(http.MethodGet)
	r.HandleFunc("/alerts", handler.AlertsCountHandler(d.Incidents, logger)).Methods(http.MethodGet)

	// Analytics
	r.HandleFunc("/analytics/incidents/timeline", handler.TimelineHandler(d.Incidents, logger)).Methods(http.MethodGet)
	r.HandleFunc("/analytics/incidents/distribution", handler.DistributionHandler(d.Incidents, logger)).Methods(http.MethodGet)

	// Settings and subscribers
	r.HandleFunc("/settings/notifications", handler.GetNotificationSettingsHandler(d.Toggle, logger)).Methods(http.MethodGet)
	r.HandleFunc("/telegram/subscribers", handler.SubscriberCountHandler(d.Destinations, logger)).Methods(http.MethodGet)

	// Log endpoints
	r.HandleFunc("/logs/{level}", handler.ShowLogsHandler(logger)).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// Mutating operator endpoints
	admin := r.NewRoute().Subrouter()
	admin.Use(middleware.AdminAuth(cfg.AdminToken))
	admin.HandleFunc("/settings/notifications", handler.UpdateNotificationSettingsHandler(d.Toggle, logger)).Methods(http.MethodPost)
	admin.HandleFunc("/telegram/subscribers", handler.AddSubscriberHandler(d.Destinations, logger)).Methods(http.MethodPost)
	admin.HandleFunc("/telegram/subscribers/{chat_id}", handler.RemoveSubscriberHandler(d.Destinations, logger)).Methods(http.MethodDelete)
	admin.HandleFunc("/logs/{level}/clear", handler.ClearLogsHandler(logger)).Methods(http.MethodPost)

	return middleware.CORS(r)
}
