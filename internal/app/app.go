// Package app assembles the capture pipeline, alert delivery and HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"weaponwatch/internal/config"
	"weaponwatch/internal/logger"
	"weaponwatch/internal/metrics"
	"weaponwatch/internal/repository/sqlite"
	"weaponwatch/internal/route"
	"weaponwatch/internal/service"
	"weaponwatch/internal/service/ai"
	"weaponwatch/internal/service/alert"
	"weaponwatch/internal/service/annotate"
	"weaponwatch/internal/service/camera"
	"weaponwatch/internal/service/capture"
	"weaponwatch/internal/service/fanout"
	"weaponwatch/internal/service/incident"
	"weaponwatch/internal/service/mqtt"
	"weaponwatch/internal/service/storage"
	"weaponwatch/internal/service/toggle"
	"weaponwatch/internal/service/websocket"
)

const shutdownGrace = 5 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	device     *capture.Device
	detector   *ai.Detector
	emitter    *mqtt.Emitter
	hubService *websocket.HubService
	source     *camera.Source
	manager    *service.Manager
	dispatcher *alert.Dispatcher
	server     *http.Server
}

// NewApp opens every resource the pipeline needs. On error, whatever was already
// opened is released.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{config: cfg, logger: log}
	if err := a.build(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg, log := a.config, a.logger

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	if a.db, err = sqlite.New(cfg.DatabasePath); err != nil {
		return err
	}
	incidents := sqlite.NewIncidentRepository(a.db)
	destinations := sqlite.NewDestinationRepository(a.db)

	snapshots, err := storage.NewSnapshotStore(cfg.IncidentsDirectory, log)
	if err != nil {
		return err
	}

	if a.detector, err = ai.NewDetector(cfg.ModelPath, cfg.ModelClasses, cfg.ModelMinConfidence, log); err != nil {
		return err
	}
	if a.device, err = capture.Open(cfg.CameraDevice); err != nil {
		return err
	}

	notifications := toggle.New(cfg.NotificationsOn)
	a.hubService = websocket.NewHubService(log, m)

	queue := alert.NewQueue(cfg.AlertQueueSize, log, m)
	telegram := alert.NewTelegramChannel(cfg.TelegramBotToken, cfg.TelegramTimeout, cfg.PublicBaseURL, cfg.IncidentsDirectory)
	if !telegram.Enabled() {
		log.Warning("TELEGRAM_BOT_TOKEN not set, alerts will not be delivered")
	}
	a.dispatcher = alert.NewDispatcher(queue, destinations, telegram, cfg.AlertRatePerSecond, log, m)

	var emitters []fanout.Emitter
	if cfg.MQTTBroker != "" {
		if a.emitter, err = mqtt.Connect(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, log); err != nil {
			return err
		}
		emitters = append(emitters, a.emitter)
	}
	hub := fanout.NewHub(a.hubService, queue, notifications, log, emitters...)

	current := camera.NewCurrentFrame()
	dedup := incident.NewDeduplicator(incident.Policy{
		WeaponLabels:  cfg.WeaponLabels,
		Threshold:     cfg.ConfidenceThreshold,
		Window:        cfg.DuplicateWindow,
		ImagePrefix:   cfg.IncidentsURLPrefix,
		LookupTimeout: cfg.StoreTimeout,
	}, incidents, cfg, log, m)

	a.manager = service.NewManager(service.Pipeline{
		SourceID:     cfg.SourceID,
		Detector:     a.detector,
		Annotator:    annotate.New(cfg.WeaponLabels),
		Evaluator:    dedup,
		Snapshots:    snapshots,
		Incidents:    incidents,
		Publisher:    hub,
		Current:      current,
		StoreTimeout: cfg.StoreTimeout,
	}, log, m)
	a.source = camera.NewSource(a.device, cfg.CaptureFPS, log, m)

	a.server = &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: route.SetupRoutes(route.Dependencies{
			Config:       cfg,
			Logger:       log,
			Registry:     registry,
			Incidents:    incidents,
			Destinations: destinations,
			Hub:          a.hubService,
			Toggle:       notifications,
			Current:      current,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Run serves until ctx is cancelled or a component fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	fmt.Printf("🚀 Weapon Watch Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📹 Camera: %s (%s)\n", a.config.SourceID, a.config.CameraDevice)
	fmt.Printf("📁 Incidents: %s\n", a.config.IncidentsDirectory)
	fmt.Printf("🤖 AI Model: %s\n", a.config.ModelPath)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.source.Run(ctx, a.manager.HandleFrame)
	})
	g.Go(func() error {
		return a.dispatcher.Run(ctx)
	})
	g.Go(func() error {
		a.logger.Info("🌐 HTTP server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		// Live subscribers hold hijacked connections that Shutdown does not wait for.
		a.hubService.Close()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warning("HTTP shutdown did not finish cleanly: %v", err)
		}
		return nil
	})

	err := g.Wait()
	a.logger.Info("👋 Server stopped")
	return err
}

func (a *App) close() {
	if a.hubService != nil {
		a.hubService.Close()
	}
	if a.emitter != nil {
		a.emitter.Close()
	}
	if a.device != nil {
		if err := a.device.Close(); err != nil {
			a.logger.Warning("Failed to close video source: %v", err)
		}
	}
	if a.detector != nil {
		a.detector.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database: %v", err)
		}
	}
}
