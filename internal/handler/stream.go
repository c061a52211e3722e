package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"weaponwatch/internal/logger"
	hub "weaponwatch/internal/service/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// IncidentStreamHandler subscribes the connection to live incidents until it closes.
// Client messages are read and discarded so that close frames are noticed.
func IncidentStreamHandler(incidents *hub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		client := incidents.Register(connection)
		defer incidents.Unregister(client)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warning("Subscriber %s disconnected with error: %v", client.ID, err)
				}
				return
			}
		}
	}
}
