package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"weaponwatch/internal/dto"
	"weaponwatch/internal/logger"
	"weaponwatch/internal/service/toggle"
)

// GetNotificationSettingsHandler returns {"enabled": bool}.
func GetNotificationSettingsHandler(t *toggle.Toggle, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enabled := t.Enabled()
		writeJSON(w, logger, http.StatusOK, dto.NotificationSettings{Enabled: &enabled})
	}
}

// UpdateNotificationSettingsHandler sets the toggle from {"enabled": bool}. A missing
// field enables notifications.
func UpdateNotificationSettingsHandler(t *toggle.Toggle, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.NotificationSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, logger, http.StatusBadRequest, "invalid JSON body")
			return
		}

		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}

		previous := t.Set(enabled)
		logger.Info("Notifications toggled: %t -> %t", previous, enabled)

		writeJSON(w, logger, http.StatusOK, dto.NotificationSettings{
			Enabled: &enabled,
			Message: "Settings updated successfully",
		})
	}
}
