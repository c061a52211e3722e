package handler

import (
	"encoding/json"
	"net/http"

	"weaponwatch/internal/logger"
)

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// writeError sends {"error": msg}.
func writeError(w http.ResponseWriter, logger *logger.Logger, status int, msg string) {
	writeJSON(w, logger, status, map[string]string{"error": msg})
}
