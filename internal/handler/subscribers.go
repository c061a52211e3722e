package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"weaponwatch/internal/dto"
	"weaponwatch/internal/logger"
	"weaponwatch/internal/repository"
)

// SubscriberCountHandler returns {"subscribers": n}.
func SubscriberCountHandler(destinations repository.DestinationRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := destinations.Count(r.Context())
		if err != nil {
			logger.Error("Error counting subscribers: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]int{"subscribers": count})
	}
}

// AddSubscriberHandler registers the chat in {"chat_id": "..."}.
func AddSubscriberHandler(destinations repository.DestinationRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.Subscriber
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, logger, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.ChatID = strings.TrimSpace(req.ChatID)
		if req.ChatID == "" {
			writeError(w, logger, http.StatusBadRequest, "chat_id required")
			return
		}

		if err := destinations.Add(r.Context(), req.ChatID); err != nil {
			logger.Error("Error adding subscriber %s: %v", req.ChatID, err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		logger.Info("Subscriber %s added", req.ChatID)
		writeJSON(w, logger, http.StatusCreated, req)
	}
}

// RemoveSubscriberHandler removes the chat named by the {chat_id} path variable.
func RemoveSubscriberHandler(destinations repository.DestinationRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID := mux.Vars(r)["chat_id"]

		removed, err := destinations.Remove(r.Context(), chatID)
		if err != nil {
			logger.Error("Error removing subscriber %s: %v", chatID, err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if !removed {
			writeError(w, logger, http.StatusNotFound, "subscriber not found")
			return
		}

		logger.Info("Subscriber %s removed", chatID)
		w.WriteHeader(http.StatusNoContent)
	}
}
