package handler

import (
	"net/http"

	"weaponwatch/internal/dto"
	"weaponwatch/internal/logger"
	"weaponwatch/internal/repository"
)

// TimelineHandler returns incident counts per day or month (?granularity=day|month).
func TimelineHandler(incidents repository.IncidentRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		granularity := dto.Granularity(r.URL.Query().Get("granularity"))
		if granularity == "" {
			granularity = dto.GranularityDay
		}
		if _, ok := granularity.PrefixLength(); !ok {
			writeError(w, logger, http.StatusBadRequest, "granularity must be day or month")
			return
		}

		periods, err := incidents.AggregateByPeriod(r.Context(), granularity)
		if err != nil {
			logger.Error("Error aggregating incidents by %s: %v", granularity, err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, logger, http.StatusOK, periods)
	}
}

// DistributionHandler returns incident counts per label, location or camera_name (?by=).
func DistributionHandler(incidents repository.IncidentRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		field := dto.Field(r.URL.Query().Get("by"))
		if field == "" {
			field = dto.FieldLabel
		}
		if !field.Valid() {
			writeError(w, logger, http.StatusBadRequest, "by must be label, location or camera_name")
			return
		}

		categories, err := incidents.AggregateByField(r.Context(), field)
		if err != nil {
			logger.Error("Error aggregating incidents by %s: %v", field, err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, logger, http.StatusOK, categories)
	}
}
