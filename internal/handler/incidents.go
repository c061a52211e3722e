package handler

import (
	"net/http"
	"time"

	"weaponwatch/internal/dto"
	"weaponwatch/internal/logger"
	"weaponwatch/internal/model"
	"weaponwatch/internal/repository"
)

const dateLayout = "2006-01-02"

// ListIncidentsHandler returns incidents newest first, optionally bounded by start_date
// and end_date ("2006-01-02" or "2006-01-02_15-04-05", both inclusive).
func ListIncidentsHandler(incidents repository.IncidentRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := dto.IncidentFilter{
			StartDate: q.Get("start_date"),
			EndDate:   q.Get("end_date"),
		}

		for name, v := range map[string]string{"start_date": filter.StartDate, "end_date": filter.EndDate} {
			if v != "" && !validDate(v) {
				writeError(w, logger, http.StatusBadRequest, "invalid "+name+": expected YYYY-MM-DD or YYYY-MM-DD_HH-MM-SS")
				return
			}
		}

		result, err := incidents.Query(r.Context(), filter)
		if err != nil {
			logger.Error("Error querying incidents: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		writeJSON(w, logger, http.StatusOK, result)
	}
}

// AlertsCountHandler returns the total number of incidents as {"alerts": n}.
func AlertsCountHandler(incidents repository.IncidentRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := incidents.CountAll(r.Context())
		if err != nil {
			logger.Error("Error counting incidents: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]int{"alerts": count})
	}
}

func validDate(v string) bool {
	layout := model.TimestampLayout
	if len(v) == len(dateLayout) {
		layout = dateLayout
	}
	_, err := time.Parse(layout, v)
	return err == nil
}
