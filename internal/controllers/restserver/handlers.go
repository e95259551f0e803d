package restserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/chrissnell/storemonitor/internal/report"
	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/types"
	"github.com/gorilla/mux"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
	}
}

// TriggerReport starts a new report and returns its id immediately
func (h *Handlers) TriggerReport(w http.ResponseWriter, req *http.Request) {
	id, err := h.controller.services.Generator.Trigger(req.Context())
	if err != nil {
		if errors.Is(err, report.ErrShuttingDown) {
			h.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "server is shutting down"})
			return
		}
		h.controller.logger.Errorw("error triggering report", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "could not start report"})
		return
	}

	h.writeJSON(w, http.StatusOK, TriggerResponse{ReportID: id})
}

// GetReport returns a report's status, or the CSV itself once it is complete
func (h *Handlers) GetReport(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["report_id"]

	r, err := h.controller.services.Reports.GetReport(req.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrReportNotFound) {
			h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "report not found"})
			return
		}
		h.controller.logger.Errorw("error fetching report", "report_id", id, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "error fetching report"})
		return
	}

	if r.Status != types.ReportComplete {
		h.writeJSON(w, http.StatusOK, ReportStatusResponse{Status: r.Status})
		return
	}

	f, err := os.Open(r.FilePath)
	if err != nil {
		h.controller.logger.Errorw("report file unavailable", "report_id", id, "path", r.FilePath, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "report file unavailable"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "report file unavailable"})
		return
	}

	name := fmt.Sprintf("report_%s.csv", id)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, req, name, info.ModTime(), f)
}

// GetStoreMetrics computes one store's metrics at the current reference time
func (h *Handlers) GetStoreMetrics(w http.ResponseWriter, req *http.Request) {
	storeID := mux.Vars(req)["store_id"]

	m, ref, err := h.controller.services.Generator.StoreMetrics(req.Context(), storeID)
	if err != nil {
		if errors.Is(err, report.ErrNoObservations) {
			h.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "no observations have been loaded"})
			return
		}
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "error computing store metrics"})
		return
	}

	h.writeJSON(w, http.StatusOK, StoreMetricsResponse{StoreMetrics: m, ReferenceTime: ref})
}

// Healthz reports healthy only when every monitored backend passed a recent check
func (h *Handlers) Healthz(w http.ResponseWriter, req *http.Request) {
	resp := HealthResponse{Status: storage.StatusHealthy, Backends: map[string]storage.Health{}}

	hm := h.controller.services.Health
	if hm != nil {
		resp.Backends = hm.GetAllHealth()
		for backend := range resp.Backends {
			if !hm.IsHealthy(backend, h.controller.services.HealthMaxAge) {
				resp.Status = storage.StatusUnhealthy
			}
		}
	}

	code := http.StatusOK
	if resp.Status != storage.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, resp)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.controller.logger.Errorf("error encoding response: %v", err)
	}
}
