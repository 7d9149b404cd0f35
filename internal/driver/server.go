package driver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// statusResponse is the /status payload.
type statusResponse struct {
	RunID       string `json:"run_id"`
	State       string `json:"state"`
	Workers     int    `json:"workers"`
	LiveWorkers int    `json:"live_workers"`
	Submitted   int64  `json:"submitted"`
	Rejected    int64  `json:"rejected"`
	Completed   int64  `json:"completed"`
	Failed      int64  `json:"failed"`
	Discarded   int64  `json:"discarded"`
	QueueDepths []int  `json:"queue_depths"`
}

// Handler serves /healthz, /status and /metrics for this driver's pool.
func (d *Driver) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", d.handleHealth)
	r.Get("/status", d.handleStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	return r
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (d *Driver) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *Driver) handleStatus(w http.ResponseWriter, _ *http.Request) {
	stats := d.pool.Stats()
	writeJSON(w, http.StatusOK, statusResponse{
		RunID:       d.runID,
		State:       stats.State.String(),
		Workers:     stats.Workers,
		LiveWorkers: stats.LiveWorkers,
		Submitted:   stats.Submitted,
		Rejected:    stats.Rejected,
		Completed:   stats.Completed,
		Failed:      stats.Failed,
		Discarded:   stats.Discarded,
		QueueDepths: stats.QueueDepths,
	})
}
