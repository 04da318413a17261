package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/quotascope/quotascope/internal/collector"
	"github.com/quotascope/quotascope/internal/metrics"
)

// expositionContentType is the Prometheus text exposition format version
// served at /metrics.
const expositionContentType = "text/plain; version=0.0.4; charset=utf-8"

// Handler is the HTTP handler for the exporter: the Prometheus exposition at
// /metrics plus a small JSON status surface.
type Handler struct {
	collector *collector.Collector
	mux       *http.ServeMux
}

// New creates a Handler wired to the given collector and registers all routes.
func New(c *collector.Collector) http.Handler {
	h := &Handler{collector: c, mux: http.NewServeMux()}

	h.mux.HandleFunc("/metrics", h.metrics)
	h.mux.HandleFunc("/healthz", h.healthz)
	h.mux.HandleFunc("/api/v1/status", h.status)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// metrics serves GET /metrics — the full exposition for one scrape. The
// collector serves its cache within the TTL, so scraping faster than the
// cache duration does not hammer the upstream API. When every configured
// volume fails the response is 500 with a comment body, so Prometheus marks
// the target down instead of keeping stale data alive.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	recs, err := h.collector.Collect(r.Context())
	if err != nil {
		slog.Error("api: metrics collection failed", "error", err)
		w.Header().Set("Content-Type", expositionContentType)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "# Error collecting metrics: %s\n", err)
		return
	}

	w.Header().Set("Content-Type", expositionContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, metrics.Format(recs)); err != nil {
		slog.Debug("api: client went away mid-scrape", "error", err)
		return
	}
	slog.Debug("api: scrape served",
		"records", len(recs), "duration", time.Since(start).Round(time.Millisecond))
}

// healthz serves GET /healthz — liveness only, it never triggers a
// collection.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, healthResponse{Status: "ok"})
}

// status serves GET /api/v1/status — cache, collection and circuit breaker
// state without triggering a collection.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.collector.Status())
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
