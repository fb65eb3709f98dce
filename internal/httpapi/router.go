// Package httpapi serves the local status endpoints.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ARTM2000/winvault"
	"github.com/ARTM2000/winvault/metrics"
	"github.com/ARTM2000/winvault/sysinfo"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// StatusSource reports managed services. *winvault.Manager satisfies it.
type StatusSource interface {
	Status() []winvault.ServiceStatus
}

// SnapshotSource returns the most recent system snapshot.
type SnapshotSource interface {
	Latest() (sysinfo.Snapshot, bool)
}

type healthResponse struct {
	Status   string                   `json:"status"`
	Services []winvault.ServiceStatus `json:"services"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the status routes:
//   - GET /healthz: service states, 503 when any service failed
//   - GET /status: latest system snapshot, 503 before the first sample
//   - GET /metrics: Prometheus exposition, when m is non-nil
func NewRouter(status StatusSource, snaps SnapshotSource, m *metrics.Metrics, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(log, m))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		services := status.Status()
		resp := healthResponse{Status: "ok", Services: services}
		code := http.StatusOK
		for _, s := range services {
			if s.Err != nil {
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, code, resp)
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		snap, ok := snaps.Latest()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no system sample yet"})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	return r
}

func requestLogger(log *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			begin := time.Now()
			next.ServeHTTP(ww, r)
			took := time.Since(begin)

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if m != nil {
				m.ObserveRequest(r.Method, route, status, took)
			}
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("took", took),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
