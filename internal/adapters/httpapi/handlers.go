package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/app"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/buildinfo"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/httpjson"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/metrics"
)

const defaultRequestTimeout = 30 * time.Second

type healthResponse struct {
	app.HealthReport
	Database string `json:"database,omitempty"`
}

// handleHealth: 503 uniquement quand aucun titre n'est servable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		httpjson.Write(w, http.StatusOK, map[string]string{"status": app.HealthOK})
		return
	}
	resp := healthResponse{HealthReport: s.deps.Health.Report()}
	if s.deps.DB != nil {
		resp.Database = "ok"
		if err := s.deps.DB.Ping(r.Context()); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("database ping failed")
			resp.Database = "error"
		}
	}

	status := http.StatusOK
	if resp.Status == app.HealthUnavailable {
		status = http.StatusServiceUnavailable
	}
	httpjson.Write(w, status, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, buildinfo.Current())
}

func accessLogFn(r *http.Request, status, size int, duration time.Duration) {
	logger := hlog.FromRequest(r)
	evt := logger.Info()
	if status >= 500 {
		evt = logger.Error()
	} else if r.URL.Path == "/metrics" || r.URL.Path == "/api/v1/health" {
		evt = logger.Debug()
	}
	evt.
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("http")
}

// metricsMiddleware mesure la latence par motif de route chi (cardinalité bornée).
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTP(r.Method, route, strconv.Itoa(status), time.Since(start))
	})
}
