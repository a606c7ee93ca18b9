package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/app"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/httpjson"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/ports"
)

// Deps regroupe les services exposés par l'API. Un service nil désactive ses routes.
type Deps struct {
	Picker    *app.Picker
	Pools     *app.PoolStore
	Queue     *app.RefreshQueue
	Refresher *app.Refresher
	Scheduler *app.RefreshScheduler
	Runs      *app.RefreshRunService
	Settings  *app.SettingsService
	Health    *app.HealthService
	Bus       ports.EventBus
	// DB est optionnel: son ping est reporté par /health.
	DB interface{ Ping(ctx context.Context) error }
}

type Options struct {
	RequestTimeout    time.Duration
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// OnSettingsUpdated est optionnel (ex: ajuster le nombre de workers).
	OnSettingsUpdated func(domain.Settings)
}

type Server struct {
	logger zerolog.Logger
	deps   Deps
	opts   Options

	// streamsDone est fermé à l'arrêt: les flux SSE ouverts se terminent.
	streamsDone chan struct{}
	closeOnce   sync.Once
}

func NewServer(logger zerolog.Logger, deps Deps, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	return &Server{logger: logger, deps: deps, opts: opts, streamsDone: make(chan struct{})}
}

// HTTPServer construit le serveur HTTP. Shutdown n'annule pas le contexte des
// requêtes en cours: les flux SSE sont donc fermés via RegisterOnShutdown.
func (s *Server) HTTPServer(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv.RegisterOnShutdown(s.CloseStreams)
	return srv
}

// CloseStreams termine les flux SSE ouverts et refuse les suivants.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() { close(s.streamsDone) })
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("request_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote_ip"))
	r.Use(hlog.UserAgentHandler("user_agent"))
	r.Use(hlog.AccessHandler(accessLogFn))
	r.Use(metricsMiddleware)
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Request-Id"},
			ExposedHeaders:   []string{"Request-Id", relaxedHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Flux SSE: pas de timeout de requête.
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))

			r.Get("/health", s.handleHealth)
			r.Get("/version", s.handleVersion)
			r.Get("/openapi.json", s.handleOpenAPI)

			if s.deps.Picker != nil {
				h := NewDiscoverHandler(s.deps.Picker)
				r.With(s.rateLimit()).Get("/discover", h.discover)
			}
			if s.deps.Pools != nil {
				NewPoolsHandler(s.deps).Routes(r)
			}
			if s.deps.Runs != nil {
				NewRefreshRunsHandler(s.deps.Runs).Routes(r)
			}
			if s.deps.Settings != nil {
				NewSettingsHandler(s.deps.Settings, s.opts.OnSettingsUpdated).Routes(r)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpjson.WriteError(w, http.StatusNotFound, "not found")
	})
	return r
}

// rateLimit limite /discover par IP (désactivé si rate_limit_requests <= 0).
func (s *Server) rateLimit() func(http.Handler) http.Handler {
	if s.opts.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	window := s.opts.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(
		s.opts.RateLimitRequests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpjson.WriteError(w, http.StatusTooManyRequests, "too many requests")
		}),
	)
}
