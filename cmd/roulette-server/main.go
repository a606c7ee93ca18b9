package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/adapters/httpapi"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/adapters/memorybus"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/adapters/sqlite"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/adapters/streamapi"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/app"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/buildinfo"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/config"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/logging"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "Fichier YAML de configuration (sinon ROULETTE_CONFIG / config.yaml)")
	addr := flag.String("addr", "", "Adresse d'écoute, prioritaire sur la config (ex: 127.0.0.1:8080)")
	flag.Parse()

	// .env est optionnel: utile en dev pour la clé API.
	_ = godotenv.Load()

	var (
		cfg config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		boot := logging.New(logging.Options{App: "roulette-server"}, os.Stderr)
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, App: "roulette-server"}, os.Stdout)
	logger.Info().
		Interface("build", buildinfo.Current()).
		Str("db", cfg.Database.Path).
		Strs("countries", cfg.Pools.Countries).
		Msg("starting")
	if cfg.Catalog.APIKey == "" {
		logger.Warn().Msg("catalog api key is empty: upstream calls will be rejected")
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(shutdownCtx, cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open db")
	}
	defer func() { _ = db.Close() }()

	bus := memorybus.New()
	defer bus.Close()

	settingsSvc := app.NewSettingsService(sqlite.NewSettingsRepository(db.SQL), bus)
	settings, err := settingsSvc.Get(shutdownCtx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load settings, using defaults")
		settings = domain.DefaultSettings()
	}

	keys := cfg.PoolKeys()
	store := app.NewPoolStore(keys, app.PoolStoreOptions{
		MaxSize:    cfg.Pools.MaxSize,
		MinSize:    cfg.Pools.MinSize,
		TTL:        cfg.Pools.TTL,
		ServeStale: cfg.Pools.ServeStale,
	})
	queue := app.NewRefreshQueue(len(keys))
	// Pool vide, expiré ou sous le minimum: la lecture met le pool en file.
	store.OnStale(queue.Trigger)

	runs := app.NewRefreshRunService(logger.With().Str("component", "refresh-runs").Logger(), sqlite.NewRefreshRunsRepository(db.SQL), bus)

	client := streamapi.New(logger.With().Str("component", "catalog").Logger(), streamapi.Options{
		BaseURL:           cfg.Catalog.BaseURL,
		APIKey:            cfg.Catalog.APIKey,
		APIHost:           cfg.Catalog.APIHost,
		OutputLanguage:    cfg.Catalog.OutputLanguage,
		Timeout:           cfg.Catalog.Timeout,
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		Burst:             cfg.Catalog.Burst,
	})
	catalog := streamapi.NewBreaker(logger.With().Str("component", "breaker").Logger(), client, streamapi.BreakerOptions{
		ConsecutiveFailures: uint32(max(cfg.Catalog.BreakerFailures, 0)),
		OpenTimeout:         cfg.Catalog.BreakerTimeout,
	})

	refresher := app.NewRefresher(logger.With().Str("component", "refresher").Logger(), catalog, store, runs, app.RefresherOptions{
		Service:        cfg.Catalog.Service,
		OrderBy:        cfg.Catalog.OrderBy,
		OrderDirection: cfg.Catalog.OrderDirection,
		MaxPages:       cfg.Pools.MaxPages,
	})

	history := app.NewPickHistory(cfg.Picker.HistoryUsers, settings.MaxRecentPicks)
	picker := app.NewPicker(store, history, settings)

	pool := app.NewWorkerPool(logger.With().Str("component", "workers").Logger(), queue, refresher, settings.RefreshWorkers)

	scheduler := app.NewRefreshScheduler(logger.With().Str("component", "scheduler").Logger(), queue, keys)
	scheduler.Interval = cfg.Pools.RefreshInterval
	scheduler.Stagger = cfg.Pools.StartupStagger

	health := app.NewHealthService(store, refresher, queue)

	srv := httpapi.NewServer(logger, httpapi.Deps{
		Picker:    picker,
		Pools:     store,
		Queue:     queue,
		Refresher: refresher,
		Scheduler: scheduler,
		Runs:      runs,
		Settings:  settingsSvc,
		Health:    health,
		Bus:       bus,
		DB:        db,
	}, httpapi.Options{
		RequestTimeout:    cfg.Server.RequestTimeout,
		CORSOrigins:       cfg.Server.CORSOrigins,
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
		OnSettingsUpdated: func(updated domain.Settings) {
			picker.Apply(updated)
			pool.SetCount(updated.RefreshWorkers)
			logger.Info().Interface("settings", updated).Msg("settings applied")
		},
	})
	// Les flux SSE ouverts sont fermés au Shutdown (sinon l'arrêt attend le délai complet).
	httpServer := srv.HTTPServer(cfg.Server.Addr)

	tree := supervisor.NewTree(logger, supervisor.DefaultTreeConfig())
	tree.AddRefreshService(pool)
	tree.AddRefreshService(scheduler)
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, 10*time.Second))

	logger.Info().Str("addr", cfg.Server.Addr).Int("pools", len(keys)).Msg("listening")
	if err := tree.Serve(shutdownCtx); err != nil && shutdownCtx.Err() == nil {
		logger.Error().Err(err).Msg("supervisor stopped")
	}
	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		logger.Warn().Int("count", len(unstopped)).Msg("services did not stop in time")
	}
	logger.Info().Msg("bye")
}
