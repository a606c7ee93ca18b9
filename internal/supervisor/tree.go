// Package supervisor regroupe les services longs du serveur sous un arbre suture.
//
// Deux couches:
//   - refresh: file de rafraîchissement (workers) et planificateur cron
//   - api: serveur HTTP
//
// Un crash côté refresh n'interrompt pas l'API, qui continue de servir les pools en mémoire.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/logging"
)

type TreeConfig struct {
	// Nombre d'échecs avant backoff.
	FailureThreshold float64
	// Décroissance des échecs (secondes).
	FailureDecay   float64
	FailureBackoff time.Duration
	// Délai max d'arrêt d'un service.
	ShutdownTimeout time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

type Tree struct {
	root    *suture.Supervisor
	refresh *suture.Supervisor
	api     *suture.Supervisor
	config  TreeConfig
}

// NewTree construit l'arbre; les événements suture passent par zerolog via slog.
func NewTree(logger zerolog.Logger, config TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.FailureDecay <= 0 {
		config.FailureDecay = def.FailureDecay
	}
	if config.FailureBackoff <= 0 {
		config.FailureBackoff = def.FailureBackoff
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}

	slogger := slog.New(logging.NewSlogHandler(logger.With().Str("component", "supervisor").Logger()))
	hook := (&sutureslog.Handler{Logger: slogger}).MustHook()

	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	rootSpec := childSpec
	rootSpec.EventHook = hook

	root := suture.New("watch-roulette", rootSpec)
	refresh := suture.New("refresh-layer", childSpec)
	api := suture.New("api-layer", childSpec)
	root.Add(refresh)
	root.Add(api)

	return &Tree{root: root, refresh: refresh, api: api, config: config}
}

func (t *Tree) Config() TreeConfig { return t.config }

func (t *Tree) AddRefreshService(svc suture.Service) suture.ServiceToken {
	return t.refresh.Add(svc)
}

func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve bloque jusqu'à l'annulation de ctx.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
