package streamapi

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/metrics"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/ports"
)

type BreakerOptions struct {
	Name string
	// ConsecutiveFailures avant ouverture du circuit.
	ConsecutiveFailures uint32
	// OpenTimeout: durée en état ouvert avant un essai (half-open).
	OpenTimeout time.Duration
}

// Breaker protège un ports.Catalog: après une série d'échecs, les appels
// échouent immédiatement (code circuit_open) au lieu de marteler l'API.
type Breaker struct {
	next ports.Catalog
	cb   *gobreaker.CircuitBreaker[ports.CatalogPage]
	name string
}

func NewBreaker(logger zerolog.Logger, next ports.Catalog, opts BreakerOptions) *Breaker {
	if opts.Name == "" {
		opts.Name = "catalog-api"
	}
	if opts.ConsecutiveFailures == 0 {
		opts.ConsecutiveFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = time.Minute
	}
	metrics.CircuitBreakerState.WithLabelValues(opts.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[ports.CatalogPage](gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return !isUpstreamFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return &Breaker{next: next, cb: cb, name: opts.Name}
}

func (b *Breaker) Search(ctx context.Context, q ports.CatalogQuery) (ports.CatalogPage, error) {
	page, err := b.cb.Execute(func() (ports.CatalogPage, error) {
		return b.next.Search(ctx, q)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.UpstreamRequests.WithLabelValues("rejected").Inc()
		return ports.CatalogPage{}, &Error{Code: CodeCircuitOpen, Err: err}
	}
	return page, err
}

func (b *Breaker) State() string {
	return b.cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
