package app

import (
	"context"
	"errors"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/rs/zerolog"
)

// Worker consomme la RefreshQueue et exécute les passes de rafraîchissement.
type Worker struct {
	logger    zerolog.Logger
	queue     *RefreshQueue
	refresher *Refresher
}

func NewWorker(logger zerolog.Logger, queue *RefreshQueue, refresher *Refresher) *Worker {
	return &Worker{logger: logger, queue: queue, refresher: refresher}
}

// Run consomme la file jusqu'à l'annulation de ctx ou la fermeture de stop.
// stop n'interrompt pas une passe: elle est vérifiée entre deux clés.
func (w *Worker) Run(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case key, ok := <-w.queue.C():
			if !ok {
				return
			}
			w.execute(ctx, key)
		}
	}
}

func (w *Worker) execute(ctx context.Context, key domain.PoolKey) {
	// La clé reste "pending" pendant toute la passe: les déclenchements
	// concurrents ne la remettent pas en file.
	defer w.queue.Done(key)

	run, err := w.refresher.Refresh(ctx, key)
	switch {
	case err == nil:
		w.logger.Debug().Str("pool", key.String()).Str("run_id", run.ID).Str("state", string(run.State)).Msg("refresh done")
	case errors.Is(err, ErrRefreshInFlight):
		w.logger.Debug().Str("pool", key.String()).Msg("refresh skipped, already in flight")
	default:
		w.logger.Error().Err(err).Str("pool", key.String()).Msg("refresh failed")
	}
}
