package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// WorkerPool gère les workers de rafraîchissement, ajustable à chaud.
// Les passes tournent sur le contexte de Serve; un worker retiré par SetCount
// termine la clé en cours avant de sortir.
//
// SetCount() peut être appelé avant ou pendant Serve et est thread-safe.
type WorkerPool struct {
	logger    zerolog.Logger
	queue     *RefreshQueue
	refresher *Refresher

	mu      sync.Mutex
	parent  context.Context
	desired int
	stops   []chan struct{}
	wg      sync.WaitGroup
}

func NewWorkerPool(logger zerolog.Logger, queue *RefreshQueue, refresher *Refresher, count int) *WorkerPool {
	if count <= 0 {
		count = 1
	}
	return &WorkerPool{logger: logger, queue: queue, refresher: refresher, desired: count}
}

func (p *WorkerPool) String() string { return "refresh-workers" }

// Serve démarre les workers et bloque jusqu'à l'annulation du contexte.
func (p *WorkerPool) Serve(ctx context.Context) error {
	p.mu.Lock()
	p.parent = ctx
	n := p.desired
	p.mu.Unlock()

	p.SetCount(n)
	p.logger.Info().Int("workers", n).Msg("refresh workers started")

	<-ctx.Done()
	p.Close()
	return nil
}

func (p *WorkerPool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stops)
}

func (p *WorkerPool) SetCount(n int) {
	if n <= 0 {
		n = 1
	}

	p.mu.Lock()
	p.desired = n
	// Pas encore servi (ou arrêté): la valeur sera appliquée au prochain Serve.
	if p.parent == nil || p.parent.Err() != nil {
		p.mu.Unlock()
		return
	}
	current := len(p.stops)

	if n == current {
		p.mu.Unlock()
		return
	}

	if n > current {
		for i := current; i < n; i++ {
			stop := make(chan struct{})
			p.stops = append(p.stops, stop)
			ctx := p.parent
			idx := i
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				w := NewWorker(p.logger.With().Int("worker", idx+1).Logger(), p.queue, p.refresher)
				w.Run(ctx, stop)
			}()
		}
		p.mu.Unlock()
		return
	}

	// n < current : les derniers workers sortent après leur clé en cours.
	toStop := append([]chan struct{}(nil), p.stops[n:]...)
	p.stops = p.stops[:n]
	p.mu.Unlock()

	for _, stop := range toStop {
		close(stop)
	}
}

// Close arrête tous les workers et attend leur sortie (y compris ceux retirés par SetCount).
func (p *WorkerPool) Close() {
	p.mu.Lock()
	toStop := append([]chan struct{}(nil), p.stops...)
	p.stops = nil
	p.mu.Unlock()

	for _, stop := range toStop {
		close(stop)
	}
	p.wg.Wait()
}
