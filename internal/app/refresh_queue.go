package app

import (
	"sync"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/metrics"
)

// RefreshQueue est la file des pools à rafraîchir, dédupliquée par clé.
// Une clé reste "pending" depuis Enqueue jusqu'à Done (fin de la passe par le worker).
type RefreshQueue struct {
	ch chan domain.PoolKey

	mu      sync.Mutex
	pending map[domain.PoolKey]struct{}
}

func NewRefreshQueue(capacity int) *RefreshQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &RefreshQueue{ch: make(chan domain.PoolKey, capacity), pending: map[domain.PoolKey]struct{}{}}
}

// Enqueue ne bloque jamais.
func (q *RefreshQueue) Enqueue(key domain.PoolKey) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[key]; ok {
		return ErrRefreshQueued
	}
	select {
	case q.ch <- key:
	default:
		return ErrQueueFull
	}
	q.pending[key] = struct{}{}
	metrics.RefreshQueueDepth.Set(float64(len(q.ch)))
	return nil
}

// Trigger est Enqueue sans résultat (déclencheur du PoolStore).
func (q *RefreshQueue) Trigger(key domain.PoolKey) {
	_ = q.Enqueue(key)
}

func (q *RefreshQueue) C() <-chan domain.PoolKey {
	return q.ch
}

func (q *RefreshQueue) Done(key domain.PoolKey) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, key)
	metrics.RefreshQueueDepth.Set(float64(len(q.ch)))
}

func (q *RefreshQueue) Pending(key domain.PoolKey) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[key]
	return ok
}

// Depth: clés en attente d'un worker (hors passes en cours).
func (q *RefreshQueue) Depth() int {
	return len(q.ch)
}
