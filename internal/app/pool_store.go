package app

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/metrics"
)

type PoolStoreOptions struct {
	MaxSize int
	// MinSize: en dessous, une lecture déclenche un rafraîchissement (les titres restent servis).
	MinSize int
	TTL     time.Duration
	// ServeStale sert un pool expiré non vide pendant son rafraîchissement.
	ServeStale bool
}

func DefaultPoolStoreOptions() PoolStoreOptions {
	return PoolStoreOptions{MaxSize: 100, MinSize: 10, TTL: 6 * time.Hour}
}

type pool struct {
	titles      []domain.Title
	refreshedAt time.Time
}

// PoolStore détient un pool borné par (pays, type). Les pools sont créés vides
// au démarrage et remplacés en bloc à chaque rafraîchissement.
type PoolStore struct {
	opts PoolStoreOptions
	now  func() time.Time

	mu      sync.RWMutex
	pools   map[domain.PoolKey]*pool
	onStale func(domain.PoolKey)

	hits   atomic.Int64
	misses atomic.Int64
}

func NewPoolStore(keys []domain.PoolKey, opts PoolStoreOptions) *PoolStore {
	def := DefaultPoolStoreOptions()
	if opts.MaxSize <= 0 {
		opts.MaxSize = def.MaxSize
	}
	if opts.MinSize < 0 || opts.MinSize > opts.MaxSize {
		opts.MinSize = 0
	}
	if opts.TTL <= 0 {
		opts.TTL = def.TTL
	}
	s := &PoolStore{opts: opts, now: time.Now, pools: make(map[domain.PoolKey]*pool, len(keys))}
	for _, k := range keys {
		s.pools[k] = &pool{}
		metrics.PoolTitles.WithLabelValues(k.Country, string(k.Type)).Set(0)
	}
	return s
}

// WithClock remplace l'horloge (tests).
func (s *PoolStore) WithClock(now func() time.Time) *PoolStore {
	if now != nil {
		s.now = now
	}
	return s
}

// OnStale enregistre le déclencheur appelé quand une lecture trouve un pool
// vide, expiré ou sous le minimum. Il ne doit pas bloquer.
func (s *PoolStore) OnStale(fn func(domain.PoolKey)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStale = fn
}

func (s *PoolStore) Options() PoolStoreOptions { return s.opts }

func (s *PoolStore) Keys() []domain.PoolKey {
	s.mu.RLock()
	keys := make([]domain.PoolKey, 0, len(s.pools))
	for k := range s.pools {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Country != keys[j].Country {
			return keys[i].Country < keys[j].Country
		}
		return keys[i].Type < keys[j].Type
	})
	return keys
}

func (s *PoolStore) Has(key domain.PoolKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pools[key]
	return ok
}

func (s *PoolStore) HasCountry(country string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k := range s.pools {
		if k.Country == country {
			return true
		}
	}
	return false
}

// Snapshot renvoie l'état brut d'un pool, sans déclencher de rafraîchissement.
func (s *PoolStore) Snapshot(key domain.PoolKey) (domain.PoolSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[key]
	if !ok {
		return domain.PoolSnapshot{}, false
	}
	return domain.PoolSnapshot{Key: key, Titles: p.titles, RefreshedAt: p.refreshedAt}, true
}

// Replace remplace en bloc la liste d'un pool (tronquée à MaxSize).
// Renvoie le nombre de titres conservés.
func (s *PoolStore) Replace(key domain.PoolKey, titles []domain.Title, at time.Time) (int, error) {
	n := len(titles)
	if n > s.opts.MaxSize {
		n = s.opts.MaxSize
	}
	fresh := make([]domain.Title, n)
	copy(fresh, titles[:n])

	s.mu.Lock()
	p, ok := s.pools[key]
	if !ok {
		s.mu.Unlock()
		return 0, ErrUnknownPool
	}
	p.titles = fresh
	p.refreshedAt = at
	s.mu.Unlock()

	metrics.PoolTitles.WithLabelValues(key.Country, string(key.Type)).Set(float64(n))
	return n, nil
}

// Read renvoie les titres servables d'un pool.
//
// Vide ou expiré: aucun titre (miss) et rafraîchissement déclenché en tâche de fond.
// Sous MinSize: titres servis (hit) et rafraîchissement déclenché.
// La lecture ne bloque jamais sur le rafraîchissement. Le slice renvoyé ne doit pas être modifié.
func (s *PoolStore) Read(key domain.PoolKey) []domain.Title {
	s.mu.RLock()
	p, ok := s.pools[key]
	var titles []domain.Title
	var at time.Time
	if ok {
		titles, at = p.titles, p.refreshedAt
	}
	trigger := s.onStale
	s.mu.RUnlock()

	if !ok {
		s.miss()
		return nil
	}

	expired := at.IsZero() || s.now().Sub(at) > s.opts.TTL
	if len(titles) == 0 || expired {
		if trigger != nil {
			trigger(key)
		}
		if len(titles) > 0 && s.opts.ServeStale {
			s.hit()
			return titles
		}
		s.miss()
		return nil
	}

	if len(titles) < s.opts.MinSize && trigger != nil {
		trigger(key)
	}
	s.hit()
	return titles
}

func (s *PoolStore) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

func (s *PoolStore) hit() {
	s.hits.Add(1)
	metrics.PoolReads.WithLabelValues("hit").Inc()
}

func (s *PoolStore) miss() {
	s.misses.Add(1)
	metrics.PoolReads.WithLabelValues("miss").Inc()
}
