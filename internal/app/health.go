package app

import (
	"time"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
)

type PoolStatus struct {
	Country     string             `json:"country"`
	Type        domain.ContentType `json:"type"`
	Size        int                `json:"size"`
	RefreshedAt *time.Time         `json:"refreshedAt,omitempty"`
	AgeSeconds  int64              `json:"ageSeconds,omitempty"`
	Expired     bool               `json:"expired"`
	Refreshing  bool               `json:"refreshing"`
	Queued      bool               `json:"queued"`
}

type HealthReport struct {
	// Status: ok (tous les pools servables), degraded (au moins un vide ou expiré), unavailable (aucun titre).
	Status     string       `json:"status"`
	TotalSize  int          `json:"totalTitles"`
	Hits       int64        `json:"hits"`
	Misses     int64        `json:"misses"`
	HitRate    float64      `json:"hitRate"`
	InFlight   int          `json:"inFlight"`
	QueueDepth int          `json:"queueDepth"`
	Pools      []PoolStatus `json:"pools"`
}

const (
	HealthOK          = "ok"
	HealthDegraded    = "degraded"
	HealthUnavailable = "unavailable"
)

// HealthService agrège l'état des pools (tailles, fraîcheur, compteurs hit/miss, passes en vol).
// Il lit les snapshots et ne déclenche jamais de rafraîchissement.
type HealthService struct {
	store     *PoolStore
	refresher *Refresher
	queue     *RefreshQueue
	now       func() time.Time
}

func NewHealthService(store *PoolStore, refresher *Refresher, queue *RefreshQueue) *HealthService {
	return &HealthService{store: store, refresher: refresher, queue: queue, now: time.Now}
}

func (h *HealthService) WithClock(now func() time.Time) *HealthService {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *HealthService) Pools() []PoolStatus {
	now := h.now()
	ttl := h.store.Options().TTL
	keys := h.store.Keys()
	out := make([]PoolStatus, 0, len(keys))
	for _, key := range keys {
		snap, _ := h.store.Snapshot(key)
		st := PoolStatus{
			Country: key.Country,
			Type:    key.Type,
			Size:    len(snap.Titles),
			Expired: snap.Expired(now, ttl),
		}
		if !snap.RefreshedAt.IsZero() {
			at := snap.RefreshedAt
			st.RefreshedAt = &at
			st.AgeSeconds = int64(now.Sub(at).Seconds())
		}
		if h.refresher != nil {
			st.Refreshing = h.refresher.InFlight(key)
		}
		if h.queue != nil {
			st.Queued = h.queue.Pending(key) && !st.Refreshing
		}
		out = append(out, st)
	}
	return out
}

func (h *HealthService) Report() HealthReport {
	pools := h.Pools()
	hits, misses := h.store.Stats()

	rep := HealthReport{Status: HealthOK, Hits: hits, Misses: misses, Pools: pools}
	if total := hits + misses; total > 0 {
		rep.HitRate = float64(hits) / float64(total)
	}
	if h.refresher != nil {
		rep.InFlight = len(h.refresher.InFlightKeys())
	}
	if h.queue != nil {
		rep.QueueDepth = h.queue.Depth()
	}

	for _, p := range pools {
		rep.TotalSize += p.Size
		if p.Size == 0 || p.Expired {
			rep.Status = HealthDegraded
		}
	}
	if rep.TotalSize == 0 {
		rep.Status = HealthUnavailable
	}
	return rep
}
