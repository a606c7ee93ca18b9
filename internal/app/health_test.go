package app

import (
	"testing"
	"time"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
)

func TestHealthService_Report(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	store := testStore(PoolStoreOptions{MaxSize: 10, TTL: time.Hour}).WithClock(func() time.Time { return now })
	queue := NewRefreshQueue(4)
	health := NewHealthService(store, nil, queue).WithClock(func() time.Time { return now })

	rep := health.Report()
	if rep.Status != HealthUnavailable {
		t.Fatalf("no titles: want unavailable, got %s", rep.Status)
	}

	_, _ = store.Replace(usMovie, mkTitles("m", 3, 50, domain.ContentMovie), now.Add(-10*time.Minute))
	_ = queue.Enqueue(usSeries)
	rep = health.Report()
	if rep.Status != HealthDegraded {
		t.Fatalf("series empty: want degraded, got %s", rep.Status)
	}
	if rep.TotalSize != 3 || rep.QueueDepth != 1 {
		t.Fatalf("want 3 titles / depth 1, got %d / %d", rep.TotalSize, rep.QueueDepth)
	}
	if len(rep.Pools) != 2 || rep.Pools[0].AgeSeconds != 600 || !rep.Pools[1].Queued {
		t.Fatalf("unexpected pools: %+v", rep.Pools)
	}

	_, _ = store.Replace(usSeries, mkTitles("s", 2, 50, domain.ContentSeries), now)
	store.Read(usMovie)
	store.Read(usMovie)
	rep = health.Report()
	if rep.Status != HealthOK {
		t.Fatalf("want ok, got %s", rep.Status)
	}
	if rep.Hits != 2 || rep.HitRate != 1 {
		t.Fatalf("want 2 hits / rate 1, got %d / %v", rep.Hits, rep.HitRate)
	}
}
