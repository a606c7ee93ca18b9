package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/ports"
)

func newTestRefresher(cat ports.Catalog, store *PoolStore, repo *memRunRepo, bus *recordingBus, maxPages int) *Refresher {
	var runs *RefreshRunService
	if repo != nil {
		runs = NewRefreshRunService(nopLogger(), repo, bus)
	}
	return NewRefresher(nopLogger(), cat, store, runs, RefresherOptions{MaxPages: maxPages})
}

func TestRefresher_ConcurrentRefreshFetchesOnce(t *testing.T) {
	cat := newFakeCatalog()
	cat.pages[""] = ports.CatalogPage{Titles: mkTitles("m", 3, 60, domain.ContentMovie)}
	cat.entered = make(chan struct{}, 4)
	cat.release = make(chan struct{})

	store := testStore(PoolStoreOptions{MaxSize: 10})
	r := newTestRefresher(cat, store, nil, nil, 10)

	done := make(chan error, 1)
	go func() {
		_, err := r.Refresh(context.Background(), usMovie)
		done <- err
	}()

	select {
	case <-cat.entered:
	case <-time.After(time.Second):
		t.Fatalf("first refresh never reached the catalog")
	}

	if !r.InFlight(usMovie) {
		t.Fatalf("pool should be in flight")
	}
	if _, err := r.Refresh(context.Background(), usMovie); !errors.Is(err, ErrRefreshInFlight) {
		t.Fatalf("second refresh: want ErrRefreshInFlight, got %v", err)
	}

	close(cat.release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first refresh: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("first refresh did not finish")
	}

	if cat.Calls() != 1 {
		t.Fatalf("want exactly 1 upstream call, got %d", cat.Calls())
	}
	if r.InFlight(usMovie) {
		t.Fatalf("in-flight marker not cleared")
	}
	if snap, _ := store.Snapshot(usMovie); len(snap.Titles) != 3 {
		t.Fatalf("pool: want 3 titles, got %d", len(snap.Titles))
	}
}

func TestRefresher_PagesDedupesAndBounds(t *testing.T) {
	cat := newFakeCatalog()
	page1 := mkTitles("m", 3, 60, domain.ContentMovie)
	page2 := append(mkTitles("m", 2, 60, domain.ContentMovie), mkTitles("n", 4, 60, domain.ContentMovie)...)
	cat.pages[""] = ports.CatalogPage{Titles: page1, HasMore: true, NextCursor: "c2"}
	cat.pages["c2"] = ports.CatalogPage{Titles: page2, HasMore: true, NextCursor: "c3"}
	cat.pages["c3"] = ports.CatalogPage{Titles: mkTitles("o", 5, 60, domain.ContentMovie)}

	store := testStore(PoolStoreOptions{MaxSize: 5})
	repo := newMemRunRepo()
	r := newTestRefresher(cat, store, repo, &recordingBus{}, 10)

	run, err := r.Refresh(context.Background(), usMovie)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if run.State != domain.RefreshCompleted {
		t.Fatalf("state: want completed, got %s", run.State)
	}
	if run.Pages != 2 || run.Kept != 5 {
		t.Fatalf("want 2 pages / 5 kept, got %d / %d", run.Pages, run.Kept)
	}

	snap, _ := store.Snapshot(usMovie)
	seen := map[string]bool{}
	for _, ti := range snap.Titles {
		if seen[ti.ID] {
			t.Fatalf("duplicate title %s", ti.ID)
		}
		seen[ti.ID] = true
	}
	if len(snap.Titles) != 5 {
		t.Fatalf("pool bound: want 5, got %d", len(snap.Titles))
	}

	q := cat.queries[0]
	if q.Country != "us" || q.Type != domain.ContentMovie || q.Service != "netflix" || q.Cursor != "" {
		t.Fatalf("unexpected first query: %+v", q)
	}
	if cat.queries[1].Cursor != "c2" {
		t.Fatalf("second query cursor: want c2, got %q", cat.queries[1].Cursor)
	}
}

func TestRefresher_FiltersUndisplayable(t *testing.T) {
	cat := newFakeCatalog()
	good := mkTitle("good", 70, domain.ContentMovie)
	noLink := mkTitle("nolink", 70, domain.ContentMovie)
	noLink.Link = ""
	noOverview := mkTitle("nooverview", 70, domain.ContentMovie)
	noOverview.Overview = " "
	cat.pages[""] = ports.CatalogPage{Titles: []domain.Title{noLink, good, noOverview}}

	store := testStore(PoolStoreOptions{MaxSize: 10})
	r := newTestRefresher(cat, store, nil, nil, 10)
	if _, err := r.Refresh(context.Background(), usMovie); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	snap, _ := store.Snapshot(usMovie)
	if len(snap.Titles) != 1 || snap.Titles[0].ID != "good" {
		t.Fatalf("want only good, got %+v", snap.Titles)
	}
}

func TestRefresher_UpstreamErrorKeepsCollected(t *testing.T) {
	cat := newFakeCatalog()
	cat.pages[""] = ports.CatalogPage{Titles: mkTitles("m", 3, 60, domain.ContentMovie), HasMore: true, NextCursor: "c2"}
	cat.errs["c2"] = &CodedError{Code: "upstream_status", Message: "status 500"}

	store := testStore(PoolStoreOptions{MaxSize: 50})
	repo := newMemRunRepo()
	bus := &recordingBus{}
	r := newTestRefresher(cat, store, repo, bus, 10)

	run, err := r.Refresh(context.Background(), usMovie)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if run.State != domain.RefreshPartial {
		t.Fatalf("state: want partial, got %s", run.State)
	}
	if run.ErrorCode != "upstream_status" {
		t.Fatalf("error code: want upstream_status, got %q", run.ErrorCode)
	}
	if run.ErrorMessage != "page 2: status 500" {
		t.Fatalf("error message: want page context, got %q", run.ErrorMessage)
	}
	if snap, _ := store.Snapshot(usMovie); len(snap.Titles) != 3 {
		t.Fatalf("pool: want 3, got %d", len(snap.Titles))
	}

	stored, err := repo.Get(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("run not persisted: %v", err)
	}
	if stored.State != domain.RefreshPartial || stored.FinishedAt.IsZero() {
		t.Fatalf("stored run not finished: %+v", stored)
	}
	topics := bus.Topics()
	if len(topics) != 2 || topics[0] != "pool.refreshing" || topics[1] != "pool.refreshed" {
		t.Fatalf("unexpected topics: %v", topics)
	}
}

func TestRefresher_FailureLeavesPoolUntouched(t *testing.T) {
	store := testStore(PoolStoreOptions{MaxSize: 50})
	before := time.Now().Add(-time.Minute)
	_, _ = store.Replace(usMovie, mkTitles("old", 4, 60, domain.ContentMovie), before)

	cat := newFakeCatalog()
	cat.errs[""] = errUpstream
	r := newTestRefresher(cat, store, newMemRunRepo(), &recordingBus{}, 10)

	run, err := r.Refresh(context.Background(), usMovie)
	if err != nil {
		t.Fatalf("Refresh should swallow upstream errors, got %v", err)
	}
	if run.State != domain.RefreshFailed || run.ErrorCode != "upstream_error" {
		t.Fatalf("want failed/upstream_error, got %s/%s", run.State, run.ErrorCode)
	}
	snap, _ := store.Snapshot(usMovie)
	if len(snap.Titles) != 4 || !snap.RefreshedAt.Equal(before) {
		t.Fatalf("pool should be untouched, got %d titles at %v", len(snap.Titles), snap.RefreshedAt)
	}
	if r.InFlight(usMovie) {
		t.Fatalf("in-flight marker not cleared after error")
	}
}

func TestRefresher_ZeroResultsLeavesPoolUntouched(t *testing.T) {
	store := testStore(PoolStoreOptions{MaxSize: 50})
	_, _ = store.Replace(usMovie, mkTitles("old", 2, 60, domain.ContentMovie), time.Now())

	cat := newFakeCatalog()
	bad := mkTitle("bad", 60, domain.ContentMovie)
	bad.Images.Poster = ""
	cat.pages[""] = ports.CatalogPage{Titles: []domain.Title{bad}}

	r := newTestRefresher(cat, store, nil, nil, 10)
	run, err := r.Refresh(context.Background(), usMovie)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if run.State != domain.RefreshEmpty || run.ErrorCode != CodeEmpty {
		t.Fatalf("want empty/%s, got %s/%s", CodeEmpty, run.State, run.ErrorCode)
	}
	if snap, _ := store.Snapshot(usMovie); len(snap.Titles) != 2 || snap.Titles[0].ID != "old0" {
		t.Fatalf("pool should be untouched: %+v", snap.Titles)
	}
}

func TestRefresher_CanceledPassIsCoded(t *testing.T) {
	cat := newFakeCatalog()
	cat.pages[""] = ports.CatalogPage{Titles: mkTitles("m", 3, 60, domain.ContentMovie)}
	r := newTestRefresher(cat, testStore(PoolStoreOptions{MaxSize: 10}), newMemRunRepo(), &recordingBus{}, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, err := r.Refresh(ctx, usMovie)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if run.State != domain.RefreshFailed || run.ErrorCode != CodeCanceled {
		t.Fatalf("want failed/%s, got %s/%s", CodeCanceled, run.State, run.ErrorCode)
	}
	if cat.Calls() != 0 {
		t.Fatalf("canceled pass must not call the catalog, got %d calls", cat.Calls())
	}
}

func TestRefresher_MissingIDsAreSynthesized(t *testing.T) {
	noID := func(name string) domain.Title {
		ti := mkTitle("x", 70, domain.ContentMovie)
		ti.ID = ""
		ti.Title = name
		return ti
	}
	cat := newFakeCatalog()
	cat.pages[""] = ports.CatalogPage{Titles: []domain.Title{noID("Alpha"), noID("Alpha"), noID("Beta")}}

	store := testStore(PoolStoreOptions{MaxSize: 10})
	r := newTestRefresher(cat, store, nil, nil, 10)
	if _, err := r.Refresh(context.Background(), usMovie); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	snap, _ := store.Snapshot(usMovie)
	if len(snap.Titles) != 2 {
		t.Fatalf("want 2 titles after dedupe, got %d", len(snap.Titles))
	}
	if snap.Titles[0].ID != "movie|Alpha" || snap.Titles[1].ID != "movie|Beta" {
		t.Fatalf("unexpected ids: %q, %q", snap.Titles[0].ID, snap.Titles[1].ID)
	}

	// L'exclusion des tirages récents fonctionne aussi pour ces titres.
	picker := NewPicker(store, NewPickHistory(10, 5), domain.DefaultSettings())
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		res, err := picker.Discover(context.Background(), DiscoverRequest{Country: "us", Type: domain.ContentMovie, UserID: "u1"})
		if err != nil {
			t.Fatalf("Discover: %v", err)
		}
		if res.Relaxed {
			t.Fatalf("pick %d should be strict", i)
		}
		seen[res.Title.ID] = true
	}
	if len(seen) != 2 {
		t.Fatalf("want both titles picked once, got %v", seen)
	}
}

func TestRefresher_PageCeiling(t *testing.T) {
	cat := &loopingCatalog{}
	store := testStore(PoolStoreOptions{MaxSize: 1000})
	r := newTestRefresher(cat, store, nil, nil, 4)

	run, err := r.Refresh(context.Background(), usSeries)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if run.Pages != 4 || cat.calls != 4 {
		t.Fatalf("want 4 pages, got run=%d calls=%d", run.Pages, cat.calls)
	}
	if run.Kept != 8 {
		t.Fatalf("want 8 kept, got %d", run.Kept)
	}
}

func TestRefresher_UnknownPool(t *testing.T) {
	r := newTestRefresher(newFakeCatalog(), testStore(PoolStoreOptions{}), nil, nil, 10)
	if _, err := r.Refresh(context.Background(), domain.NewPoolKey("de", domain.ContentMovie)); !errors.Is(err, ErrUnknownPool) {
		t.Fatalf("want ErrUnknownPool, got %v", err)
	}
}

// loopingCatalog renvoie toujours 2 nouveaux titres et annonce une page suivante.
type loopingCatalog struct {
	calls int
}

func (c *loopingCatalog) Search(_ context.Context, q ports.CatalogQuery) (ports.CatalogPage, error) {
	c.calls++
	prefix := "p" + q.Cursor + "-"
	return ports.CatalogPage{
		Titles:     mkTitles(prefix, 2, 50, q.Type),
		HasMore:    true,
		NextCursor: q.Cursor + "x",
	}, nil
}
