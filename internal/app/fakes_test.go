package app

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/ports"
	"github.com/rs/zerolog"
)

func mkTitle(id string, rating int, t domain.ContentType) domain.Title {
	return domain.Title{
		ID:       id,
		Title:    "Title " + id,
		Overview: "Overview of " + id,
		Type:     t,
		Rating:   rating,
		Images:   domain.ImageSet{Poster: "https://img.example/" + id + ".jpg"},
		Link:     "https://www.netflix.com/title/" + id,
		Service:  "netflix",
	}
}

func mkTitles(prefix string, n, rating int, t domain.ContentType) []domain.Title {
	out := make([]domain.Title, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, mkTitle(prefix+strconv.Itoa(i), rating, t))
	}
	return out
}

// fakeCatalog sert des pages indexées par curseur ("" = première page).
type fakeCatalog struct {
	mu      sync.Mutex
	pages   map[string]ports.CatalogPage
	errs    map[string]error
	calls   int
	queries []ports.CatalogQuery

	// entered reçoit un signal à chaque appel; release bloque l'appel tant qu'il n'est pas fermé.
	entered chan struct{}
	release chan struct{}
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{pages: map[string]ports.CatalogPage{}, errs: map[string]error{}}
}

func (c *fakeCatalog) Search(ctx context.Context, q ports.CatalogQuery) (ports.CatalogPage, error) {
	c.mu.Lock()
	c.calls++
	c.queries = append(c.queries, q)
	page, err := c.pages[q.Cursor], c.errs[q.Cursor]
	entered, release := c.entered, c.release
	c.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ports.CatalogPage{}, ctx.Err()
		}
	}
	if err != nil {
		return ports.CatalogPage{}, err
	}
	return page, nil
}

func (c *fakeCatalog) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type memRunRepo struct {
	mu   sync.Mutex
	runs map[string]domain.RefreshRun
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{runs: map[string]domain.RefreshRun{}}
}

func (r *memRunRepo) Create(_ context.Context, run domain.RefreshRun) (domain.RefreshRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	return run, nil
}

func (r *memRunRepo) Get(_ context.Context, id string) (domain.RefreshRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return domain.RefreshRun{}, ports.ErrNotFound
	}
	return run, nil
}

func (r *memRunRepo) List(_ context.Context, limit int) ([]domain.RefreshRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.RefreshRun, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRunRepo) Finish(_ context.Context, run domain.RefreshRun) (domain.RefreshRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.runs[run.ID]
	if !ok {
		return domain.RefreshRun{}, ports.ErrNotFound
	}
	if !domain.CanTransition(prev.State, run.State) {
		return domain.RefreshRun{}, domain.ErrInvalidTransition
	}
	r.runs[run.ID] = run
	return run, nil
}

func (r *memRunRepo) Prune(context.Context, int) (int64, error) { return 0, nil }

type recordingBus struct {
	mu     sync.Mutex
	topics []string
}

func (b *recordingBus) Publish(topic string, _ []byte) {
	b.mu.Lock()
	b.topics = append(b.topics, topic)
	b.mu.Unlock()
}

func (b *recordingBus) Subscribe() (<-chan ports.Event, func()) {
	ch := make(chan ports.Event)
	close(ch)
	return ch, func() {}
}

func (b *recordingBus) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.topics...)
}

type memSettingsRepo struct {
	mu       sync.Mutex
	settings *domain.Settings
	err      error
}

func (r *memSettingsRepo) Get(context.Context) (domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.Settings{}, r.err
	}
	if r.settings == nil {
		return domain.DefaultSettings(), nil
	}
	return *r.settings, nil
}

func (r *memSettingsRepo) Put(_ context.Context, s domain.Settings) (domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.Settings{}, r.err
	}
	r.settings = &s
	return s, nil
}

func (r *memSettingsRepo) Reset(context.Context) (domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = nil
	return domain.DefaultSettings(), nil
}

var errUpstream = errors.New("upstream exploded")

var usMovie = domain.NewPoolKey("us", domain.ContentMovie)
var usSeries = domain.NewPoolKey("us", domain.ContentSeries)

func testStore(opts PoolStoreOptions) *PoolStore {
	return NewPoolStore([]domain.PoolKey{usMovie, usSeries}, opts)
}

func nopLogger() zerolog.Logger { return zerolog.Nop() }

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
