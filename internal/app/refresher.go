package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/metrics"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/ports"
	"github.com/rs/zerolog"
)

type RefresherOptions struct {
	Service        string
	OrderBy        string
	OrderDirection string
	// MaxPages est le plafond de pages par passe (borne la durée d'une passe).
	MaxPages int
}

func DefaultRefresherOptions() RefresherOptions {
	return RefresherOptions{Service: "netflix", OrderBy: "popularity_1year", OrderDirection: "desc", MaxPages: 10}
}

// Refresher remplit un pool en paginant le catalogue upstream.
// Au plus une passe par clé est en vol ; des clés différentes avancent en parallèle.
type Refresher struct {
	logger  zerolog.Logger
	catalog ports.Catalog
	store   *PoolStore
	runs    *RefreshRunService
	opts    RefresherOptions
	now     func() time.Time

	mu       sync.Mutex
	inFlight map[domain.PoolKey]time.Time
}

func NewRefresher(logger zerolog.Logger, catalog ports.Catalog, store *PoolStore, runs *RefreshRunService, opts RefresherOptions) *Refresher {
	def := DefaultRefresherOptions()
	if opts.MaxPages <= 0 {
		opts.MaxPages = def.MaxPages
	}
	if opts.Service == "" {
		opts.Service = def.Service
	}
	if opts.OrderBy == "" {
		opts.OrderBy = def.OrderBy
	}
	if opts.OrderDirection == "" {
		opts.OrderDirection = def.OrderDirection
	}
	return &Refresher{
		logger:   logger,
		catalog:  catalog,
		store:    store,
		runs:     runs,
		opts:     opts,
		now:      time.Now,
		inFlight: map[domain.PoolKey]time.Time{},
	}
}

func (r *Refresher) WithClock(now func() time.Time) *Refresher {
	if now != nil {
		r.now = now
	}
	return r
}

func (r *Refresher) InFlight(key domain.PoolKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inFlight[key]
	return ok
}

// InFlightKeys renvoie les pools en cours de rafraîchissement (triés).
func (r *Refresher) InFlightKeys() []domain.PoolKey {
	r.mu.Lock()
	keys := make([]domain.PoolKey, 0, len(r.inFlight))
	for k := range r.inFlight {
		keys = append(keys, k)
	}
	r.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func (r *Refresher) acquire(key domain.PoolKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[key]; busy {
		return false
	}
	r.inFlight[key] = r.now()
	metrics.RefreshInFlight.Set(float64(len(r.inFlight)))
	return true
}

func (r *Refresher) release(key domain.PoolKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, key)
	metrics.RefreshInFlight.Set(float64(len(r.inFlight)))
}

// Refresh exécute une passe complète pour key.
//
// Renvoie ErrRefreshInFlight sans appel upstream si une passe est déjà en vol.
// Les erreurs upstream ne sont pas renvoyées : elles terminent la passe (les titres
// déjà collectés sont gardés) et sont consignées dans le RefreshRun.
func (r *Refresher) Refresh(ctx context.Context, key domain.PoolKey) (domain.RefreshRun, error) {
	if !r.store.Has(key) {
		return domain.RefreshRun{}, ErrUnknownPool
	}
	if !r.acquire(key) {
		return domain.RefreshRun{}, ErrRefreshInFlight
	}
	defer r.release(key)

	logger := r.logger.With().Str("pool", key.String()).Logger()
	started := r.now()
	run := r.runs.Start(ctx, key, started)

	titles, pages, fetched, err := r.collect(ctx, key, logger)
	run.Pages = pages
	run.Fetched = fetched

	switch {
	case len(titles) > 0:
		kept, rerr := r.store.Replace(key, titles, r.now())
		if rerr != nil {
			return run, rerr
		}
		run.Kept = kept
		run.State = domain.RefreshCompleted
		if err != nil {
			run.State = domain.RefreshPartial
		}
	case err != nil:
		run.State = domain.RefreshFailed
	default:
		run.State = domain.RefreshEmpty
		err = &CodedError{Code: CodeEmpty, Message: "upstream returned no displayable titles"}
	}
	if err != nil {
		run.ErrorCode = ErrorCode(err)
		run.ErrorMessage = err.Error()
	}
	run.FinishedAt = r.now()

	switch run.State {
	case domain.RefreshCompleted:
		logger.Info().Int("titles", run.Kept).Int("pages", pages).Msg("pool refreshed")
	case domain.RefreshPartial:
		logger.Warn().Err(err).Int("titles", run.Kept).Int("pages", pages).Msg("pool refreshed with partial results")
	case domain.RefreshEmpty:
		logger.Warn().Int("pages", pages).Int("fetched", fetched).Msg("refresh returned no titles, keeping current pool")
	case domain.RefreshFailed:
		logger.Error().Err(err).Msg("pool refresh failed, keeping current pool")
	}

	metrics.RecordRefresh(key.Country, string(key.Type), string(run.State), run.FinishedAt.Sub(started))
	// Contexte détaché: l'annulation de la passe ne doit pas empêcher la trace.
	return r.runs.Finish(context.WithoutCancel(ctx), run), nil
}

func (r *Refresher) collect(ctx context.Context, key domain.PoolKey, logger zerolog.Logger) ([]domain.Title, int, int, error) {
	maxSize := r.store.Options().MaxSize
	titles := make([]domain.Title, 0, maxSize)
	seen := make(map[string]struct{}, maxSize)
	cursor := ""
	pages, fetched := 0, 0

	for pages < r.opts.MaxPages && len(titles) < maxSize {
		if err := ctx.Err(); err != nil {
			return titles, pages, fetched, &CodedError{Code: CodeCanceled, Message: fmt.Sprintf("before page %d", pages+1), Err: err}
		}

		page, err := r.catalog.Search(ctx, ports.CatalogQuery{
			Country:        key.Country,
			Type:           key.Type,
			Service:        r.opts.Service,
			OrderBy:        r.opts.OrderBy,
			OrderDirection: r.opts.OrderDirection,
			Cursor:         cursor,
		})
		pages++
		if err != nil {
			logger.Warn().Err(err).Int("page", pages).Msg("catalog page failed, aborting pass")
			return titles, pages, fetched, &CodedError{Code: ErrorCode(err), Message: fmt.Sprintf("page %d", pages), Err: err}
		}
		fetched += len(page.Titles)

		for _, t := range page.Titles {
			if !t.IsDisplayable() {
				continue
			}
			// Sans ID upstream, la clé synthétique devient l'ID (dédup et historique).
			if t.ID == "" {
				t.ID = string(t.Type) + "|" + t.Title
			}
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			titles = append(titles, t)
			if len(titles) >= maxSize {
				break
			}
		}

		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return titles, pages, fetched, nil
}
