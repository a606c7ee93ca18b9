package app

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/metrics"
)

type DiscoverRequest struct {
	Country   string
	Type      domain.ContentType
	MinRating int
	// ExcludeRecent nil: valeur par défaut des settings.
	ExcludeRecent *bool
	UserID        string
}

type DiscoverResult struct {
	Title domain.Title
	// Relaxed: le titre vient de la seconde passe (sans note minimale ni exclusion).
	Relaxed bool
}

// Picker tire un titre au hasard, pondéré par la note, dans les pools d'un pays.
type Picker struct {
	pools   *PoolStore
	history *PickHistory

	mu  sync.Mutex
	rng *rand.Rand

	minWeight            atomic.Int64
	defaultExcludeRecent atomic.Bool
}

func NewPicker(pools *PoolStore, history *PickHistory, settings domain.Settings) *Picker {
	now := uint64(time.Now().UnixNano())
	p := &Picker{
		pools:   pools,
		history: history,
		rng:     rand.New(rand.NewPCG(now, now>>1|1)),
	}
	p.Apply(settings)
	return p
}

// WithRand remplace la source aléatoire (tests déterministes).
func (p *Picker) WithRand(rng *rand.Rand) *Picker {
	if rng != nil {
		p.mu.Lock()
		p.rng = rng
		p.mu.Unlock()
	}
	return p
}

// Apply applique à chaud les réglages du tirage.
func (p *Picker) Apply(s domain.Settings) {
	w := s.MinWeight
	if w <= 0 {
		w = domain.DefaultSettings().MinWeight
	}
	p.minWeight.Store(int64(w))
	p.defaultExcludeRecent.Store(s.DefaultExcludeRecent)
	if p.history != nil && s.MaxRecentPicks > 0 {
		p.history.SetMax(s.MaxRecentPicks)
	}
}

func (p *Picker) MinWeight() int { return int(p.minWeight.Load()) }

// Discover choisit un titre pour (pays, type, utilisateur).
//
// Passe stricte (note minimale, exclusion des tirages récents, qualité), puis une
// passe relâchée (qualité seule). ErrNoContent si les deux sont vides.
// Le choix est ajouté à l'historique de l'utilisateur.
func (p *Picker) Discover(ctx context.Context, req DiscoverRequest) (DiscoverResult, error) {
	if err := ctx.Err(); err != nil {
		return DiscoverResult{}, err
	}

	candidates, err := p.candidates(req)
	if err != nil {
		return DiscoverResult{}, err
	}

	exclude := p.defaultExcludeRecent.Load()
	if req.ExcludeRecent != nil {
		exclude = *req.ExcludeRecent
	}
	var recent []string
	if exclude && req.UserID != "" {
		recent = p.history.Recent(req.UserID)
	}

	title, ok := p.SelectOne(candidates, req.MinRating, recent)
	relaxed := false
	if !ok {
		title, ok = p.SelectOne(candidates, 0, nil)
		relaxed = true
	}
	if !ok {
		metrics.Discover.WithLabelValues("none").Inc()
		return DiscoverResult{}, ErrNoContent
	}

	if relaxed {
		metrics.Discover.WithLabelValues("relaxed").Inc()
	} else {
		metrics.Discover.WithLabelValues("strict").Inc()
	}
	if req.UserID != "" {
		p.history.Record(req.UserID, title.ID)
	}
	return DiscoverResult{Title: title, Relaxed: relaxed}, nil
}

func (p *Picker) candidates(req DiscoverRequest) ([]domain.Title, error) {
	country := domain.NormalizeCountry(req.Country)
	if !p.pools.HasCountry(country) {
		return nil, ErrUnknownPool
	}

	types := domain.PoolTypes
	if req.Type != "" && req.Type != domain.ContentAny {
		types = []domain.ContentType{req.Type}
	}

	var out []domain.Title
	for _, t := range types {
		key := domain.NewPoolKey(country, t)
		if !p.pools.Has(key) {
			return nil, ErrUnknownPool
		}
		out = append(out, p.pools.Read(key)...)
	}
	return out, nil
}

// SelectOne filtre (note minimale, IDs exclus, qualité) puis fait le tirage pondéré.
func (p *Picker) SelectOne(candidates []domain.Title, minRating int, exclude []string) (domain.Title, bool) {
	var skip map[string]struct{}
	if len(exclude) > 0 {
		skip = make(map[string]struct{}, len(exclude))
		for _, id := range exclude {
			skip[id] = struct{}{}
		}
	}

	eligible := make([]domain.Title, 0, len(candidates))
	for _, t := range candidates {
		if minRating > 0 && t.Rating < minRating {
			continue
		}
		if _, seen := skip[t.ID]; seen {
			continue
		}
		if !t.MeetsQuality() {
			continue
		}
		eligible = append(eligible, t)
	}
	if len(eligible) == 0 {
		return domain.Title{}, false
	}

	p.mu.Lock()
	u := p.rng.Float64()
	p.mu.Unlock()

	return eligible[WeightedIndex(eligible, p.MinWeight(), u)], true
}

// WeightedIndex renvoie l'indice tiré pour u dans [0,1).
// Poids = max(note, minWeight); on prend le premier candidat dont le poids cumulé atteint u*total.
func WeightedIndex(candidates []domain.Title, minWeight int, u float64) int {
	if len(candidates) == 0 {
		return -1
	}
	total := 0
	for _, t := range candidates {
		total += weight(t, minWeight)
	}
	r := u * float64(total)

	cum := 0
	for i, t := range candidates {
		cum += weight(t, minWeight)
		if float64(cum) >= r {
			return i
		}
	}
	return len(candidates) - 1
}

func weight(t domain.Title, minWeight int) int {
	if t.Rating < minWeight {
		return minWeight
	}
	return t.Rating
}
