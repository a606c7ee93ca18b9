package app

import (
	"context"
	"time"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/ports"
	json "github.com/goccy/go-json"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// Nombre de runs conservés en base.
const defaultRunRetention = 500

// RefreshRunService trace les passes de rafraîchissement (base + bus).
// Un service nil ou sans repo reste utilisable: les runs ne sont alors pas persistés.
type RefreshRunService struct {
	logger zerolog.Logger
	repo   ports.RefreshRunRepository
	bus    ports.EventBus
	keep   int
}

func NewRefreshRunService(logger zerolog.Logger, repo ports.RefreshRunRepository, bus ports.EventBus) *RefreshRunService {
	return &RefreshRunService{logger: logger, repo: repo, bus: bus, keep: defaultRunRetention}
}

type RefreshRunDTO struct {
	ID         string              `json:"id"`
	Country    string              `json:"country"`
	Type       domain.ContentType  `json:"type"`
	State      domain.RefreshState `json:"state"`
	Pages      int                 `json:"pages"`
	Fetched    int                 `json:"fetched"`
	Kept       int                 `json:"kept"`
	ErrorCode  string              `json:"errorCode,omitempty"`
	Error      string              `json:"error,omitempty"`
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
	DurationMS int64               `json:"durationMs,omitempty"`
}

func ToRefreshRunDTO(r domain.RefreshRun) RefreshRunDTO {
	dto := RefreshRunDTO{
		ID:        r.ID,
		Country:   r.Country,
		Type:      r.Type,
		State:     r.State,
		Pages:     r.Pages,
		Fetched:   r.Fetched,
		Kept:      r.Kept,
		ErrorCode: r.ErrorCode,
		Error:     r.ErrorMessage,
		StartedAt: r.StartedAt,
	}
	if !r.FinishedAt.IsZero() {
		fin := r.FinishedAt
		dto.FinishedAt = &fin
		dto.DurationMS = fin.Sub(r.StartedAt).Milliseconds()
	}
	return dto
}

func runTopic(state domain.RefreshState) string {
	switch state {
	case domain.RefreshCompleted, domain.RefreshPartial:
		return "pool.refreshed"
	case domain.RefreshEmpty:
		return "pool.empty"
	case domain.RefreshFailed:
		return "pool.refresh_failed"
	default:
		return "pool.refreshing"
	}
}

func PublishRunEvent(bus ports.EventBus, run domain.RefreshRun) {
	if bus == nil {
		return
	}
	b, err := json.Marshal(ToRefreshRunDTO(run))
	if err != nil {
		return
	}
	bus.Publish(runTopic(run.State), b)
}

// Start crée le run "running". Un échec d'écriture est journalisé, jamais bloquant.
func (s *RefreshRunService) Start(ctx context.Context, key domain.PoolKey, at time.Time) domain.RefreshRun {
	run := domain.RefreshRun{
		ID:        xid.New().String(),
		Country:   key.Country,
		Type:      key.Type,
		State:     domain.RefreshRunning,
		StartedAt: at.UTC(),
	}
	if s == nil {
		return run
	}
	if s.repo != nil {
		if _, err := s.repo.Create(ctx, run); err != nil {
			s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("failed to record refresh run")
		}
	}
	PublishRunEvent(s.bus, run)
	return run
}

// Finish persiste l'état terminal, publie l'événement et purge les vieux runs.
func (s *RefreshRunService) Finish(ctx context.Context, run domain.RefreshRun) domain.RefreshRun {
	run.FinishedAt = run.FinishedAt.UTC()
	if s == nil {
		return run
	}
	if s.repo != nil {
		updated, err := s.repo.Finish(ctx, run)
		if err != nil {
			s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("failed to finish refresh run")
		} else {
			run = updated
		}
		if _, err := s.repo.Prune(ctx, s.keep); err != nil {
			s.logger.Warn().Err(err).Msg("failed to prune refresh runs")
		}
	}
	PublishRunEvent(s.bus, run)
	return run
}

func (s *RefreshRunService) Get(ctx context.Context, id string) (RefreshRunDTO, error) {
	if s == nil || s.repo == nil {
		return RefreshRunDTO{}, ErrNotFound
	}
	run, err := s.repo.Get(ctx, id)
	if err != nil {
		return RefreshRunDTO{}, err
	}
	return ToRefreshRunDTO(run), nil
}

func (s *RefreshRunService) List(ctx context.Context, limit int) ([]RefreshRunDTO, error) {
	if s == nil || s.repo == nil {
		return []RefreshRunDTO{}, nil
	}
	runs, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RefreshRunDTO, 0, len(runs))
	for _, r := range runs {
		out = append(out, ToRefreshRunDTO(r))
	}
	return out, nil
}
