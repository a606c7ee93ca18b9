package ports

import (
	"context"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
)

type RefreshRunRepository interface {
	Create(ctx context.Context, run domain.RefreshRun) (domain.RefreshRun, error)
	Get(ctx context.Context, id string) (domain.RefreshRun, error)
	List(ctx context.Context, limit int) ([]domain.RefreshRun, error)
	// Finish passe un run "running" dans son état terminal avec ses compteurs.
	Finish(ctx context.Context, run domain.RefreshRun) (domain.RefreshRun, error)
	// Prune ne garde que les `keep` runs les plus récents.
	Prune(ctx context.Context, keep int) (int64, error)
}
