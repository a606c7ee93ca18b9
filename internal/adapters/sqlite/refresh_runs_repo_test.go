package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/ports"
)

func TestRefreshRunsRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRefreshRunsRepository(openTestDB(t).SQL)

	started := time.Date(2026, 2, 3, 4, 5, 6, 789000000, time.UTC)
	created, err := repo.Create(ctx, domain.RefreshRun{
		ID: "run1", Country: "us", Type: domain.ContentMovie, State: domain.RefreshRunning, StartedAt: started,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created.StartedAt.Equal(started) || !created.FinishedAt.IsZero() {
		t.Fatalf("unexpected times: %v / %v", created.StartedAt, created.FinishedAt)
	}

	// Un run ne peut pas "finir" dans l'état running.
	if _, err := repo.Finish(ctx, created); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}

	done := created
	done.State = domain.RefreshPartial
	done.Pages, done.Fetched, done.Kept = 3, 60, 42
	done.ErrorCode, done.ErrorMessage = "upstream_status", "streamapi: http 502"
	done.FinishedAt = started.Add(3 * time.Second)
	finished, err := repo.Finish(ctx, done)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if finished.State != domain.RefreshPartial || finished.Kept != 42 || finished.ErrorCode != "upstream_status" {
		t.Fatalf("unexpected finished run: %+v", finished)
	}
	if !finished.FinishedAt.Equal(done.FinishedAt) {
		t.Fatalf("finishedAt: want %v, got %v", done.FinishedAt, finished.FinishedAt)
	}

	// Déjà terminal: plus de transition possible.
	if _, err := repo.Finish(ctx, done); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("second Finish: want ErrNotFound, got %v", err)
	}
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("Get(missing): want ErrNotFound, got %v", err)
	}
}

func TestRefreshRunsRepository_ListAndPrune(t *testing.T) {
	ctx := context.Background()
	repo := NewRefreshRunsRepository(openTestDB(t).SQL)

	base := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		_, err := repo.Create(ctx, domain.RefreshRun{
			ID:        fmt.Sprintf("run%d", i),
			Country:   "fr",
			Type:      domain.ContentSeries,
			State:     domain.RefreshRunning,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Create(%d): %v", i, err)
		}
	}

	runs, err := repo.List(ctx, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "run5" || runs[2].ID != "run3" {
		t.Fatalf("unexpected order: %v", ids(runs))
	}

	n, err := repo.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 4 {
		t.Fatalf("Prune: want 4 deleted, got %d", n)
	}
	runs, _ = repo.List(ctx, 0)
	if len(runs) != 2 || runs[0].ID != "run5" || runs[1].ID != "run4" {
		t.Fatalf("after prune: %v", ids(runs))
	}
}

func ids(runs []domain.RefreshRun) []string {
	out := make([]string, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.ID)
	}
	return out
}
