package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/ports"
)

// Largeur fixe: l'ordre lexicographique suit l'ordre chronologique.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const runColumns = `id, country, type, state, pages, fetched, kept, error_code, error_message, started_at, finished_at`

type RefreshRunsRepository struct {
	db *sql.DB
}

func NewRefreshRunsRepository(db *sql.DB) *RefreshRunsRepository {
	return &RefreshRunsRepository{db: db}
}

func (r *RefreshRunsRepository) Create(ctx context.Context, run domain.RefreshRun) (domain.RefreshRun, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_runs(`+runColumns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Country, string(run.Type), string(run.State), run.Pages, run.Fetched, run.Kept,
		run.ErrorCode, run.ErrorMessage, formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return domain.RefreshRun{}, err
	}
	return r.Get(ctx, run.ID)
}

func (r *RefreshRunsRepository) Get(ctx context.Context, id string) (domain.RefreshRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM refresh_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RefreshRun{}, ports.ErrNotFound
		}
		return domain.RefreshRun{}, err
	}
	return run, nil
}

func (r *RefreshRunsRepository) List(ctx context.Context, limit int) ([]domain.RefreshRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM refresh_runs ORDER BY started_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.RefreshRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *RefreshRunsRepository) Finish(ctx context.Context, run domain.RefreshRun) (domain.RefreshRun, error) {
	if !run.State.IsTerminal() || !domain.CanTransition(domain.RefreshRunning, run.State) {
		return domain.RefreshRun{}, domain.ErrInvalidTransition
	}
	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_runs
		SET state = ?, pages = ?, fetched = ?, kept = ?, error_code = ?, error_message = ?, finished_at = ?
		WHERE id = ? AND state = ?
	`, string(run.State), run.Pages, run.Fetched, run.Kept, run.ErrorCode, run.ErrorMessage, formatTime(finished),
		run.ID, string(domain.RefreshRunning))
	if err != nil {
		return domain.RefreshRun{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.RefreshRun{}, ports.ErrNotFound
	}
	return r.Get(ctx, run.ID)
}

func (r *RefreshRunsRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_runs
		WHERE id NOT IN (SELECT id FROM refresh_runs ORDER BY started_at DESC, id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (domain.RefreshRun, error) {
	var run domain.RefreshRun
	var contentType, state, startedAt, finishedAt string
	err := s.Scan(&run.ID, &run.Country, &contentType, &state, &run.Pages, &run.Fetched, &run.Kept,
		&run.ErrorCode, &run.ErrorMessage, &startedAt, &finishedAt)
	if err != nil {
		return domain.RefreshRun{}, err
	}
	run.Type = domain.ContentType(contentType)
	run.State = domain.RefreshState(state)
	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseTime(finishedAt)
	return run, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeLayout, s)
	return t
}
