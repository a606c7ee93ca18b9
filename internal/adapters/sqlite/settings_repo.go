package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	json "github.com/goccy/go-json"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/validation"
)

// Une seule ligne: les réglages du tirage et des workers sont globaux à l'instance.
const settingsKey = "roulette"

// SettingsRepository persiste domain.Settings en blob JSON (table settings).
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get ne renvoie jamais de réglage hors bornes: un champ absent, illisible ou
// invalide (édition manuelle, ancienne version) reprend sa valeur par défaut.
func (r *SettingsRepository) Get(ctx context.Context) (domain.Settings, error) {
	var b []byte
	err := r.db.QueryRowContext(ctx, `SELECT value_json FROM settings WHERE key = ?`, settingsKey).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, err
	}

	s := domain.DefaultSettings()
	if err := json.Unmarshal(b, &s); err != nil {
		return domain.DefaultSettings(), nil
	}
	return withinBounds(s), nil
}

func (r *SettingsRepository) Put(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	b, err := json.Marshal(settings)
	if err != nil {
		return domain.Settings{}, err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO settings(key, value_json, updated_at)
		VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at
	`, settingsKey, b, formatTime(time.Now()))
	if err != nil {
		return domain.Settings{}, err
	}
	return r.Get(ctx)
}

// Reset supprime la ligne: Get renvoie de nouveau les défauts.
func (r *SettingsRepository) Reset(ctx context.Context) (domain.Settings, error) {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, settingsKey); err != nil {
		return domain.Settings{}, err
	}
	return r.Get(ctx)
}

func withinBounds(s domain.Settings) domain.Settings {
	var verr *validation.Error
	if !errors.As(validation.Struct(s), &verr) {
		return s
	}
	def := domain.DefaultSettings()
	for field := range verr.Fields {
		switch field {
		case "minWeight":
			s.MinWeight = def.MinWeight
		case "maxRecentPicks":
			s.MaxRecentPicks = def.MaxRecentPicks
		case "refreshWorkers":
			s.RefreshWorkers = def.RefreshWorkers
		}
	}
	return s
}
