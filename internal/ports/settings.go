package ports

import (
	"context"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
)

// SettingsRepository stocke les réglages de tirage/rafraîchissement.
// Get renvoie domain.DefaultSettings() tant que rien n'a été enregistré.
type SettingsRepository interface {
	Get(ctx context.Context) (domain.Settings, error)
	Put(ctx context.Context, settings domain.Settings) (domain.Settings, error)
	Reset(ctx context.Context) (domain.Settings, error)
}
