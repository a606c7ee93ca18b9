package app

import (
	"context"
	"sync"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/ports"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/validation"
	json "github.com/goccy/go-json"
)

const TopicSettingsUpdated = "settings.updated"

type SettingsService struct {
	repo ports.SettingsRepository
	bus  ports.EventBus

	mu      sync.RWMutex
	current domain.Settings
	loaded  bool
}

func NewSettingsService(repo ports.SettingsRepository, bus ports.EventBus) *SettingsService {
	return &SettingsService{repo: repo, bus: bus}
}

func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	s.remember(settings)
	return settings, nil
}

// Current renvoie les derniers réglages connus sans aller en base (défauts si jamais chargés).
func (s *SettingsService) Current() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return domain.DefaultSettings()
	}
	return s.current
}

// Put valide puis enregistre. Les champs à zéro reprennent la valeur par défaut.
func (s *SettingsService) Put(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	def := domain.DefaultSettings()
	if settings.MinWeight == 0 {
		settings.MinWeight = def.MinWeight
	}
	if settings.MaxRecentPicks == 0 {
		settings.MaxRecentPicks = def.MaxRecentPicks
	}
	if settings.RefreshWorkers == 0 {
		settings.RefreshWorkers = def.RefreshWorkers
	}
	if err := validation.Struct(settings); err != nil {
		return domain.Settings{}, err
	}

	saved, err := s.repo.Put(ctx, settings)
	if err != nil {
		return domain.Settings{}, err
	}
	s.remember(saved)
	s.publish(saved)
	return saved, nil
}

func (s *SettingsService) Reset(ctx context.Context) (domain.Settings, error) {
	saved, err := s.repo.Reset(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	s.remember(saved)
	s.publish(saved)
	return saved, nil
}

func (s *SettingsService) remember(settings domain.Settings) {
	s.mu.Lock()
	s.current = settings
	s.loaded = true
	s.mu.Unlock()
}

func (s *SettingsService) publish(settings domain.Settings) {
	if s.bus == nil {
		return
	}
	b, err := json.Marshal(settings)
	if err != nil {
		return
	}
	s.bus.Publish(TopicSettingsUpdated, b)
}
