package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Logging  LoggingConfig  `koanf:"logging"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Pools    PoolsConfig    `koanf:"pools"`
	Picker   PickerConfig   `koanf:"picker"`
}

type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CatalogConfig décrit l'API upstream (Streaming Availability).
type CatalogConfig struct {
	BaseURL        string        `koanf:"base_url"`
	APIKey         string        `koanf:"api_key"`
	APIHost        string        `koanf:"api_host"`
	Service        string        `koanf:"service"`
	OrderBy        string        `koanf:"order_by"`
	OrderDirection string        `koanf:"order_direction"`
	OutputLanguage string        `koanf:"output_language"`
	Timeout        time.Duration `koanf:"timeout"`
	// Cadence max des appels upstream (toutes passes confondues).
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`

	// Disjoncteur: échecs consécutifs avant ouverture, puis délai avant nouvel essai.
	BreakerFailures int           `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

type PoolsConfig struct {
	Countries       []string      `koanf:"countries"`
	MaxSize         int           `koanf:"max_size"`
	MinSize         int           `koanf:"min_size"`
	TTL             time.Duration `koanf:"ttl"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	StartupStagger  time.Duration `koanf:"startup_stagger"`
	MaxPages        int           `koanf:"max_pages"`
	ServeStale      bool          `koanf:"serve_stale"`
}

type PickerConfig struct {
	HistoryUsers int `koanf:"history_users"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              "127.0.0.1:8080",
			RequestTimeout:    30 * time.Second,
			CORSOrigins:       []string{},
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
		},
		Database: DatabaseConfig{
			Path: "roulette.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Catalog: CatalogConfig{
			BaseURL:           "https://streaming-availability.p.rapidapi.com",
			APIHost:           "streaming-availability.p.rapidapi.com",
			Service:           "netflix",
			OrderBy:           "popularity_1year",
			OrderDirection:    "desc",
			OutputLanguage:    "en",
			Timeout:           15 * time.Second,
			RequestsPerSecond: 2,
			Burst:             2,
			BreakerFailures:   5,
			BreakerTimeout:    time.Minute,
		},
		Pools: PoolsConfig{
			Countries:       []string{"us", "gb", "ca", "au", "de", "fr", "in", "br"},
			MaxSize:         100,
			MinSize:         10,
			TTL:             6 * time.Hour,
			RefreshInterval: 6 * time.Hour,
			StartupStagger:  2 * time.Second,
			MaxPages:        10,
			ServeStale:      false,
		},
		Picker: PickerConfig{
			HistoryUsers: 10000,
		},
	}
}

// Default renvoie la configuration par défaut (sans fichier ni env).
func Default() Config {
	return *defaultConfig()
}

var validLevels = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if len(c.Pools.Countries) == 0 {
		errs = append(errs, errors.New("pools.countries must not be empty"))
	}
	for i, raw := range c.Pools.Countries {
		cc := domain.NormalizeCountry(raw)
		if !domain.ValidCountry(cc) {
			errs = append(errs, fmt.Errorf("pools.countries[%d]: invalid country %q", i, raw))
			continue
		}
		c.Pools.Countries[i] = cc
	}
	if c.Pools.MaxSize <= 0 {
		errs = append(errs, errors.New("pools.max_size must be > 0"))
	}
	if c.Pools.MinSize < 0 || c.Pools.MinSize > c.Pools.MaxSize {
		errs = append(errs, errors.New("pools.min_size must be within [0, max_size]"))
	}
	if c.Pools.TTL <= 0 {
		errs = append(errs, errors.New("pools.ttl must be > 0"))
	}
	if c.Pools.RefreshInterval <= 0 {
		errs = append(errs, errors.New("pools.refresh_interval must be > 0"))
	}
	if c.Pools.MaxPages <= 0 {
		errs = append(errs, errors.New("pools.max_pages must be > 0"))
	}
	if c.Pools.StartupStagger < 0 {
		errs = append(errs, errors.New("pools.startup_stagger must be >= 0"))
	}
	if c.Picker.HistoryUsers <= 0 {
		errs = append(errs, errors.New("picker.history_users must be > 0"))
	}
	if strings.TrimSpace(c.Catalog.BaseURL) == "" {
		errs = append(errs, errors.New("catalog.base_url is required"))
	}
	if strings.TrimSpace(c.Catalog.Service) == "" {
		errs = append(errs, errors.New("catalog.service is required"))
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}

// PoolKeys renvoie toutes les combinaisons (pays × type) configurées.
func (c Config) PoolKeys() []domain.PoolKey {
	keys := make([]domain.PoolKey, 0, len(c.Pools.Countries)*len(domain.PoolTypes))
	for _, country := range c.Pools.Countries {
		for _, t := range domain.PoolTypes {
			keys = append(keys, domain.NewPoolKey(country, t))
		}
	}
	return keys
}
