package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar permet de forcer le chemin du fichier de config.
const PathEnvVar = "ROULETTE_CONFIG"

const envPrefix = "ROULETTE_"

var DefaultPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/watch-roulette/config.yaml",
}

// envKeys mappe les variables ROULETTE_* vers les chemins koanf.
// Les clés contiennent des "_" : on ne peut pas dériver le chemin mécaniquement.
var envKeys = map[string]string{
	"addr":                 "server.addr",
	"request_timeout":      "server.request_timeout",
	"cors_origins":         "server.cors_origins",
	"rate_limit_requests":  "server.rate_limit_requests",
	"rate_limit_window":    "server.rate_limit_window",
	"db_path":              "database.path",
	"log_level":            "logging.level",
	"log_format":           "logging.format",
	"catalog_url":          "catalog.base_url",
	"catalog_api_key":      "catalog.api_key",
	"catalog_api_host":     "catalog.api_host",
	"catalog_service":      "catalog.service",
	"catalog_order_by":     "catalog.order_by",
	"catalog_order_dir":    "catalog.order_direction",
	"catalog_language":     "catalog.output_language",
	"catalog_timeout":      "catalog.timeout",
	"catalog_rps":          "catalog.requests_per_second",
	"catalog_burst":        "catalog.burst",
	"breaker_failures":     "catalog.breaker_failures",
	"breaker_timeout":      "catalog.breaker_timeout",
	"countries":            "pools.countries",
	"pool_max_size":        "pools.max_size",
	"pool_min_size":        "pools.min_size",
	"pool_ttl":             "pools.ttl",
	"pool_refresh_every":   "pools.refresh_interval",
	"pool_startup_stagger": "pools.startup_stagger",
	"pool_max_pages":       "pools.max_pages",
	"pool_serve_stale":     "pools.serve_stale",
	"history_users":        "picker.history_users",
}

var sliceKeys = []string{"server.cors_origins", "pools.countries"}

// Load charge la config par couches : défauts < fichier YAML (optionnel) < env ROULETTE_*.
func Load() (Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile est Load avec un chemin de fichier explicite ("" = pas de fichier).
func LoadFile(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Les variables inconnues sont ignorées (callback => "").
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	if err := splitSlices(k); err != nil {
		return Config{}, err
	}

	cfg := Config{}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func envTransform(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, envPrefix))
	return envKeys[key]
}

func splitSlices(k *koanf.Koanf) error {
	for _, path := range sliceKeys {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
