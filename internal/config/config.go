// Package config loads client configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces all taskchain environment variables.
const envPrefix = "TASKCHAIN_"

// Config holds the sync client's tunables.
//
// Environment variables (all optional):
//
//	TASKCHAIN_SERVER_URL        sync endpoint (default http://localhost:8787/api/sync)
//	TASKCHAIN_PULL_INTERVAL_MS  periodic pull interval (default 120000)
//	TASKCHAIN_PUSH_DEBOUNCE_MS  push debounce after a store change (default 1200)
//	TASKCHAIN_PULL_DEBOUNCE_MS  pull debounce after regaining activity (default 400)
//	TASKCHAIN_DB_PATH           local SQLite path (default taskchain.db)
type Config struct {
	ServerURL    string
	PullInterval time.Duration
	PushDebounce time.Duration
	PullDebounce time.Duration
	DBPath       string
}

// Load reads the environment over built-in defaults.
func Load() (*Config, error) {
	k := koanf.New(".")
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		ServerURL:    "http://localhost:8787/api/sync",
		PullInterval: 120000 * time.Millisecond,
		PushDebounce: 1200 * time.Millisecond,
		PullDebounce: 400 * time.Millisecond,
		DBPath:       "taskchain.db",
	}
	if v := k.String("server_url"); v != "" {
		cfg.ServerURL = v
	}
	if v := k.Int64("pull_interval_ms"); v > 0 {
		cfg.PullInterval = time.Duration(v) * time.Millisecond
	}
	if v := k.Int64("push_debounce_ms"); v > 0 {
		cfg.PushDebounce = time.Duration(v) * time.Millisecond
	}
	if v := k.Int64("pull_debounce_ms"); v > 0 {
		cfg.PullDebounce = time.Duration(v) * time.Millisecond
	}
	if v := k.String("db_path"); v != "" {
		cfg.DBPath = v
	}
	return cfg, nil
}
