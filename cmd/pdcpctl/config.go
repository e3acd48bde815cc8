package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/pdcpmux/internal/loopback"
)

type serviceConfig struct {
	Name        string
	Addr        string
	CorsOrigins []string
	ProfilePath string
	QueueDepth  int
	AdminToken  string
}

type fileConfig struct {
	Name        string   `toml:"name"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	Profile     string   `toml:"profile"`
	QueueDepth  int      `toml:"queue_depth"`
	AdminToken  string   `toml:"admin_token"`
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		Name:        "pdcpctl",
		Addr:        "127.0.0.1:9300",
		ProfilePath: "cmd/pdcpctl/profile.toml",
		QueueDepth:  loopback.DefaultQueueDepth,
	}
}

// loadServiceConfig overlays the keys present in path onto the defaults. A
// relative profile path is resolved against the config file's directory.
func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load pdcpctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return serviceConfig{}, fmt.Errorf("load pdcpctl config: unknown keys %v", undecoded)
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Name = name
		}
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}

	if meta.IsDefined("profile") {
		p := strings.TrimSpace(raw.Profile)
		if p != "" && !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(path), p)
		}
		cfg.ProfilePath = p
	}

	if meta.IsDefined("queue_depth") {
		if raw.QueueDepth <= 0 {
			return serviceConfig{}, fmt.Errorf("queue_depth must be positive, got %d", raw.QueueDepth)
		}
		cfg.QueueDepth = raw.QueueDepth
	}

	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}

	if cfg.Addr == "" {
		return serviceConfig{}, fmt.Errorf("addr is required")
	}
	if cfg.ProfilePath == "" {
		return serviceConfig{}, fmt.Errorf("profile is required")
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
