package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// mavctl config.toml key mapping to runtime settings.
type fileConfig struct {
	LinkConfigPath string   `toml:"link_config_path"`
	CapturePath    string   `toml:"capture_path"`
	HTTPAddr       string   `toml:"http_addr"`
	CorsOrigins    []string `toml:"cors_origins"`
	ChunkBytes     int      `toml:"chunk_bytes"`
}

type serviceConfig struct {
	LinkConfigPath string
	CapturePath    string
	HTTPAddr       string
	CorsOrigins    []string
	ChunkBytes     int
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		LinkConfigPath: "link.toml",
		CapturePath:    "-",
		HTTPAddr:       "",
		CorsOrigins:    []string{"http://localhost:3000"},
		ChunkBytes:     512,
	}
}

// mavctl loader for TOML config with default overlay.
func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load mavctl config: %w", err)
	}

	if meta.IsDefined("link_config_path") {
		cfg.LinkConfigPath = strings.TrimSpace(raw.LinkConfigPath)
	}
	if meta.IsDefined("capture_path") {
		cfg.CapturePath = strings.TrimSpace(raw.CapturePath)
	}
	if meta.IsDefined("http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("chunk_bytes") {
		cfg.ChunkBytes = raw.ChunkBytes
	}

	if cfg.LinkConfigPath == "" {
		return serviceConfig{}, fmt.Errorf("load mavctl config: link_config_path is required")
	}
	if !filepath.IsAbs(cfg.LinkConfigPath) {
		cfg.LinkConfigPath = filepath.Join(filepath.Dir(path), cfg.LinkConfigPath)
	}
	if cfg.ChunkBytes <= 0 {
		return serviceConfig{}, fmt.Errorf("load mavctl config: chunk_bytes must be positive, got %d", cfg.ChunkBytes)
	}
	return cfg, nil
}
