package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/mavkit/mavctl/internal/mavlink/signing"
	"github.com/mavkit/mavctl/internal/mavlink/stream"
)

// LinkConfig describes one MAVLink connection: sender identity,
// framing version, trust policy and parser tuning.
type LinkConfig struct {
	Name     string        `toml:"name"`
	SysID    uint8         `toml:"sysid"`
	CompID   uint8         `toml:"compid"`
	Mavlink1 bool          `toml:"mavlink1"`
	Signing  SigningConfig `toml:"signing"`
	Stream   StreamConfig  `toml:"stream"`
}

// SigningConfig maps the [signing] table. An empty key_hex disables
// signing for the link.
type SigningConfig struct {
	KeyHex             string `toml:"key_hex"`
	LinkID             uint8  `toml:"link_id"`
	AcceptUnsigned     bool   `toml:"accept_unsigned"`
	AllowOldTimestamps bool   `toml:"allow_old_timestamps"`
}

// StreamConfig maps the [stream] table.
type StreamConfig struct {
	Resync         string `toml:"resync"`
	MaxBufferBytes int    `toml:"max_buffer_bytes"`
}

func LoadLinkConfig(path string) (LinkConfig, error) {
	var cfg LinkConfig
	if err := loadToml(path, &cfg); err != nil {
		return LinkConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "mavctl"
	}
	if cfg.SysID == 0 {
		cfg.SysID = 255 // conventional ground-station sysid
	}
	if cfg.CompID == 0 {
		cfg.CompID = 190
	}
	if cfg.Stream.Resync == "" {
		cfg.Stream.Resync = "scan"
	}
	if err := ValidateLinkConfig(cfg); err != nil {
		return LinkConfig{}, err
	}
	return cfg, nil
}

func ValidateLinkConfig(cfg LinkConfig) error {
	if _, err := cfg.Stream.ResyncPolicy(); err != nil {
		return err
	}
	if cfg.Stream.MaxBufferBytes < 0 {
		return fmt.Errorf("config: stream.max_buffer_bytes must be >= 0, got %d", cfg.Stream.MaxBufferBytes)
	}
	if cfg.Signing.Enabled() {
		if _, err := cfg.Signing.Parse(); err != nil {
			return err
		}
	}
	return nil
}

// Enabled reports whether the link carries a signing secret.
func (s SigningConfig) Enabled() bool {
	return strings.TrimSpace(s.KeyHex) != ""
}

// Parse converts the TOML shape into the engine's signing config.
func (s SigningConfig) Parse() (signing.Config, error) {
	key, err := signing.KeyFromHex(strings.TrimSpace(s.KeyHex))
	if err != nil {
		return signing.Config{}, fmt.Errorf("config: signing.key_hex: %w", err)
	}
	return signing.Config{
		Key:                key,
		LinkID:             s.LinkID,
		AcceptUnsigned:     s.AcceptUnsigned,
		AllowOldTimestamps: s.AllowOldTimestamps,
	}, nil
}

// ResyncPolicy maps the config string onto the framer policy.
func (s StreamConfig) ResyncPolicy() (stream.ResyncPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s.Resync)) {
	case "", "scan":
		return stream.ResyncScan, nil
	case "skip", "skip_frame":
		return stream.ResyncSkipFrame, nil
	default:
		return stream.ResyncScan, fmt.Errorf("config: stream.resync: unknown policy %q (expected scan or skip)", s.Resync)
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
