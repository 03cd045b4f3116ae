// Package config loads uitransfer settings from defaults, an optional YAML
// file, UITRANSFER_ environment variables and command-line overrides, in
// that order of increasing priority.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "UITRANSFER_"

// Config is the full settings tree.
type Config struct {
	Transfer Transfer `koanf:"transfer"`
	Log      Log      `koanf:"log"`
	Server   Server   `koanf:"server"`
	Metrics  Metrics  `koanf:"metrics"`
}

type Transfer struct {
	ChunkSize    int           `koanf:"chunk_size"`
	ReadyTimeout time.Duration `koanf:"ready_timeout"`
}

type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type Server struct {
	Transport string        `koanf:"transport"`
	Port      int           `koanf:"port"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
	Dir       string        `koanf:"dir"`
}

type Metrics struct {
	// Addr is the listen address for /metrics; empty disables it.
	Addr string `koanf:"addr"`
}

// Defaults returns the built-in settings as a flat key map.
func Defaults() map[string]any {
	return map[string]any{
		"transfer.chunk_size":    256 * 1024,
		"transfer.ready_timeout": "5s",
		"log.level":              "info",
		"log.format":             "console",
		"server.transport":       "stdio",
		"server.port":            8080,
		"server.cache_ttl":       "500ms",
		"server.dir":             ".",
		"metrics.addr":           "",
	}
}

// mapProvider feeds a flat "section.key" map to koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("config: map provider has no byte form")
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}

// Loader collects sources into one koanf instance.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
}

func NewLoader() *Loader {
	return &Loader{k: koanf.New("."), envPrefix: EnvPrefix}
}

// LoadFile merges a YAML file. An empty path is ignored.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv merges UITRANSFER_SECTION_KEY variables. Only the first
// underscore after the prefix separates section from key, so
// UITRANSFER_TRANSFER_CHUNK_SIZE maps to transfer.chunk_size.
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
		return strings.Replace(s, "_", ".", 1)
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// LoadMap merges flat key overrides, e.g. from command-line flags.
func (l *Loader) LoadMap(data map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	return nil
}

// Unmarshal decodes the merged sources into a Config.
func (l *Loader) Unmarshal() (*Config, error) {
	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Load reads defaults, then path, then the environment, then overrides.
func Load(path string, overrides map[string]any) (*Config, error) {
	l := NewLoader()
	if err := l.LoadMap(Defaults()); err != nil {
		return nil, err
	}
	if err := l.LoadFile(path); err != nil {
		return nil, err
	}
	if err := l.LoadEnv(); err != nil {
		return nil, err
	}
	if err := l.LoadMap(overrides); err != nil {
		return nil, err
	}
	cfg, err := l.Unmarshal()
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Transfer.ChunkSize < 1 {
		return fmt.Errorf("config: transfer.chunk_size must be at least 1, got %d", c.Transfer.ChunkSize)
	}
	if c.Transfer.ReadyTimeout < 0 {
		return fmt.Errorf("config: transfer.ready_timeout must not be negative")
	}
	switch c.Server.Transport {
	case "stdio", "streamable-http":
	default:
		return fmt.Errorf("config: unsupported server.transport %q", c.Server.Transport)
	}
	return nil
}
