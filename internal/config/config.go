// Package config loads entropyctl's TOML configuration and builds the
// configured seed sources from it.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/danmuck/entropyctl/internal/seed"
	"github.com/google/uuid"
)

const (
	KindSystem    = "system"
	KindDevRandom = "devrandom"
	KindGetrandom = "getrandom"
	KindPool      = "pool"
	KindRandomOrg = "randomorg"
	KindHTTP      = "http"
	KindRemote    = "remote"

	// DefaultSourceName names the built-in fallback chain when no default
	// is configured.
	DefaultSourceName = "default"
	// FallbackSourceName names the chain built from the fallback list.
	FallbackSourceName = "fallback"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	ID          string
	Addr        string
	CorsOrigins []string
	MaxLength   int
	// Token, when set, is required as a bearer token on /seed and /sources.
	Token string
	// RandomOrgAPIKey applies to randomorg sources without their own key and
	// to the built-in default chain.
	RandomOrgAPIKey string
	// Default names the source used when a request names none.
	Default  string
	Fallback []string
	Sources  []SourceConfig
	Seeder   SeederConfig
}

type SourceConfig struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"`
	// Buffer wraps the source in a read-ahead buffer of this many bytes.
	Buffer int `toml:"buffer"`

	Path        string `toml:"path"`
	NonBlocking bool   `toml:"non_blocking"`

	URL    string `toml:"url"`
	Remote string `toml:"remote_source"`
	Token  string `toml:"token"`

	APIKey         string `toml:"api_key"`
	MaxRequestSize int    `toml:"max_request_size"`
	RetryDelay     string `toml:"retry_delay"`
	BaseURL        string `toml:"base_url"`
	JSONURL        string `toml:"json_url"`

	Host                        string `toml:"host"`
	Port                        string `toml:"port"`
	User                        string `toml:"user"`
	KeyPath                     string `toml:"key_path"`
	KnownHostsPath              string `toml:"known_hosts"`
	InsecureSkipHostKeyChecking bool   `toml:"insecure_skip_host_key_checking"`
	Device                      string `toml:"device"`
	Timeout                     string `toml:"timeout"`
}

type SeederConfig struct {
	Interval       time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type fileConfig struct {
	ID           string         `toml:"id"`
	Addr         string         `toml:"addr"`
	CorsOrigins  []string       `toml:"cors_origins"`
	MaxLength    int            `toml:"max_length"`
	Token        string         `toml:"token"`
	RandomOrgKey string         `toml:"randomorg_api_key"`
	Default      string         `toml:"default"`
	Fallback     []string       `toml:"fallback"`
	Sources      []SourceConfig `toml:"sources"`
	Seeder       struct {
		Interval       string `toml:"interval"`
		InitialBackoff string `toml:"initial_backoff"`
		MaxBackoff     string `toml:"max_backoff"`
	} `toml:"seeder"`
}

type envConfig struct {
	Addr         string   `env:"ENTROPYCTL_ADDR"`
	MaxLength    int      `env:"ENTROPYCTL_MAX_LENGTH"`
	CorsOrigins  []string `env:"ENTROPYCTL_CORS_ORIGINS" envSeparator:","`
	Default      string   `env:"ENTROPYCTL_DEFAULT_SOURCE"`
	Token        string   `env:"ENTROPYCTL_TOKEN"`
	RandomOrgKey string   `env:"ENTROPYCTL_RANDOMORG_API_KEY"`
}

func Default() Config {
	return Config{
		ID:        "entropyctl",
		Addr:      ":9100",
		MaxLength: 4096,
		Seeder: SeederConfig{
			Interval:       time.Minute,
			InitialBackoff: time.Second,
			MaxBackoff:     time.Minute,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undecoded[0].String(), path)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.ID = id
		}
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("max_length") {
		cfg.MaxLength = raw.MaxLength
	}
	if meta.IsDefined("token") {
		cfg.Token = strings.TrimSpace(raw.Token)
	}
	if meta.IsDefined("randomorg_api_key") {
		cfg.RandomOrgAPIKey = strings.TrimSpace(raw.RandomOrgKey)
	}
	if meta.IsDefined("default") {
		cfg.Default = strings.TrimSpace(raw.Default)
	}
	if meta.IsDefined("fallback") {
		cfg.Fallback = normalizeList(raw.Fallback)
	}
	if meta.IsDefined("sources") {
		cfg.Sources = raw.Sources
		for i := range cfg.Sources {
			cfg.Sources[i].Name = strings.TrimSpace(cfg.Sources[i].Name)
			cfg.Sources[i].Kind = strings.ToLower(strings.TrimSpace(cfg.Sources[i].Kind))
		}
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"seeder.interval", raw.Seeder.Interval, &cfg.Seeder.Interval},
		{"seeder.initial_backoff", raw.Seeder.InitialBackoff, &cfg.Seeder.InitialBackoff},
		{"seeder.max_backoff", raw.Seeder.MaxBackoff, &cfg.Seeder.MaxBackoff},
	}
	for _, d := range durations {
		if !meta.IsDefined(strings.Split(d.key, ".")...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

// ApplyEnv overrides cfg from ENTROPYCTL_* variables. The random.org key,
// from the file or the environment, fills every randomorg source that has
// none of its own.
func ApplyEnv(cfg *Config) error {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if e.Addr != "" {
		cfg.Addr = e.Addr
	}
	if e.MaxLength != 0 {
		cfg.MaxLength = e.MaxLength
	}
	if len(e.CorsOrigins) > 0 {
		cfg.CorsOrigins = normalizeList(e.CorsOrigins)
	}
	if e.Default != "" {
		cfg.Default = e.Default
	}
	if e.Token != "" {
		cfg.Token = e.Token
	}
	if e.RandomOrgKey != "" {
		cfg.RandomOrgAPIKey = e.RandomOrgKey
	}
	if cfg.RandomOrgAPIKey != "" {
		for i := range cfg.Sources {
			if cfg.Sources[i].Kind == KindRandomOrg && cfg.Sources[i].APIKey == "" {
				cfg.Sources[i].APIKey = cfg.RandomOrgAPIKey
			}
		}
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalidConfig)
	}
	if c.MaxLength <= 0 {
		return fmt.Errorf("%w: max_length must be positive", ErrInvalidConfig)
	}
	if c.RandomOrgAPIKey != "" {
		if _, err := uuid.Parse(c.RandomOrgAPIKey); err != nil {
			return fmt.Errorf("%w: randomorg_api_key: %w", ErrInvalidConfig, err)
		}
	}
	if c.Seeder.Interval <= 0 {
		return fmt.Errorf("%w: seeder.interval must be positive", ErrInvalidConfig)
	}

	names := make(map[string]struct{}, len(c.Sources)+2)
	for i, sc := range c.Sources {
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if sc.Name == DefaultSourceName || sc.Name == FallbackSourceName {
			return fmt.Errorf("%w: source name %q is reserved", ErrInvalidConfig, sc.Name)
		}
		if _, dup := names[sc.Name]; dup {
			return fmt.Errorf("%w: duplicate source name %q", ErrInvalidConfig, sc.Name)
		}
		names[sc.Name] = struct{}{}
	}

	for _, name := range c.Fallback {
		if _, ok := names[name]; !ok {
			return fmt.Errorf("%w: fallback names unknown source %q", ErrInvalidConfig, name)
		}
	}

	if c.Default != "" {
		_, known := names[c.Default]
		switch {
		case known:
		case c.Default == FallbackSourceName && len(c.Fallback) > 0:
		case c.Default == DefaultSourceName:
		default:
			return fmt.Errorf("%w: default names unknown source %q", ErrInvalidConfig, c.Default)
		}
	}
	return nil
}

func (sc SourceConfig) Validate() error {
	if err := seed.ValidateName(sc.Name); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if sc.Buffer < 0 {
		return fmt.Errorf("%w: %s: buffer must not be negative", ErrInvalidConfig, sc.Name)
	}
	for key, raw := range map[string]string{"retry_delay": sc.RetryDelay, "timeout": sc.Timeout} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%w: %s: parse %s: %w", ErrInvalidConfig, sc.Name, key, err)
		}
	}

	switch sc.Kind {
	case KindSystem, KindDevRandom, KindGetrandom:
	case KindPool:
		if strings.TrimSpace(sc.Path) == "" {
			return fmt.Errorf("%w: %s: pool requires path", ErrInvalidConfig, sc.Name)
		}
	case KindRandomOrg:
		if sc.APIKey != "" {
			if _, err := uuid.Parse(sc.APIKey); err != nil {
				return fmt.Errorf("%w: %s: api_key: %w", ErrInvalidConfig, sc.Name, err)
			}
		}
		if sc.MaxRequestSize < 0 {
			return fmt.Errorf("%w: %s: max_request_size must not be negative", ErrInvalidConfig, sc.Name)
		}
	case KindHTTP:
		if strings.TrimSpace(sc.URL) == "" {
			return fmt.Errorf("%w: %s: http requires url", ErrInvalidConfig, sc.Name)
		}
	case KindRemote:
		if strings.TrimSpace(sc.Host) == "" || strings.TrimSpace(sc.User) == "" || strings.TrimSpace(sc.KeyPath) == "" {
			return fmt.Errorf("%w: %s: remote requires host, user and key_path", ErrInvalidConfig, sc.Name)
		}
	case "":
		return fmt.Errorf("%w: %s: kind is required", ErrInvalidConfig, sc.Name)
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidConfig, sc.Name, sc.Kind)
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
