package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/entropyctl/internal/auth"
	"github.com/danmuck/entropyctl/internal/observability"
	"github.com/danmuck/entropyctl/internal/seed"
	"github.com/danmuck/entropyctl/internal/seed/buffered"
	"github.com/danmuck/entropyctl/internal/seed/devrandom"
	"github.com/danmuck/entropyctl/internal/seed/fallback"
	"github.com/danmuck/entropyctl/internal/seed/getrandom"
	"github.com/danmuck/entropyctl/internal/seed/httpsource"
	"github.com/danmuck/entropyctl/internal/seed/pool"
	"github.com/danmuck/entropyctl/internal/seed/randomorg"
	"github.com/danmuck/entropyctl/internal/seed/remote"
	"github.com/danmuck/entropyctl/internal/seed/system"
	"github.com/danmuck/entropyctl/internal/seeder"
	"github.com/google/uuid"
)

// Sources is the result of building a Config: every named source plus the
// one serving unnamed requests.
type Sources struct {
	Registry    *seed.Registry
	Default     seed.Source
	DefaultName string
}

// Build constructs and registers every configured source, instrumented
// under its name. Two entries that describe the same underlying source are
// rejected.
func (c Config) Build() (*Sources, error) {
	reg := seed.NewRegistry()
	underlying := make(map[seed.Source]string, len(c.Sources))

	for _, sc := range c.Sources {
		raw, err := BuildSource(sc)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		if seed.Comparable(raw) {
			if other, dup := underlying[raw]; dup {
				return nil, fmt.Errorf("source %s: %w as %s", sc.Name, seed.ErrSourceExists, other)
			}
			underlying[raw] = sc.Name
		}

		src := raw
		if sc.Buffer > 0 {
			src = buffered.New(raw, sc.Buffer)
		}
		if err := reg.Register(sc.Name, observability.Instrument(sc.Name, src)); err != nil {
			return nil, err
		}
	}

	if len(c.Fallback) > 0 {
		members := make([]seed.Source, 0, len(c.Fallback))
		for _, name := range c.Fallback {
			src, ok := reg.Resolve(name)
			if !ok {
				return nil, fmt.Errorf("%w: fallback names unknown source %q", ErrInvalidConfig, name)
			}
			members = append(members, src)
		}
		chain, err := fallback.New(members...)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(FallbackSourceName, chain); err != nil {
			return nil, err
		}
	}

	defaultName := c.Default
	if defaultName == "" {
		if len(c.Fallback) > 0 {
			defaultName = FallbackSourceName
		} else {
			defaultName = DefaultSourceName
		}
	}
	if defaultName == DefaultSourceName {
		if _, ok := reg.Resolve(DefaultSourceName); !ok {
			if err := c.keyDefaultChain(); err != nil {
				return nil, err
			}
			if err := reg.Register(DefaultSourceName, observability.Instrument(DefaultSourceName, fallback.Default())); err != nil {
				return nil, err
			}
		}
	}

	def, ok := reg.Resolve(defaultName)
	if !ok {
		return nil, fmt.Errorf("%w: default names unknown source %q", ErrInvalidConfig, defaultName)
	}
	return &Sources{Registry: reg, Default: def, DefaultName: defaultName}, nil
}

// keyDefaultChain hands the global random.org key to the client used by
// fallback.Default.
func (c Config) keyDefaultChain() error {
	if c.RandomOrgAPIKey == "" {
		return nil
	}
	key, err := uuid.Parse(c.RandomOrgAPIKey)
	if err != nil {
		return fmt.Errorf("parse randomorg_api_key: %w", err)
	}
	randomorg.DelayedRetry.SetAPIKey(key)
	return nil
}

// BuildSource constructs the bare source described by sc.
func BuildSource(sc SourceConfig) (seed.Source, error) {
	switch sc.Kind {
	case KindSystem:
		return system.Source{}, nil

	case KindDevRandom:
		return devrandom.New(expandPath(sc.Path)), nil

	case KindGetrandom:
		return getrandom.Source{NonBlocking: sc.NonBlocking}, nil

	case KindPool:
		return pool.Load(expandPath(sc.Path))

	case KindRandomOrg:
		rc := randomorg.Config{
			BaseURL:        sc.BaseURL,
			JSONURL:        sc.JSONURL,
			RetryDelay:     randomorg.DefaultRetryDelay,
			MaxRequestSize: sc.MaxRequestSize,
		}
		if sc.RetryDelay != "" {
			d, err := time.ParseDuration(sc.RetryDelay)
			if err != nil {
				return nil, fmt.Errorf("parse retry_delay: %w", err)
			}
			rc.RetryDelay = d
		}
		if sc.APIKey != "" {
			key, err := uuid.Parse(sc.APIKey)
			if err != nil {
				return nil, fmt.Errorf("parse api_key: %w", err)
			}
			rc.APIKey = key
		}
		return randomorg.New(rc), nil

	case KindHTTP:
		src := httpsource.New(sc.URL)
		src.Source = strings.TrimSpace(sc.Remote)
		src.Token = strings.TrimSpace(sc.Token)
		return src, nil

	case KindRemote:
		src := remote.Source{
			Host:                        strings.TrimSpace(sc.Host),
			Port:                        strings.TrimSpace(sc.Port),
			User:                        strings.TrimSpace(sc.User),
			KeyPath:                     expandPath(sc.KeyPath),
			KnownHostsPath:              expandPath(sc.KnownHostsPath),
			InsecureSkipHostKeyChecking: sc.InsecureSkipHostKeyChecking,
			Device:                      sc.Device,
		}
		if sc.Timeout != "" {
			d, err := time.ParseDuration(sc.Timeout)
			if err != nil {
				return nil, fmt.Errorf("parse timeout: %w", err)
			}
			src.Timeout = d
		}
		return src, nil

	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, sc.Kind)
	}
}

// Validator returns the bearer-token check for the HTTP service, or nil
// when no token is configured.
func (c Config) Validator() auth.Validator {
	if c.Token == "" {
		return nil
	}
	return auth.StaticToken{Token: c.Token}
}

// SchedulerConfig converts the [seeder] table into scheduler settings.
func (c Config) SchedulerConfig() seeder.Config {
	cfg := seeder.DefaultConfig()
	if c.Seeder.Interval > 0 {
		cfg.Interval = c.Seeder.Interval
	}
	if c.Seeder.InitialBackoff > 0 {
		cfg.Backoff.InitialDelay = c.Seeder.InitialBackoff
	}
	if c.Seeder.MaxBackoff > 0 {
		cfg.Backoff.MaxDelay = c.Seeder.MaxBackoff
	}
	return cfg
}

// expandPath resolves a leading ~/ against the home directory.
func expandPath(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
