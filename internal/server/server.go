// Package server exposes registered seed sources over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/entropyctl/internal/auth"
	"github.com/danmuck/entropyctl/internal/observability"
	"github.com/danmuck/entropyctl/internal/seed"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxLength = 4096
	Version          = "0.1.0"
)

var (
	ErrSourceNotFound = errors.New("source not found")
	ErrNoDefault      = errors.New("no default source configured")
)

type Options struct {
	ID          string
	Addr        string
	CorsOrigins []string
	MaxLength   int
	Registry    *seed.Registry
	// Default serves requests that name no source.
	Default     seed.Source
	DefaultName string
	// Auth guards /seed and /sources when set.
	Auth auth.Validator
}

type Server struct {
	ID        string    `json:"id"`
	Addr      string    `json:"addr"`
	MaxLength int       `json:"max_length"`
	Appeared  time.Time `json:"appeared"`

	registry    *seed.Registry
	fallback    seed.Source
	defaultName string
	router      *gin.Engine
	auth        auth.Validator
}

func New(opts Options) *Server {
	observability.RegisterMetrics()
	if opts.ID == "" {
		opts.ID = "entropyctl"
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	if opts.Registry == nil {
		opts.Registry = seed.NewRegistry()
	}
	if opts.DefaultName == "" && opts.Default != nil {
		opts.DefaultName = seed.Name(opts.Default)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, "/metrics", "/health"))
	r.Use(observability.RequestMetricsMiddleware(opts.ID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:          opts.ID,
		Addr:        opts.Addr,
		MaxLength:   opts.MaxLength,
		Appeared:    time.Now(),
		registry:    opts.Registry,
		fallback:    opts.Default,
		defaultName: opts.DefaultName,
		router:      r,
		auth:        opts.Auth,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on Addr until ctx is done, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("id", s.ID).Str("addr", s.Addr).Msg("entropy service listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": Version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	guarded := s.router.Group("/", auth.Require(s.auth))
	guarded.GET("/sources", s.handleSources)
	guarded.GET("/seed", s.handleSeed)
}

type SourceInfo struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	WorthTrying bool   `json:"worth_trying"`
	Default     bool   `json:"default,omitempty"`
}

func (s *Server) ListSources() []SourceInfo {
	names := s.registry.Names()
	list := make([]SourceInfo, 0, len(names))
	for _, name := range names {
		src, ok := s.registry.Resolve(name)
		if !ok {
			continue
		}
		list = append(list, SourceInfo{
			Name:        name,
			Kind:        seed.Name(observability.Unwrap(src)),
			WorthTrying: src.IsWorthTrying(),
			Default:     name == s.defaultName,
		})
	}
	return list
}

func (s *Server) handleSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sources": s.ListSources(),
		"default": s.defaultName,
	})
}

func (s *Server) handleSeed(c *gin.Context) {
	length, err := strconv.Atoi(c.Query("length"))
	if err != nil || length < 0 || length > s.MaxLength {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "length must be an integer between 0 and " + strconv.Itoa(s.MaxLength),
		})
		return
	}

	name, src, err := s.resolve(c.Query("source"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if length == 0 {
		writeSeed(c, seed.EmptySeed)
		return
	}

	if !src.IsWorthTrying() {
		observability.RecordSeedSkipped(name)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "source not worth trying",
			"source": name,
		})
		return
	}

	out, err := seed.Generate(src, length)
	if err != nil {
		log.Warn().Err(err).Str("source", name).Int("length", length).Msg("seed request failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  err.Error(),
			"source": name,
		})
		return
	}
	writeSeed(c, out)
}

func (s *Server) resolve(name string) (string, seed.Source, error) {
	if name == "" {
		if s.fallback == nil {
			return "", nil, ErrNoDefault
		}
		return s.defaultName, s.fallback, nil
	}
	src, ok := s.registry.Resolve(name)
	if !ok {
		return name, nil, ErrSourceNotFound
	}
	return name, src, nil
}

func writeSeed(c *gin.Context, b []byte) {
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Length", strconv.Itoa(len(b)))
	c.Data(http.StatusOK, "application/octet-stream", b)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
