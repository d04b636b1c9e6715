// Package seeder periodically reseeds registered targets from a seed source.
//
// Seeders are deduplicated per source: ForSource hands out the same Seeder
// for every source value that compares equal, so two generators fed from
// /dev/random share one loop and one backoff state.
package seeder

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/entropyctl/internal/logging"
	"github.com/danmuck/entropyctl/internal/seed"
)

var (
	ErrRunning        = errors.New("seeder already running")
	ErrStopped        = errors.New("seeder stopped")
	errNotWorthTrying = errors.New("source not worth trying")
)

// Reseedable is anything that accepts fresh seed material.
type Reseedable interface {
	SeedLength() int
	SetSeed(seed []byte) error
}

// Event reports one reseed attempt. Target is nil when the whole pass was
// skipped or the source failed before any target was served.
type Event struct {
	Source string
	Target Reseedable
	Length int
	Err    error
}

type Config struct {
	Interval time.Duration
	Backoff  BackoffConfig
	OnEvent  func(Event)
}

func DefaultConfig() Config {
	return Config{
		Interval: time.Minute,
		Backoff: BackoffConfig{
			InitialDelay: time.Second,
			Multiplier:   2.0,
			MaxDelay:     time.Minute,
			Jitter:       true,
		},
	}
}

type Seeder struct {
	src  seed.Source
	name string
	cfg  Config

	mu      sync.Mutex
	targets []Reseedable

	kick     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	shared   bool
}

var (
	sharedMu sync.Mutex
	shared   = make(map[seed.Source]*Seeder)
)

// New returns a private seeder that is never shared through ForSource.
func New(src seed.Source, cfg Config) *Seeder {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Seeder{
		src:  src,
		name: seed.Name(src),
		cfg:  cfg,
		kick: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// ForSource returns the seeder shared by all sources equal to src, creating
// it with cfg on first use. Incomparable sources always get a new seeder.
func ForSource(src seed.Source, cfg Config) *Seeder {
	if !seed.Comparable(src) {
		return New(src, cfg)
	}
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if s, ok := shared[src]; ok {
		return s
	}
	s := New(src, cfg)
	s.shared = true
	shared[src] = s
	return s
}

func (s *Seeder) Source() seed.Source { return s.src }

// Add registers targets and wakes a running loop so they are seeded right
// away. It fails with ErrStopped once the seeder has been stopped.
func (s *Seeder) Add(targets ...Reseedable) error {
	s.mu.Lock()
	if s.stopped() {
		s.mu.Unlock()
		return ErrStopped
	}
	added := 0
	for _, t := range targets {
		if t == nil || s.indexLocked(t) >= 0 {
			continue
		}
		s.targets = append(s.targets, t)
		added++
	}
	s.mu.Unlock()

	if added > 0 {
		s.ReseedNow()
	}
	return nil
}

// Remove drops target and reports whether it was registered.
func (s *Seeder) Remove(target Reseedable) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(target)
	if i < 0 {
		return false
	}
	s.targets = append(s.targets[:i], s.targets[i+1:]...)
	return true
}

func (s *Seeder) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.targets)
}

// IsEmpty reports whether no targets are registered.
func (s *Seeder) IsEmpty() bool {
	return s.Len() == 0
}

// StopIfEmpty stops the seeder when it has no targets and reports whether
// it did. Targets cannot be added between the check and the stop.
func (s *Seeder) StopIfEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.targets) > 0 {
		return false
	}
	s.Stop()
	return true
}

// StopAllEmpty stops every shared seeder that has no targets and returns
// how many were stopped.
func StopAllEmpty() int {
	sharedMu.Lock()
	candidates := make([]*Seeder, 0, len(shared))
	for _, s := range shared {
		candidates = append(candidates, s)
	}
	sharedMu.Unlock()

	stopped := 0
	for _, s := range candidates {
		if s.StopIfEmpty() {
			stopped++
		}
	}
	return stopped
}

func (s *Seeder) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Seeder) indexLocked(target Reseedable) int {
	if target == nil || !reflect.ValueOf(target).Comparable() {
		return -1
	}
	for i, t := range s.targets {
		if reflect.TypeOf(t) == reflect.TypeOf(target) && reflect.ValueOf(t).Comparable() && t == target {
			return i
		}
	}
	return -1
}

// ReseedNow wakes a running loop for an immediate pass.
func (s *Seeder) ReseedNow() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Stop ends Run and releases the shared slot so a later ForSource starts fresh.
func (s *Seeder) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if !s.shared {
			return
		}
		sharedMu.Lock()
		if shared[s.src] == s {
			delete(shared, s.src)
		}
		sharedMu.Unlock()
	})
}

// Run reseeds every target each Interval until ctx is done or Stop is called.
// A failed pass is retried with exponential backoff instead.
func (s *Seeder) Run(ctx context.Context) error {
	if s.stopped() {
		return ErrStopped
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer s.running.Store(false)

	// the first pass serves any wakeups queued before Run
	select {
	case <-s.kick:
	default:
	}

	log := logging.Component("seeder").With().Str("source", s.name).Logger()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	log.Info().Dur("interval", s.cfg.Interval).Msg("seeder started")

	attempt := 0
	for {
		delay := s.cfg.Interval
		if err := s.pass(); err != nil {
			attempt++
			delay = NextBackoffDelay(s.cfg.Backoff, attempt, rng)
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("reseed pass failed")
		} else {
			attempt = 0
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("seeder stopped")
			return ctx.Err()
		case <-s.stop:
			timer.Stop()
			log.Info().Msg("seeder stopped")
			return nil
		case <-s.kick:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// pass reseeds each target once. The first source failure ends the pass;
// a target rejecting its seed is logged and skipped.
func (s *Seeder) pass() error {
	s.mu.Lock()
	targets := append([]Reseedable(nil), s.targets...)
	s.mu.Unlock()
	if len(targets) == 0 {
		return nil
	}

	log := logging.Component("seeder").With().Str("source", s.name).Logger()
	if !s.src.IsWorthTrying() {
		log.Debug().Msg("source not worth trying, skipping pass")
		s.emit(Event{Source: s.name, Err: errNotWorthTrying})
		return errNotWorthTrying
	}

	for _, t := range targets {
		length := t.SeedLength()
		material, err := seed.Generate(s.src, length)
		if err != nil {
			s.emit(Event{Source: s.name, Target: t, Length: length, Err: err})
			return err
		}
		if err := t.SetSeed(material); err != nil {
			log.Warn().Err(err).Int("length", length).Msg("target rejected seed")
			s.emit(Event{Source: s.name, Target: t, Length: length, Err: err})
			continue
		}
		log.Debug().Int("length", length).Msg("target reseeded")
		s.emit(Event{Source: s.name, Target: t, Length: length})
	}
	return nil
}

func (s *Seeder) emit(ev Event) {
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(ev)
	}
}
