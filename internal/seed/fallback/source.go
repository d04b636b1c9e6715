// Package fallback tries an ordered list of sources until one succeeds.
package fallback

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/entropyctl/internal/seed"
	"github.com/danmuck/entropyctl/internal/seed/devrandom"
	"github.com/danmuck/entropyctl/internal/seed/randomorg"
	"github.com/danmuck/entropyctl/internal/seed/system"
	"github.com/rs/zerolog/log"
)

// ErrNoSources is returned by New for an empty list.
var ErrNoSources = errors.New("fallback: no sources")

// Source delegates to the first of its sources that is worth trying and
// succeeds. Sources known to be doomed are skipped without I/O.
type Source struct {
	sources []seed.Source
}

var _ seed.Source = (*Source)(nil)

// New builds a fallback over sources, in order. Nil entries are dropped.
func New(sources ...seed.Source) (*Source, error) {
	list := make([]seed.Source, 0, len(sources))
	for _, src := range sources {
		if src != nil {
			list = append(list, src)
		}
	}
	if len(list) == 0 {
		return nil, ErrNoSources
	}
	return &Source{sources: list}, nil
}

// Default prefers the system entropy device, then random.org, then the
// runtime CSPRNG, which is always available. The random.org member is the
// shared randomorg.DelayedRetry client, so after a failed download it is
// skipped for randomorg.DefaultRetryDelay rather than retried on every call.
func Default() *Source {
	return &Source{sources: []seed.Source{
		devrandom.Random,
		randomorg.DelayedRetry,
		system.Source{},
	}}
}

func (s *Source) FillSeed(buf []byte) error {
	var errs []error
	for _, src := range s.sources {
		if !src.IsWorthTrying() {
			errs = append(errs, fmt.Errorf("%s: skipped, not worth trying", seed.Name(src)))
			continue
		}
		err := seed.Fill(src, buf)
		if err == nil {
			return nil
		}
		log.Debug().Err(err).Str("source", seed.Name(src)).Msg("fallback: source failed, trying next")
		errs = append(errs, err)
	}
	return seed.Failed(s.String(), fmt.Errorf("all sources failed: %w", errors.Join(errs...)))
}

// IsWorthTrying is true if any delegate is.
func (s *Source) IsWorthTrying() bool {
	for _, src := range s.sources {
		if src.IsWorthTrying() {
			return true
		}
	}
	return false
}

// Sources returns the delegates in order.
func (s *Source) Sources() []seed.Source {
	out := make([]seed.Source, len(s.sources))
	copy(out, s.sources)
	return out
}

func (s *Source) String() string {
	names := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		names = append(names, seed.Name(src))
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}
