package observability

import (
	"time"

	"github.com/danmuck/entropyctl/internal/seed"
	"github.com/rs/zerolog/log"
)

// instrumented records metrics and logs around every FillSeed of src.
type instrumented struct {
	name string
	src  seed.Source
}

// Instrument wraps src under name. The wrapper compares equal to another
// wrapper of an equal source under the same name; incomparable sources get
// a pointer wrapper so it stays safe as a map key.
func Instrument(name string, src seed.Source) seed.Source {
	w := instrumented{name: name, src: src}
	if !seed.Comparable(src) {
		return &w
	}
	return w
}

// Unwrap returns the source beneath an Instrument wrapper, or src itself.
func Unwrap(src seed.Source) seed.Source {
	switch w := src.(type) {
	case instrumented:
		return w.src
	case *instrumented:
		return w.src
	default:
		return src
	}
}

func (w instrumented) FillSeed(buf []byte) error {
	start := time.Now()
	err := w.src.FillSeed(buf)
	elapsed := time.Since(start)
	RecordSeedAcquisition(w.name, len(buf), elapsed, err)

	if err != nil {
		log.Warn().Err(err).Str("source", w.name).Int("length", len(buf)).Msg("seed acquisition failed")
		return err
	}
	log.Debug().Str("source", w.name).Int("length", len(buf)).Dur("duration", elapsed).Msg("seed acquired")
	return nil
}

func (w instrumented) IsWorthTrying() bool { return w.src.IsWorthTrying() }

func (w instrumented) String() string { return w.name }
