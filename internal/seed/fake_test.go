package seed

import (
	"errors"
	"sync/atomic"
)

var errDeviceGone = errors.New("device gone")

// countingSource fills every byte with the call number.
type countingSource struct {
	calls atomic.Int64
}

func (s *countingSource) FillSeed(buf []byte) error {
	n := s.calls.Add(1)
	for i := range buf {
		buf[i] = byte(n)
	}
	return nil
}

func (s *countingSource) IsWorthTrying() bool { return true }

// brokenSource always fails with a foreign error and knows it.
type brokenSource struct {
	calls *atomic.Int64
}

func (s brokenSource) FillSeed(buf []byte) error {
	if s.calls != nil {
		s.calls.Add(1)
	}
	return errDeviceGone
}

func (brokenSource) IsWorthTrying() bool { return false }

func (brokenSource) String() string { return "broken" }

type namedSource struct {
	Base
	id string
}

func (namedSource) FillSeed(buf []byte) error { return nil }

type sliceSource struct {
	Base
	parts []string
}

func (sliceSource) FillSeed(buf []byte) error { return nil }

// wrapSource has a comparable type but compares by its inner value.
type wrapSource struct {
	inner Source
}

func (w wrapSource) FillSeed(buf []byte) error { return w.inner.FillSeed(buf) }

func (w wrapSource) IsWorthTrying() bool { return w.inner.IsWorthTrying() }
