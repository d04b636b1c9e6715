package buffered

import (
	"errors"
	"sync"
	"testing"

	"github.com/danmuck/entropyctl/internal/seed"
	"github.com/danmuck/entropyctl/internal/testutil/testlog"
)

// rampSource fills with an increasing byte sequence and counts calls.
type rampSource struct {
	mu    sync.Mutex
	next  byte
	calls int
	fail  bool
}

func (r *rampSource) FillSeed(buf []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail {
		return seed.Failedf("ramp", "offline")
	}
	for i := range buf {
		buf[i] = r.next
		r.next++
	}
	return nil
}

func (r *rampSource) IsWorthTrying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.fail
}

func checkRamp(t *testing.T, got []byte, offset int) {
	t.Helper()
	for i, b := range got {
		if b != byte(i+offset) {
			t.Fatalf("index %d: got %d want %d", i, b, byte(i+offset))
		}
	}
}

func TestSmallRequestsShareOneRefill(t *testing.T) {
	testlog.Start(t)
	ramp := &rampSource{}
	src := New(ramp, 16)

	a, err := seed.Generate(src, 5)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	checkRamp(t, a, 0)
	b, err := seed.Generate(src, 5)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	checkRamp(t, b, 5)
	if ramp.calls != 1 {
		t.Fatalf("expected one delegate call, got %d", ramp.calls)
	}
	if src.Buffered() != 6 {
		t.Fatalf("expected 6 buffered bytes, got %d", src.Buffered())
	}
}

func TestRequestSpanningRefill(t *testing.T) {
	testlog.Start(t)
	ramp := &rampSource{}
	src := New(ramp, 8)

	if _, err := seed.Generate(src, 6); err != nil {
		t.Fatalf("generate: %v", err)
	}
	got, err := seed.Generate(src, 5)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	checkRamp(t, got, 6)
	if ramp.calls != 2 {
		t.Fatalf("expected refill, calls=%d", ramp.calls)
	}
	if src.Buffered() != 5 {
		t.Fatalf("expected 5 buffered bytes, got %d", src.Buffered())
	}
}

func TestLargeRequestBypassesBuffer(t *testing.T) {
	testlog.Start(t)
	ramp := &rampSource{}
	src := New(ramp, 8)
	got, err := seed.Generate(src, 20)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	checkRamp(t, got, 0)
	if src.Buffered() != 0 {
		t.Fatalf("bypass must leave buffer empty, got %d", src.Buffered())
	}
}

func TestWorthTryingWhileBuffered(t *testing.T) {
	testlog.Start(t)
	ramp := &rampSource{}
	src := New(ramp, 8)
	if _, err := seed.Generate(src, 2); err != nil {
		t.Fatalf("generate: %v", err)
	}

	ramp.mu.Lock()
	ramp.fail = true
	ramp.mu.Unlock()

	if !src.IsWorthTrying() {
		t.Fatalf("buffered bytes remain; must be worth trying")
	}
	if _, err := seed.Generate(src, 6); err != nil {
		t.Fatalf("buffered bytes should satisfy request: %v", err)
	}
	if src.IsWorthTrying() {
		t.Fatalf("empty buffer and failing delegate must not be worth trying")
	}
	if _, err := seed.Generate(src, 1); !errors.Is(err, seed.ErrAcquisitionFailed) {
		t.Fatalf("expected failure, got %v", err)
	}
}

func TestRefillFailureEmptiesBuffer(t *testing.T) {
	testlog.Start(t)
	ramp := &rampSource{}
	src := New(ramp, 8)
	if _, err := seed.Generate(src, 6); err != nil {
		t.Fatalf("generate: %v", err)
	}
	ramp.mu.Lock()
	ramp.fail = true
	ramp.mu.Unlock()

	if _, err := seed.Generate(src, 4); !errors.Is(err, seed.ErrAcquisitionFailed) {
		t.Fatalf("expected refill failure, got %v", err)
	}
	if src.Buffered() != 0 {
		t.Fatalf("failed refill must leave nothing buffered, got %d", src.Buffered())
	}
}

func TestString(t *testing.T) {
	testlog.Start(t)
	if got := New(&rampSource{}, 8).String(); got != "buffered(*buffered.rampSource,8)" {
		t.Fatalf("unexpected name %q", got)
	}
}
