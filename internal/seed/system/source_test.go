package system

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
	"testing/iotest"

	"github.com/danmuck/entropyctl/internal/seed"
	"github.com/danmuck/entropyctl/internal/testutil/testlog"
)

func TestGenerateFromRuntimeCSPRNG(t *testing.T) {
	testlog.Start(t)
	a, err := seed.Generate(Source{}, 32)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := seed.Generate(Source{}, 32)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("unexpected lengths %d %d", len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two 32-byte seeds collided")
	}
}

func TestInstancesAreEqual(t *testing.T) {
	testlog.Start(t)
	if (Source{}) != (Source{}) {
		t.Fatalf("system sources must compare equal")
	}
	if !(Source{}).IsWorthTrying() {
		t.Fatalf("system source must always be worth trying")
	}
}

func TestFailureNamesSource(t *testing.T) {
	testlog.Start(t)
	cause := errors.New("csprng unavailable")
	reader = iotest.ErrReader(cause)
	t.Cleanup(func() { reader = rand.Reader })

	err := (Source{}).FillSeed(make([]byte, 4))
	var acq *seed.AcquisitionError
	if !errors.As(err, &acq) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
	if acq.Source != (Source{}).String() || acq.Source != SourceName {
		t.Fatalf("error names %q, String() is %q", acq.Source, (Source{}).String())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost: %v", err)
	}
}
