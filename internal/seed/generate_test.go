package seed

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danmuck/entropyctl/internal/testutil/testlog"
)

func TestGenerateReturnsExactLength(t *testing.T) {
	testlog.Start(t)
	src := &countingSource{}
	for _, n := range []int{1, 2, 7, 16, 33, 4096} {
		out, err := Generate(src, n)
		if err != nil {
			t.Fatalf("generate(%d): %v", n, err)
		}
		if len(out) != n {
			t.Fatalf("generate(%d) returned %d bytes", n, len(out))
		}
	}
}

func TestGenerateZeroNeverTouchesSource(t *testing.T) {
	testlog.Start(t)
	var calls atomic.Int64
	src := brokenSource{calls: &calls}

	out, err := Generate(src, 0)
	if err != nil {
		t.Fatalf("zero-length generate failed: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("expected canonical empty seed, got %#v", out)
	}
	if err := Fill(src, nil); err != nil {
		t.Fatalf("zero-length fill failed: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("FillSeed called %d times on zero-length paths", calls.Load())
	}
}

func TestGenerateNegativeLengthRejected(t *testing.T) {
	testlog.Start(t)
	src := &countingSource{}
	for _, n := range []int{-1, -4096} {
		out, err := Generate(src, n)
		if !errors.Is(err, ErrNegativeLength) {
			t.Fatalf("generate(%d): expected ErrNegativeLength, got %v", n, err)
		}
		if errors.Is(err, ErrAcquisitionFailed) {
			t.Fatalf("negative length must not be reported as acquisition failure")
		}
		if out != nil {
			t.Fatalf("generate(%d) returned bytes", n)
		}
	}
	if src.calls.Load() != 0 {
		t.Fatalf("source touched for negative length")
	}
}

func TestGenerateFailureWrapsForeignErrors(t *testing.T) {
	testlog.Start(t)
	out, err := Generate(brokenSource{}, 8)
	if out != nil {
		t.Fatalf("failure returned bytes: %v", out)
	}
	if !errors.Is(err, ErrAcquisitionFailed) {
		t.Fatalf("expected ErrAcquisitionFailed, got %v", err)
	}
	if !errors.Is(err, errDeviceGone) {
		t.Fatalf("cause lost: %v", err)
	}
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) || acqErr.Source != "broken" {
		t.Fatalf("expected AcquisitionError from broken, got %#v", err)
	}
}

func TestGeneratePropagatesAcquisitionErrorUnchanged(t *testing.T) {
	testlog.Start(t)
	want := Failedf("dev", "short read: %d of %d", 3, 8)
	src := Func(func(buf []byte) error { return want })

	_, err := Generate(src, 8)
	if err != want {
		t.Fatalf("expected error passed through unchanged, got %v", err)
	}
	if err := Fill(src, make([]byte, 8)); err != want {
		t.Fatalf("fill: expected error passed through unchanged, got %v", err)
	}
}

func TestGenerateNilSource(t *testing.T) {
	testlog.Start(t)
	if _, err := Generate(nil, 4); !errors.Is(err, ErrAcquisitionFailed) {
		t.Fatalf("expected acquisition failure for nil source, got %v", err)
	}
	if out, err := Generate(nil, 0); err != nil || len(out) != 0 {
		t.Fatalf("zero-length on nil source must succeed, got %v %v", out, err)
	}
}

func TestConcurrentFillNoCrossContamination(t *testing.T) {
	testlog.Start(t)
	src := &countingSource{}
	const workers = 64
	const size = 257

	var wg sync.WaitGroup
	bufs := make([][]byte, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bufs[i] = make([]byte, size)
			errs[i] = Fill(src, bufs[i])
		}(i)
	}
	wg.Wait()

	for i, buf := range bufs {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if len(buf) != size {
			t.Fatalf("worker %d: buffer resized to %d", i, len(buf))
		}
		if !bytes.Equal(buf, bytes.Repeat(buf[:1], size)) {
			t.Fatalf("worker %d: buffer mixes bytes of several calls", i)
		}
	}
	testlog.Logf("seed/concurrency: workers=%d calls=%d", workers, src.calls.Load())
}

func TestBaseDefaultsToWorthTrying(t *testing.T) {
	testlog.Start(t)
	if !(namedSource{}).IsWorthTrying() {
		t.Fatalf("default must be optimistic")
	}
	if !Func(nil).IsWorthTrying() {
		t.Fatalf("func adapter must be optimistic")
	}
}

func TestAcquisitionErrorMessage(t *testing.T) {
	testlog.Start(t)
	err := Failed("dev.random", errDeviceGone)
	if err.Error() != "seed acquisition failed: dev.random: device gone" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if Failed("x", nil).Error() != "seed acquisition failed: x" {
		t.Fatalf("unexpected message without cause: %q", Failed("x", nil).Error())
	}
}
