package httpsource

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/entropyctl/internal/seed"
	"github.com/danmuck/entropyctl/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, handler http.HandlerFunc) (Source, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL + "/"), &hits
}

func serveFill(b byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.URL.Query().Get("length"))
		if err != nil || r.URL.Path != "/seed" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(bytes.Repeat([]byte{b}, n))
	}
}

func TestFetchExactLength(t *testing.T) {
	testlog.Start(t)
	src, hits := newService(t, serveFill(0x5a))

	got, err := seed.Generate(src, 48)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0x5a}, 48), got)
	require.EqualValues(t, 1, hits.Load())

	empty, err := seed.Generate(src, 0)
	require.NoError(t, err)
	require.Empty(t, empty)
	require.EqualValues(t, 1, hits.Load(), "zero length must not hit the service")
}

func TestWrongLengthFails(t *testing.T) {
	testlog.Start(t)
	old := Cooldown
	Cooldown = 0
	t.Cleanup(func() { Cooldown = old })

	src, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{1, 2, 3})
	})
	_, err := seed.Generate(src, 8)
	require.ErrorIs(t, err, seed.ErrAcquisitionFailed)

	_, err = seed.Generate(src, 2)
	require.ErrorIs(t, err, seed.ErrAcquisitionFailed)
}

func TestFailureStartsCooldown(t *testing.T) {
	testlog.Start(t)
	old := Cooldown
	Cooldown = time.Hour
	t.Cleanup(func() { Cooldown = old })

	src, hits := newService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"exhausted"}`, http.StatusServiceUnavailable)
	})
	require.True(t, src.IsWorthTrying())

	_, err := seed.Generate(src, 8)
	require.ErrorIs(t, err, seed.ErrAcquisitionFailed)
	require.Contains(t, err.Error(), "503")
	require.False(t, src.IsWorthTrying())

	_, err = seed.Generate(src, 8)
	require.ErrorIs(t, err, errCoolingDown)
	require.EqualValues(t, 1, hits.Load(), "cooldown must not perform I/O")

	twin := New(src.URL)
	require.Equal(t, src, twin)
	require.False(t, twin.IsWorthTrying(), "equal sources share failure state")
}

func TestNamedRemoteSource(t *testing.T) {
	testlog.Start(t)
	var gotSource atomic.Value
	src, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		gotSource.Store(r.URL.Query().Get("source"))
		serveFill(1)(w, r)
	})
	src.Source = "dev.urandom"

	_, err := seed.Generate(src, 4)
	require.NoError(t, err)
	require.Equal(t, "dev.urandom", gotSource.Load())
	require.Equal(t, src.URL+"#dev.urandom", src.String())
	require.NotEqual(t, New(src.URL), src)
}
