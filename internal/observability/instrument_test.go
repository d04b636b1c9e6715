package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/entropyctl/internal/seed"
	"github.com/danmuck/entropyctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	seed.Base
	fail bool
}

func (s stubSource) FillSeed(buf []byte) error {
	if s.fail {
		return seed.Failedf("stub", "unavailable")
	}
	for i := range buf {
		buf[i] = 0xee
	}
	return nil
}

type chunkSource struct {
	seed.Base
	chunks [][]byte
}

func (chunkSource) FillSeed(buf []byte) error { return nil }

func TestInstrumentRecordsOutcomes(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	okBefore := testutil.ToFloat64(seedAcquisitions.WithLabelValues("inst-ok", OutcomeOK))
	bytesBefore := testutil.ToFloat64(seedBytes.WithLabelValues("inst-ok"))
	failBefore := testutil.ToFloat64(seedAcquisitions.WithLabelValues("inst-fail", OutcomeFailed))

	out, err := seed.Generate(Instrument("inst-ok", stubSource{}), 24)
	require.NoError(t, err)
	require.Len(t, out, 24)

	_, err = seed.Generate(Instrument("inst-fail", stubSource{fail: true}), 8)
	require.ErrorIs(t, err, seed.ErrAcquisitionFailed)

	require.Equal(t, okBefore+1, testutil.ToFloat64(seedAcquisitions.WithLabelValues("inst-ok", OutcomeOK)))
	require.Equal(t, bytesBefore+24, testutil.ToFloat64(seedBytes.WithLabelValues("inst-ok")))
	require.Equal(t, failBefore+1, testutil.ToFloat64(seedAcquisitions.WithLabelValues("inst-fail", OutcomeFailed)))
}

func TestInstrumentZeroLengthNeverRecords(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	before := testutil.ToFloat64(seedAcquisitions.WithLabelValues("inst-zero", OutcomeOK))
	out, err := seed.Generate(Instrument("inst-zero", stubSource{}), 0)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Equal(t, before, testutil.ToFloat64(seedAcquisitions.WithLabelValues("inst-zero", OutcomeOK)))
}

func TestInstrumentPreservesIdentity(t *testing.T) {
	testlog.Start(t)
	a := Instrument("stub", stubSource{})
	b := Instrument("stub", stubSource{})
	require.True(t, a == b)
	require.False(t, a == Instrument("other", stubSource{}))
	require.Equal(t, "stub", seed.Name(a))
	require.Equal(t, stubSource{}, Unwrap(a))

	c := Instrument("chunks", chunkSource{})
	require.True(t, seed.Comparable(c))
	require.False(t, c == Instrument("chunks", chunkSource{}))

	reg := seed.NewRegistry()
	require.NoError(t, reg.Register("chunks", c))
}

func TestInstrumentDelegatesWorthTrying(t *testing.T) {
	testlog.Start(t)
	require.True(t, Instrument("stub", stubSource{}).IsWorthTrying())
	require.False(t, Instrument("broken", seed.Source(notWorth{})).IsWorthTrying())
}

type notWorth struct{}

func (notWorth) FillSeed([]byte) error { return errors.New("never") }
func (notWorth) IsWorthTrying() bool   { return false }

func TestMiddlewareRecordsRequests(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	RegisterMetrics()
	before := testutil.ToFloat64(httpRequests.WithLabelValues("mw-test", "GET", "/ping", "200"))

	router := gin.New()
	router.Use(RequestLogger(zerolog.Nop()), RequestMetricsMiddleware("mw-test"))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("mw-test", "GET", "/ping", "200")))
}
