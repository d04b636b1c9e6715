// Package httpsource fetches seed bytes from an entropyctl HTTP service.
package httpsource

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/entropyctl/internal/auth"
	"github.com/danmuck/entropyctl/internal/seed"
)

var (
	// Client performs every request. Replace it before first use to change
	// transport or timeout.
	Client = &http.Client{Timeout: 5 * time.Second}
	// Cooldown is how long an endpoint is not worth trying after a failure.
	Cooldown = 5 * time.Second
)

var errCoolingDown = errors.New("endpoint cooling down after a failure")

// Source fetches from GET {URL}/seed?length=N. Values with the same URL are
// equal and share failure state.
type Source struct {
	URL    string
	Source string // optional named source on the remote service
	Token  string // bearer token, when the service requires one
}

var _ seed.Source = Source{}

// New returns a source for the service at base, without trailing slash.
func New(base string) Source {
	return Source{URL: strings.TrimRight(strings.TrimSpace(base), "/")}
}

type endpoint struct {
	// unix nanos before which the endpoint is skipped
	until atomic.Int64
}

var (
	endpointsMu sync.Mutex
	endpoints   = make(map[Source]*endpoint)
)

func (s Source) state() *endpoint {
	endpointsMu.Lock()
	defer endpointsMu.Unlock()
	e, ok := endpoints[s]
	if !ok {
		e = &endpoint{}
		endpoints[s] = e
	}
	return e
}

func (s Source) FillSeed(buf []byte) error {
	e := s.state()
	if time.Now().UnixNano() < e.until.Load() {
		return seed.Failed(s.String(), errCoolingDown)
	}
	if err := s.fetch(buf); err != nil {
		e.until.Store(time.Now().Add(Cooldown).UnixNano())
		return seed.Failed(s.String(), err)
	}
	return nil
}

// IsWorthTrying is false during the cooldown after a failure.
func (s Source) IsWorthTrying() bool {
	return time.Now().UnixNano() >= s.state().until.Load()
}

func (s Source) String() string {
	if s.Source != "" {
		return s.URL + "#" + s.Source
	}
	return s.URL
}

func (s Source) requestURL(length int) string {
	q := url.Values{}
	q.Set("length", strconv.Itoa(length))
	if s.Source != "" {
		q.Set("source", s.Source)
	}
	return s.URL + "/seed?" + q.Encode()
}

func (s Source) fetch(buf []byte) error {
	req, err := http.NewRequest(http.MethodGet, s.requestURL(len(buf)), nil)
	if err != nil {
		return err
	}
	auth.SetBearer(req, s.Token)
	resp, err := Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if resp.ContentLength >= 0 && resp.ContentLength != int64(len(buf)) {
		return fmt.Errorf("wrong content length: requested %d, got %d", len(buf), resp.ContentLength)
	}
	n, err := io.ReadFull(resp.Body, buf)
	if err != nil {
		return fmt.Errorf("read %d of %d bytes: %w", n, len(buf), err)
	}
	var extra [1]byte
	if m, _ := resp.Body.Read(extra[:]); m > 0 {
		return fmt.Errorf("service sent more than %d bytes", len(buf))
	}
	return nil
}
