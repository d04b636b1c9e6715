// Package randomorg downloads seed bytes from random.org.
//
// Without an API key the plain-text integer API is used; with a key the
// JSON-RPC generateBlobs method is used instead. Downloaded bytes are cached
// so that small requests do not each cost a round trip.
package randomorg

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/entropyctl/internal/seed"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "https://www.random.org"
	DefaultJSONURL = "https://api.random.org/json-rpc/1/invoke"
	DefaultTimeout = 10 * time.Second
	UserAgent      = "entropyctl/randomorg"

	// GlobalMaxRequestSize is the most integers random.org serves per request.
	GlobalMaxRequestSize = 10000
	// MaxCacheSize is 5000 bits, 1/50 of the daily per-key quota.
	MaxCacheSize = 625
	// DefaultRetryDelay is how long a delayed-retry client backs off after
	// a failed refresh of any kind.
	DefaultRetryDelay = 10 * time.Second
)

var (
	// Spammy retries immediately after a failure.
	Spammy = New(Config{})
	// DelayedRetry refuses new downloads for DefaultRetryDelay after any
	// failed refresh, reporting itself not worth trying meanwhile. Transport
	// errors, bad statuses, short bodies and malformed or error-carrying
	// JSON-RPC replies all count as failures.
	DelayedRetry = New(Config{RetryDelay: DefaultRetryDelay})
)

var errTooSoon = errors.New("not retrying so soon after a failure")

// Config tunes a Source. Zero values select the defaults.
type Config struct {
	BaseURL        string
	JSONURL        string
	HTTPClient     *http.Client
	UserAgent      string
	RetryDelay     time.Duration
	APIKey         uuid.UUID
	MaxRequestSize int
}

// Source is a random.org client.
type Source struct {
	baseURL    string
	jsonURL    string
	client     *http.Client
	userAgent  string
	retryDelay time.Duration
	now        func() time.Time

	apiKey    atomic.Pointer[uuid.UUID]
	requestID atomic.Int64
	// unix nanos before which no download is attempted
	earliestNextAttempt atomic.Int64

	mu             sync.Mutex
	cache          []byte
	cacheOffset    int
	maxRequestSize int
}

var _ seed.Source = (*Source)(nil)

// New builds a client from cfg.
func New(cfg Config) *Source {
	s := &Source{
		baseURL:        strings.TrimRight(valueOr(cfg.BaseURL, DefaultBaseURL), "/"),
		jsonURL:        valueOr(cfg.JSONURL, DefaultJSONURL),
		client:         cfg.HTTPClient,
		userAgent:      valueOr(cfg.UserAgent, UserAgent),
		retryDelay:     cfg.RetryDelay,
		now:            time.Now,
		cache:          make([]byte, MaxCacheSize),
		cacheOffset:    MaxCacheSize,
		maxRequestSize: GlobalMaxRequestSize,
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.APIKey != uuid.Nil {
		s.SetAPIKey(cfg.APIKey)
	}
	if cfg.MaxRequestSize > 0 {
		s.SetMaxRequestSize(cfg.MaxRequestSize)
	}
	return s
}

// SetAPIKey switches to the JSON-RPC API; uuid.Nil switches back to the
// plain-text API.
func (s *Source) SetAPIKey(key uuid.UUID) {
	if key == uuid.Nil {
		s.apiKey.Store(nil)
		return
	}
	s.apiKey.Store(&key)
}

// APIKey returns the JSON-RPC key, or uuid.Nil when the plain API is used.
func (s *Source) APIKey() uuid.UUID {
	if key := s.apiKey.Load(); key != nil {
		return *key
	}
	return uuid.Nil
}

// SetMaxRequestSize caps the bytes asked for per request, never above
// GlobalMaxRequestSize. Unread cached bytes are kept.
func (s *Source) SetMaxRequestSize(size int) {
	size = min(max(size, 1), GlobalMaxRequestSize)
	newCacheSize := min(size, MaxCacheSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	if grow := newCacheSize - len(s.cache); grow > 0 {
		grown := make([]byte, newCacheSize)
		copy(grown[s.cacheOffset+grow:], s.cache[s.cacheOffset:])
		s.cache = grown
		s.cacheOffset += grow
	}
	s.maxRequestSize = size
}

func (s *Source) FillSeed(buf []byte) error {
	if !s.IsWorthTrying() {
		return seed.Failed(s.String(), errTooSoon)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for count := 0; count < len(buf); {
		if s.cacheOffset < len(s.cache) {
			n := copy(buf[count:], s.cache[s.cacheOffset:])
			count += n
			s.cacheOffset += n
			continue
		}
		if err := s.refreshCache(len(buf) - count); err != nil {
			// every refresh error opens the retry window, not only network ones
			s.cacheOffset = len(s.cache)
			s.deferNextAttempt(s.retryDelay)
			return seed.Failedf(s.String(), "download from %s failed: %w", s.baseURL, err)
		}
	}
	return nil
}

// IsWorthTrying is false inside the retry window of a delayed-retry client.
func (s *Source) IsWorthTrying() bool {
	if s.retryDelay <= 0 {
		return true
	}
	return s.now().UnixNano() >= s.earliestNextAttempt.Load()
}

func (s *Source) String() string {
	if s.retryDelay > 0 {
		return s.baseURL + " (with retry delay)"
	}
	return s.baseURL + " (without retry delay)"
}

func (s *Source) deferNextAttempt(d time.Duration) {
	if d <= 0 {
		return
	}
	s.earliestNextAttempt.Store(s.now().Add(d).UnixNano())
}

// refreshCache must be called with mu held.
func (s *Source) refreshCache(required int) error {
	size := max(required, len(s.cache))
	size = min(size, s.maxRequestSize)
	if size != len(s.cache) {
		s.cache = make([]byte, size)
		s.cacheOffset = size
	}

	var err error
	if key := s.apiKey.Load(); key != nil {
		err = s.downloadJSON(*key, s.cache)
	} else {
		err = s.downloadPlain(s.cache)
	}
	if err != nil {
		return err
	}
	s.cacheOffset = 0
	return nil
}

func (s *Source) downloadPlain(dst []byte) error {
	url := fmt.Sprintf("%s/integers/?num=%d&min=0&max=255&col=1&base=16&format=plain&rnd=new", s.baseURL, len(dst))
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	index := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if index >= len(dst) {
			log.Warn().Str("source", s.String()).Int("requested", len(dst)).Msg("random.org sent more data than requested")
			break
		}
		v, err := strconv.ParseUint(line, 16, 8)
		if err != nil {
			return fmt.Errorf("malformed line %d: %w", index, err)
		}
		dst[index] = byte(v)
		index++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if index < len(dst) {
		return fmt.Errorf("insufficient data received: expected %d bytes, got %d", len(dst), index)
	}
	return nil
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	APIKey string `json:"apiKey"`
	N      int    `json:"n"`
	Size   int    `json:"size"`
}

type rpcResponse struct {
	Error  json.RawMessage `json:"error"`
	Result *struct {
		Random *struct {
			Data json.RawMessage `json:"data"`
		} `json:"random"`
		AdvisoryDelay *int64 `json:"advisoryDelay"`
	} `json:"result"`
}

func (s *Source) downloadJSON(key uuid.UUID, dst []byte) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "generateBlobs",
		Params:  rpcParams{APIKey: key.String(), N: 1, Size: len(dst) * 8},
		ID:      s.requestID.Add(1),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, s.jsonURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("unparseable JSON response: %w", err)
	}
	if len(out.Error) > 0 && string(out.Error) != "null" {
		return fmt.Errorf("random.org error: %s", out.Error)
	}
	if out.Result == nil {
		return errors.New("no 'result' in response")
	}
	if out.Result.Random == nil {
		return errors.New("no 'random' in result")
	}
	encoded, err := blobData(out.Result.Random.Data)
	if err != nil {
		return err
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("malformed blob: %w", err)
	}
	if len(decoded) < len(dst) {
		return fmt.Errorf("too few bytes returned: requested %d, got %d", len(dst), len(decoded))
	}
	copy(dst, decoded)

	if delay := out.Result.AdvisoryDelay; delay != nil {
		s.deferNextAttempt(min(time.Duration(*delay)*time.Millisecond, DefaultRetryDelay))
	}
	return nil
}

// blobData accepts either a single string or an array of strings.
func blobData(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("'data' missing from 'random'")
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", errors.New("'data' is empty")
		}
		return list[0], nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return "", fmt.Errorf("unexpected 'data': %s", raw)
	}
	return single, nil
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
