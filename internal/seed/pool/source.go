// Package pool serves seed bytes from a finite in-memory pool.
package pool

import (
	"fmt"
	"os"
	"sync"

	"github.com/danmuck/entropyctl/internal/seed"
)

// Source hands out bytes from the front of a fixed pool. Once drained it
// fails every non-empty request and reports itself not worth trying.
// A request larger than what remains fails without consuming anything.
type Source struct {
	name string

	mu   sync.Mutex
	data []byte
	pos  int
}

var _ seed.Source = (*Source)(nil)

// New copies data into a new pool named name.
func New(name string, data []byte) *Source {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Source{name: name, data: buf}
}

// Load reads a pool from a file of raw entropy bytes.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pool load failed (%s): %w", path, err)
	}
	return &Source{name: "pool:" + path, data: data}, nil
}

func (s *Source) FillSeed(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := len(s.data) - s.pos
	if len(buf) > remaining {
		return seed.Failedf(s.String(), "pool exhausted: requested %d, %d remaining", len(buf), remaining)
	}
	copy(buf, s.data[s.pos:s.pos+len(buf)])
	// consumed bytes are never handed out twice
	clear(s.data[s.pos : s.pos+len(buf)])
	s.pos += len(buf)
	return nil
}

func (s *Source) IsWorthTrying() bool {
	return s.Remaining() > 0
}

// Remaining returns how many bytes are left.
func (s *Source) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data) - s.pos
}

func (s *Source) String() string {
	if s.name == "" {
		return "pool"
	}
	return s.name
}
