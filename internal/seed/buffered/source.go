// Package buffered wraps a source with a read-ahead buffer to cut the
// number of slow acquisitions.
package buffered

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/danmuck/entropyctl/internal/seed"
)

// Source serves small requests from a buffer refilled from its delegate
// size bytes at a time. Requests of size bytes or more go straight to the
// delegate.
type Source struct {
	delegate seed.Source
	size     int

	mu     sync.Mutex
	buffer []byte
	// bytes before pos are spent; pos == size means empty
	pos atomic.Int64
}

var _ seed.Source = (*Source)(nil)

// New wraps delegate with a buffer of size bytes. size must be positive.
func New(delegate seed.Source, size int) *Source {
	if size <= 0 {
		panic(fmt.Sprintf("buffered: invalid size %d", size))
	}
	s := &Source{delegate: delegate, size: size, buffer: make([]byte, size)}
	s.pos.Store(int64(size))
	return s
}

func (s *Source) FillSeed(out []byte) error {
	if len(out) >= s.size {
		return seed.Fill(s.delegate, out)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos := int(s.pos.Load())
	available := s.size - pos
	if available >= len(out) {
		copy(out, s.buffer[pos:pos+len(out)])
		s.pos.Store(int64(pos + len(out)))
		return nil
	}

	copy(out, s.buffer[pos:])
	if err := seed.Fill(s.delegate, s.buffer); err != nil {
		s.pos.Store(int64(s.size))
		return err
	}
	rest := len(out) - available
	copy(out[available:], s.buffer[:rest])
	s.pos.Store(int64(rest))
	return nil
}

// IsWorthTrying is true while buffered bytes remain or the delegate is
// worth trying.
func (s *Source) IsWorthTrying() bool {
	return int(s.pos.Load()) < s.size || s.delegate.IsWorthTrying()
}

// Buffered returns the number of unread buffered bytes.
func (s *Source) Buffered() int {
	return s.size - int(s.pos.Load())
}

func (s *Source) String() string {
	return fmt.Sprintf("buffered(%s,%d)", seed.Name(s.delegate), s.size)
}
