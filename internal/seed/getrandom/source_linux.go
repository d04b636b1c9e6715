//go:build linux

package getrandom

import (
	"errors"
	"sync/atomic"

	"github.com/danmuck/entropyctl/internal/seed"
	"golang.org/x/sys/unix"
)

// set after the kernel answers ENOSYS
var unsupported atomic.Bool

func available() bool { return !unsupported.Load() }

func fill(s Source, buf []byte) error {
	if unsupported.Load() {
		return seed.Failedf(s.String(), "getrandom unsupported by kernel")
	}
	flags := 0
	if s.NonBlocking {
		flags = unix.GRND_NONBLOCK
	}
	for off := 0; off < len(buf); {
		n, err := unix.Getrandom(buf[off:], flags)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ENOSYS):
			unsupported.Store(true)
			return seed.Failed(s.String(), err)
		case errors.Is(err, unix.EAGAIN):
			return seed.Failedf(s.String(), "entropy pool not initialized: %w", err)
		case err != nil:
			return seed.Failed(s.String(), err)
		}
		off += n
	}
	return nil
}
