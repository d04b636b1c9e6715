// Package devrandom reads seed bytes from an entropy device file such as
// /dev/random.
package devrandom

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/danmuck/entropyctl/internal/seed"
)

const (
	DevRandom  = "/dev/random"
	DevURandom = "/dev/urandom"
)

var (
	// Random reads /dev/random.
	Random = Source{Path: DevRandom}
	// URandom reads /dev/urandom.
	URandom = Source{Path: DevURandom}
)

// Source reads from the device at Path. Values with the same Path are equal
// and share one open handle, so they dedupe in schedulers.
type Source struct {
	Path string
}

var _ seed.Source = Source{}

// New returns a source for path, cleaned; an empty path means /dev/random.
func New(path string) Source {
	if path == "" {
		return Random
	}
	return Source{Path: filepath.Clean(path)}
}

type device struct {
	mu   sync.Mutex
	file *os.File
	// set once the device cannot be opened at all; never cleared
	dead    atomic.Bool
	deadErr error
}

var (
	devicesMu sync.Mutex
	devices   = make(map[string]*device)
)

func lookup(path string) *device {
	devicesMu.Lock()
	defer devicesMu.Unlock()
	d, ok := devices[path]
	if !ok {
		d = &device{}
		devices[path] = d
	}
	return d
}

func (s Source) path() string {
	if s.Path == "" {
		return DevRandom
	}
	return s.Path
}

func (s Source) FillSeed(buf []byte) error {
	d := lookup(s.path())
	if d.dead.Load() {
		return seed.Failed(s.String(), d.deadErr)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dead.Load() {
		return seed.Failed(s.String(), d.deadErr)
	}

	if d.file == nil {
		f, err := os.Open(s.path())
		if err != nil {
			if isPermanent(err) {
				d.deadErr = err
				d.dead.Store(true)
			}
			return seed.Failed(s.String(), err)
		}
		d.file = f
	}

	n, err := io.ReadFull(d.file, buf)
	if err != nil {
		// drop the handle; the next call reopens
		_ = d.file.Close()
		d.file = nil
		return seed.Failedf(s.String(), "read %d of %d bytes: %w", n, len(buf), err)
	}
	return nil
}

// IsWorthTrying is false once the device was found missing or unreadable.
func (s Source) IsWorthTrying() bool {
	return !lookup(s.path()).dead.Load()
}

func (s Source) String() string { return s.path() }

func isPermanent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}
