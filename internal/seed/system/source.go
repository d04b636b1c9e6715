// Package system reads seed bytes from the Go runtime CSPRNG.
package system

import (
	"crypto/rand"
	"io"

	"github.com/danmuck/entropyctl/internal/seed"
)

// SourceName is the name the runtime CSPRNG source reports in listings and
// in acquisition errors.
const SourceName = "crypto/rand"

// reader is swapped out by tests.
var reader io.Reader = rand.Reader

// Source reads from crypto/rand. All values are equal and it is always worth
// trying.
type Source struct {
	seed.Base
}

var _ seed.Source = Source{}

func (Source) FillSeed(buf []byte) error {
	if _, err := io.ReadFull(reader, buf); err != nil {
		return seed.Failed(SourceName, err)
	}
	return nil
}

func (Source) String() string { return SourceName }
