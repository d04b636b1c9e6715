// Package getrandom reads seed bytes straight from the kernel with the
// getrandom(2) system call.
package getrandom

import "github.com/danmuck/entropyctl/internal/seed"

// Source calls getrandom(2). With NonBlocking set, a kernel pool that is not
// yet initialized fails the call instead of blocking.
type Source struct {
	NonBlocking bool
}

var _ seed.Source = Source{}

func (s Source) String() string {
	if s.NonBlocking {
		return "getrandom(GRND_NONBLOCK)"
	}
	return "getrandom"
}

func (s Source) FillSeed(buf []byte) error {
	return fill(s, buf)
}

// IsWorthTrying is false when the platform or kernel lacks getrandom(2).
func (s Source) IsWorthTrying() bool {
	return available()
}
