//go:build !linux

package getrandom

import "github.com/danmuck/entropyctl/internal/seed"

func available() bool { return false }

func fill(s Source, buf []byte) error {
	return seed.Failedf(s.String(), "getrandom not available on this platform")
}
