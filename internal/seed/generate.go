package seed

import "errors"

// EmptySeed is the canonical zero-length seed.
var EmptySeed = []byte{}

// Generate returns exactly length fresh bytes from src.
//
// A zero length returns EmptySeed without touching src. A negative length
// is rejected with ErrNegativeLength. Every failure from src matches
// ErrAcquisitionFailed, and no bytes are returned with it.
func Generate(src Source, length int) ([]byte, error) {
	if length < 0 {
		return nil, ErrNegativeLength
	}
	if length == 0 {
		return EmptySeed, nil
	}
	if src == nil {
		return nil, Failedf("<nil>", "no source")
	}
	out := make([]byte, length)
	if err := src.FillSeed(out); err != nil {
		return nil, normalize(src, err)
	}
	return out, nil
}

// Fill fills buf from src. An empty buf succeeds without touching src.
func Fill(src Source, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if src == nil {
		return Failedf("<nil>", "no source")
	}
	if err := src.FillSeed(buf); err != nil {
		return normalize(src, err)
	}
	return nil
}

func normalize(src Source, err error) error {
	if errors.Is(err, ErrAcquisitionFailed) {
		return err
	}
	return Failed(Name(src), err)
}
