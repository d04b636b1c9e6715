package seed

import (
	"errors"
	"fmt"
)

var (
	// ErrAcquisitionFailed is the single failure kind of a Source.
	ErrAcquisitionFailed = errors.New("seed acquisition failed")
	// ErrNegativeLength rejects Generate calls with length < 0.
	ErrNegativeLength = errors.New("seed: negative length")
)

// AcquisitionError carries the source name and the underlying cause of a
// failed acquisition.
type AcquisitionError struct {
	Source string
	Cause  error
}

func (e *AcquisitionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", ErrAcquisitionFailed, e.Source)
	}
	return fmt.Sprintf("%s: %s: %v", ErrAcquisitionFailed, e.Source, e.Cause)
}

func (e *AcquisitionError) Unwrap() error { return e.Cause }

func (e *AcquisitionError) Is(target error) bool {
	return target == ErrAcquisitionFailed
}

// Failed builds an acquisition failure for source.
func Failed(source string, cause error) error {
	return &AcquisitionError{Source: source, Cause: cause}
}

// Failedf builds an acquisition failure with a formatted cause.
func Failedf(source, format string, args ...any) error {
	return &AcquisitionError{Source: source, Cause: fmt.Errorf(format, args...)}
}
