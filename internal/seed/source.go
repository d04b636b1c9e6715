package seed

import (
	"fmt"
	"reflect"
)

// Source produces raw seed bytes on demand.
//
// FillSeed overwrites every byte of buf or returns an error matching
// ErrAcquisitionFailed. It never resizes buf. The contents of buf are
// undefined after a failure and must not be reused.
//
// IsWorthTrying must not block or perform I/O. It returns false only when
// the next FillSeed is already known to fail; sources without a cheap
// liveness signal return true.
//
// Implementations must be safe for concurrent use. Sources that can have
// several equivalent instances must be comparable values whose == identifies
// the provider, so that equal sources share one map slot in schedulers.
type Source interface {
	FillSeed(buf []byte) error
	IsWorthTrying() bool
}

// Base provides the optimistic IsWorthTrying default. Embed it in sources
// that have no cheap liveness check.
type Base struct{}

func (Base) IsWorthTrying() bool { return true }

// Func adapts a plain fill function into a Source. Func values are not
// comparable and cannot be registered; wrap them in a named type first.
type Func func(buf []byte) error

func (f Func) FillSeed(buf []byte) error { return f(buf) }

func (Func) IsWorthTrying() bool { return true }

// Name returns a display name for src.
func Name(src Source) string {
	if src == nil {
		return "<nil>"
	}
	if s, ok := src.(fmt.Stringer); ok {
		return s.String()
	}
	return reflect.TypeOf(src).String()
}

// Comparable reports whether src can be compared with == and used as a map
// key without panicking. Interface fields are judged by the values they
// hold, not by their static type.
func Comparable(src Source) bool {
	if src == nil {
		return false
	}
	return reflect.ValueOf(src).Comparable()
}
