package seed

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/entropyctl/internal/testutil/testlog"
)

func TestRegisterResolveAndDuplicate(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	src := namedSource{id: "a"}

	if err := r.Register("dev.a", src); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("dev.a", namedSource{id: "b"}); !errors.Is(err, ErrSourceExists) {
		t.Fatalf("expected ErrSourceExists for name, got %v", err)
	}
	if err := r.Register("dev.other", namedSource{id: "a"}); !errors.Is(err, ErrSourceExists) {
		t.Fatalf("expected ErrSourceExists for equal source, got %v", err)
	}
	got, ok := r.Resolve("dev.a")
	if !ok || got != Source(src) {
		t.Fatalf("resolve failed: ok=%v got=%v", ok, got)
	}
	if r.Len() != 1 {
		t.Fatalf("expected one source, got %d", r.Len())
	}
}

func TestRegisterRejectsNilAndIncomparable(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if err := r.Register("nil", nil); !errors.Is(err, ErrSourceNil) {
		t.Fatalf("expected ErrSourceNil, got %v", err)
	}
	if err := r.Register("func", Func(func([]byte) error { return nil })); !errors.Is(err, ErrNotComparable) {
		t.Fatalf("expected ErrNotComparable for func, got %v", err)
	}
	if err := r.Register("slice", sliceSource{}); !errors.Is(err, ErrNotComparable) {
		t.Fatalf("expected ErrNotComparable for slice field, got %v", err)
	}
}

func TestRegisterJudgesWrappedSourcesByValue(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	fn := wrapSource{inner: Func(func([]byte) error { return nil })}
	if Comparable(fn) {
		t.Fatalf("wrapper around a func must not be comparable")
	}
	for i := 0; i < 2; i++ {
		if err := r.Register("wrapped", fn); !errors.Is(err, ErrNotComparable) {
			t.Fatalf("attempt %d: expected ErrNotComparable, got %v", i, err)
		}
	}

	ok := wrapSource{inner: namedSource{id: "a"}}
	if !Comparable(ok) {
		t.Fatalf("wrapper around a comparable value must be comparable")
	}
	if err := r.Register("a", ok); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("b", wrapSource{inner: namedSource{id: "a"}}); !errors.Is(err, ErrSourceExists) {
		t.Fatalf("expected ErrSourceExists, got %v", err)
	}
	if err := r.Register("c", wrapSource{inner: &countingSource{}}); err != nil {
		t.Fatalf("pointer inner value is comparable: %v", err)
	}
}

func TestNamesSortedSourcesOrdered(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	_ = r.Register("z", namedSource{id: "z"})
	_ = r.Register("a", namedSource{id: "a"})
	_ = r.Register("m", namedSource{id: "m"})

	if got, want := r.Names(), []string{"a", "m", "z"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("names not sorted: got=%v want=%v", got, want)
	}
	srcs := r.Sources()
	if srcs[0] != Source(namedSource{id: "z"}) || srcs[2] != Source(namedSource{id: "m"}) {
		t.Fatalf("sources not in registration order: %v", srcs)
	}
}

func TestValidateNameFailures(t *testing.T) {
	testlog.Start(t)
	for _, name := range []string{"", "Dev", ".dev", "dev.", "dev..random", "dev random"} {
		if err := ValidateName(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("expected ErrInvalidName for %q, got %v", name, err)
		}
	}
	if err := ValidateName("dev.random-1_b"); err != nil {
		t.Fatalf("valid name rejected: %v", err)
	}
}

func TestEqualValuesShareMapSlot(t *testing.T) {
	testlog.Start(t)
	seen := map[Source]int{}
	seen[namedSource{id: "dev"}]++
	seen[namedSource{id: "dev"}]++
	seen[namedSource{id: "net"}]++
	if len(seen) != 2 || seen[namedSource{id: "dev"}] != 2 {
		t.Fatalf("equal sources must hash equal: %v", seen)
	}
	if !Comparable(namedSource{}) || Comparable(sliceSource{}) || Comparable(nil) {
		t.Fatalf("Comparable misreports")
	}
}

func TestName(t *testing.T) {
	testlog.Start(t)
	if Name(brokenSource{}) != "broken" {
		t.Fatalf("stringer not used")
	}
	if Name(namedSource{}) != "seed.namedSource" {
		t.Fatalf("unexpected type name %q", Name(namedSource{}))
	}
	if Name(nil) != "<nil>" {
		t.Fatalf("unexpected nil name")
	}
}
