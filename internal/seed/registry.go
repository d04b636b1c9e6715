package seed

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrSourceExists  = errors.New("source already registered")
	ErrSourceNil     = errors.New("source is nil")
	ErrNotComparable = errors.New("source is not comparable")
	ErrInvalidName   = errors.New("invalid source name")
)

type entry struct {
	name string
	src  Source
}

// Registry stores sources by stable name and refuses equal duplicates.
type Registry struct {
	mu    sync.RWMutex
	order []entry
	items map[string]Source
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Source)}
}

// ValidateName checks the name format: lowercase letters, digits and
// single '.', '-' or '_' separators.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if !isValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Register adds src under name.
func (r *Registry) Register(name string, src Source) error {
	if src == nil {
		return ErrSourceNil
	}
	if !Comparable(src) {
		return fmt.Errorf("%w: %s", ErrNotComparable, Name(src))
	}
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("%w: name %q", ErrSourceExists, name)
	}
	for _, e := range r.order {
		if e.src == src {
			return fmt.Errorf("%w: %s already registered as %q", ErrSourceExists, Name(src), e.name)
		}
	}
	r.items[name] = src
	r.order = append(r.order, entry{name: name, src: src})
	return nil
}

// Resolve returns a source by name.
func (r *Registry) Resolve(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.items[name]
	return src, ok
}

// Names returns registered names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sources returns registered sources in registration order.
func (r *Registry) Sources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.order))
	for _, e := range r.order {
		out = append(out, e.src)
	}
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func isValidName(name string) bool {
	if name == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(name)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
