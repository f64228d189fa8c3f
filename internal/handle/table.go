package handle

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a handle does not resolve to a live resource.
	ErrNotFound = errors.New("handle not found")
	// ErrTypeMismatch is returned when a handle belongs to a different kind of
	// resource. It wraps ErrNotFound.
	ErrTypeMismatch = fmt.Errorf("%w: wrong handle kind", ErrNotFound)
)

// Kind tags the resource type a handle refers to
type Kind string

// Handle is an opaque reference to a resource in a Table
type Handle string

// Owner identifies the script context that owns a resource
type Owner int

// New builds a handle of the given kind for an id
func New(kind Kind, id string) Handle {
	return Handle(string(kind) + ":" + id)
}

// Parse splits a handle into its kind and id
func Parse(h Handle) (Kind, string, error) {
	kind, id, ok := strings.Cut(string(h), ":")
	if !ok || kind == "" || id == "" {
		return "", "", fmt.Errorf("%w: malformed handle %q", ErrNotFound, string(h))
	}
	return Kind(kind), id, nil
}

type entry[T comparable] struct {
	handle Handle
	value  T
	owner  Owner
}

// Table maps resources of one kind to handles and back.
type Table[T comparable] struct {
	kind Kind

	mu      sync.RWMutex
	byID    map[string]*entry[T]
	byValue map[T]*entry[T]
	order   []*entry[T]
}

// NewTable creates an empty table for the given kind
func NewTable[T comparable](kind Kind) *Table[T] {
	return &Table[T]{
		kind:    kind,
		byID:    make(map[string]*entry[T]),
		byValue: make(map[T]*entry[T]),
	}
}

// Kind returns the kind tag of the handles minted by this table
func (t *Table[T]) Kind() Kind {
	return t.kind
}

// Add registers a resource for an owner and returns its handle. Adding a
// resource that is already present returns the existing handle.
func (t *Table[T]) Add(value T, owner Owner) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.byValue[value]; ok {
		return e.handle
	}

	id := uuid.New().String()
	e := &entry[T]{
		handle: New(t.kind, id),
		value:  value,
		owner:  owner,
	}
	t.byID[id] = e
	t.byValue[value] = e
	t.order = append(t.order, e)
	return e.handle
}

// Get resolves a handle to its resource
func (t *Table[T]) Get(h Handle) (T, error) {
	var zero T

	kind, id, err := Parse(h)
	if err != nil {
		return zero, err
	}
	if kind != t.kind {
		return zero, fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, t.kind, kind)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byID[id]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, string(h))
	}
	return e.value, nil
}

// Handle returns the handle of a registered resource
func (t *Table[T]) Handle(value T) (Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byValue[value]
	if !ok {
		return "", false
	}
	return e.handle, true
}

// Owner returns the owner of a registered resource
func (t *Table[T]) Owner(value T) (Owner, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byValue[value]
	if !ok {
		return 0, false
	}
	return e.owner, true
}

// Remove drops a resource from the table. It reports whether the resource
// was present.
func (t *Table[T]) Remove(value T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byValue[value]
	if !ok {
		return false
	}
	_, id, _ := Parse(e.handle)
	delete(t.byID, id)
	delete(t.byValue, value)
	for i, o := range t.order {
		if o == e {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// All returns every registered resource in insertion order
func (t *Table[T]) All() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.order))
	for _, e := range t.order {
		out = append(out, e.value)
	}
	return out
}

// Find returns the resources owned by owner in insertion order
func (t *Table[T]) Find(owner Owner) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []T
	for _, e := range t.order {
		if e.owner == owner {
			out = append(out, e.value)
		}
	}
	return out
}

// Contains reports whether a resource is registered
func (t *Table[T]) Contains(value T) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.byValue[value]
	return ok
}

// Len returns the number of registered resources
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}
