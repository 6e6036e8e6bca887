// Package registry provides an in-memory, insertion-ordered collection that keeps a
// configured set of fields unique across its entries.
package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
)

// UniqueField names a field whose normalized value may appear at most once.
type UniqueField[T any] struct {
	Name  string
	Value func(T) string
}

type Config[T any] struct {
	Kind   string
	ID     func(T) int64
	WithID func(T, int64) T
	Unique []UniqueField[T]
	// NaturalKey is the unique field Delete matches on.
	NaturalKey string
}

type Registry[T any] struct {
	mu      sync.RWMutex
	cfg     Config[T]
	natural UniqueField[T]
	items   []T
	nextID  int64
}

func New[T any](cfg Config[T]) *Registry[T] {
	r := &Registry[T]{cfg: cfg}
	for _, f := range cfg.Unique {
		if f.Name == cfg.NaturalKey {
			r.natural = f
		}
	}
	if r.natural.Value == nil {
		panic(fmt.Sprintf("registry %s: natural key %q is not a unique field", cfg.Kind, cfg.NaturalKey))
	}
	return r
}

func (r *Registry[T]) Kind() string { return r.cfg.Kind }

// Save assigns the next id and appends item. Ids start at 1 and are never reused.
func (r *Registry[T]) Save(item T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnique(item, 0); err != nil {
		var zero T
		return zero, err
	}

	r.nextID++
	item = r.cfg.WithID(item, r.nextID)
	r.items = append(r.items, item)
	return item, nil
}

// Update replaces the entry that has item's id. Unique fields are re-checked
// against every other entry before anything changes.
func (r *Registry[T]) Update(item T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.cfg.ID(item)
	idx := r.indexOf(id)
	if idx < 0 {
		var zero T
		return zero, &clinic.NotFoundError{Kind: r.cfg.Kind, Key: fmt.Sprintf("id %d", id)}
	}
	if err := r.checkUnique(item, id); err != nil {
		var zero T
		return zero, err
	}

	r.items[idx] = item
	return item, nil
}

// Delete removes the first entry whose natural key matches key.
func (r *Registry[T]) Delete(key string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, it := range r.items {
		if sameKey(r.natural.Value(it), key) {
			r.items = slices.Delete(r.items, i, i+1)
			return it, nil
		}
	}
	var zero T
	return zero, &clinic.NotFoundError{Kind: r.cfg.Kind, Key: fmt.Sprintf("%s %q", r.cfg.NaturalKey, key)}
}

func (r *Registry[T]) ExistsWith(field, value string) bool {
	_, ok := r.FindBy(field, value)
	return ok
}

// FindBy returns the first entry whose field matches value.
func (r *Registry[T]) FindBy(field, value string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	f, ok := r.field(field)
	if !ok {
		return zero, false
	}
	for _, it := range r.items {
		if sameKey(f.Value(it), value) {
			return it, true
		}
	}
	return zero, false
}

func (r *Registry[T]) Get(id int64) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if idx := r.indexOf(id); idx >= 0 {
		return r.items[idx], true
	}
	var zero T
	return zero, false
}

// List returns a copy of all entries in insertion order.
func (r *Registry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.items)
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *Registry[T]) field(name string) (UniqueField[T], bool) {
	for _, f := range r.cfg.Unique {
		if f.Name == name {
			return f, true
		}
	}
	return UniqueField[T]{}, false
}

func (r *Registry[T]) indexOf(id int64) int {
	for i, it := range r.items {
		if r.cfg.ID(it) == id {
			return i
		}
	}
	return -1
}

// checkUnique must be called with mu held. The entry with id self is skipped.
func (r *Registry[T]) checkUnique(item T, self int64) error {
	for _, f := range r.cfg.Unique {
		v := f.Value(item)
		if strings.TrimSpace(v) == "" {
			continue
		}
		for _, it := range r.items {
			if self != 0 && r.cfg.ID(it) == self {
				continue
			}
			if sameKey(f.Value(it), v) {
				return &clinic.DuplicateKeyError{Kind: r.cfg.Kind, Field: f.Name, Value: strings.TrimSpace(v)}
			}
		}
	}
	return nil
}

// sameKey compares trimmed values case-insensitively. Blank values never match.
func sameKey(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}
