// Package section tracks the current and last-persisted state of independently
// edited settings sections and derives their dirty state by value.
package section

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/go-viper/mapstructure/v2"
)

// ErrSuperseded is returned by Load when a newer load or a commit of the same
// section happened while the fetch was in flight. The result was discarded.
var ErrSuperseded = errors.New("load superseded")

// Value is a settings type with explicit structural equality.
// Clone must return a copy that shares no mutable memory with the receiver.
type Value[T any] interface {
	Equal(T) bool
	Clone() T
}

// Section holds the current and baseline snapshots of one settings section.
// Dirty is never stored; it is derived from the two snapshots.
type Section[T Value[T]] struct {
	name domain.SectionName

	mu         sync.Mutex
	current    T
	baseline   T
	loading    bool
	generation uint64
	loadedAt   time.Time
	onChange   func()
}

// New creates a section whose current and baseline are both the defaults.
func New[T Value[T]](name domain.SectionName, defaults T) *Section[T] {
	return &Section[T]{
		name:     name,
		current:  defaults.Clone(),
		baseline: defaults.Clone(),
	}
}

// Name returns the section name.
func (s *Section[T]) Name() domain.SectionName { return s.name }

// Current returns a copy of the current (edited) state.
func (s *Section[T]) Current() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Baseline returns a copy of the last persisted state.
func (s *Section[T]) Baseline() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline.Clone()
}

// Dirty reports whether current differs from baseline.
func (s *Section[T]) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.current.Equal(s.baseline)
}

// Loading reports whether a save or toggle of this section is in flight.
func (s *Section[T]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Snapshot returns a consistent view of the section.
func (s *Section[T]) Snapshot() domain.SectionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := domain.SectionSnapshot{
		Name:     s.name,
		Current:  s.current.Clone(),
		Baseline: s.baseline.Clone(),
		Dirty:    !s.current.Equal(s.baseline),
		Loading:  s.loading,
	}
	if !s.loadedAt.IsZero() {
		t := s.loadedAt
		snap.LoadedAt = &t
	}
	return snap
}

// Load fetches the section and replaces both current and baseline with the
// result. On failure both are left as they were and a PersistenceError is
// returned; the caller decides whether to keep the defaults.
func (s *Section[T]) Load(ctx context.Context, fetch func(context.Context) (T, error)) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	value, err := fetch(ctx)
	if err != nil {
		return &domain.PersistenceError{Op: "load", Section: s.name, Err: err}
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.current = value.Clone()
	s.baseline = value.Clone()
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.changed()
	return nil
}

// UpdateField sets current[key] to value. The baseline is not touched.
// Keys are the JSON field names of T.
func (s *Section[T]) UpdateField(key string, value any) error {
	return s.UpdateFields(map[string]any{key: value})
}

// UpdateFields applies several edits at once. Either every edit is applied
// or, when one key is unknown or mistyped, none is.
func (s *Section[T]) UpdateFields(values map[string]any) error {
	s.mu.Lock()
	next := s.current.Clone()
	for key, value := range values {
		if err := setField(&next, key, value); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.current = next
	s.mu.Unlock()

	s.changed()
	return nil
}

// Set replaces the current state wholesale.
func (s *Section[T]) Set(value T) {
	s.mu.Lock()
	s.current = value.Clone()
	s.mu.Unlock()
	s.changed()
}

// Field returns the current value of a field.
func (s *Section[T]) Field(key string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getField(s.current, key)
}

// Commit sets both current and baseline to the persisted value.
func (s *Section[T]) Commit(persisted T) {
	s.mu.Lock()
	s.current = persisted.Clone()
	s.baseline = persisted.Clone()
	s.generation++
	s.mu.Unlock()
	s.changed()
}

// Revert discards unsaved edits.
func (s *Section[T]) Revert() {
	s.mu.Lock()
	s.current = s.baseline.Clone()
	s.mu.Unlock()
	s.changed()
}

// BeginSave marks the section as loading and returns the state to persist.
// It fails with domain.ErrSaveInProgress while another save is in flight.
func (s *Section[T]) BeginSave() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		var zero T
		return zero, domain.ErrSaveInProgress
	}
	s.loading = true
	return s.current.Clone(), nil
}

// BeginToggle applies key=value to current optimistically, marks the section
// as loading and returns the prior value together with the payload to persist:
// the baseline with only that key changed.
func (s *Section[T]) BeginToggle(key string, value any) (prior any, payload T, err error) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil, payload, domain.ErrSaveInProgress
	}
	prior, err = getField(s.current, key)
	if err != nil {
		s.mu.Unlock()
		return nil, payload, err
	}
	next := s.current.Clone()
	if err := setField(&next, key, value); err != nil {
		s.mu.Unlock()
		return nil, payload, err
	}
	payload = s.baseline.Clone()
	if err := setField(&payload, key, value); err != nil {
		s.mu.Unlock()
		return nil, payload, err
	}
	s.current = next
	s.loading = true
	s.mu.Unlock()

	s.changed()
	return prior, payload, nil
}

// CommitField makes persisted the new baseline and copies only key from it
// into current, keeping any other unsaved edits.
func (s *Section[T]) CommitField(persisted T, key string) error {
	v, err := getField(persisted, key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	next := s.current.Clone()
	if err := setField(&next, key, v); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = next
	s.baseline = persisted.Clone()
	s.generation++
	s.mu.Unlock()
	s.changed()
	return nil
}

// RestoreField puts a field of current back to a previous value.
func (s *Section[T]) RestoreField(key string, prior any) error {
	return s.UpdateField(key, prior)
}

// EndSave clears the loading flag.
func (s *Section[T]) EndSave() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.changed()
}

func (s *Section[T]) setListener(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Section[T]) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// fields decodes v into a map keyed by JSON field name.
func fields(v any) (map[string]any, error) {
	out := map[string]any{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, err
	}
	return out, nil
}

func getField(v any, key string) (any, error) {
	m, err := fields(v)
	if err != nil {
		return nil, err
	}
	value, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownField, key)
	}
	return value, nil
}

func setField[T any](v *T, key string, value any) error {
	if _, err := getField(*v, key); err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  v,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any{key: value}); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}
	return nil
}
