package validation

import (
	"fmt"
	"maps"
	"sync"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
)

// Rule checks one field. Check sees the whole section state so that a field
// can be required only when a sibling flag is set. It returns the empty
// string when the field is valid.
type Rule[T any] struct {
	Field string
	Check func(T) string

	// Each, when set, is used instead of Check for list fields and returns
	// one message per failing element keyed as field[i].
	Each func(T) FieldErrors
}

// ListRule checks every element of a list field.
func ListRule[T any](field string, items func(T) []string, check func(string) error) Rule[T] {
	return Rule[T]{Field: field, Each: func(state T) FieldErrors {
		errs := FieldErrors{}
		for i, item := range items(state) {
			if err := check(item); err != nil {
				errs.Add(fmt.Sprintf("%s[%d]", field, i), err.Error())
			}
		}
		return errs
	}}
}

// Engine runs the rule sets registered per section and remembers the last
// result of each.
type Engine struct {
	mu    sync.RWMutex
	rules map[domain.SectionName]func(any) (FieldErrors, error)
	last  Errors
}

// NewEngine creates an engine without rule sets.
func NewEngine() *Engine {
	return &Engine{
		rules: make(map[domain.SectionName]func(any) (FieldErrors, error)),
		last:  make(Errors),
	}
}

// Register installs the rule set for a section, replacing any previous one.
func Register[T any](e *Engine, name domain.SectionName, rules ...Rule[T]) {
	run := func(state any) (FieldErrors, error) {
		typed, ok := state.(T)
		if !ok {
			if ptr, isPtr := state.(*T); isPtr && ptr != nil {
				typed = *ptr
			} else {
				return nil, fmt.Errorf("%w: %s expects %T, got %T", domain.ErrInvalidInput, name, typed, state)
			}
		}
		errs := FieldErrors{}
		for _, r := range rules {
			if r.Each != nil {
				for field, msg := range r.Each(typed) {
					errs.Add(field, msg)
				}
				continue
			}
			if msg := r.Check(typed); msg != "" {
				errs.Add(r.Field, msg)
			}
		}
		return errs, nil
	}

	e.mu.Lock()
	e.rules[name] = run
	e.mu.Unlock()
}

// Validate runs the rule set of a section against state and records the
// result. The returned map is empty when every rule passes.
func (e *Engine) Validate(name domain.SectionName, state any) (FieldErrors, error) {
	errs, err := e.Check(name, state)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.last[name] = maps.Clone(errs)
	e.mu.Unlock()
	return errs, nil
}

// Check runs the rule set of a section against state without recording the
// result, for states other than the one being edited.
func (e *Engine) Check(name domain.SectionName, state any) (FieldErrors, error) {
	e.mu.RLock()
	run, ok := e.rules[name]
	e.mu.RUnlock()
	if !ok {
		return nil, domain.ErrUnknownSection
	}
	return run(state)
}

// HasErrors reports whether the last validation of a section failed.
func (e *Engine) HasErrors(name domain.SectionName) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.last[name]) > 0
}

// Errors returns a copy of the last validation result of a section.
func (e *Engine) Errors(name domain.SectionName) FieldErrors {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.last[name])
}

// All returns a copy of the last results of every validated section.
func (e *Engine) All() Errors {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(Errors, len(e.last))
	for name, errs := range e.last {
		out[name] = maps.Clone(errs)
	}
	return out
}

// Clear forgets the last result of a section.
func (e *Engine) Clear(name domain.SectionName) {
	e.mu.Lock()
	delete(e.last, name)
	e.mu.Unlock()
}
