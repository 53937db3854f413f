package section

import (
	"sync"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
)

// Tracked is the type-independent view of a Section.
type Tracked interface {
	Name() domain.SectionName
	Dirty() bool
	Loading() bool
	Snapshot() domain.SectionSnapshot
	Revert()
	setListener(func())
}

// Store aggregates the dirty state of all registered sections.
type Store struct {
	mu        sync.RWMutex
	sections  map[domain.SectionName]Tracked
	order     []domain.SectionName
	listeners []func()
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sections: make(map[domain.SectionName]Tracked)}
}

// Register adds a section. Registering the same name twice replaces it.
func (st *Store) Register(t Tracked) {
	st.mu.Lock()
	if _, ok := st.sections[t.Name()]; !ok {
		st.order = append(st.order, t.Name())
	}
	st.sections[t.Name()] = t
	st.mu.Unlock()

	t.setListener(st.changed)
}

// Get returns a registered section.
func (st *Store) Get(name domain.SectionName) (Tracked, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	t, ok := st.sections[name]
	if !ok {
		return nil, domain.ErrUnknownSection
	}
	return t, nil
}

// IsDirty reports whether one section has unsaved edits.
func (st *Store) IsDirty(name domain.SectionName) (bool, error) {
	t, err := st.Get(name)
	if err != nil {
		return false, err
	}
	return t.Dirty(), nil
}

// IsAnyDirty reports whether any of the named sections, or any registered
// section when none are named, has unsaved edits.
func (st *Store) IsAnyDirty(names ...domain.SectionName) bool {
	if len(names) == 0 {
		names = st.Names()
	}
	for _, name := range names {
		if dirty, err := st.IsDirty(name); err == nil && dirty {
			return true
		}
	}
	return false
}

// DirtySections lists the sections with unsaved edits, in registration order.
func (st *Store) DirtySections() []domain.SectionName {
	var dirty []domain.SectionName
	for _, name := range st.Names() {
		if ok, _ := st.IsDirty(name); ok {
			dirty = append(dirty, name)
		}
	}
	return dirty
}

// Statuses summarizes every section in registration order.
func (st *Store) Statuses() []domain.SectionStatus {
	names := st.Names()
	out := make([]domain.SectionStatus, 0, len(names))
	for _, name := range names {
		t, err := st.Get(name)
		if err != nil {
			continue
		}
		out = append(out, domain.SectionStatus{Name: name, Dirty: t.Dirty(), Loading: t.Loading()})
	}
	return out
}

// Names returns the registered section names in registration order.
func (st *Store) Names() []domain.SectionName {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]domain.SectionName(nil), st.order...)
}

// OnChange registers fn to be called after any section mutation.
func (st *Store) OnChange(fn func()) {
	st.mu.Lock()
	st.listeners = append(st.listeners, fn)
	st.mu.Unlock()
}

func (st *Store) changed() {
	st.mu.RLock()
	listeners := append([]func(){}, st.listeners...)
	st.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}
