// Package navigation guards section switches and process exit while settings
// sections have unsaved edits.
package navigation

import (
	"sync"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
)

// State is the state of a Guard.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingConfirmation State = "awaiting_confirmation"
)

// DirtySource reports the aggregate dirty state the guard acts on.
// *section.Store satisfies it.
type DirtySource interface {
	IsAnyDirty(names ...domain.SectionName) bool
	DirtySections() []domain.SectionName
	OnChange(fn func())
}

// ExitHandler is consulted when the process is about to exit.
type ExitHandler interface {
	DirtySections() []domain.SectionName
}

// Interceptor holds the exit handlers currently in effect.
type Interceptor interface {
	Register(h ExitHandler)
	Unregister(h ExitHandler)
}

// Status is a snapshot of a Guard.
type Status struct {
	State                State                `json:"state"`
	Active               int                  `json:"active"`
	ActiveSection        domain.SectionName   `json:"activeSection"`
	Pending              *int                 `json:"pending,omitempty"`
	AwaitingConfirmation bool                 `json:"awaitingConfirmation"`
	DirtySections        []domain.SectionName `json:"dirtySections"`
	ExitGuarded          bool                 `json:"exitGuarded"`
}

// Guard is the section-switch state machine. A switch is applied at once
// when nothing is dirty and held for confirmation otherwise.
type Guard struct {
	source      DirtySource
	interceptor Interceptor
	sections    []domain.SectionName

	mu         sync.Mutex
	state      State
	active     int
	pending    int
	registered bool
}

// NewGuard creates an idle guard on the first section and subscribes it to
// source so the exit handler follows the dirty aggregate. A nil interceptor
// disables exit interception.
func NewGuard(source DirtySource, interceptor Interceptor, sections []domain.SectionName) *Guard {
	g := &Guard{
		source:      source,
		interceptor: interceptor,
		sections:    append([]domain.SectionName(nil), sections...),
		state:       StateIdle,
	}
	source.OnChange(g.sync)
	g.sync()
	return g
}

// RequestSwitch asks to make target the active section. It reports
// held=true when the switch waits for Confirm or Cancel. A request made while
// another is held replaces the pending target; requesting the active section
// drops it.
func (g *Guard) RequestSwitch(target int) (held bool, err error) {
	if target < 0 || target >= len(g.sections) {
		return false, domain.ErrInvalidSection
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if target == g.active {
		g.state = StateIdle
		return false, nil
	}
	if !g.source.IsAnyDirty() {
		g.active = target
		g.state = StateIdle
		return false, nil
	}
	g.pending = target
	g.state = StateAwaitingConfirmation
	return true, nil
}

// Confirm applies the held switch and returns the new active index. Unsaved
// edits are left in place; discarding them is up to the caller.
func (g *Guard) Confirm() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateAwaitingConfirmation {
		return g.active, domain.ErrNoPendingNavigation
	}
	g.active = g.pending
	g.state = StateIdle
	return g.active, nil
}

// Cancel discards the held switch. The active section is unchanged.
func (g *Guard) Cancel() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateAwaitingConfirmation {
		return domain.ErrNoPendingNavigation
	}
	g.state = StateIdle
	return nil
}

// Active returns the index of the active section.
func (g *Guard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Status returns a snapshot of the guard.
func (g *Guard) Status() Status {
	dirty := g.source.DirtySections()
	if dirty == nil {
		dirty = []domain.SectionName{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	st := Status{
		State:                g.state,
		Active:               g.active,
		ActiveSection:        g.sections[g.active],
		AwaitingConfirmation: g.state == StateAwaitingConfirmation,
		DirtySections:        dirty,
		ExitGuarded:          g.registered,
	}
	if g.state == StateAwaitingConfirmation {
		p := g.pending
		st.Pending = &p
	}
	return st
}

// DirtySections makes the guard its own exit handler.
func (g *Guard) DirtySections() []domain.SectionName {
	return g.source.DirtySections()
}

// sync registers the exit handler while anything is dirty and removes it
// once everything is clean.
func (g *Guard) sync() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.interceptor == nil {
		return
	}
	dirty := g.source.IsAnyDirty()
	switch {
	case dirty && !g.registered:
		g.interceptor.Register(g)
		g.registered = true
	case !dirty && g.registered:
		g.interceptor.Unregister(g)
		g.registered = false
	}
}
