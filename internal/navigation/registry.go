package navigation

import (
	"sync"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"go.uber.org/zap"
)

// Registry is the process-wide Interceptor. The server consults it when it
// receives a termination signal.
type Registry struct {
	logger *zap.Logger

	mu       sync.Mutex
	handlers []ExitHandler
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{logger: logger.Named("exit")}
}

// Register adds h. Registering the same handler twice has no effect.
func (r *Registry) Register(h ExitHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.handlers {
		if existing == h {
			return
		}
	}
	r.handlers = append(r.handlers, h)
	r.logger.Debug("exit handler registered", zap.Int("handlers", len(r.handlers)))
}

// Unregister removes h.
func (r *Registry) Unregister(h ExitHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.handlers {
		if existing == h {
			r.handlers = append(r.handlers[:i], r.handlers[i+1:]...)
			r.logger.Debug("exit handler unregistered", zap.Int("handlers", len(r.handlers)))
			return
		}
	}
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}

// Intercept asks every registered handler for its unsaved sections, logs
// them and returns them deduplicated. An empty result means exiting loses
// nothing.
func (r *Registry) Intercept() []domain.SectionName {
	r.mu.Lock()
	handlers := append([]ExitHandler(nil), r.handlers...)
	r.mu.Unlock()

	seen := make(map[domain.SectionName]bool)
	var dirty []domain.SectionName
	for _, h := range handlers {
		for _, name := range h.DirtySections() {
			if !seen[name] {
				seen[name] = true
				dirty = append(dirty, name)
			}
		}
	}
	if len(dirty) > 0 {
		names := make([]string, len(dirty))
		for i, n := range dirty {
			names[i] = string(n)
		}
		r.logger.Warn("exiting with unsaved settings", zap.Strings("sections", names))
	}
	return dirty
}
