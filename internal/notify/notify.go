// Package notify delivers short-lived messages about save and toggle outcomes
// to the admin.
package notify

import (
	"sync"
	"time"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier shows a message to the admin.
type Notifier interface {
	Show(severity domain.Severity, message string)
}

// Logger writes notifications to a zap logger.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a notifier that logs every message.
func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger.Named("notify")}
}

// Show logs the message at a level matching its severity.
func (l *Logger) Show(severity domain.Severity, message string) {
	switch severity {
	case domain.SeverityError:
		l.logger.Error(message)
	case domain.SeverityWarning:
		l.logger.Warn(message)
	default:
		l.logger.Info(message, zap.String("severity", string(severity)))
	}
}

// Recorder keeps the most recent notifications in a fixed-size ring.
type Recorder struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
	next   int
	full   bool
	now    func() time.Time
}

// NewRecorder creates a recorder holding up to size events.
func NewRecorder(size int) *Recorder {
	if size < 1 {
		size = 1
	}
	return &Recorder{events: make([]domain.NotificationEvent, size), now: time.Now}
}

// Show records the message.
func (r *Recorder) Show(severity domain.Severity, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.next] = domain.NotificationEvent{
		ID:       uuid.New().String(),
		Severity: severity,
		Message:  message,
		Time:     r.now(),
	}
	r.next = (r.next + 1) % len(r.events)
	if r.next == 0 {
		r.full = true
	}
}

// Events returns the recorded events, oldest first.
func (r *Recorder) Events() []domain.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]domain.NotificationEvent(nil), r.events[:r.next]...)
	}
	out := make([]domain.NotificationEvent, 0, len(r.events))
	out = append(out, r.events[r.next:]...)
	return append(out, r.events[:r.next]...)
}

// Last returns the most recent event.
func (r *Recorder) Last() (domain.NotificationEvent, bool) {
	events := r.Events()
	if len(events) == 0 {
		return domain.NotificationEvent{}, false
	}
	return events[len(events)-1], true
}

// Multi forwards each notification to every notifier.
type Multi []Notifier

// Show forwards the message.
func (m Multi) Show(severity domain.Severity, message string) {
	for _, n := range m {
		n.Show(severity, message)
	}
}
