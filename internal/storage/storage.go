package storage

import (
	"context"
	"encoding/json"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
)

// SettingsStore persists each settings section as an opaque JSON document.
type SettingsStore interface {
	// GetSectionSettings returns the stored document of a section,
	// or domain.ErrNotFound when the section was never saved.
	GetSectionSettings(ctx context.Context, section domain.SectionName) (json.RawMessage, error)

	// UpdateSectionSettings replaces the document of a section and returns
	// the stored document. Implementations may return nil instead of an echo.
	UpdateSectionSettings(ctx context.Context, section domain.SectionName, data json.RawMessage) (json.RawMessage, error)
}

// PolicyStore is the dedicated store of SLA policies.
type PolicyStore interface {
	ListSLAPolicies(ctx context.Context, organizationID string) ([]domain.SLAPolicy, error)

	// CreateSLAPolicy stores a new policy. It fails with domain.ErrAlreadyExists
	// when the organization already has a policy for the priority.
	CreateSLAPolicy(ctx context.Context, policy *domain.SLAPolicy) (*domain.SLAPolicy, error)

	UpdateSLAPolicy(ctx context.Context, id string, policy *domain.SLAPolicy) (*domain.SLAPolicy, error)
}

// PriorityStore holds the ticket priorities of each organization.
type PriorityStore interface {
	ListTicketPriorities(ctx context.Context, organizationID string) ([]domain.TicketPriority, error)
	CreateTicketPriority(ctx context.Context, priority *domain.TicketPriority) error
	UpdateTicketPriority(ctx context.Context, id string, priority *domain.TicketPriority) (*domain.TicketPriority, error)
}

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	SettingsStore
	PolicyStore
	PriorityStore

	// Close closes the storage connection.
	Close() error

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Storage
	Commit() error
	Rollback() error
}
