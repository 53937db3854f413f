package storage

import (
	"context"
	"fmt"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
)

// SeedPriorities creates priorities in one transaction when the organization
// has none yet, and returns how many were created.
func SeedPriorities(ctx context.Context, store Storage, organizationID string, priorities []domain.TicketPriority) (int, error) {
	existing, err := store.ListTicketPriorities(ctx, organizationID)
	if err != nil {
		return 0, fmt.Errorf("listing priorities: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	tx, err := store.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range priorities {
		p := priorities[i]
		p.OrganizationID = organizationID
		if err := tx.CreateTicketPriority(ctx, &p); err != nil {
			return 0, fmt.Errorf("creating priority %s: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing priorities: %w", err)
	}
	return len(priorities), nil
}
