package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoliciesKeepCreationOrder(t *testing.T) {
	ctx := context.Background()
	store := New()

	for _, id := range []string{"p-urgent", "p-high", "p-low"} {
		_, err := store.CreateSLAPolicy(ctx, &domain.SLAPolicy{OrganizationID: "org-1", TicketPriorityID: id, ResolutionHours: 1})
		require.NoError(t, err)
	}

	list, err := store.ListSLAPolicies(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "p-urgent", list[0].TicketPriorityID)
	assert.Equal(t, "p-low", list[2].TicketPriorityID)
}

func TestPolicyUniqueness(t *testing.T) {
	ctx := context.Background()
	store := New()

	first, err := store.CreateSLAPolicy(ctx, &domain.SLAPolicy{OrganizationID: "org-1", TicketPriorityID: "p1"})
	require.NoError(t, err)
	second, err := store.CreateSLAPolicy(ctx, &domain.SLAPolicy{OrganizationID: "org-1", TicketPriorityID: "p2"})
	require.NoError(t, err)

	_, err = store.CreateSLAPolicy(ctx, &domain.SLAPolicy{OrganizationID: "org-1", TicketPriorityID: "p1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	moved := *second
	moved.TicketPriorityID = first.TicketPriorityID
	_, err = store.UpdateSLAPolicy(ctx, second.ID, &moved)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestSettingsAreCopied(t *testing.T) {
	ctx := context.Background()
	store := New()

	data := json.RawMessage(`{"debugMode":true}`)
	_, err := store.UpdateSectionSettings(ctx, domain.SectionAdvanced, data)
	require.NoError(t, err)
	data[1] = 'X'

	got, err := store.GetSectionSettings(ctx, domain.SectionAdvanced)
	require.NoError(t, err)
	assert.JSONEq(t, `{"debugMode":true}`, string(got))
}
