package sql

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New("sqlite3", filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSectionSettings(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.GetSectionSettings(ctx, domain.SectionGeneral)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	echo, err := store.UpdateSectionSettings(ctx, domain.SectionGeneral, json.RawMessage(`{"companyName":"Acme"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"companyName":"Acme"}`, string(echo))

	_, err = store.UpdateSectionSettings(ctx, domain.SectionGeneral, json.RawMessage(`{"companyName":"Acme Corp"}`))
	require.NoError(t, err)

	got, err := store.GetSectionSettings(ctx, domain.SectionGeneral)
	require.NoError(t, err)
	assert.JSONEq(t, `{"companyName":"Acme Corp"}`, string(got))

	_, err = store.UpdateSectionSettings(ctx, domain.SectionGeneral, json.RawMessage(`{`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSLAPolicies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created, err := store.CreateSLAPolicy(ctx, &domain.SLAPolicy{
		OrganizationID:     "org-1",
		TicketPriorityID:   "p-high",
		FirstResponseHours: 1,
		NextResponseHours:  2,
		ResolutionHours:    8,
		BusinessHoursOnly:  true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.BusinessHoursOnly)

	_, err = store.CreateSLAPolicy(ctx, &domain.SLAPolicy{OrganizationID: "org-1", TicketPriorityID: "p-high", ResolutionHours: 4})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists, "one policy per organization and priority")

	_, err = store.CreateSLAPolicy(ctx, &domain.SLAPolicy{OrganizationID: "org-2", TicketPriorityID: "p-high", ResolutionHours: 4})
	require.NoError(t, err)

	update := *created
	update.ResolutionHours = 12
	updated, err := store.UpdateSLAPolicy(ctx, created.ID, &update)
	require.NoError(t, err)
	assert.Equal(t, 12, updated.ResolutionHours)

	_, err = store.UpdateSLAPolicy(ctx, "missing", &update)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := store.ListSLAPolicies(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, *updated, list[0])
}

func TestTicketPriorities(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	for _, name := range []string{"Low", "High"} {
		require.NoError(t, tx.CreateTicketPriority(ctx, &domain.TicketPriority{Name: name, OrganizationID: "org-1"}))
	}
	require.NoError(t, tx.Commit())

	list, err := store.ListTicketPriorities(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	p := list[1]
	p.SLAHours = 8
	updated, err := store.UpdateTicketPriority(ctx, p.ID, &p)
	require.NoError(t, err)
	assert.Equal(t, 8, updated.SLAHours)

	_, err = store.UpdateTicketPriority(ctx, "missing", &p)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateTicketPriority(ctx, &domain.TicketPriority{Name: "Low", OrganizationID: "org-1"}))
	require.NoError(t, tx.Rollback())

	list, err := store.ListTicketPriorities(ctx, "org-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
