package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/bcnelson/helpdesk-settings/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func policyJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestNewSLAService_RequiresOrganization(t *testing.T) {
	_, err := NewSLAService("", newFakeStore(), validation.NewDefaultEngine(), nil, nil, zap.NewNop(), 0)
	assert.ErrorIs(t, err, domain.ErrMissingOrganization)
}

func TestFetchPolicies_SettingsCopyWins(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.store.Store.UpdateSectionSettings(ctx, domain.SectionSLA, policyJSON(t, domain.SLAPolicyList{
		Policies: []domain.SLAPolicy{{ID: "a", OrganizationID: testOrg, TicketPriorityID: "p1", ResolutionHours: 8}},
	}))
	require.NoError(t, err)
	_, err = fx.store.Store.CreateSLAPolicy(ctx, &domain.SLAPolicy{OrganizationID: testOrg, TicketPriorityID: "p2", ResolutionHours: 4})
	require.NoError(t, err)

	policies, err := fx.sla.FetchPolicies(ctx)
	require.NoError(t, err)

	require.Len(t, policies, 1)
	assert.Equal(t, "a", policies[0].ID)
	assert.Zero(t, fx.store.Calls("ListSLAPolicies"))
	assert.Zero(t, fx.store.Calls("UpdateSectionSettings"))
}

func TestFetchPolicies_AcceptedShapes(t *testing.T) {
	policy := `{"id":"a","organizationId":"org-1","ticketPriorityId":"p1","firstResponseHours":1,"nextResponseHours":2,"resolutionHours":8}`
	tests := []struct {
		name string
		raw  string
	}{
		{"policies object", `{"policies":[` + policy + `]}`},
		{"bare list", `[` + policy + `]`},
		{"data wrapper", `{"data":{"policies":[` + policy + `]}}`},
		{"sla wrapper", `{"sla":[` + policy + `]}`},
		{"slaPolicies key", `{"slaPolicies":[` + policy + `]}`},
		{"string numbers", `[{"id":"a","ticketPriorityId":"p1","firstResponseHours":"1","nextResponseHours":"2","resolutionHours":"8"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.store.getSection = func(context.Context, domain.SectionName) (json.RawMessage, error) {
				return json.RawMessage(tt.raw), nil
			}

			policies, err := fx.sla.FetchPolicies(context.Background())
			require.NoError(t, err)

			require.Len(t, policies, 1)
			assert.Equal(t, domain.SLAPolicy{
				ID: "a", OrganizationID: testOrg, TicketPriorityID: "p1",
				FirstResponseHours: 1, NextResponseHours: 2, ResolutionHours: 8,
			}, policies[0])
		})
	}
}

func TestFetchPolicies_FiltersAndDeduplicates(t *testing.T) {
	fx := newFixture(t)
	fx.store.getSection = func(context.Context, domain.SectionName) (json.RawMessage, error) {
		return json.RawMessage(`[
			{"id":"first","organizationId":"org-1","ticketPriorityId":"p1","resolutionHours":8},
			{"id":"other-org","organizationId":"org-2","ticketPriorityId":"p2","resolutionHours":8},
			{"id":"duplicate","organizationId":"org-1","ticketPriorityId":"p1","resolutionHours":2}
		]`), nil
	}

	policies, err := fx.sla.FetchPolicies(context.Background())
	require.NoError(t, err)

	require.Len(t, policies, 1)
	assert.Equal(t, "first", policies[0].ID)
}

func TestFetchPolicies_FallbackReturnsBeforeSyncBack(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	for _, p := range []string{"p1", "p2"} {
		_, err := fx.store.Store.CreateSLAPolicy(ctx, &domain.SLAPolicy{OrganizationID: testOrg, TicketPriorityID: p, ResolutionHours: 4})
		require.NoError(t, err)
	}
	release := make(chan struct{})
	fx.store.updateSection = func(ctx context.Context, section domain.SectionName, data json.RawMessage) (json.RawMessage, error) {
		<-release
		return fx.store.Store.UpdateSectionSettings(ctx, section, data)
	}

	policies, err := fx.sla.FetchPolicies(ctx)
	require.NoError(t, err)
	assert.Len(t, policies, 2)

	close(release)
	fx.sla.Wait()

	assert.Equal(t, 1, fx.store.Calls("UpdateSectionSettings"))
	stored, err := fx.store.Store.GetSectionSettings(ctx, domain.SectionSLA)
	require.NoError(t, err)
	var list domain.SLAPolicyList
	require.NoError(t, json.Unmarshal(stored, &list))
	assert.Equal(t, policies, list.Policies)
}

func TestFetchPolicies_SyncBackFailureIsSilent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.store.Store.CreateSLAPolicy(ctx, &domain.SLAPolicy{OrganizationID: testOrg, TicketPriorityID: "p1", ResolutionHours: 4})
	require.NoError(t, err)
	fx.store.updateSection = func(context.Context, domain.SectionName, json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("read-only")
	}

	policies, err := fx.sla.FetchPolicies(ctx)
	require.NoError(t, err)
	fx.sla.Wait()

	assert.Len(t, policies, 1)
	var rerr *domain.ReconciliationError
	require.ErrorAs(t, fx.sla.LastReconciliationError(), &rerr)
	assert.Equal(t, "sync-back", rerr.Op)
	_, notified := fx.recorder.Last()
	assert.False(t, notified, "reconciliation errors are never shown")
}

func TestFetchPolicies_BothSourcesEmpty(t *testing.T) {
	fx := newFixture(t)
	fx.store.listPolicies = func(context.Context, string) ([]domain.SLAPolicy, error) {
		return nil, errors.New("policy service down")
	}

	policies, err := fx.sla.FetchPolicies(context.Background())
	require.NoError(t, err)

	assert.Empty(t, policies)
	var rerr *domain.ReconciliationError
	require.ErrorAs(t, fx.sla.LastReconciliationError(), &rerr)
	assert.Equal(t, "fetch", rerr.Op)
	assert.ErrorContains(t, rerr, "policy service down")
}

func TestSavePolicy_CreatesThenUpdates(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.addPriority(t, "p-high", "High", 0)
	form := domain.PolicyForm{TicketPriorityID: "p-high", FirstResponseHours: 1, NextResponseHours: 2, ResolutionHours: 8}

	created, err := fx.sla.SavePolicy(ctx, form)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, fx.store.Calls("CreateSLAPolicy"))
	assert.Zero(t, fx.store.Calls("UpdateSLAPolicy"))

	form.ResolutionHours = 12
	updated, err := fx.sla.SavePolicy(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 1, fx.store.Calls("CreateSLAPolicy"))
	assert.Equal(t, 1, fx.store.Calls("UpdateSLAPolicy"))

	assert.Equal(t, []domain.SLAPolicy{updated}, fx.sla.CachedPolicies())
	assert.Equal(t, domain.SeveritySuccess, fx.lastNotification(t).Severity)
}

func TestSavePolicy_MirrorsResolutionHoursOnce(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.addPriority(t, "p-high", "High", 24)
	form := domain.PolicyForm{TicketPriorityID: "p-high", FirstResponseHours: 1, NextResponseHours: 2, ResolutionHours: 8}

	_, err := fx.sla.SavePolicy(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.store.Calls("UpdateTicketPriority"))

	priorities, err := fx.sla.Priorities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, priorities[0].SLAHours, "cached list is refreshed")

	form.FirstResponseHours = 2
	_, err = fx.sla.SavePolicy(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.store.Calls("UpdateTicketPriority"), "hours already match")
}

func TestSavePolicy_SyncsSettingsCopy(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.addPriority(t, "p-low", "Low", 72)

	saved, err := fx.sla.SavePolicy(ctx, domain.PolicyForm{TicketPriorityID: "p-low", FirstResponseHours: 8, NextResponseHours: 8, ResolutionHours: 72})
	require.NoError(t, err)
	fx.sla.Wait()

	stored, err := fx.store.Store.GetSectionSettings(ctx, domain.SectionSLA)
	require.NoError(t, err)
	var list domain.SLAPolicyList
	require.NoError(t, json.Unmarshal(stored, &list))
	assert.Equal(t, []domain.SLAPolicy{saved}, list.Policies)
}

func TestSavePolicy_SyncBackFailureDoesNotFailSave(t *testing.T) {
	fx := newFixture(t)
	fx.addPriority(t, "p1", "Normal", 0)
	fx.store.updateSection = func(context.Context, domain.SectionName, json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("settings store down")
	}

	_, err := fx.sla.SavePolicy(context.Background(), domain.PolicyForm{TicketPriorityID: "p1", FirstResponseHours: 1, NextResponseHours: 1, ResolutionHours: 4})
	require.NoError(t, err)
	fx.sla.Wait()

	assert.Error(t, fx.sla.LastReconciliationError())
	assert.Equal(t, domain.SeveritySuccess, fx.lastNotification(t).Severity)
}

func TestSavePolicy_NilResultIsSynthesized(t *testing.T) {
	fx := newFixture(t)
	fx.addPriority(t, "p1", "Normal", 4)
	fx.store.createPolicy = func(context.Context, *domain.SLAPolicy) (*domain.SLAPolicy, error) {
		return nil, nil
	}

	saved, err := fx.sla.SavePolicy(context.Background(), domain.PolicyForm{TicketPriorityID: "p1", FirstResponseHours: 1, NextResponseHours: 1, ResolutionHours: 4})
	require.NoError(t, err)

	assert.Equal(t, testOrg, saved.OrganizationID)
	assert.Equal(t, "p1", saved.TicketPriorityID)
	assert.Equal(t, 4, saved.ResolutionHours)
	assert.Len(t, fx.sla.CachedPolicies(), 1)
}

func TestSavePolicy_Rejections(t *testing.T) {
	t.Run("invalid form", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.sla.SavePolicy(context.Background(), domain.PolicyForm{TicketPriorityID: "p1"})

		var fieldErrs validation.FieldErrors
		require.ErrorAs(t, err, &fieldErrs)
		assert.Contains(t, fieldErrs, "resolutionHours")
		assert.Zero(t, fx.store.Calls("CreateSLAPolicy"))
	})

	t.Run("unknown priority", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.sla.SavePolicy(context.Background(), domain.PolicyForm{TicketPriorityID: "missing", FirstResponseHours: 1, NextResponseHours: 1, ResolutionHours: 1})

		assert.ErrorIs(t, err, domain.ErrPriorityNotFound)
		assert.Zero(t, fx.store.Calls("CreateSLAPolicy"))
		assert.Equal(t, domain.SeverityError, fx.lastNotification(t).Severity)
	})

	t.Run("policy store failure", func(t *testing.T) {
		fx := newFixture(t)
		fx.addPriority(t, "p1", "Normal", 0)
		fx.store.createPolicy = func(context.Context, *domain.SLAPolicy) (*domain.SLAPolicy, error) {
			return nil, errors.New("boom")
		}
		_, err := fx.sla.SavePolicy(context.Background(), domain.PolicyForm{TicketPriorityID: "p1", FirstResponseHours: 1, NextResponseHours: 1, ResolutionHours: 1})

		var perr *domain.PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.Empty(t, fx.sla.CachedPolicies())
		assert.Zero(t, fx.store.Calls("UpdateTicketPriority"))
	})
}

func TestSavePolicy_PriorityAddedAfterFirstLoad(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.sla.Priorities(ctx)
	require.NoError(t, err)

	fx.addPriority(t, "p-new", "New", 0)
	_, err = fx.sla.SavePolicy(ctx, domain.PolicyForm{TicketPriorityID: "p-new", FirstResponseHours: 1, NextResponseHours: 1, ResolutionHours: 2})
	require.NoError(t, err)
}

func TestStaleSyncBackNeverOverwritesNewerSave(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.addPriority(t, "p1", "Normal", 4)
	fx.addPriority(t, "p2", "High", 2)
	_, err := fx.store.Store.CreateSLAPolicy(ctx, &domain.SLAPolicy{OrganizationID: testOrg, TicketPriorityID: "p1", FirstResponseHours: 1, NextResponseHours: 1, ResolutionHours: 4})
	require.NoError(t, err)

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	fx.store.updateSection = func(ctx context.Context, section domain.SectionName, data json.RawMessage) (json.RawMessage, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return fx.store.Store.UpdateSectionSettings(ctx, section, data)
	}

	_, err = fx.sla.FetchPolicies(ctx)
	require.NoError(t, err)
	<-entered

	done := make(chan error, 1)
	go func() {
		_, err := fx.sla.SavePolicy(ctx, domain.PolicyForm{TicketPriorityID: "p2", FirstResponseHours: 1, NextResponseHours: 1, ResolutionHours: 2})
		done <- err
	}()

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("save did not finish")
	}
	fx.sla.Wait()

	stored, err := fx.store.Store.GetSectionSettings(ctx, domain.SectionSLA)
	require.NoError(t, err)
	var list domain.SLAPolicyList
	require.NoError(t, json.Unmarshal(stored, &list))
	assert.Len(t, list.Policies, 2)
}

func TestReconcilePriorities(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.addPriority(t, "p1", "Normal", 24)
	fx.addPriority(t, "p2", "High", 8)
	fx.addPriority(t, "p3", "Low", 99)
	for _, p := range []domain.SLAPolicy{
		{OrganizationID: testOrg, TicketPriorityID: "p1", ResolutionHours: 12},
		{OrganizationID: testOrg, TicketPriorityID: "p2", ResolutionHours: 8},
	} {
		_, err := fx.store.Store.CreateSLAPolicy(ctx, &p)
		require.NoError(t, err)
	}

	n, err := fx.sla.ReconcilePriorities(ctx)
	require.NoError(t, err)
	fx.sla.Wait()

	assert.Equal(t, 1, n)
	priorities, err := fx.sla.Priorities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, priorities[0].SLAHours)
	assert.Equal(t, 8, priorities[1].SLAHours)
	assert.Equal(t, 99, priorities[2].SLAHours, "priorities without a policy are left alone")
}

func TestReconcilePriorities_RecordsFailures(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.addPriority(t, "p1", "Normal", 24)
	_, err := fx.store.Store.CreateSLAPolicy(ctx, &domain.SLAPolicy{OrganizationID: testOrg, TicketPriorityID: "p1", ResolutionHours: 12})
	require.NoError(t, err)
	fx.store.updatePriority = func(context.Context, string, *domain.TicketPriority) (*domain.TicketPriority, error) {
		return nil, errors.New("locked")
	}

	_, err = fx.sla.ReconcilePriorities(ctx)
	fx.sla.Wait()

	assert.ErrorContains(t, err, "locked")
	var rerr *domain.ReconciliationError
	require.ErrorAs(t, fx.sla.LastReconciliationError(), &rerr)
	assert.Equal(t, "reconcile", rerr.Op)
}

func TestSavePolicy_PolicyMissingFromSettingsCopy(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.addPriority(t, "p1", "Low", 72)
	fx.addPriority(t, "p2", "High", 24)
	stored, err := fx.store.Store.CreateSLAPolicy(ctx, &domain.SLAPolicy{OrganizationID: testOrg, TicketPriorityID: "p1", FirstResponseHours: 4, NextResponseHours: 4, ResolutionHours: 72})
	require.NoError(t, err)
	_, err = fx.store.Store.UpdateSectionSettings(ctx, domain.SectionSLA, policyJSON(t, domain.SLAPolicyList{
		Policies: []domain.SLAPolicy{{ID: "x", OrganizationID: testOrg, TicketPriorityID: "p2", FirstResponseHours: 1, NextResponseHours: 1, ResolutionHours: 24}},
	}))
	require.NoError(t, err)

	form := domain.PolicyForm{TicketPriorityID: "p1", FirstResponseHours: 2, NextResponseHours: 4, ResolutionHours: 72}
	for attempt := range 2 {
		form.FirstResponseHours = attempt + 1
		saved, err := fx.sla.SavePolicy(ctx, form)
		require.NoError(t, err, "attempt %d", attempt)
		assert.Equal(t, stored.ID, saved.ID)
	}

	assert.Zero(t, fx.store.Calls("CreateSLAPolicy"))
	assert.Equal(t, 2, fx.store.Calls("UpdateSLAPolicy"))
	assert.Len(t, fx.sla.CachedPolicies(), 2)
}

func TestSavePolicy_StaleCachedID(t *testing.T) {
	tests := []struct {
		name       string
		storedID   bool
		wantCreate int
		wantUpdate int
	}{
		{"policy gone from the store", false, 1, 1},
		{"policy stored under another id", true, 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			ctx := context.Background()
			fx.addPriority(t, "p1", "Low", 8)
			var storedID string
			if tt.storedID {
				stored, err := fx.store.Store.CreateSLAPolicy(ctx, &domain.SLAPolicy{OrganizationID: testOrg, TicketPriorityID: "p1", ResolutionHours: 8})
				require.NoError(t, err)
				storedID = stored.ID
			}
			_, err := fx.store.Store.UpdateSectionSettings(ctx, domain.SectionSLA, policyJSON(t, domain.SLAPolicyList{
				Policies: []domain.SLAPolicy{{ID: "gone", OrganizationID: testOrg, TicketPriorityID: "p1", FirstResponseHours: 1, NextResponseHours: 1, ResolutionHours: 8}},
			}))
			require.NoError(t, err)

			saved, err := fx.sla.SavePolicy(ctx, domain.PolicyForm{TicketPriorityID: "p1", FirstResponseHours: 2, NextResponseHours: 2, ResolutionHours: 8})
			require.NoError(t, err)

			assert.NotEqual(t, "gone", saved.ID)
			if tt.storedID {
				assert.Equal(t, storedID, saved.ID)
			}
			assert.Equal(t, tt.wantCreate, fx.store.Calls("CreateSLAPolicy"))
			assert.Equal(t, tt.wantUpdate, fx.store.Calls("UpdateSLAPolicy"))
			assert.Equal(t, []domain.SLAPolicy{saved}, fx.sla.CachedPolicies())
		})
	}
}

func TestSavePolicy_MirrorFailureIsReported(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.addPriority(t, "p1", "Low", 72)
	fx.store.updatePriority = func(context.Context, string, *domain.TicketPriority) (*domain.TicketPriority, error) {
		return nil, errors.New("priority locked")
	}

	saved, err := fx.sla.SavePolicy(ctx, domain.PolicyForm{TicketPriorityID: "p1", FirstResponseHours: 1, NextResponseHours: 2, ResolutionHours: 8})

	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorContains(t, err, "priority locked")
	assert.Equal(t, 8, saved.ResolutionHours)
	assert.Equal(t, []domain.SLAPolicy{saved}, fx.sla.CachedPolicies(), "the policy itself is kept")
	assert.Equal(t, domain.SeverityError, fx.lastNotification(t).Severity)

	priorities, err := fx.store.Store.ListTicketPriorities(ctx, testOrg)
	require.NoError(t, err)
	assert.Equal(t, 72, priorities[0].SLAHours)
}

func TestSavePolicy_ConcurrentFetchKeepsSavedPolicy(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.addPriority(t, "p1", "Low", 72)
	fx.addPriority(t, "p2", "High", 24)
	_, err := fx.store.Store.UpdateSectionSettings(ctx, domain.SectionSLA, policyJSON(t, domain.SLAPolicyList{
		Policies: []domain.SLAPolicy{{ID: "x", OrganizationID: testOrg, TicketPriorityID: "p2", FirstResponseHours: 1, NextResponseHours: 1, ResolutionHours: 24}},
	}))
	require.NoError(t, err)

	fetched := make(chan []domain.SLAPolicy, 1)
	fx.store.updatePriority = func(ctx context.Context, id string, p *domain.TicketPriority) (*domain.TicketPriority, error) {
		if fx.store.Calls("UpdateTicketPriority") == 1 {
			go func() {
				policies, _ := fx.sla.FetchPolicies(context.Background())
				fetched <- policies
			}()
			time.Sleep(50 * time.Millisecond)
			assert.Empty(t, fetched, "fetch finished in the middle of a save")
		}
		return fx.store.Store.UpdateTicketPriority(ctx, id, p)
	}

	form := domain.PolicyForm{TicketPriorityID: "p1", FirstResponseHours: 1, NextResponseHours: 2, ResolutionHours: 8}
	_, err = fx.sla.SavePolicy(ctx, form)
	require.NoError(t, err)

	select {
	case policies := <-fetched:
		assert.Len(t, policies, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not finish")
	}
	fx.sla.Wait()

	stored, err := fx.store.Store.GetSectionSettings(ctx, domain.SectionSLA)
	require.NoError(t, err)
	var list domain.SLAPolicyList
	require.NoError(t, json.Unmarshal(stored, &list))
	assert.Len(t, list.Policies, 2)

	form.FirstResponseHours = 2
	_, err = fx.sla.SavePolicy(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.store.Calls("CreateSLAPolicy"))
	assert.Equal(t, 1, fx.store.Calls("UpdateSLAPolicy"))
}
