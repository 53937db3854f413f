package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/bcnelson/helpdesk-settings/internal/notify"
	"github.com/bcnelson/helpdesk-settings/internal/storage/memory"
	"github.com/bcnelson/helpdesk-settings/internal/validation"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testOrg = "org-1"

// fakeStore wraps the memory store. A non-nil function field replaces the
// corresponding method; every call is counted either way.
type fakeStore struct {
	*memory.Store

	getSection     func(ctx context.Context, section domain.SectionName) (json.RawMessage, error)
	updateSection  func(ctx context.Context, section domain.SectionName, data json.RawMessage) (json.RawMessage, error)
	listPolicies   func(ctx context.Context, organizationID string) ([]domain.SLAPolicy, error)
	createPolicy   func(ctx context.Context, policy *domain.SLAPolicy) (*domain.SLAPolicy, error)
	updatePolicy   func(ctx context.Context, id string, policy *domain.SLAPolicy) (*domain.SLAPolicy, error)
	updatePriority func(ctx context.Context, id string, priority *domain.TicketPriority) (*domain.TicketPriority, error)

	mu    sync.Mutex
	calls map[string]int
	saved map[domain.SectionName][]json.RawMessage
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		Store: memory.New(),
		calls: make(map[string]int),
		saved: make(map[domain.SectionName][]json.RawMessage),
	}
}

func (f *fakeStore) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeStore) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStore) Saved(section domain.SectionName) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]json.RawMessage(nil), f.saved[section]...)
}

func (f *fakeStore) GetSectionSettings(ctx context.Context, section domain.SectionName) (json.RawMessage, error) {
	f.count("GetSectionSettings")
	if f.getSection != nil {
		return f.getSection(ctx, section)
	}
	return f.Store.GetSectionSettings(ctx, section)
}

func (f *fakeStore) UpdateSectionSettings(ctx context.Context, section domain.SectionName, data json.RawMessage) (json.RawMessage, error) {
	f.count("UpdateSectionSettings")
	f.mu.Lock()
	f.saved[section] = append(f.saved[section], data)
	f.mu.Unlock()
	if f.updateSection != nil {
		return f.updateSection(ctx, section, data)
	}
	return f.Store.UpdateSectionSettings(ctx, section, data)
}

func (f *fakeStore) ListSLAPolicies(ctx context.Context, organizationID string) ([]domain.SLAPolicy, error) {
	f.count("ListSLAPolicies")
	if f.listPolicies != nil {
		return f.listPolicies(ctx, organizationID)
	}
	return f.Store.ListSLAPolicies(ctx, organizationID)
}

func (f *fakeStore) CreateSLAPolicy(ctx context.Context, policy *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	f.count("CreateSLAPolicy")
	if f.createPolicy != nil {
		return f.createPolicy(ctx, policy)
	}
	return f.Store.CreateSLAPolicy(ctx, policy)
}

func (f *fakeStore) UpdateSLAPolicy(ctx context.Context, id string, policy *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	f.count("UpdateSLAPolicy")
	if f.updatePolicy != nil {
		return f.updatePolicy(ctx, id, policy)
	}
	return f.Store.UpdateSLAPolicy(ctx, id, policy)
}

func (f *fakeStore) UpdateTicketPriority(ctx context.Context, id string, priority *domain.TicketPriority) (*domain.TicketPriority, error) {
	f.count("UpdateTicketPriority")
	if f.updatePriority != nil {
		return f.updatePriority(ctx, id, priority)
	}
	return f.Store.UpdateTicketPriority(ctx, id, priority)
}

type fixture struct {
	store    *fakeStore
	recorder *notify.Recorder
	sla      *SLAService
	settings *SettingsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	recorder := notify.NewRecorder(32)
	logger := zaptest.NewLogger(t)
	validator := validation.NewDefaultEngine()

	sla, err := NewSLAService(testOrg, store, validator, recorder, nil, logger, time.Second)
	require.NoError(t, err)

	return &fixture{
		store:    store,
		recorder: recorder,
		sla:      sla,
		settings: NewSettingsService(store, validator, recorder, sla, nil, logger),
	}
}

func (fx *fixture) section(t *testing.T, name domain.SectionName) SectionHandle {
	t.Helper()
	h, err := fx.settings.Section(name)
	require.NoError(t, err)
	return h
}

func (fx *fixture) lastNotification(t *testing.T) domain.NotificationEvent {
	t.Helper()
	ev, ok := fx.recorder.Last()
	require.True(t, ok, "expected a notification")
	return ev
}

func (fx *fixture) addPriority(t *testing.T, id, name string, slaHours int) {
	t.Helper()
	require.NoError(t, fx.store.CreateTicketPriority(context.Background(), &domain.TicketPriority{
		ID: id, Name: name, SLAHours: slaHours, OrganizationID: testOrg,
	}))
}
