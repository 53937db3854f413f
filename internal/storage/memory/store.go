package memory

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"sync"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/bcnelson/helpdesk-settings/internal/storage"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of the storage interface for testing.
type Store struct {
	mu sync.RWMutex

	settings   map[domain.SectionName]json.RawMessage
	policies   map[string]*policyEntry   // key: id
	priorities map[string]*priorityEntry // key: id
	seq        int
}

type policyEntry struct {
	policy domain.SLAPolicy
	seq    int
}

type priorityEntry struct {
	priority domain.TicketPriority
	seq      int
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		settings:   make(map[domain.SectionName]json.RawMessage),
		policies:   make(map[string]*policyEntry),
		priorities: make(map[string]*priorityEntry),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return &Tx{store: s}, nil
}

// Tx is a no-op transaction for in-memory store.
type Tx struct {
	store *Store
}

func (t *Tx) Commit() error   { return nil }
func (t *Tx) Rollback() error { return nil }
func (t *Tx) Close() error    { return nil }
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, domain.ErrInvalidInput
}

// Forward all Tx methods to the underlying store
func (t *Tx) GetSectionSettings(ctx context.Context, section domain.SectionName) (json.RawMessage, error) {
	return t.store.GetSectionSettings(ctx, section)
}
func (t *Tx) UpdateSectionSettings(ctx context.Context, section domain.SectionName, data json.RawMessage) (json.RawMessage, error) {
	return t.store.UpdateSectionSettings(ctx, section, data)
}
func (t *Tx) ListSLAPolicies(ctx context.Context, organizationID string) ([]domain.SLAPolicy, error) {
	return t.store.ListSLAPolicies(ctx, organizationID)
}
func (t *Tx) CreateSLAPolicy(ctx context.Context, policy *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	return t.store.CreateSLAPolicy(ctx, policy)
}
func (t *Tx) UpdateSLAPolicy(ctx context.Context, id string, policy *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	return t.store.UpdateSLAPolicy(ctx, id, policy)
}
func (t *Tx) ListTicketPriorities(ctx context.Context, organizationID string) ([]domain.TicketPriority, error) {
	return t.store.ListTicketPriorities(ctx, organizationID)
}
func (t *Tx) CreateTicketPriority(ctx context.Context, priority *domain.TicketPriority) error {
	return t.store.CreateTicketPriority(ctx, priority)
}
func (t *Tx) UpdateTicketPriority(ctx context.Context, id string, priority *domain.TicketPriority) (*domain.TicketPriority, error) {
	return t.store.UpdateTicketPriority(ctx, id, priority)
}

// ============================================
// Section settings
// ============================================

func (s *Store) GetSectionSettings(ctx context.Context, section domain.SectionName) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, exists := s.settings[section]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return slices.Clone(data), nil
}

func (s *Store) UpdateSectionSettings(ctx context.Context, section domain.SectionName, data json.RawMessage) (json.RawMessage, error) {
	if !json.Valid(data) {
		return nil, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[section] = slices.Clone(data)
	return slices.Clone(data), nil
}

// ============================================
// SLA policies
// ============================================

// ListSLAPolicies returns the policies of an organization in creation order.
func (s *Store) ListSLAPolicies(ctx context.Context, organizationID string) ([]domain.SLAPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]*policyEntry, 0)
	for _, e := range s.policies {
		if e.policy.OrganizationID == organizationID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	policies := make([]domain.SLAPolicy, 0, len(entries))
	for _, e := range entries {
		policies = append(policies, e.policy)
	}
	return policies, nil
}

func (s *Store) CreateSLAPolicy(ctx context.Context, policy *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.policies {
		if e.policy.Key() == policy.Key() {
			return nil, domain.ErrAlreadyExists
		}
	}
	created := *policy
	if created.ID == "" {
		created.ID = uuid.New().String()
	}
	if _, exists := s.policies[created.ID]; exists {
		return nil, domain.ErrAlreadyExists
	}
	s.seq++
	s.policies[created.ID] = &policyEntry{policy: created, seq: s.seq}
	return &created, nil
}

func (s *Store) UpdateSLAPolicy(ctx context.Context, id string, policy *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.policies[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	for otherID, other := range s.policies {
		if otherID != id && other.policy.Key() == policy.Key() {
			return nil, domain.ErrAlreadyExists
		}
	}
	updated := *policy
	updated.ID = id
	e.policy = updated
	return &updated, nil
}

// ============================================
// Ticket priorities
// ============================================

// ListTicketPriorities returns the priorities of an organization in creation order.
func (s *Store) ListTicketPriorities(ctx context.Context, organizationID string) ([]domain.TicketPriority, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]*priorityEntry, 0)
	for _, e := range s.priorities {
		if e.priority.OrganizationID == organizationID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	priorities := make([]domain.TicketPriority, 0, len(entries))
	for _, e := range entries {
		priorities = append(priorities, e.priority)
	}
	return priorities, nil
}

func (s *Store) CreateTicketPriority(ctx context.Context, priority *domain.TicketPriority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if priority.ID == "" {
		priority.ID = uuid.New().String()
	}
	if _, exists := s.priorities[priority.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.seq++
	s.priorities[priority.ID] = &priorityEntry{priority: *priority, seq: s.seq}
	return nil
}

func (s *Store) UpdateTicketPriority(ctx context.Context, id string, priority *domain.TicketPriority) (*domain.TicketPriority, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.priorities[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	updated := *priority
	updated.ID = id
	e.priority = updated
	return &updated, nil
}
