package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/bcnelson/helpdesk-settings/internal/notify"
	"github.com/bcnelson/helpdesk-settings/internal/storage"
	"github.com/bcnelson/helpdesk-settings/internal/telemetry"
	"github.com/bcnelson/helpdesk-settings/internal/validation"
	"github.com/go-viper/mapstructure/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// errNoPolicies is recorded when neither store holds a policy.
var errNoPolicies = errors.New("no SLA policies in the settings store or the policy store")

// SLAService keeps one canonical list of SLA policies although the policies
// live in two places: a denormalized copy in the settings store (section
// "sla") and the dedicated policy store. It also mirrors each policy's
// resolution hours into the ticket priority it belongs to.
//
// The settings-store copy wins whenever it holds policies. The dedicated
// store is only read when the copy is empty, and its contents are then
// written back into the copy in the background.
type SLAService struct {
	organizationID string
	store          storage.Storage
	validator      *validation.Engine
	notifier       notify.Notifier
	metrics        *telemetry.Metrics
	logger         *zap.Logger
	syncTimeout    time.Duration

	mu               sync.Mutex
	canonical        []domain.SLAPolicy
	fetched          bool
	priorities       []domain.TicketPriority
	prioritiesLoaded bool
	lastErr          error

	// reconcileMu is held by FetchPolicies, SavePolicy and ReconcilePriorities
	// from the first read of the canonical list to the last write, so a fetch
	// never replaces the list between a save's merge and its sync-back.
	reconcileMu sync.Mutex

	// syncMu serializes sync-backs. Each one writes the canonical list as it
	// is when the write starts, so a late sync-back never restores an older list.
	syncMu sync.Mutex
	wg     sync.WaitGroup
}

// NewSLAService creates an SLAService for one organization.
func NewSLAService(
	organizationID string,
	store storage.Storage,
	validator *validation.Engine,
	notifier notify.Notifier,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
	syncTimeout time.Duration,
) (*SLAService, error) {
	if organizationID == "" {
		return nil, domain.ErrMissingOrganization
	}
	if syncTimeout <= 0 {
		syncTimeout = 10 * time.Second
	}
	return &SLAService{
		organizationID: organizationID,
		store:          store,
		validator:      validator,
		notifier:       notifier,
		metrics:        metrics,
		logger:         logger.Named("sla").With(zap.String("organization_id", organizationID)),
		syncTimeout:    syncTimeout,
	}, nil
}

// OrganizationID returns the organization the service works for.
func (s *SLAService) OrganizationID() string { return s.organizationID }

// FetchPolicies rebuilds the canonical policy list and returns a copy of it.
// It never fails: when both sources are empty or unavailable it returns an
// empty list and records a reconciliation error.
func (s *SLAService) FetchPolicies(ctx context.Context) ([]domain.SLAPolicy, error) {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()
	return s.fetchLocked(ctx)
}

func (s *SLAService) fetchLocked(ctx context.Context) ([]domain.SLAPolicy, error) {
	ctx, span := tracer.Start(ctx, "sla.fetch")
	defer span.End()

	var sourceErrs []error

	raw, err := s.store.GetSectionSettings(ctx, domain.SectionSLA)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		s.logger.Warn("reading SLA policies from settings failed", zap.Error(err))
		sourceErrs = append(sourceErrs, fmt.Errorf("settings store: %w", err))
	default:
		cached, err := s.normalize(raw)
		if err != nil {
			s.logger.Warn("settings copy of SLA policies is unreadable", zap.Error(err))
		}
		if len(cached) > 0 {
			span.SetAttributes(attribute.String("source", "settings"), attribute.Int("policies", len(cached)))
			s.setCanonical(cached)
			return slices.Clone(cached), nil
		}
	}

	listed, err := s.store.ListSLAPolicies(ctx, s.organizationID)
	if err != nil {
		s.logger.Warn("listing SLA policies failed", zap.Error(err))
		sourceErrs = append(sourceErrs, fmt.Errorf("policy store: %w", err))
	}
	policies := s.filter(listed)
	if len(policies) > 0 {
		span.SetAttributes(attribute.String("source", "policy-store"), attribute.Int("policies", len(policies)))
		s.setCanonical(policies)
		s.syncBackAsync(ctx)
		return slices.Clone(policies), nil
	}

	cause := errNoPolicies
	if len(sourceErrs) > 0 {
		cause = errors.Join(sourceErrs...)
	}
	s.recordReconciliationError("fetch", cause)
	s.setCanonical(nil)
	return []domain.SLAPolicy{}, nil
}

// SavePolicy creates or updates the policy of one ticket priority and keeps
// the priority's slaHours and the settings copy consistent with it.
func (s *SLAService) SavePolicy(ctx context.Context, form domain.PolicyForm) (domain.SLAPolicy, error) {
	ctx, span := tracer.Start(ctx, "sla.save", trace.WithAttributes(attribute.String("ticket_priority_id", form.TicketPriorityID)))
	defer span.End()

	errs, err := s.validator.Validate(domain.SectionSLA, form)
	if err != nil {
		return domain.SLAPolicy{}, err
	}
	if errs.HasErrors() {
		s.notifier.Show(domain.SeverityError, "SLA policy has errors, please review the highlighted fields")
		return domain.SLAPolicy{}, errs
	}

	priority, err := s.resolvePriority(ctx, form.TicketPriorityID)
	if err != nil {
		s.notifier.Show(domain.SeverityError, fmt.Sprintf("Failed to save SLA policy: %v", err))
		return domain.SLAPolicy{}, err
	}

	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	if err := s.ensureFetchedLocked(ctx); err != nil {
		return domain.SLAPolicy{}, err
	}

	submitted := form.Policy("", s.organizationID)
	result, err := s.persistPolicy(ctx, &submitted)
	if err != nil {
		s.logger.Warn("saving SLA policy failed", zap.String("ticket_priority_id", form.TicketPriorityID), zap.Error(err))
		s.notifier.Show(domain.SeverityError, fmt.Sprintf("Failed to save SLA policy: %v", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.SLAPolicy{}, &domain.PersistenceError{Op: "save", Section: domain.SectionSLA, Err: err}
	}

	saved := submitted
	if result != nil {
		saved = *result
	}
	if saved.ID == "" {
		saved.ID = s.lookupStoredID(ctx, saved.Key())
	}
	s.merge(saved)

	var mirrorErr error
	if priority.SLAHours != saved.ResolutionHours {
		mirrorErr = s.mirrorHours(ctx, priority, saved.ResolutionHours)
	}

	_ = s.syncBack(ctx)

	if mirrorErr != nil {
		s.logger.Warn("updating priority SLA hours failed", zap.String("ticket_priority_id", priority.ID), zap.Error(mirrorErr))
		s.notifier.Show(domain.SeverityError, fmt.Sprintf("SLA policy for %s saved, but its priority could not be updated: %v", priority.Name, mirrorErr))
		span.RecordError(mirrorErr)
		span.SetStatus(codes.Error, mirrorErr.Error())
		return saved, &domain.PersistenceError{Op: "mirror hours", Section: domain.SectionSLA, Err: mirrorErr}
	}

	s.notifier.Show(domain.SeveritySuccess, fmt.Sprintf("SLA policy for %s saved", priority.Name))
	return saved, nil
}

// ReconcilePriorities updates every priority whose slaHours differs from the
// resolution hours of its policy and returns how many were updated.
func (s *SLAService) ReconcilePriorities(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "sla.reconcile_priorities")
	defer span.End()

	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	if err := s.ensureFetchedLocked(ctx); err != nil {
		return 0, err
	}
	priorities, err := s.refreshPriorities(ctx)
	if err != nil {
		s.recordReconciliationError("reconcile", err)
		return 0, err
	}

	byID := make(map[string]domain.TicketPriority, len(priorities))
	for _, p := range priorities {
		byID[p.ID] = p
	}

	var errs []error
	updated := 0
	for _, policy := range s.CachedPolicies() {
		p, ok := byID[policy.TicketPriorityID]
		if !ok || p.SLAHours == policy.ResolutionHours {
			continue
		}
		next := p
		next.SLAHours = policy.ResolutionHours
		if _, err := s.store.UpdateTicketPriority(ctx, p.ID, &next); err != nil {
			errs = append(errs, fmt.Errorf("priority %s: %w", p.ID, err))
			continue
		}
		updated++
	}
	if updated > 0 {
		if _, err := s.refreshPriorities(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.recordReconciliationError("reconcile", err)
		return updated, err
	}
	span.SetAttributes(attribute.Int("updated", updated))
	return updated, nil
}

// Priorities returns the cached ticket priorities, loading them on first use.
func (s *SLAService) Priorities(ctx context.Context) ([]domain.TicketPriority, error) {
	s.mu.Lock()
	if s.prioritiesLoaded {
		out := slices.Clone(s.priorities)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()
	return s.refreshPriorities(ctx)
}

// CachedPolicies returns the canonical list as last fetched or saved.
func (s *SLAService) CachedPolicies() []domain.SLAPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.canonical)
}

// LastReconciliationError returns the most recent background failure.
func (s *SLAService) LastReconciliationError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Wait blocks until background sync-backs have finished.
func (s *SLAService) Wait() {
	s.wg.Wait()
}

// ensureFetchedLocked loads the canonical list once. reconcileMu must be held.
func (s *SLAService) ensureFetchedLocked(ctx context.Context) error {
	s.mu.Lock()
	fetched := s.fetched
	s.mu.Unlock()
	if fetched {
		return nil
	}
	_, err := s.fetchLocked(ctx)
	return err
}

func (s *SLAService) setCanonical(policies []domain.SLAPolicy) {
	s.mu.Lock()
	s.canonical = slices.Clone(policies)
	s.fetched = true
	s.mu.Unlock()
}

func (s *SLAService) lookup(key domain.PolicyKey) (domain.SLAPolicy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.canonical {
		if p.Key() == key {
			return p, true
		}
	}
	return domain.SLAPolicy{}, false
}

// merge replaces the canonical entry with the same key or appends policy.
func (s *SLAService) merge(policy domain.SLAPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.canonical {
		if p.Key() == policy.Key() {
			s.canonical[i] = policy
			return
		}
	}
	s.canonical = append(s.canonical, policy)
}

// persistPolicy creates or updates the stored policy of submitted's key.
// The canonical list can lag behind the policy store: a key it lacks, or holds
// without an id, is looked up in the store first, and an update of an id the
// store no longer has is retried once against the id found there.
func (s *SLAService) persistPolicy(ctx context.Context, submitted *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	key := submitted.Key()
	var id string
	if existing, ok := s.lookup(key); ok {
		id = existing.ID
	}
	if id == "" {
		id = s.lookupStoredID(ctx, key)
	}
	if id == "" {
		return s.store.CreateSLAPolicy(ctx, submitted)
	}

	submitted.ID = id
	result, err := s.store.UpdateSLAPolicy(ctx, id, submitted)
	if !errors.Is(err, domain.ErrNotFound) {
		return result, err
	}

	s.logger.Info("cached SLA policy id is gone from the policy store", zap.String("id", id))
	submitted.ID = s.lookupStoredID(ctx, key)
	if submitted.ID == "" || submitted.ID == id {
		submitted.ID = ""
		return s.store.CreateSLAPolicy(ctx, submitted)
	}
	return s.store.UpdateSLAPolicy(ctx, submitted.ID, submitted)
}

// lookupStoredID finds the id the policy store holds for key.
func (s *SLAService) lookupStoredID(ctx context.Context, key domain.PolicyKey) string {
	listed, err := s.store.ListSLAPolicies(ctx, s.organizationID)
	if err != nil {
		s.logger.Warn("refreshing SLA policies failed", zap.Error(err))
		return ""
	}
	for _, p := range listed {
		if p.Key() == key {
			return p.ID
		}
	}
	return ""
}

func (s *SLAService) resolvePriority(ctx context.Context, id string) (domain.TicketPriority, error) {
	priorities, err := s.Priorities(ctx)
	if err != nil {
		return domain.TicketPriority{}, err
	}
	if p, ok := findPriority(priorities, id); ok {
		return p, nil
	}
	priorities, err = s.refreshPriorities(ctx)
	if err != nil {
		return domain.TicketPriority{}, err
	}
	if p, ok := findPriority(priorities, id); ok {
		return p, nil
	}
	return domain.TicketPriority{}, fmt.Errorf("%w: %s", domain.ErrPriorityNotFound, id)
}

func findPriority(priorities []domain.TicketPriority, id string) (domain.TicketPriority, bool) {
	for _, p := range priorities {
		if p.ID == id {
			return p, true
		}
	}
	return domain.TicketPriority{}, false
}

func (s *SLAService) refreshPriorities(ctx context.Context) ([]domain.TicketPriority, error) {
	priorities, err := s.store.ListTicketPriorities(ctx, s.organizationID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list priorities", Err: err}
	}
	s.mu.Lock()
	s.priorities = slices.Clone(priorities)
	s.prioritiesLoaded = true
	s.mu.Unlock()
	return priorities, nil
}

// mirrorHours copies a policy's resolution hours into its priority.
func (s *SLAService) mirrorHours(ctx context.Context, priority domain.TicketPriority, hours int) error {
	next := priority
	next.SLAHours = hours
	if _, err := s.store.UpdateTicketPriority(ctx, priority.ID, &next); err != nil {
		return err
	}
	if _, err := s.refreshPriorities(ctx); err != nil {
		s.logger.Warn("refreshing ticket priorities failed", zap.Error(err))
	}
	return nil
}

// syncBack writes the canonical list into the settings store. Failures are
// recorded, never surfaced to the admin.
func (s *SLAService) syncBack(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	raw, err := json.Marshal(domain.SLAPolicyList{Policies: s.CachedPolicies()})
	if err != nil {
		return err
	}
	if _, err := s.store.UpdateSectionSettings(ctx, domain.SectionSLA, raw); err != nil {
		s.metrics.SyncBack("failed")
		s.recordReconciliationError("sync-back", err)
		return err
	}
	s.metrics.SyncBack("success")
	return nil
}

// syncBackAsync runs syncBack in the background. The write outlives the
// request that triggered it but not the sync timeout.
func (s *SLAService) syncBackAsync(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.syncTimeout)
		defer cancel()
		_ = s.syncBack(ctx)
	}()
}

func (s *SLAService) recordReconciliationError(op string, err error) {
	rerr := &domain.ReconciliationError{Op: op, Err: err}
	s.mu.Lock()
	s.lastErr = rerr
	s.mu.Unlock()
	s.metrics.ReconciliationError(op)
	s.logger.Warn("SLA reconciliation failed", zap.String("op", op), zap.Error(err))
}

// normalize decodes the settings copy of the policies. The copy has been
// written in several shapes over time:
//
//	{"policies": [...]}
//	[...]
//	{"data": {...}} or {"sla": {...}} wrapping either of the above
//	{"slaPolicies": [...]}
func (s *SLAService) normalize(raw json.RawMessage) ([]domain.SLAPolicy, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	var policies []domain.SLAPolicy
	for i, item := range extractPolicyList(doc) {
		var p domain.SLAPolicy
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			WeaklyTypedInput: true,
			Result:           &p,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(item); err != nil {
			s.logger.Warn("skipping unreadable SLA policy", zap.Int("index", i), zap.Error(err))
			continue
		}
		policies = append(policies, p)
	}
	return s.filter(policies), nil
}

// filter keeps the policies of the configured organization, first one per
// priority. Entries without an organization belong to the configured one.
func (s *SLAService) filter(policies []domain.SLAPolicy) []domain.SLAPolicy {
	seen := make(map[string]bool, len(policies))
	out := make([]domain.SLAPolicy, 0, len(policies))
	for _, p := range policies {
		if p.OrganizationID == "" {
			p.OrganizationID = s.organizationID
		}
		if p.OrganizationID != s.organizationID || p.TicketPriorityID == "" {
			continue
		}
		if seen[p.TicketPriorityID] {
			s.logger.Debug("dropping duplicate SLA policy", zap.String("ticket_priority_id", p.TicketPriorityID), zap.String("id", p.ID))
			continue
		}
		seen[p.TicketPriorityID] = true
		out = append(out, p)
	}
	return out
}

func extractPolicyList(doc any) []any {
	switch v := doc.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range []string{"policies", "slaPolicies"} {
			if list, ok := v[key].([]any); ok {
				return list
			}
		}
		for _, key := range []string{"data", "sla"} {
			if nested, ok := v[key]; ok {
				if list := extractPolicyList(nested); list != nil {
					return list
				}
			}
		}
	}
	return nil
}
