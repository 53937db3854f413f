package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/bcnelson/helpdesk-settings/internal/notify"
	"github.com/bcnelson/helpdesk-settings/internal/section"
	"github.com/bcnelson/helpdesk-settings/internal/storage"
	"github.com/bcnelson/helpdesk-settings/internal/telemetry"
	"github.com/bcnelson/helpdesk-settings/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SettingsService owns every settings section of an organization and the
// collaborators they share.
type SettingsService struct {
	sections map[domain.SectionName]SectionHandle
	tracker  *section.Store
	sla      *SLAService
	notifier notify.Notifier
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

// NewSettingsService creates the sections with their defaults. Nothing is
// fetched until LoadAll or a section's Load is called.
func NewSettingsService(
	store storage.Storage,
	validator *validation.Engine,
	notifier notify.Notifier,
	sla *SLAService,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *SettingsService {
	s := &SettingsService{
		sections: make(map[domain.SectionName]SectionHandle),
		tracker:  section.NewStore(),
		sla:      sla,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.Named("settings"),
	}

	general := newBinding(domain.SectionGeneral, domain.DefaultGeneralSettings(), store, validator, notifier, metrics, s.logger)
	email := newBinding(domain.SectionEmail, domain.DefaultEmailSettings(), store, validator, notifier, metrics, s.logger)
	ticket := newBinding(domain.SectionTicket, domain.DefaultTicketSettings(), store, validator, notifier, metrics, s.logger)
	integration := newBinding(domain.SectionIntegration, domain.DefaultIntegrationSettings(), store, validator, notifier, metrics, s.logger)
	advanced := newBinding(domain.SectionAdvanced, domain.DefaultAdvancedSettings(), store, validator, notifier, metrics, s.logger)

	ticket.onSaved(s.reconcileAfterTicketSave)

	register(s, general)
	register(s, email)
	register(s, ticket)
	register(s, integration)
	register(s, advanced)

	s.tracker.OnChange(s.recordDirty)
	return s
}

func register[T section.Value[T]](s *SettingsService, b *binding[T]) {
	s.sections[b.Name()] = b
	s.tracker.Register(b.section)
}

// Section returns the handle of a section.
func (s *SettingsService) Section(name domain.SectionName) (SectionHandle, error) {
	h, ok := s.sections[name]
	if !ok {
		return nil, domain.ErrUnknownSection
	}
	return h, nil
}

// Tracker returns the aggregate dirty state of all sections.
func (s *SettingsService) Tracker() *section.Store { return s.tracker }

// SLA returns the SLA policy service.
func (s *SettingsService) SLA() *SLAService { return s.sla }

// Statuses summarizes every section in display order.
func (s *SettingsService) Statuses() []domain.SectionStatus {
	return s.tracker.Statuses()
}

// LoadAll fetches every section concurrently. A section whose fetch fails
// keeps its defaults; the failures are returned joined, after every section
// has been attempted. One failing section does not cancel the others, so the
// group is created without a derived context.
func (s *SettingsService) LoadAll(ctx context.Context) error {
	errs := make([]error, len(domain.Sections))
	var g errgroup.Group
	for i, name := range domain.Sections {
		h := s.sections[name]
		g.Go(func() error {
			if err := h.Load(ctx); err != nil {
				s.logger.Warn("loading section failed, using defaults", zap.String("section", string(name)), zap.Error(err))
				errs[i] = err
				return err
			}
			return nil
		})
	}
	if g.Wait() == nil {
		return nil
	}

	s.notifier.Show(domain.SeverityWarning, "Some settings could not be loaded; defaults are shown")
	return errors.Join(errs...)
}

// SavePolicy saves one SLA policy.
func (s *SettingsService) SavePolicy(ctx context.Context, form domain.PolicyForm) (domain.SLAPolicy, error) {
	if s.sla == nil {
		return domain.SLAPolicy{}, fmt.Errorf("%w: SLA policies are not configured", domain.ErrInvalidInput)
	}
	return s.sla.SavePolicy(ctx, form)
}

// reconcileAfterTicketSave re-mirrors resolution hours into the ticket
// priorities. Failures are reconciliation errors and are not reported.
func (s *SettingsService) reconcileAfterTicketSave(ctx context.Context) {
	if s.sla == nil {
		return
	}
	if n, err := s.sla.ReconcilePriorities(ctx); err != nil {
		s.logger.Warn("priority reconciliation after ticket save failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("ticket priorities reconciled", zap.Int("updated", n))
	}
}

func (s *SettingsService) recordDirty() {
	for _, st := range s.tracker.Statuses() {
		s.metrics.Dirty(st.Name, st.Dirty)
	}
}
