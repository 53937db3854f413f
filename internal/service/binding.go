package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/bcnelson/helpdesk-settings/internal/notify"
	"github.com/bcnelson/helpdesk-settings/internal/section"
	"github.com/bcnelson/helpdesk-settings/internal/storage"
	"github.com/bcnelson/helpdesk-settings/internal/telemetry"
	"github.com/bcnelson/helpdesk-settings/internal/validation"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/bcnelson/helpdesk-settings/internal/service")

// SectionHandle is the type-independent API of one settings section.
type SectionHandle interface {
	Name() domain.SectionName
	Load(ctx context.Context) error
	UpdateFields(req domain.FieldUpdateRequest) error
	Save(ctx context.Context) error
	Toggle(ctx context.Context, key string, value bool) error
	Revert()
	Dirty() bool
	Loading() bool
	Snapshot() domain.SectionSnapshot
}

// AfterSaveHook runs after a section was persisted successfully.
type AfterSaveHook func(ctx context.Context)

// binding connects a typed section to its persistence, validation and
// notification collaborators.
type binding[T section.Value[T]] struct {
	section   *section.Section[T]
	defaults  T
	store     storage.SettingsStore
	validator *validation.Engine
	notifier  notify.Notifier
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	hooks     []AfterSaveHook
}

func newBinding[T section.Value[T]](
	name domain.SectionName,
	defaults T,
	store storage.SettingsStore,
	validator *validation.Engine,
	notifier notify.Notifier,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *binding[T] {
	return &binding[T]{
		section:   section.New(name, defaults),
		defaults:  defaults.Clone(),
		store:     store,
		validator: validator,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger.With(zap.String("section", string(name))),
	}
}

func (b *binding[T]) Name() domain.SectionName { return b.section.Name() }
func (b *binding[T]) Dirty() bool              { return b.section.Dirty() }
func (b *binding[T]) Loading() bool            { return b.section.Loading() }
func (b *binding[T]) Revert()                  { b.section.Revert() }

func (b *binding[T]) onSaved(hook AfterSaveHook) {
	b.hooks = append(b.hooks, hook)
}

// Snapshot includes the field errors of the last validation.
func (b *binding[T]) Snapshot() domain.SectionSnapshot {
	snap := b.section.Snapshot()
	if errs := b.validator.Errors(b.Name()); len(errs) > 0 {
		snap.Errors = errs
	}
	return snap
}

// Load fetches the section. A section that was never saved loads its defaults.
func (b *binding[T]) Load(ctx context.Context) error {
	err := b.section.Load(ctx, func(ctx context.Context) (T, error) {
		raw, err := b.store.GetSectionSettings(ctx, b.Name())
		if errors.Is(err, domain.ErrNotFound) {
			return b.defaults.Clone(), nil
		}
		if err != nil {
			var zero T
			return zero, err
		}
		value := b.defaults.Clone()
		if err := json.Unmarshal(raw, &value); err != nil {
			var zero T
			return zero, fmt.Errorf("decoding stored settings: %w", err)
		}
		return value, nil
	})
	if errors.Is(err, section.ErrSuperseded) {
		b.logger.Debug("discarded superseded load")
		return nil
	}
	return err
}

// UpdateFields applies every edit or none of them.
func (b *binding[T]) UpdateFields(req domain.FieldUpdateRequest) error {
	if len(req) == 0 {
		return nil
	}
	return b.section.UpdateFields(req)
}

// persist writes value and returns what the store echoed back, or value
// itself when the store returned no usable echo.
func (b *binding[T]) persist(ctx context.Context, value T) (T, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return value, err
	}
	echo, err := b.store.UpdateSectionSettings(ctx, b.Name(), raw)
	if err != nil {
		return value, err
	}
	if len(echo) == 0 || string(echo) == "null" {
		return value.Clone(), nil
	}
	persisted := value.Clone()
	if err := json.Unmarshal(echo, &persisted); err != nil {
		b.logger.Warn("ignoring undecodable save response", zap.Error(err))
		return value.Clone(), nil
	}
	return persisted, nil
}

func (b *binding[T]) runHooks(ctx context.Context) {
	for _, hook := range b.hooks {
		hook(ctx)
	}
}
