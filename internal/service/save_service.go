package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Save validates and persists the current state of the section.
//
// Validation runs before anything else: when it fails the field errors are
// returned as a validation.FieldErrors and nothing is persisted. A failed
// persist leaves current and baseline as they were and returns a
// *domain.PersistenceError. Only a successful persist moves the baseline.
func (b *binding[T]) Save(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "section.save", trace.WithAttributes(attribute.String("section", string(b.Name()))))
	defer span.End()

	errs, err := b.validator.Validate(b.Name(), b.section.Current())
	if err != nil {
		return err
	}
	if errs.HasErrors() {
		b.metrics.Save(b.Name(), "invalid")
		b.notifier.Show(domain.SeverityError, fmt.Sprintf("%s settings have errors, please review the highlighted fields", title(b.Name())))
		span.SetStatus(codes.Error, "validation failed")
		return errs
	}

	payload, err := b.section.BeginSave()
	if err != nil {
		b.metrics.Save(b.Name(), "busy")
		return err
	}
	defer b.section.EndSave()

	// Edits made between validation and BeginSave are validated too.
	if errs, err := b.validator.Validate(b.Name(), payload); err != nil {
		return err
	} else if errs.HasErrors() {
		b.metrics.Save(b.Name(), "invalid")
		b.notifier.Show(domain.SeverityError, fmt.Sprintf("%s settings have errors, please review the highlighted fields", title(b.Name())))
		return errs
	}

	start := time.Now()
	persisted, err := b.persist(ctx, payload)
	b.metrics.PersistDuration(b.Name(), time.Since(start).Seconds())
	if err != nil {
		b.metrics.Save(b.Name(), "failed")
		b.logger.Warn("saving section failed", zap.Error(err))
		b.notifier.Show(domain.SeverityError, fmt.Sprintf("Failed to save %s settings: %v", b.Name(), err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &domain.PersistenceError{Op: "save", Section: b.Name(), Err: err}
	}

	b.section.Commit(persisted)
	b.metrics.Save(b.Name(), "success")
	b.logger.Info("section saved")
	b.notifier.Show(domain.SeveritySuccess, fmt.Sprintf("%s settings saved", title(b.Name())))
	b.runHooks(ctx)
	return nil
}

// Toggle flips a boolean setting and persists it immediately, without
// waiting for an explicit save. Only the toggled key is persisted: the
// payload is the baseline with that one key changed, so unsaved and
// unvalidated edits of other fields never reach the store this way.
//
// The payload must pass the section's rules, so turning on a feature whose
// required fields are still empty is rejected with the field errors. On any
// failure the key is put back to its prior value and an error is notified,
// leaving the dirty state exactly as it was before the toggle.
func (b *binding[T]) Toggle(ctx context.Context, key string, value bool) error {
	ctx, span := tracer.Start(ctx, "section.toggle", trace.WithAttributes(
		attribute.String("section", string(b.Name())),
		attribute.String("key", key),
	))
	defer span.End()

	current, err := b.section.Field(key)
	if err != nil {
		return err
	}
	if _, ok := current.(bool); !ok {
		return fmt.Errorf("%w: %s is not a toggle", domain.ErrInvalidInput, key)
	}

	prior, payload, err := b.section.BeginToggle(key, value)
	if err != nil {
		b.metrics.Toggle(b.Name(), "busy")
		return err
	}
	defer b.section.EndSave()

	if errs, err := b.validator.Check(b.Name(), payload); err != nil || errs.HasErrors() {
		if rerr := b.section.RestoreField(key, prior); rerr != nil {
			b.logger.Error("reverting toggle failed", zap.String("key", key), zap.Error(rerr))
		}
		if err != nil {
			return err
		}
		b.metrics.Toggle(b.Name(), "invalid")
		b.notifier.Show(domain.SeverityError, fmt.Sprintf("Cannot turn %s %s: %s settings have errors", key, onOff(value), title(b.Name())))
		return errs
	}

	persisted, err := b.persist(ctx, payload)
	if err != nil {
		if rerr := b.section.RestoreField(key, prior); rerr != nil {
			b.logger.Error("reverting toggle failed", zap.String("key", key), zap.Error(rerr))
		}
		b.metrics.Toggle(b.Name(), "failed")
		b.logger.Warn("toggle failed", zap.String("key", key), zap.Error(err))
		b.notifier.Show(domain.SeverityError, fmt.Sprintf("Failed to update %s: %v", key, err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &domain.PersistenceError{Op: "toggle", Section: b.Name(), Err: err}
	}

	if err := b.section.CommitField(persisted, key); err != nil {
		return err
	}
	b.metrics.Toggle(b.Name(), "success")
	b.notifier.Show(domain.SeveritySuccess, fmt.Sprintf("%s updated", key))
	b.runHooks(ctx)
	return nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func title(name domain.SectionName) string {
	s := string(name)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
