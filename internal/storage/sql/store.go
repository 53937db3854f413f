package sql

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/bcnelson/helpdesk-settings/internal/storage"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL (lib/pq and pgx)
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store. Supported drivers are sqlite3, postgres and pgx.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Run migrations
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, driver: s.driver}, nil
}

// Tx wraps a database transaction.
type Tx struct {
	tx     *sqlx.Tx
	driver string
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Close is a no-op for transactions (they should be committed or rolled back).
func (t *Tx) Close() error {
	return nil
}

// BeginTx is not supported within a transaction.
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

// helper to get the correct database interface
type dbInterface interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ============================================
// Section settings
// ============================================

func getSectionSettings(ctx context.Context, db dbInterface, section domain.SectionName) (json.RawMessage, error) {
	var data string
	err := db.GetContext(ctx, &data, `SELECT data FROM section_settings WHERE section = $1`, string(section))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (s *Store) GetSectionSettings(ctx context.Context, section domain.SectionName) (json.RawMessage, error) {
	return getSectionSettings(ctx, s.db, section)
}

func (t *Tx) GetSectionSettings(ctx context.Context, section domain.SectionName) (json.RawMessage, error) {
	return getSectionSettings(ctx, t.tx, section)
}

func updateSectionSettings(ctx context.Context, db dbInterface, section domain.SectionName, data json.RawMessage) (json.RawMessage, error) {
	if !json.Valid(data) {
		return nil, domain.ErrInvalidInput
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO section_settings (section, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (section) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(section), string(data), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return getSectionSettings(ctx, db, section)
}

func (s *Store) UpdateSectionSettings(ctx context.Context, section domain.SectionName, data json.RawMessage) (json.RawMessage, error) {
	return updateSectionSettings(ctx, s.db, section, data)
}

func (t *Tx) UpdateSectionSettings(ctx context.Context, section domain.SectionName, data json.RawMessage) (json.RawMessage, error) {
	return updateSectionSettings(ctx, t.tx, section, data)
}

// ============================================
// SLA policies
// ============================================

const policyColumns = `id, organization_id, ticket_priority_id, first_response_hours,
	next_response_hours, resolution_hours, business_hours_only`

func listSLAPolicies(ctx context.Context, db dbInterface, organizationID string) ([]domain.SLAPolicy, error) {
	policies := make([]domain.SLAPolicy, 0)
	err := db.SelectContext(ctx, &policies,
		`SELECT `+policyColumns+` FROM sla_policies WHERE organization_id = $1 ORDER BY created_at, id`,
		organizationID)
	if err != nil {
		return nil, err
	}
	return policies, nil
}

func (s *Store) ListSLAPolicies(ctx context.Context, organizationID string) ([]domain.SLAPolicy, error) {
	return listSLAPolicies(ctx, s.db, organizationID)
}

func (t *Tx) ListSLAPolicies(ctx context.Context, organizationID string) ([]domain.SLAPolicy, error) {
	return listSLAPolicies(ctx, t.tx, organizationID)
}

func getSLAPolicy(ctx context.Context, db dbInterface, id string) (*domain.SLAPolicy, error) {
	var policy domain.SLAPolicy
	err := db.GetContext(ctx, &policy, `SELECT `+policyColumns+` FROM sla_policies WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func createSLAPolicy(ctx context.Context, db dbInterface, policy *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	created := *policy
	if created.ID == "" {
		created.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx,
		`INSERT INTO sla_policies (`+policyColumns+`, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		created.ID, created.OrganizationID, created.TicketPriorityID, created.FirstResponseHours,
		created.NextResponseHours, created.ResolutionHours, created.BusinessHoursOnly, now, now)
	if err != nil {
		return nil, wrapUniqueError(err)
	}
	return getSLAPolicy(ctx, db, created.ID)
}

func (s *Store) CreateSLAPolicy(ctx context.Context, policy *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	return createSLAPolicy(ctx, s.db, policy)
}

func (t *Tx) CreateSLAPolicy(ctx context.Context, policy *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	return createSLAPolicy(ctx, t.tx, policy)
}

func updateSLAPolicy(ctx context.Context, db dbInterface, id string, policy *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE sla_policies SET organization_id = $1, ticket_priority_id = $2, first_response_hours = $3,
		 next_response_hours = $4, resolution_hours = $5, business_hours_only = $6, updated_at = $7
		 WHERE id = $8`,
		policy.OrganizationID, policy.TicketPriorityID, policy.FirstResponseHours,
		policy.NextResponseHours, policy.ResolutionHours, policy.BusinessHoursOnly, time.Now().UTC(), id)
	if err != nil {
		return nil, wrapUniqueError(err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, domain.ErrNotFound
	}
	return getSLAPolicy(ctx, db, id)
}

func (s *Store) UpdateSLAPolicy(ctx context.Context, id string, policy *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	return updateSLAPolicy(ctx, s.db, id, policy)
}

func (t *Tx) UpdateSLAPolicy(ctx context.Context, id string, policy *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	return updateSLAPolicy(ctx, t.tx, id, policy)
}

// ============================================
// Ticket priorities
// ============================================

const priorityColumns = `id, name, color, sla_hours, organization_id`

func listTicketPriorities(ctx context.Context, db dbInterface, organizationID string) ([]domain.TicketPriority, error) {
	priorities := make([]domain.TicketPriority, 0)
	err := db.SelectContext(ctx, &priorities,
		`SELECT `+priorityColumns+` FROM ticket_priorities WHERE organization_id = $1 ORDER BY created_at, id`,
		organizationID)
	if err != nil {
		return nil, err
	}
	return priorities, nil
}

func (s *Store) ListTicketPriorities(ctx context.Context, organizationID string) ([]domain.TicketPriority, error) {
	return listTicketPriorities(ctx, s.db, organizationID)
}

func (t *Tx) ListTicketPriorities(ctx context.Context, organizationID string) ([]domain.TicketPriority, error) {
	return listTicketPriorities(ctx, t.tx, organizationID)
}

func createTicketPriority(ctx context.Context, db dbInterface, priority *domain.TicketPriority) error {
	if priority.ID == "" {
		priority.ID = uuid.New().String()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO ticket_priorities (id, name, color, sla_hours, organization_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		priority.ID, priority.Name, priority.Color, priority.SLAHours, priority.OrganizationID, time.Now().UTC())
	return wrapUniqueError(err)
}

func (s *Store) CreateTicketPriority(ctx context.Context, priority *domain.TicketPriority) error {
	return createTicketPriority(ctx, s.db, priority)
}

func (t *Tx) CreateTicketPriority(ctx context.Context, priority *domain.TicketPriority) error {
	return createTicketPriority(ctx, t.tx, priority)
}

func updateTicketPriority(ctx context.Context, db dbInterface, id string, priority *domain.TicketPriority) (*domain.TicketPriority, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE ticket_priorities SET name = $1, color = $2, sla_hours = $3, organization_id = $4 WHERE id = $5`,
		priority.Name, priority.Color, priority.SLAHours, priority.OrganizationID, id)
	if err != nil {
		return nil, err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, domain.ErrNotFound
	}
	var updated domain.TicketPriority
	if err := db.GetContext(ctx, &updated,
		`SELECT `+priorityColumns+` FROM ticket_priorities WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) UpdateTicketPriority(ctx context.Context, id string, priority *domain.TicketPriority) (*domain.TicketPriority, error) {
	return updateTicketPriority(ctx, s.db, id, priority)
}

func (t *Tx) UpdateTicketPriority(ctx context.Context, id string, priority *domain.TicketPriority) (*domain.TicketPriority, error) {
	return updateTicketPriority(ctx, t.tx, id, priority)
}
