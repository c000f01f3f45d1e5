package comms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const commColumns = `id, org_id, patient_id, COALESCE(appointment_id::text, ''), channel, recipient,
	message, scheduled_at, offset_minutes, status, attempts, COALESCE(last_error, ''),
	sent_at, created_at, updated_at`

// Store provides Postgres persistence for scheduled_communications.
type Store struct {
	db DB
}

// NewStore creates a new communications store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// CreateAll inserts every row in one transaction.
func (s *Store) CreateAll(ctx context.Context, items []*Communication) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("comms: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO scheduled_communications (id, org_id, patient_id, appointment_id, channel, recipient, message, scheduled_at, offset_minutes, status, attempts, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12)`,
			c.ID, c.OrgID, c.PatientID, c.AppointmentID, string(c.Channel), c.Recipient, c.Message,
			c.ScheduledAt, c.OffsetMinutes, string(c.Status), c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("comms: create: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("comms: commit: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, orgID, id uuid.UUID) (*Communication, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+commColumns+`
		FROM scheduled_communications
		WHERE org_id = $1 AND id = $2`, orgID, id)
	c, err := scanCommunication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("communication %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("comms: get: %w", err)
	}
	return c, nil
}

// ListDue returns an organization's PENDING rows due at or before asOf,
// oldest first. A limit <= 0 returns every due row.
func (s *Store) ListDue(ctx context.Context, orgID uuid.UUID, asOf time.Time, limit int) ([]Communication, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.Query(ctx, `
			SELECT `+commColumns+`
			FROM scheduled_communications
			WHERE org_id = $1 AND status = 'PENDING' AND scheduled_at <= $2
			ORDER BY scheduled_at ASC, id ASC LIMIT $3`, orgID, asOf, limit)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+commColumns+`
			FROM scheduled_communications
			WHERE org_id = $1 AND status = 'PENDING' AND scheduled_at <= $2
			ORDER BY scheduled_at ASC, id ASC`, orgID, asOf)
	}
	if err != nil {
		return nil, fmt.Errorf("comms: list due: %w", err)
	}
	defer rows.Close()
	return scanCommunications(rows)
}

// ListDueAll returns due rows across organizations for the dispatcher.
func (s *Store) ListDueAll(ctx context.Context, asOf time.Time, limit int) ([]Communication, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+commColumns+`
		FROM scheduled_communications
		WHERE status = 'PENDING' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC, id ASC LIMIT $2`, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("comms: list due all: %w", err)
	}
	defer rows.Close()
	return scanCommunications(rows)
}

func (s *Store) Cancel(ctx context.Context, orgID, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE scheduled_communications SET status = 'CANCELLED', updated_at = $3
		WHERE org_id = $1 AND id = $2 AND status = 'PENDING'`, orgID, id, at)
	if err != nil {
		return false, fmt.Errorf("comms: cancel: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CancelForAppointment(ctx context.Context, orgID, appointmentID uuid.UUID, at time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE scheduled_communications SET status = 'CANCELLED', updated_at = $3
		WHERE org_id = $1 AND appointment_id = $2 AND status = 'PENDING'`, orgID, appointmentID, at)
	if err != nil {
		return 0, fmt.Errorf("comms: cancel for appointment: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE scheduled_communications
		SET status = 'SENT', attempts = attempts + 1, sent_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'PENDING'`, id, at)
	if err != nil {
		return false, fmt.Errorf("comms: mark sent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) RecordFailure(ctx context.Context, id uuid.UUID, msg string, maxAttempts int, at time.Time) (Status, bool, error) {
	var status string
	err := s.db.QueryRow(ctx, `
		UPDATE scheduled_communications
		SET attempts = attempts + 1,
			last_error = $2,
			status = CASE WHEN attempts + 1 >= $3 THEN 'FAILED' ELSE 'PENDING' END,
			updated_at = $4
		WHERE id = $1 AND status = 'PENDING'
		RETURNING status`, id, msg, maxAttempts, at).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("comms: record failure: %w", err)
	}
	return Status(status), true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCommunication(row scanner) (*Communication, error) {
	var (
		c               Communication
		appointmentID   string
		channel, status string
		sentAt          sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.OrgID, &c.PatientID, &appointmentID, &channel, &c.Recipient,
		&c.Message, &c.ScheduledAt, &c.OffsetMinutes, &status, &c.Attempts, &c.LastError,
		&sentAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Channel = Channel(channel)
	c.Status = Status(status)
	if appointmentID != "" {
		id, err := uuid.Parse(appointmentID)
		if err != nil {
			return nil, fmt.Errorf("comms: bad appointment_id %q: %w", appointmentID, err)
		}
		c.AppointmentID = &id
	}
	if sentAt.Valid {
		t := sentAt.Time
		c.SentAt = &t
	}
	return &c, nil
}

func scanCommunications(rows pgx.Rows) ([]Communication, error) {
	var out []Communication
	for rows.Next() {
		c, err := scanCommunication(rows)
		if err != nil {
			return nil, fmt.Errorf("comms: scan: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("comms: rows: %w", err)
	}
	return out, nil
}
