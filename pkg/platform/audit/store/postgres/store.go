package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "dunning/pkg/platform/audit"
	txcontext "dunning/pkg/platform/tx"
)

// Store implements audit.Store on the audit_events table.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts an audit event. Inside a transaction the event commits with it.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, action, subject_hash, call_id,
			channel, decision, reason, operator_id, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.New(),
		string(category),
		event.Timestamp,
		event.Action,
		event.SubjectHash,
		event.CallID,
		event.Channel,
		event.Decision,
		event.Reason,
		event.OperatorID,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListBySubject returns events for one hashed resident, newest first.
func (s *Store) ListBySubject(ctx context.Context, subjectHash string) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, action, subject_hash, call_id,
			   channel, decision, reason, operator_id, request_id
		FROM audit_events
		WHERE subject_hash = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, subjectHash)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, action, subject_hash, call_id,
			   channel, decision, reason, operator_id, request_id
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var category string
		if err := rows.Scan(
			&category, &e.Timestamp, &e.Action, &e.SubjectHash, &e.CallID,
			&e.Channel, &e.Decision, &e.Reason, &e.OperatorID, &e.RequestID,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
