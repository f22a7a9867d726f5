package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	id "dunning/pkg/domain"
	"dunning/pkg/platform/sentinel"
	txcontext "dunning/pkg/platform/tx"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// PostgresStore persists records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) exec(ctx context.Context) txcontext.Executor {
	return txcontext.Exec(ctx, s.db)
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// UpsertResident inserts or replaces a resident keyed on resident_id.
func (s *PostgresStore) UpsertResident(ctx context.Context, r Resident) error {
	query := `
		INSERT INTO residents (
			resident_id, first_name, last_name, contact_first_name, contact_last_name,
			contact_number, date_of_birth, balance, due_date, facility_name,
			facility_code, payer_desc, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (resident_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			contact_first_name = EXCLUDED.contact_first_name,
			contact_last_name = EXCLUDED.contact_last_name,
			contact_number = EXCLUDED.contact_number,
			date_of_birth = EXCLUDED.date_of_birth,
			balance = EXCLUDED.balance,
			due_date = EXCLUDED.due_date,
			facility_name = EXCLUDED.facility_name,
			facility_code = EXCLUDED.facility_code,
			payer_desc = EXCLUDED.payer_desc,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.exec(ctx).ExecContext(ctx, query,
		r.ResidentID.String(), r.FirstName, r.LastName, r.ContactFirstName, r.ContactLastName,
		r.ContactNumber, r.DateOfBirth, r.Balance.String(), nullDate(r.DueDate), r.FacilityName,
		r.FacilityCode, r.PayerDesc, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert resident: %w", err)
	}
	return nil
}

const residentColumns = `
	resident_id, first_name, last_name, contact_first_name, contact_last_name,
	contact_number, date_of_birth, balance, due_date, facility_name,
	facility_code, payer_desc, updated_at
`

// FindResident returns the resident with residentID.
func (s *PostgresStore) FindResident(ctx context.Context, residentID id.ResidentID) (*Resident, error) {
	query := `SELECT ` + residentColumns + ` FROM residents WHERE resident_id = $1`
	r, err := scanResident(s.exec(ctx).QueryRowContext(ctx, query, residentID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find resident: %w", err)
	}
	return r, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes caller input match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// SearchResidents returns residents matching every set filter, case-insensitively.
func (s *PostgresStore) SearchResidents(ctx context.Context, f ResidentFilter, limit int) ([]Resident, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.ResidentID != "" {
		add("resident_id = $%d", f.ResidentID)
	}
	if f.ResidentName != "" {
		add(`lower(first_name || ' ' || last_name) LIKE '%%' || lower($%d) || '%%' ESCAPE '\'`, escapeLike(f.ResidentName))
	}
	if f.DateOfBirth != "" {
		add("date_of_birth = $%d", f.DateOfBirth)
	}
	if f.ContactName != "" {
		add(`lower(contact_first_name || ' ' || contact_last_name) LIKE '%%' || lower($%d) || '%%' ESCAPE '\'`, escapeLike(f.ContactName))
	}
	if len(where) == 0 {
		return nil, fmt.Errorf("search residents: at least one filter is required")
	}
	args = append(args, limit)
	query := `SELECT ` + residentColumns + ` FROM residents WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(` ORDER BY resident_id LIMIT $%d`, len(args))

	rows, err := s.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search residents: %w", err)
	}
	defer rows.Close()

	var out []Resident
	for rows.Next() {
		r, err := scanResident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resident: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate residents: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResident(row rowScanner) (*Resident, error) {
	var (
		r       Resident
		rid     string
		balance string
		due     sql.NullTime
	)
	if err := row.Scan(
		&rid, &r.FirstName, &r.LastName, &r.ContactFirstName, &r.ContactLastName,
		&r.ContactNumber, &r.DateOfBirth, &balance, &due, &r.FacilityName,
		&r.FacilityCode, &r.PayerDesc, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.ResidentID = id.ResidentID(rid)
	cents, err := id.ParseCents(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	r.Balance = cents
	if due.Valid {
		d := due.Time
		r.DueDate = &d
	}
	return &r, nil
}

// InsertReminder writes a reminder row and returns it with its generated id.
func (s *PostgresStore) InsertReminder(ctx context.Context, r Reminder) (*Reminder, error) {
	query := `
		INSERT INTO reminders (resident_id, contact_name, reminder_type, schedule_time, message_id, supersedes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING reminder_id
	`
	err := s.exec(ctx).QueryRowContext(ctx, query,
		nullResident(r.ResidentID), r.ContactName, string(r.Type), r.ScheduleTime,
		nullString(r.MessageID), r.Supersedes, r.CreatedAt,
	).Scan(&r.ReminderID)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return nil, fmt.Errorf("insert reminder: superseded reminder missing: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("insert reminder: %w", err)
	}
	return &r, nil
}

// LatestReminder returns the newest reminder of type for a resident.
func (s *PostgresStore) LatestReminder(ctx context.Context, residentID id.ResidentID, typ ReminderType) (*Reminder, error) {
	query := `
		SELECT reminder_id, resident_id, contact_name, reminder_type, schedule_time, message_id, supersedes, created_at
		FROM reminders
		WHERE resident_id = $1 AND reminder_type = $2
		ORDER BY created_at DESC, reminder_id DESC
		LIMIT 1
	`
	r, err := scanReminder(s.exec(ctx).QueryRowContext(ctx, query, residentID.String(), string(typ)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find latest reminder: %w", err)
	}
	return r, nil
}

// ListReminders returns the newest reminders first.
func (s *PostgresStore) ListReminders(ctx context.Context, limit int) ([]Reminder, error) {
	query := `
		SELECT reminder_id, resident_id, contact_name, reminder_type, schedule_time, message_id, supersedes, created_at
		FROM reminders
		ORDER BY created_at DESC, reminder_id DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return out, nil
}

func scanReminder(row rowScanner) (*Reminder, error) {
	var (
		r          Reminder
		residentID sql.NullString
		typ        string
		messageID  sql.NullString
		supersedes sql.NullInt64
	)
	if err := row.Scan(&r.ReminderID, &residentID, &r.ContactName, &typ, &r.ScheduleTime, &messageID, &supersedes, &r.CreatedAt); err != nil {
		return nil, err
	}
	if residentID.Valid {
		rid := id.ResidentID(residentID.String)
		r.ResidentID = &rid
	}
	r.Type = ReminderType(typ)
	r.MessageID = messageID.String
	if supersedes.Valid {
		v := supersedes.Int64
		r.Supersedes = &v
	}
	return &r, nil
}

// InsertPayment records a payment.
func (s *PostgresStore) InsertPayment(ctx context.Context, p Payment) (*Payment, error) {
	query := `
		INSERT INTO payments (resident_id, amount, method, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING payment_id
	`
	err := s.exec(ctx).QueryRowContext(ctx, query,
		p.ResidentID.String(), p.Amount.String(), p.Method, p.Status, p.CreatedAt,
	).Scan(&p.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return &p, nil
}

// ListPayments returns the newest payments first.
func (s *PostgresStore) ListPayments(ctx context.Context, limit int) ([]Payment, error) {
	query := `
		SELECT payment_id, resident_id, amount, method, status, created_at
		FROM payments
		ORDER BY created_at DESC, payment_id DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var (
			p      Payment
			rid    string
			amount string
		)
		if err := rows.Scan(&p.PaymentID, &rid, &amount, &p.Method, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.ResidentID = id.ResidentID(rid)
		if p.Amount, err = id.ParseCents(amount); err != nil {
			return nil, fmt.Errorf("parse payment amount %q: %w", amount, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

// InsertAppointment records a booked appointment. A calendar event can back
// at most one appointment.
func (s *PostgresStore) InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	query := `
		INSERT INTO appointments (call_id, resident_id, calendar_event_id, title, description, start_time, end_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING appointment_id
	`
	err := s.exec(ctx).QueryRowContext(ctx, query,
		a.CallID.String(), a.ResidentID.String(), a.CalendarEventID.String(),
		a.Title, a.Description, a.StartTime, a.EndTime, a.CreatedAt,
	).Scan(&a.AppointmentID)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return &a, nil
}

// InsertCallAttempt writes a call attempt once. A second insert for the same
// call_id returns sentinel.ErrAlreadyUsed and leaves the first row untouched.
func (s *PostgresStore) InsertCallAttempt(ctx context.Context, c CallAttempt) error {
	query := `
		INSERT INTO call_logs (call_id, resident_id, phone, direction, provider, status, cost, transcript, recording_url, analysis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (call_id) DO NOTHING
	`
	var analysis any
	if len(c.Analysis) > 0 {
		analysis = []byte(c.Analysis)
	}
	res, err := s.exec(ctx).ExecContext(ctx, query,
		c.CallID.String(), c.ResidentID.String(), c.Phone, c.Direction, c.Provider, c.Status,
		c.Cost, c.Transcript, c.RecordingURL, analysis, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert call attempt rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

const callAttemptColumns = `call_id, resident_id, phone, direction, provider, status, cost, transcript, recording_url, analysis, created_at`

// FindCallAttempt returns the call attempt for callID.
func (s *PostgresStore) FindCallAttempt(ctx context.Context, callID id.CallID) (*CallAttempt, error) {
	query := `SELECT ` + callAttemptColumns + ` FROM call_logs WHERE call_id = $1`
	c, err := scanCallAttempt(s.exec(ctx).QueryRowContext(ctx, query, callID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find call attempt: %w", err)
	}
	return c, nil
}

// ListCallAttempts returns the newest call attempts first.
func (s *PostgresStore) ListCallAttempts(ctx context.Context, limit int) ([]CallAttempt, error) {
	query := `SELECT ` + callAttemptColumns + ` FROM call_logs ORDER BY created_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list call attempts: %w", err)
	}
	defer rows.Close()

	var out []CallAttempt
	for rows.Next() {
		c, err := scanCallAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call attempt: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call attempts: %w", err)
	}
	return out, nil
}

func scanCallAttempt(row rowScanner) (*CallAttempt, error) {
	var (
		c            CallAttempt
		callID, rid  string
		cost         sql.NullFloat64
		transcript   sql.NullString
		recordingURL sql.NullString
		analysis     []byte
	)
	if err := row.Scan(&callID, &rid, &c.Phone, &c.Direction, &c.Provider, &c.Status,
		&cost, &transcript, &recordingURL, &analysis, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.CallID = id.CallID(callID)
	c.ResidentID = id.ResidentID(rid)
	if cost.Valid {
		v := cost.Float64
		c.Cost = &v
	}
	if transcript.Valid {
		v := transcript.String
		c.Transcript = &v
	}
	if recordingURL.Valid {
		v := recordingURL.String
		c.RecordingURL = &v
	}
	if len(analysis) > 0 {
		c.Analysis = json.RawMessage(analysis)
	}
	return &c, nil
}

// InsertNote records conversation notes.
func (s *PostgresStore) InsertNote(ctx context.Context, n ConversationNote) (*ConversationNote, error) {
	query := `
		INSERT INTO conversation_notes (call_id, notes, phi_data, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING note_id
	`
	err := s.exec(ctx).QueryRowContext(ctx, query,
		n.CallID.String(), n.Notes, nullString(n.PHIData), n.CreatedAt,
	).Scan(&n.NoteID)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return &n, nil
}

// InsertCallEvent appends a webhook event. A redelivery with the same hash
// returns sentinel.ErrAlreadyUsed.
func (s *PostgresStore) InsertCallEvent(ctx context.Context, e CallEvent) (*CallEvent, error) {
	query := `
		INSERT INTO call_events (call_id, event_type, event_hash, safe_data, phi_data, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_hash) DO NOTHING
		RETURNING event_id
	`
	err := s.exec(ctx).QueryRowContext(ctx, query,
		e.CallID.String(), e.EventType, e.EventHash, []byte(e.SafeData), e.PHIData, e.ReceivedAt,
	).Scan(&e.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrAlreadyUsed
		}
		return nil, fmt.Errorf("insert call event: %w", err)
	}
	return &e, nil
}

// ListCallEvents returns the events for callID in arrival order.
func (s *PostgresStore) ListCallEvents(ctx context.Context, callID id.CallID) ([]CallEvent, error) {
	query := `
		SELECT event_id, call_id, event_type, event_hash, safe_data, phi_data, received_at
		FROM call_events
		WHERE call_id = $1
		ORDER BY received_at, event_id
	`
	rows, err := s.db.QueryContext(ctx, query, callID.String())
	if err != nil {
		return nil, fmt.Errorf("list call events: %w", err)
	}
	defer rows.Close()

	var out []CallEvent
	for rows.Next() {
		var (
			e    CallEvent
			cid  string
			safe []byte
			phi  sql.NullString
		)
		if err := rows.Scan(&e.EventID, &cid, &e.EventType, &e.EventHash, &safe, &phi, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan call event: %w", err)
		}
		e.CallID = id.CallID(cid)
		e.SafeData = json.RawMessage(safe)
		if phi.Valid {
			v := phi.String
			e.PHIData = &v
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call events: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullResident(r *id.ResidentID) sql.NullString {
	if r == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: r.String(), Valid: true}
}

func nullDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
