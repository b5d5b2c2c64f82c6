/*
Package sqlite provides the SQLite-backed implementation of the engine's
storage interfaces.

PURPOSE:
  Implements schedule.FieldStore and schedule.BookingStore. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

THE ATOMIC UNIT:
  CreateBooking is the one operation that must be race-free. It runs the
  authoritative overlap re-scan and the insert inside a single
  transaction, so two concurrent attempts for overlapping ranges cannot
  both commit. Attempts against different fields or dates never contend
  on anything but the connection.

SECONDARY DEFENSES:
  Two partial unique indexes back up the transaction:
  - idx_bookings_active_start: no two non-cancelled bookings may share a
    (field, date, start_time). Catches identical double submissions.
  - idx_bookings_idempotency: a client-supplied idempotency key may be
    committed once. Retried submissions surface ErrDuplicateSubmission.

WAL MODE:
  The database is opened with WAL so readers don't block behind the
  writer. The pool is pinned to one connection: ":memory:" databases are
  per-connection, and SQLite allows a single writer anyway.

CONCURRENCY:
  sync.RWMutex beside the database, matching the single-writer model.
  With a server-grade database the transaction alone carries this.

USAGE:
  store, err := sqlite.New("./data/booking.db")
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/booking-engine/schedule"
)

// Store implements schedule.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: in-memory databases exist per connection, and the
	// write path is single-writer regardless.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fields (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price_per_hour TEXT NOT NULL,
		open_time TEXT NOT NULL DEFAULT '',
		close_time TEXT NOT NULL DEFAULT '',
		allowed_durations_json TEXT NOT NULL DEFAULT '[]',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- Whole days on which a field accepts zero bookings.
	CREATE TABLE IF NOT EXISTS blocked_dates (
		field_id TEXT NOT NULL REFERENCES fields(id),
		date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (field_id, date)
	);

	-- 30-minute start times blocked on a specific date.
	CREATE TABLE IF NOT EXISTS blocked_slots (
		field_id TEXT NOT NULL REFERENCES fields(id),
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (field_id, date, start_time)
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		field_id TEXT NOT NULL REFERENCES fields(id),
		user_name TEXT NOT NULL,
		user_email TEXT NOT NULL,
		user_phone TEXT NOT NULL,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		start_minute INTEGER NOT NULL,
		end_minute INTEGER NOT NULL,
		duration_hours REAL NOT NULL,
		total_price TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		idempotency_key TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path: overlap re-scan per (field, date).
	CREATE INDEX IF NOT EXISTS idx_bookings_field_date
		ON bookings(field_id, date);

	-- CRITICAL: no two non-cancelled bookings may share a start slot.
	-- Backs up the transactional re-check against identical submissions.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_active_start
		ON bookings(field_id, date, start_time)
		WHERE status != 'cancelled';

	CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_idempotency
		ON bookings(idempotency_key)
		WHERE idempotency_key IS NOT NULL AND idempotency_key != '';

	CREATE INDEX IF NOT EXISTS idx_bookings_status
		ON bookings(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// FIELD STORE (schedule.FieldStore interface)
// =============================================================================

// SaveField inserts or replaces a field and rewrites its blocked sets.
func (s *Store) SaveField(ctx context.Context, field *schedule.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &schedule.StorageError{Op: "begin save field", Err: err}
	}
	defer tx.Rollback()

	durations, _ := json.Marshal(field.AllowedDurations)
	createdAt := field.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO fields
			(id, name, price_per_hour, open_time, close_time, allowed_durations_json, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		field.ID,
		field.Name,
		field.PricePerHour.String(),
		field.Hours.Open,
		field.Hours.Close,
		string(durations),
		field.Active,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save field: %w", err)
	}

	// Blocked sets are replaced wholesale on save; the incremental
	// mutations below are what BlockingManager uses.
	if _, err := tx.ExecContext(ctx, `DELETE FROM blocked_dates WHERE field_id = ?`, field.ID); err != nil {
		return fmt.Errorf("failed to clear blocked dates: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM blocked_slots WHERE field_id = ?`, field.ID); err != nil {
		return fmt.Errorf("failed to clear blocked slots: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for date := range field.BlockedDates {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO blocked_dates (field_id, date, created_at) VALUES (?, ?, ?)`,
			field.ID, date, now); err != nil {
			return fmt.Errorf("failed to save blocked date: %w", err)
		}
	}
	for date, slots := range field.BlockedSlots {
		for slot := range slots {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO blocked_slots (field_id, date, start_time, created_at) VALUES (?, ?, ?, ?)`,
				field.ID, date, slot, now); err != nil {
				return fmt.Errorf("failed to save blocked slot: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &schedule.StorageError{Op: "commit save field", Err: err}
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// GetField loads a field with its blocked dates and blocked slots.
func (s *Store) GetField(ctx context.Context, id schedule.FieldID) (*schedule.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getField(ctx, s.db, id)
}

func (s *Store) getField(ctx context.Context, db querier, id schedule.FieldID) (*schedule.Field, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, price_per_hour, open_time, close_time, allowed_durations_json, active, created_at
		FROM fields WHERE id = ?`, id)

	field, err := scanField(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("field %s: %w", id, schedule.ErrFieldNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get field: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT date FROM blocked_dates WHERE field_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocked dates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("failed to scan blocked date: %w", err)
		}
		field.BlockedDates.Add(date)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load blocked dates: %w", err)
	}

	slotRows, err := db.QueryContext(ctx, `SELECT date, start_time FROM blocked_slots WHERE field_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocked slots: %w", err)
	}
	defer slotRows.Close()
	for slotRows.Next() {
		var date, slot string
		if err := slotRows.Scan(&date, &slot); err != nil {
			return nil, fmt.Errorf("failed to scan blocked slot: %w", err)
		}
		set, ok := field.BlockedSlots[date]
		if !ok {
			set = schedule.NewStringSet()
			field.BlockedSlots[date] = set
		}
		set.Add(slot)
	}
	if err := slotRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load blocked slots: %w", err)
	}

	return field, nil
}

func scanField(row *sql.Row) (*schedule.Field, error) {
	var (
		field         schedule.Field
		price         string
		durationsJSON string
		createdAt     string
	)
	err := row.Scan(&field.ID, &field.Name, &price, &field.Hours.Open, &field.Hours.Close,
		&durationsJSON, &field.Active, &createdAt)
	if err != nil {
		return nil, err
	}
	field.PricePerHour = schedule.MustParseDecimal(price)
	if err := json.Unmarshal([]byte(durationsJSON), &field.AllowedDurations); err != nil {
		field.AllowedDurations = nil
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		field.CreatedAt = t
	}
	field.BlockedDates = schedule.NewStringSet()
	field.BlockedSlots = make(map[string]schedule.StringSet)
	return &field, nil
}

// ListFields returns all fields ordered by name. Blocked sets are loaded
// per field; field counts are small.
func (s *Store) ListFields(ctx context.Context) ([]*schedule.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM fields ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	defer rows.Close()

	var ids []schedule.FieldID
	for rows.Next() {
		var id schedule.FieldID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan field id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}

	fields := make([]*schedule.Field, 0, len(ids))
	for _, id := range ids {
		field, err := s.getField(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// AddBlockedDates unions dates into the blocked set. INSERT OR IGNORE
// makes re-blocking a no-op.
func (s *Store) AddBlockedDates(ctx context.Context, id schedule.FieldID, dates []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, date := range dates {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO blocked_dates (field_id, date, created_at) VALUES (?, ?, ?)`,
			id, date, now)
		if err != nil {
			return fmt.Errorf("failed to block date: %w", err)
		}
	}
	return nil
}

// RemoveBlockedDates removes dates from the blocked set; absent dates are
// ignored.
func (s *Store) RemoveBlockedDates(ctx context.Context, id schedule.FieldID, dates []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, date := range dates {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM blocked_dates WHERE field_id = ? AND date = ?`, id, date)
		if err != nil {
			return fmt.Errorf("failed to unblock date: %w", err)
		}
	}
	return nil
}

// AddBlockedSlots unions start times into the per-date blocked set.
func (s *Store) AddBlockedSlots(ctx context.Context, id schedule.FieldID, date string, slots []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, slot := range slots {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO blocked_slots (field_id, date, start_time, created_at) VALUES (?, ?, ?, ?)`,
			id, date, slot, now)
		if err != nil {
			return fmt.Errorf("failed to block slot: %w", err)
		}
	}
	return nil
}

// RemoveBlockedSlots removes start times from the per-date set. Rows are
// the set; deleting the last one deletes the date entry with it.
func (s *Store) RemoveBlockedSlots(ctx context.Context, id schedule.FieldID, date string, slots []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, slot := range slots {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM blocked_slots WHERE field_id = ? AND date = ? AND start_time = ?`,
			id, date, slot)
		if err != nil {
			return fmt.Errorf("failed to unblock slot: %w", err)
		}
	}
	return nil
}

// =============================================================================
// BOOKING STORE (schedule.BookingStore interface)
// =============================================================================

// CreateBooking is the atomic unit: field existence check, authoritative
// overlap re-scan, and insert in one transaction. Two concurrent calls
// for overlapping ranges serialize here; the loser sees a ConflictError.
func (s *Store) CreateBooking(ctx context.Context, booking *schedule.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := booking.Range()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &schedule.StorageError{Op: "begin create booking", Err: err}
	}
	defer tx.Rollback()

	// The field must still exist inside the transaction.
	var active bool
	err = tx.QueryRowContext(ctx, `SELECT active FROM fields WHERE id = ?`, booking.FieldID).Scan(&active)
	if err == sql.ErrNoRows {
		return fmt.Errorf("field %s: %w", booking.FieldID, schedule.ErrFieldNotFound)
	}
	if err != nil {
		return &schedule.StorageError{Op: "load field", Err: err}
	}
	if !active {
		return schedule.ErrFieldInactive
	}

	// Authoritative re-scan against committed rows. The optimistic
	// pre-check upstream may have read stale state; this one cannot.
	var overlapStart, overlapEnd string
	err = tx.QueryRowContext(ctx, `
		SELECT start_time, end_time FROM bookings
		WHERE field_id = ? AND date = ? AND status != 'cancelled'
		  AND start_minute < ? AND ? < end_minute
		LIMIT 1`,
		booking.FieldID, booking.Date, r.End, r.Start,
	).Scan(&overlapStart, &overlapEnd)
	if err == nil {
		return &schedule.ConflictError{
			Kind: schedule.ConflictOverlapsBooking,
			Message: fmt.Sprintf("Selected time range overlaps with an existing booking (%s-%s)",
				overlapStart, overlapEnd),
		}
	}
	if err != sql.ErrNoRows {
		return &schedule.StorageError{Op: "overlap re-check", Err: err}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings
			(id, field_id, user_name, user_email, user_phone, date, start_time, end_time,
			 start_minute, end_minute, duration_hours, total_price, status, idempotency_key,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID,
		booking.FieldID,
		booking.UserName,
		booking.UserEmail,
		booking.UserPhone,
		booking.Date,
		booking.StartTime,
		booking.EndTime,
		r.Start,
		r.End,
		booking.Duration,
		booking.TotalPrice.String(),
		booking.Status,
		nullString(booking.IdempotencyKey),
		booking.CreatedAt.Format(time.RFC3339),
		booking.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			// Either the idempotency key or the active-start index fired.
			// Both mean this exact submission already committed.
			return fmt.Errorf("booking for %s %s at %s: %w",
				booking.FieldID, booking.Date, booking.StartTime, schedule.ErrDuplicateSubmission)
		}
		return &schedule.StorageError{Op: "insert booking", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &schedule.StorageError{Op: "commit create booking", Err: err}
	}
	return nil
}

const bookingColumns = `id, field_id, user_name, user_email, user_phone, date, start_time, end_time,
	duration_hours, total_price, status, idempotency_key, created_at, updated_at`

// GetBooking returns a booking by id.
func (s *Store) GetBooking(ctx context.Context, id schedule.BookingID) (*schedule.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	defer rows.Close()

	bookings, err := scanBookings(rows)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, fmt.Errorf("booking %s: %w", id, schedule.ErrBookingNotFound)
	}
	return bookings[0], nil
}

// ListBookings returns all bookings for the field and date, any status.
func (s *Store) ListBookings(ctx context.Context, fieldID schedule.FieldID, date string) ([]*schedule.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE field_id = ? AND date = ?
		 ORDER BY start_minute ASC`, fieldID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// ListBlockingBookings returns only the bookings that participate in
// conflict checks.
func (s *Store) ListBlockingBookings(ctx context.Context, fieldID schedule.FieldID, date string) ([]*schedule.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE field_id = ? AND date = ? AND status != 'cancelled'
		 ORDER BY start_minute ASC`, fieldID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocking bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// UpdateBookingStatus transitions a booking's status.
func (s *Store) UpdateBookingStatus(ctx context.Context, id schedule.BookingID, status schedule.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("booking %s: %w", id, schedule.ErrBookingNotFound)
	}
	return nil
}

func scanBookings(rows *sql.Rows) ([]*schedule.Booking, error) {
	var bookings []*schedule.Booking
	for rows.Next() {
		var (
			b         schedule.Booking
			price     string
			idemKey   sql.NullString
			createdAt string
			updatedAt string
		)
		err := rows.Scan(&b.ID, &b.FieldID, &b.UserName, &b.UserEmail, &b.UserPhone,
			&b.Date, &b.StartTime, &b.EndTime, &b.Duration, &price, &b.Status,
			&idemKey, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		b.TotalPrice = schedule.MustParseDecimal(price)
		b.IdempotencyKey = idemKey.String
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			b.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			b.UpdatedAt = t
		}
		bookings = append(bookings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan bookings: %w", err)
	}
	return bookings, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
