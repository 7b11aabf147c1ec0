// Package repository contains data access logic for the marketplace.
// This file covers sessions and the per-session capacity primitives the
// settlement engine builds on. Sessions mirror the `sessions` table;
// reserved spots live in `session_reservations` keyed by an opaque
// token. All timestamps are stored in UTC.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dsilva06/fitzy-sub001/internal/model"
)

// ErrSessionNotFound indicates that a session was not located in the DB.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepo manages persistence for sessions and their reservations.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo constructs a SessionRepo with the given DB handle.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.  The settlement ledgers
// use this to keep capacity mutations and token writes atomic.
func (r *SessionRepo) DB() *sql.DB { return r.db }

const sessionCols = `id, venue_id, class_type_id, starts_at, ends_at,
                     capacity_total, capacity_taken, price_cents, credit_cost,
                     status, created_at, updated_at`

func scanSession(row interface{ Scan(...interface{}) error }, s *model.Session) error {
	return row.Scan(&s.ID, &s.VenueID, &s.ClassTypeID, &s.StartsAt, &s.EndsAt,
		&s.CapacityTotal, &s.CapacityTaken, &s.PriceCents, &s.CreditCost,
		&s.Status, &s.CreatedAt, &s.UpdatedAt)
}

// Create inserts a new session and populates the generated ID and
// DB-default fields on the given struct. Capacity starts at zero taken.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	const q = `INSERT INTO sessions (venue_id, class_type_id, starts_at, ends_at, capacity_total, price_cents, credit_cost)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.VenueID, s.ClassTypeID,
		s.StartsAt.UTC(), s.EndsAt.UTC(), s.CapacityTotal, s.PriceCents, s.CreditCost)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	const sel = `SELECT ` + sessionCols + ` FROM sessions WHERE id = ?`
	return scanSession(r.db.QueryRowContext(ctx, sel, s.ID), s)
}

// GetByID retrieves a session by its ID.  It returns ErrSessionNotFound
// if there is no matching row.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM sessions WHERE id = ?`
	var s model.Session
	if err := scanSession(r.db.QueryRowContext(ctx, q, id), &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetByIDForOwner loads a session and verifies that the calling VENUE
// user owns the venue it belongs to.  Returns ErrSessionNotFound when
// the row does not exist and ErrForbidden on an ownership mismatch.
func (r *SessionRepo) GetByIDForOwner(ctx context.Context, id, ownerID uint64) (*model.Session, error) {
	const check = `SELECT v.owner_id FROM sessions s JOIN venues v ON v.id = s.venue_id WHERE s.id = ?`
	var actual uint64
	if err := r.db.QueryRowContext(ctx, check, id).Scan(&actual); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if actual != ownerID {
		return nil, ErrForbidden
	}
	return r.GetByID(ctx, id)
}

// ListUpcomingByVenue returns SCHEDULED future sessions for one venue,
// soonest first.
func (r *SessionRepo) ListUpcomingByVenue(ctx context.Context, venueID uint64) ([]model.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM sessions
	           WHERE venue_id = ? AND status = 'SCHEDULED' AND starts_at > UTC_TIMESTAMP()
	           ORDER BY starts_at ASC`
	rows, err := r.db.QueryContext(ctx, q, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Session, 0)
	for rows.Next() {
		var s model.Session
		if err := scanSession(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateSchedule lets venue management adjust times, prices and total
// capacity before or after publication.  Shrinking capacity_total below
// capacity_taken is rejected with ErrConflict so the ledger invariant
// capacity_taken <= capacity_total survives CRUD edits.
func (r *SessionRepo) UpdateSchedule(ctx context.Context, s *model.Session) error {
	const q = `UPDATE sessions
	           SET starts_at = ?, ends_at = ?, capacity_total = ?, price_cents = ?, credit_cost = ?
	           WHERE id = ? AND capacity_taken <= ?`
	res, err := r.db.ExecContext(ctx, q, s.StartsAt.UTC(), s.EndsAt.UTC(),
		s.CapacityTotal, s.PriceCents, s.CreditCost, s.ID, s.CapacityTotal)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the session is gone or the new total is below taken.
		if _, err := r.GetByID(ctx, s.ID); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// SetStatus moves a session between SCHEDULED, CANCELLED and FINISHED.
func (r *SessionRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// TakeSpotTx atomically claims one spot on a SCHEDULED session inside
// the caller's transaction. The guarded UPDATE is what makes reserve
// linearizable per session: the row lock serializes concurrent
// attempts and the WHERE clause re-checks capacity under that lock, so
// two reservations can never observe the same pre-increment count.
// It reports false when the session is full (or not bookable) without
// touching the row.
func (r *SessionRepo) TakeSpotTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (bool, error) {
	const q = `UPDATE sessions
	           SET capacity_taken = capacity_taken + 1
	           WHERE id = ? AND status = 'SCHEDULED' AND capacity_taken < capacity_total`
	res, err := tx.ExecContext(ctx, q, sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FreeSpotTx gives one spot back, floored at zero.
func (r *SessionRepo) FreeSpotTx(ctx context.Context, tx *sql.Tx, sessionID uint64) error {
	const q = `UPDATE sessions
	           SET capacity_taken = capacity_taken - 1
	           WHERE id = ? AND capacity_taken > 0`
	_, err := tx.ExecContext(ctx, q, sessionID)
	return err
}

// InsertReservationTx records the token row for a freshly taken spot
// in the same transaction that incremented capacity_taken.
func (r *SessionRepo) InsertReservationTx(ctx context.Context, tx *sql.Tx, res *model.SessionReservation) error {
	const q = `INSERT INTO session_reservations (token, session_id, booking_id, status) VALUES (?, ?, ?, 'ACTIVE')`
	var bookingID interface{}
	if res.BookingID != nil {
		bookingID = *res.BookingID
	}
	_, err := tx.ExecContext(ctx, q, res.Token, res.SessionID, bookingID)
	return err
}

// ClaimReleaseTx flips a reservation token ACTIVE -> RELEASED and
// returns the session it belonged to. The guarded UPDATE makes release
// idempotent: a second release of the same token affects zero rows and
// reports claimed=false, and the caller must then skip the decrement.
func (r *SessionRepo) ClaimReleaseTx(ctx context.Context, tx *sql.Tx, token string) (sessionID uint64, claimed bool, err error) {
	const sel = `SELECT session_id FROM session_reservations WHERE token = ?`
	if err = tx.QueryRowContext(ctx, sel, token).Scan(&sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	const upd = `UPDATE session_reservations
	             SET status = 'RELEASED', released_at = UTC_TIMESTAMP()
	             WHERE token = ? AND status = 'ACTIVE'`
	res, err := tx.ExecContext(ctx, upd, token)
	if err != nil {
		return 0, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	return sessionID, n == 1, nil
}

// GetReservation loads a reservation token row. Used by crash recovery
// to decide whether a saga's reservation still holds capacity.
func (r *SessionRepo) GetReservation(ctx context.Context, token string) (*model.SessionReservation, error) {
	const q = `SELECT token, session_id, booking_id, status, created_at, released_at
	           FROM session_reservations WHERE token = ?`
	var (
		res       model.SessionReservation
		bookingID sql.NullInt64
		released  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, token).Scan(
		&res.Token, &res.SessionID, &bookingID, &res.Status, &res.CreatedAt, &released)
	if err != nil {
		return nil, err
	}
	if bookingID.Valid {
		b := uint64(bookingID.Int64)
		res.BookingID = &b
	}
	if released.Valid {
		t := released.Time.UTC()
		res.ReleasedAt = &t
	}
	return &res, nil
}
