package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dsilva06/fitzy-sub001/internal/model"
)

// ErrBookingNotFound indicates that a booking was not located in the DB.
var ErrBookingNotFound = errors.New("booking not found")

// BookingRepo provides persistence for bookings. Status transitions
// are always guarded on the expected current status so the orchestrator
// and the canceller can rely on at-most-once terminal writes.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo constructs a BookingRepo with the given DB handle.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying sql.DB for cross-repository transactions.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// Create inserts a booking in PENDING state and populates the
// generated ID and timestamps. The row is committed on its own before
// any ledger step runs, so the saga log always has a booking to hang
// off of after a crash.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (user_id, session_id, status, cancellation_deadline)
	           VALUES (?, ?, 'PENDING', ?)`
	res, err := r.db.ExecContext(ctx, q, b.UserID, b.SessionID, b.CancellationDeadline.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.Status = model.BookingPending
	const sel = `SELECT created_at, updated_at FROM bookings WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt, &b.UpdatedAt)
}

// GetByID retrieves a booking by its ID.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT id, user_id, session_id, status, cancellation_deadline, created_at, updated_at
	           FROM bookings WHERE id = ?`
	var b model.Booking
	err := r.db.QueryRowContext(ctx, q, id).Scan(&b.ID, &b.UserID, &b.SessionID,
		&b.Status, &b.CancellationDeadline, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Transition moves a booking from one status to another. It reports
// false when the booking was not in the expected `from` status, which
// callers use to detect a concurrent settlement of the same booking.
func (r *BookingRepo) Transition(ctx context.Context, id uint64, from, to string) (bool, error) {
	const q = `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// TransitionTx is Transition inside an existing transaction.
func (r *BookingRepo) TransitionTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) (bool, error) {
	const q = `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// BookingDetail joins a booking with its session and venue for the
// member's booking list.
type BookingDetail struct {
	ID        uint64    `json:"id"`
	SessionID uint64    `json:"session_id"`
	Status    string    `json:"status"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	VenueName string    `json:"venue_name"`
	ClassName string    `json:"class_name"`
	Deadline  time.Time `json:"cancellation_deadline"`
}

// ListByUser returns the member's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingDetail, error) {
	const q = `SELECT b.id, b.session_id, b.status, s.starts_at, s.ends_at, v.name, ct.name, b.cancellation_deadline
	           FROM bookings b
	           JOIN sessions s ON s.id = b.session_id
	           JOIN venues v ON v.id = s.venue_id
	           JOIN class_types ct ON ct.id = s.class_type_id
	           WHERE b.user_id = ?
	           ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]BookingDetail, 0)
	for rows.Next() {
		var d BookingDetail
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Status, &d.StartsAt, &d.EndsAt,
			&d.VenueName, &d.ClassName, &d.Deadline); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
