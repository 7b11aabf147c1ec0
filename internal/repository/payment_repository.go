package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dsilva06/fitzy-sub001/internal/model"
)

// ErrPaymentNotFound indicates that a payment was not located in the DB.
var ErrPaymentNotFound = errors.New("payment not found")

// PaymentRepo persists payment receipts. One PAID row per confirmed
// booking; failed captures also leave a FAILED row for audit.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo constructs a PaymentRepo with the given DB handle.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// DB exposes the underlying sql.DB for cross-repository transactions.
func (r *PaymentRepo) DB() *sql.DB { return r.db }

// Create inserts a payment row and populates its generated ID.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (booking_id, method, amount_cents, status, reference, meta)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, p.BookingID, p.Method, p.AmountCents, p.Status, p.Reference, p.Meta)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

func (r *PaymentRepo) scanOne(row *sql.Row) (*model.Payment, error) {
	var (
		p        model.Payment
		refunded sql.NullTime
	)
	err := row.Scan(&p.ID, &p.BookingID, &p.Method, &p.AmountCents, &p.Status,
		&p.Reference, &p.Meta, &refunded, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if refunded.Valid {
		t := refunded.Time.UTC()
		p.RefundedAt = &t
	}
	return &p, nil
}

const paymentCols = `id, booking_id, method, amount_cents, status, reference, meta, refunded_at, created_at`

// GetByID retrieves a payment by its ID.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (*model.Payment, error) {
	const q = `SELECT ` + paymentCols + ` FROM payments WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

// GetPaidByBooking returns the single PAID payment of a booking.
func (r *PaymentRepo) GetPaidByBooking(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	const q = `SELECT ` + paymentCols + ` FROM payments WHERE booking_id = ? AND status = 'PAID' LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, bookingID))
}

// ClaimRefund stamps refunded_at exactly once and reports whether this
// call won the claim. A false result means the payment was already
// refunded; callers treat that as an idempotent no-op.
func (r *PaymentRepo) ClaimRefund(ctx context.Context, paymentID uint64) (bool, error) {
	const q = `UPDATE payments SET refunded_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = 'PAID' AND refunded_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, paymentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UnclaimRefund clears the refund stamp again. Used when the external
// gateway rejects a refund after we claimed the marker, so the next
// cancel attempt can re-claim and retry the gateway call.
func (r *PaymentRepo) UnclaimRefund(ctx context.Context, paymentID uint64) error {
	const q = `UPDATE payments SET refunded_at = NULL WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, paymentID)
	return err
}

// ListByUser returns all payments on the member's bookings, newest first.
func (r *PaymentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
	const q = `SELECT p.id, p.booking_id, p.method, p.amount_cents, p.status, p.reference, p.meta, p.refunded_at, p.created_at
	           FROM payments p
	           JOIN bookings b ON b.id = p.booking_id
	           WHERE b.user_id = ?
	           ORDER BY p.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Payment, 0)
	for rows.Next() {
		var (
			p        model.Payment
			refunded sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.BookingID, &p.Method, &p.AmountCents, &p.Status,
			&p.Reference, &p.Meta, &refunded, &p.CreatedAt); err != nil {
			return nil, err
		}
		if refunded.Valid {
			t := refunded.Time.UTC()
			p.RefundedAt = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
