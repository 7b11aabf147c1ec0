// This file holds the durable step logs for the two multi-entity
// flows: the checkout saga and the cancellation. Each forward step
// records its completion here before the flow moves on, so a crashed
// process can be resumed (or compensated) without guessing which side
// effects already happened.
package repository

import (
	"context"
	"database/sql"
	"time"
)

// Saga states, in forward order. COMPENSATING is entered when a
// payment step fails and the reservation must be given back.
const (
	SagaStarted      = "STARTED"
	SagaReserved     = "RESERVED"
	SagaPaid         = "PAID"
	SagaConfirmed    = "CONFIRMED"
	SagaCompensating = "COMPENSATING"
	SagaFailed       = "FAILED"
)

// SagaRecord mirrors the booking_sagas table: one row per checkout
// attempt, keyed by booking. The nullable references identify exactly
// which side effects exist for compensation.
type SagaRecord struct {
	BookingID        uint64
	State            string
	ReservationToken sql.NullString
	AllocationID     sql.NullString
	PaymentID        sql.NullInt64
	UpdatedAt        time.Time
}

// SagaRepo persists checkout saga and cancellation step logs.
type SagaRepo struct {
	db *sql.DB
}

// NewSagaRepo constructs a SagaRepo with the given DB handle.
func NewSagaRepo(db *sql.DB) *SagaRepo { return &SagaRepo{db: db} }

// Start inserts the STARTED row for a booking's checkout attempt.
func (r *SagaRepo) Start(ctx context.Context, bookingID uint64) error {
	const q = `INSERT INTO booking_sagas (booking_id, state) VALUES (?, 'STARTED')`
	_, err := r.db.ExecContext(ctx, q, bookingID)
	return err
}

// SetReserved records the reservation token after capacity was taken.
func (r *SagaRepo) SetReserved(ctx context.Context, bookingID uint64, token string) error {
	const q = `UPDATE booking_sagas SET state = 'RESERVED', reservation_token = ? WHERE booking_id = ?`
	_, err := r.db.ExecContext(ctx, q, token, bookingID)
	return err
}

// SetPaid records the payment receipt and, for credit payments, the
// allocation plan that backs it.
func (r *SagaRepo) SetPaid(ctx context.Context, bookingID, paymentID uint64, allocationID string) error {
	const q = `UPDATE booking_sagas SET state = 'PAID', payment_id = ?, allocation_id = NULLIF(?, '') WHERE booking_id = ?`
	_, err := r.db.ExecContext(ctx, q, paymentID, allocationID, bookingID)
	return err
}

// SetState moves the saga to a bare state with no new references.
func (r *SagaRepo) SetState(ctx context.Context, bookingID uint64, state string) error {
	const q = `UPDATE booking_sagas SET state = ? WHERE booking_id = ?`
	_, err := r.db.ExecContext(ctx, q, state, bookingID)
	return err
}

// Get loads the saga row for one booking.
func (r *SagaRepo) Get(ctx context.Context, bookingID uint64) (*SagaRecord, error) {
	const q = `SELECT booking_id, state, reservation_token, allocation_id, payment_id, updated_at
	           FROM booking_sagas WHERE booking_id = ?`
	var rec SagaRecord
	err := r.db.QueryRowContext(ctx, q, bookingID).Scan(&rec.BookingID, &rec.State,
		&rec.ReservationToken, &rec.AllocationID, &rec.PaymentID, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListUnsettled returns sagas that never reached a terminal state and
// have not been touched for the given duration. The startup recovery
// sweep compensates these.
func (r *SagaRepo) ListUnsettled(ctx context.Context, olderThan time.Duration) ([]SagaRecord, error) {
	const q = `SELECT booking_id, state, reservation_token, allocation_id, payment_id, updated_at
	           FROM booking_sagas
	           WHERE state NOT IN ('CONFIRMED', 'FAILED')
	             AND updated_at <= DATE_SUB(UTC_TIMESTAMP(), INTERVAL ? SECOND)
	           ORDER BY updated_at ASC`
	rows, err := r.db.QueryContext(ctx, q, int64(olderThan.Seconds()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SagaRecord
	for rows.Next() {
		var rec SagaRecord
		if err := rows.Scan(&rec.BookingID, &rec.State, &rec.ReservationToken,
			&rec.AllocationID, &rec.PaymentID, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CancellationRecord mirrors the cancellations table: the step log of
// one cancel, keyed by booking. Each timestamp is stamped when its
// sub-step completes; a crashed cancel resumes from the first null.
type CancellationRecord struct {
	BookingID   uint64
	RefundedAt  sql.NullTime
	ReleasedAt  sql.NullTime
	CompletedAt sql.NullTime
	CreatedAt   time.Time
}

// StartCancellation inserts the step-log row for a cancel, or leaves
// an existing one untouched so a retried cancel resumes where the
// previous attempt stopped.
func (r *SagaRepo) StartCancellation(ctx context.Context, bookingID uint64) error {
	const q = `INSERT INTO cancellations (booking_id) VALUES (?)
	           ON DUPLICATE KEY UPDATE booking_id = booking_id`
	_, err := r.db.ExecContext(ctx, q, bookingID)
	return err
}

// GetCancellation loads the cancel step log for one booking.
func (r *SagaRepo) GetCancellation(ctx context.Context, bookingID uint64) (*CancellationRecord, error) {
	const q = `SELECT booking_id, refunded_at, released_at, completed_at, created_at
	           FROM cancellations WHERE booking_id = ?`
	var rec CancellationRecord
	err := r.db.QueryRowContext(ctx, q, bookingID).Scan(&rec.BookingID,
		&rec.RefundedAt, &rec.ReleasedAt, &rec.CompletedAt, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListIncompleteCancellations returns cancellations that started but
// never stamped completed_at and have sat untouched for the given
// duration. The recovery sweep re-drives these regardless of the
// booking's cancellation deadline.
func (r *SagaRepo) ListIncompleteCancellations(ctx context.Context, olderThan time.Duration) ([]CancellationRecord, error) {
	const q = `SELECT booking_id, refunded_at, released_at, completed_at, created_at
	           FROM cancellations
	           WHERE completed_at IS NULL
	             AND created_at <= DATE_SUB(UTC_TIMESTAMP(), INTERVAL ? SECOND)
	           ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, int64(olderThan.Seconds()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CancellationRecord
	for rows.Next() {
		var rec CancellationRecord
		if err := rows.Scan(&rec.BookingID, &rec.RefundedAt, &rec.ReleasedAt,
			&rec.CompletedAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkCancellationStep stamps one of the refunded/released/completed
// columns. Idempotent: an already stamped column keeps its first value.
func (r *SagaRepo) MarkCancellationStep(ctx context.Context, bookingID uint64, column string) error {
	var q string
	switch column {
	case "refunded_at":
		q = `UPDATE cancellations SET refunded_at = COALESCE(refunded_at, UTC_TIMESTAMP()) WHERE booking_id = ?`
	case "released_at":
		q = `UPDATE cancellations SET released_at = COALESCE(released_at, UTC_TIMESTAMP()) WHERE booking_id = ?`
	case "completed_at":
		q = `UPDATE cancellations SET completed_at = COALESCE(completed_at, UTC_TIMESTAMP()) WHERE booking_id = ?`
	default:
		return ErrConflict
	}
	_, err := r.db.ExecContext(ctx, q, bookingID)
	return err
}
