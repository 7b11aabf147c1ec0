// This file covers credit ownerships and allocation plans. Ownership
// rows are created by the package purchase flow and mutated only by
// the credit ledger's allocate/refund primitives below; the plan
// tables make every allocation exactly reversible.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dsilva06/fitzy-sub001/internal/model"
)

// ErrOwnershipNotFound indicates a credit ownership row was not found.
var ErrOwnershipNotFound = errors.New("credit ownership not found")

// CreditRepo manages credit_ownerships, credit_allocations and
// credit_allocation_entries.
type CreditRepo struct {
	db *sql.DB
}

// NewCreditRepo constructs a CreditRepo with the given DB handle.
func NewCreditRepo(db *sql.DB) *CreditRepo { return &CreditRepo{db: db} }

// DB exposes the underlying sql.DB for cross-repository transactions.
func (r *CreditRepo) DB() *sql.DB { return r.db }

// CreateOwnership inserts a grant created by a package purchase.
func (r *CreditRepo) CreateOwnership(ctx context.Context, o *model.CreditOwnership) error {
	const q = `INSERT INTO credit_ownerships
	           (user_id, package_id, credits_total, credits_remaining, status, purchased_at, expires_at)
	           VALUES (?, ?, ?, ?, 'ACTIVE', ?, ?)`
	res, err := r.db.ExecContext(ctx, q, o.UserID, o.PackageID,
		o.CreditsTotal, o.CreditsRemaining, o.PurchasedAt.UTC(), o.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	o.Status = model.OwnershipActive
	return nil
}

// ListByUser returns all of a member's ownerships, soonest-expiring
// first, for the "my credits" view.
func (r *CreditRepo) ListByUser(ctx context.Context, userID uint64) ([]model.CreditOwnership, error) {
	const q = `SELECT id, user_id, package_id, credits_total, credits_remaining, status, purchased_at, expires_at
	           FROM credit_ownerships WHERE user_id = ? ORDER BY expires_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.CreditOwnership, 0)
	for rows.Next() {
		var o model.CreditOwnership
		if err := rows.Scan(&o.ID, &o.UserID, &o.PackageID, &o.CreditsTotal,
			&o.CreditsRemaining, &o.Status, &o.PurchasedAt, &o.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkExpired flips every grant whose expires_at has passed to EXPIRED
// regardless of remaining balance. Safe to run repeatedly.
func (r *CreditRepo) MarkExpired(ctx context.Context) (int64, error) {
	const q = `UPDATE credit_ownerships SET status = 'EXPIRED'
	           WHERE expires_at <= UTC_TIMESTAMP() AND status <> 'EXPIRED'`
	res, err := r.db.ExecContext(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SpendableForUpdateTx locks and returns the member's spendable grants
// in FEFO order: ACTIVE, unexpired, non-empty, sorted by expires_at
// ascending with ties broken by id ascending for determinism. The
// FOR UPDATE lock is what serializes allocate/refund per user; other
// users' rows are untouched and do not contend.
func (r *CreditRepo) SpendableForUpdateTx(ctx context.Context, tx *sql.Tx, userID uint64) ([]model.CreditOwnership, error) {
	const q = `SELECT id, user_id, package_id, credits_total, credits_remaining, status, purchased_at, expires_at
	           FROM credit_ownerships
	           WHERE user_id = ? AND status = 'ACTIVE' AND expires_at > UTC_TIMESTAMP() AND credits_remaining > 0
	           ORDER BY expires_at ASC, id ASC
	           FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CreditOwnership
	for rows.Next() {
		var o model.CreditOwnership
		if err := rows.Scan(&o.ID, &o.UserID, &o.PackageID, &o.CreditsTotal,
			&o.CreditsRemaining, &o.Status, &o.PurchasedAt, &o.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DebitTx subtracts amount from one locked ownership and flips it to
// DEPLETED when the balance reaches zero. The caller must hold the
// row lock from SpendableForUpdateTx and must have verified the
// balance; the WHERE guard is a backstop, not the primary check.
// MySQL evaluates SET assignments left to right, so the status
// expression reads credits_remaining after the subtraction.
func (r *CreditRepo) DebitTx(ctx context.Context, tx *sql.Tx, ownershipID uint64, amount uint32) error {
	const q = `UPDATE credit_ownerships
	           SET credits_remaining = credits_remaining - ?,
	               status = IF(credits_remaining = 0, 'DEPLETED', status)
	           WHERE id = ? AND credits_remaining >= ?`
	res, err := tx.ExecContext(ctx, q, amount, ownershipID, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOwnershipNotFound
	}
	return nil
}

// CreditBackTx restores amount to one ownership, capped at
// credits_total, and flips DEPLETED back to ACTIVE. Expired grants
// stay EXPIRED: the balance comes back but is no longer spendable.
func (r *CreditRepo) CreditBackTx(ctx context.Context, tx *sql.Tx, ownershipID uint64, amount uint32) error {
	const q = `UPDATE credit_ownerships
	           SET credits_remaining = LEAST(credits_total, credits_remaining + ?),
	               status = IF(status = 'DEPLETED', 'ACTIVE', status)
	           WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, amount, ownershipID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOwnershipNotFound
	}
	return nil
}

// InsertAllocationTx persists a plan header and its entries in the
// same transaction that applied the debits, so the compensation record
// is durable iff the debits are.
func (r *CreditRepo) InsertAllocationTx(ctx context.Context, tx *sql.Tx, a *model.CreditAllocation, entries []model.AllocationEntry) error {
	const q = `INSERT INTO credit_allocations (id, user_id, booking_id, amount) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, a.ID, a.UserID, a.BookingID, a.Amount); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	query := `INSERT INTO credit_allocation_entries (allocation_id, ownership_id, debited) VALUES `
	args := make([]interface{}, 0, len(entries)*3)
	for i, e := range entries {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, a.ID, e.OwnershipID, e.Debited)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ClaimRefundTx marks a plan refunded exactly once. It reports false
// when the plan was already refunded (or never existed), which the
// ledger treats as a no-op so a crashed-and-retried refund cannot
// double-credit.
func (r *CreditRepo) ClaimRefundTx(ctx context.Context, tx *sql.Tx, allocationID string) (bool, error) {
	const q = `UPDATE credit_allocations SET refunded_at = UTC_TIMESTAMP()
	           WHERE id = ? AND refunded_at IS NULL`
	res, err := tx.ExecContext(ctx, q, allocationID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// EntriesTx returns a plan's (ownership, debit) pairs ordered by
// ownership id so refunds touch rows in a stable order.
func (r *CreditRepo) EntriesTx(ctx context.Context, tx *sql.Tx, allocationID string) ([]model.AllocationEntry, error) {
	const q = `SELECT ownership_id, debited FROM credit_allocation_entries
	           WHERE allocation_id = ? ORDER BY ownership_id ASC`
	rows, err := tx.QueryContext(ctx, q, allocationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AllocationEntry
	for rows.Next() {
		var e model.AllocationEntry
		if err := rows.Scan(&e.OwnershipID, &e.Debited); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
