package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/dsilva06/fitzy-sub001/internal/model"
)

// ErrWaitlistNotFound indicates a waitlist entry was not found.
var ErrWaitlistNotFound = errors.New("waitlist entry not found")

// ErrAlreadyWaitlisted indicates the member already has an ACTIVE
// entry for the session.
var ErrAlreadyWaitlisted = errors.New("already waitlisted")

// WaitlistRepo persists waitlist entries. Entries are consumed FIFO
// by created_at when the promoter walks the queue.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo constructs a WaitlistRepo with the given DB handle.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

// Join appends a member to a session's queue. The unique index on
// (session_id, user_id, status='ACTIVE') turns duplicate joins into
// ErrAlreadyWaitlisted.
func (r *WaitlistRepo) Join(ctx context.Context, e *model.WaitlistEntry) error {
	const q = `INSERT INTO waitlist_entries (user_id, session_id, status) VALUES (?, ?, 'ACTIVE')`
	res, err := r.db.ExecContext(ctx, q, e.UserID, e.SessionID)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return ErrAlreadyWaitlisted
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	e.Status = model.WaitlistActive
	return nil
}

// ActiveBySession returns the session's ACTIVE entries in FIFO order
// (created_at ascending, id ascending as tiebreak).
func (r *WaitlistRepo) ActiveBySession(ctx context.Context, sessionID uint64) ([]model.WaitlistEntry, error) {
	const q = `SELECT id, user_id, session_id, status, reservation_token, created_at
	           FROM waitlist_entries
	           WHERE session_id = ? AND status = 'ACTIVE'
	           ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.WaitlistEntry, 0)
	for rows.Next() {
		var (
			e     model.WaitlistEntry
			token sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Status, &token, &e.CreatedAt); err != nil {
			return nil, err
		}
		if token.Valid {
			v := token.String
			e.ReservationToken = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Promote marks an entry PROMOTED and stores the reservation token
// holding its seat. Guarded on ACTIVE so a racing promoter cannot
// promote the same entry twice; false means the entry was already
// consumed.
func (r *WaitlistRepo) Promote(ctx context.Context, entryID uint64, token string) (bool, error) {
	const q = `UPDATE waitlist_entries
	           SET status = 'PROMOTED', reservation_token = ?, promoted_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = 'ACTIVE'`
	res, err := r.db.ExecContext(ctx, q, token, entryID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PromotedBySessionUser finds the member's PROMOTED entry on a session,
// if any. (nil, nil) means no held spot; checkout then reserves
// normally.
func (r *WaitlistRepo) PromotedBySessionUser(ctx context.Context, sessionID, userID uint64) (*model.WaitlistEntry, error) {
	const q = `SELECT id, user_id, session_id, status, reservation_token, promoted_at, created_at
	           FROM waitlist_entries
	           WHERE session_id = ? AND user_id = ? AND status = 'PROMOTED'
	           LIMIT 1`
	e, err := scanEntry(r.db.QueryRowContext(ctx, q, sessionID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// ClaimPromotion flips PROMOTED -> CLAIMED, handing the parked token
// to the caller's checkout. Guarded so the expiry sweep and a claiming
// checkout cannot both take the same hold.
func (r *WaitlistRepo) ClaimPromotion(ctx context.Context, entryID uint64) (bool, error) {
	const q = `UPDATE waitlist_entries SET status = 'CLAIMED' WHERE id = ? AND status = 'PROMOTED'`
	res, err := r.db.ExecContext(ctx, q, entryID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListStalePromotions returns PROMOTED entries whose hold is older
// than the given duration; the expiry sweep returns their spots to the
// pool.
func (r *WaitlistRepo) ListStalePromotions(ctx context.Context, olderThan time.Duration) ([]model.WaitlistEntry, error) {
	const q = `SELECT id, user_id, session_id, status, reservation_token, promoted_at, created_at
	           FROM waitlist_entries
	           WHERE status = 'PROMOTED'
	             AND promoted_at <= DATE_SUB(UTC_TIMESTAMP(), INTERVAL ? SECOND)
	           ORDER BY promoted_at ASC`
	rows, err := r.db.QueryContext(ctx, q, int64(olderThan.Seconds()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.WaitlistEntry, 0)
	for rows.Next() {
		var (
			e          model.WaitlistEntry
			token      sql.NullString
			promotedAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Status, &token, &promotedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		if token.Valid {
			v := token.String
			e.ReservationToken = &v
		}
		if promotedAt.Valid {
			v := promotedAt.Time
			e.PromotedAt = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ExpirePromotion flips PROMOTED -> CANCELLED when a hold goes
// unclaimed. The same guard as ClaimPromotion: whichever side wins the
// flip owns the token's fate.
func (r *WaitlistRepo) ExpirePromotion(ctx context.Context, entryID uint64) (bool, error) {
	const q = `UPDATE waitlist_entries SET status = 'CANCELLED' WHERE id = ? AND status = 'PROMOTED'`
	res, err := r.db.ExecContext(ctx, q, entryID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanEntry(row *sql.Row) (*model.WaitlistEntry, error) {
	var (
		e          model.WaitlistEntry
		token      sql.NullString
		promotedAt sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Status, &token, &promotedAt, &e.CreatedAt); err != nil {
		return nil, err
	}
	if token.Valid {
		v := token.String
		e.ReservationToken = &v
	}
	if promotedAt.Valid {
		v := promotedAt.Time
		e.PromotedAt = &v
	}
	return &e, nil
}

// CancelEntry lets a member withdraw their own ACTIVE entry.
func (r *WaitlistRepo) CancelEntry(ctx context.Context, entryID, userID uint64) error {
	const check = `SELECT user_id, status FROM waitlist_entries WHERE id = ?`
	var (
		owner  uint64
		status string
	)
	if err := r.db.QueryRowContext(ctx, check, entryID).Scan(&owner, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrWaitlistNotFound
		}
		return err
	}
	if owner != userID {
		return ErrForbidden
	}
	if status != model.WaitlistActive {
		return ErrConflict
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = 'CANCELLED' WHERE id = ? AND status = 'ACTIVE'`, entryID)
	return err
}

// ListByUser returns all of the member's waitlist entries, newest first.
func (r *WaitlistRepo) ListByUser(ctx context.Context, userID uint64) ([]model.WaitlistEntry, error) {
	const q = `SELECT id, user_id, session_id, status, reservation_token, created_at
	           FROM waitlist_entries WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.WaitlistEntry, 0)
	for rows.Next() {
		var (
			e     model.WaitlistEntry
			token sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Status, &token, &e.CreatedAt); err != nil {
			return nil, err
		}
		if token.Valid {
			v := token.String
			e.ReservationToken = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
