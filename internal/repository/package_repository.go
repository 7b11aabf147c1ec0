package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dsilva06/fitzy-sub001/internal/model"
)

// ErrPackageNotFound indicates a credit package was not located in the DB.
var ErrPackageNotFound = errors.New("credit package not found")

// PackageRepo manages persistence for credit packages.
type PackageRepo struct {
	db *sql.DB
}

// NewPackageRepo constructs a PackageRepo with the given DB handle.
func NewPackageRepo(db *sql.DB) *PackageRepo { return &PackageRepo{db: db} }

// Create inserts a credit package and assigns the generated ID.
func (r *PackageRepo) Create(ctx context.Context, p *model.CreditPackage) error {
	const q = `INSERT INTO credit_packages (venue_id, name, credits, price_cents, validity_days)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, p.VenueID, p.Name, p.Credits, p.PriceCents, p.ValidityDays)
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

// GetByID retrieves a credit package by its ID.
func (r *PackageRepo) GetByID(ctx context.Context, id uint64) (*model.CreditPackage, error) {
	const q = `SELECT id, venue_id, name, credits, price_cents, validity_days, created_at
	           FROM credit_packages WHERE id = ?`
	var p model.CreditPackage
	err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.VenueID, &p.Name,
		&p.Credits, &p.PriceCents, &p.ValidityDays, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListByVenue returns the packages a venue sells.
func (r *PackageRepo) ListByVenue(ctx context.Context, venueID uint64) ([]model.CreditPackage, error) {
	const q = `SELECT id, venue_id, name, credits, price_cents, validity_days, created_at
	           FROM credit_packages WHERE venue_id = ? ORDER BY credits ASC`
	rows, err := r.db.QueryContext(ctx, q, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.CreditPackage, 0)
	for rows.Next() {
		var p model.CreditPackage
		if err := rows.Scan(&p.ID, &p.VenueID, &p.Name, &p.Credits,
			&p.PriceCents, &p.ValidityDays, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a package. Existing ownerships keep their grants; the
// package row is only catalogue data.
func (r *PackageRepo) Delete(ctx context.Context, id, venueID uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM credit_packages WHERE id = ? AND venue_id = ?`, id, venueID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPackageNotFound
	}
	return nil
}
