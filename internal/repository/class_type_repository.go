package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dsilva06/fitzy-sub001/internal/model"
)

// ErrClassTypeNotFound indicates a class type was not located in the DB.
var ErrClassTypeNotFound = errors.New("class type not found")

// ClassTypeRepo manages persistence for class types.
type ClassTypeRepo struct {
	db *sql.DB
}

// NewClassTypeRepo constructs a ClassTypeRepo with the given DB handle.
func NewClassTypeRepo(db *sql.DB) *ClassTypeRepo { return &ClassTypeRepo{db: db} }

// Create inserts a class type and assigns the generated ID.
func (r *ClassTypeRepo) Create(ctx context.Context, ct *model.ClassType) error {
	const q = `INSERT INTO class_types (venue_id, name, description, duration_min) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, ct.VenueID, ct.Name, ct.Description, ct.DurationMin)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ct.ID = uint64(id)
	return nil
}

// GetByIDAndVenue retrieves a class type scoped to one venue.
func (r *ClassTypeRepo) GetByIDAndVenue(ctx context.Context, id, venueID uint64) (*model.ClassType, error) {
	const q = `SELECT id, venue_id, name, description, duration_min, created_at
	           FROM class_types WHERE id = ? AND venue_id = ?`
	var ct model.ClassType
	err := r.db.QueryRowContext(ctx, q, id, venueID).Scan(&ct.ID, &ct.VenueID, &ct.Name,
		&ct.Description, &ct.DurationMin, &ct.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClassTypeNotFound
		}
		return nil, err
	}
	return &ct, nil
}

// ListByVenue returns all class types a venue offers.
func (r *ClassTypeRepo) ListByVenue(ctx context.Context, venueID uint64) ([]model.ClassType, error) {
	const q = `SELECT id, venue_id, name, description, duration_min, created_at
	           FROM class_types WHERE venue_id = ? ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, q, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ClassType, 0)
	for rows.Next() {
		var ct model.ClassType
		if err := rows.Scan(&ct.ID, &ct.VenueID, &ct.Name, &ct.Description,
			&ct.DurationMin, &ct.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// Delete removes a class type unless sessions still reference it.
func (r *ClassTypeRepo) Delete(ctx context.Context, id, venueID uint64) error {
	const check = `SELECT COUNT(*) FROM sessions WHERE class_type_id = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, check, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM class_types WHERE id = ? AND venue_id = ?`, id, venueID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrClassTypeNotFound
	}
	return nil
}
