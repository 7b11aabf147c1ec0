package model

import "time"

// Session status values.  A session only accepts bookings while
// SCHEDULED; venue CRUD may move it to CANCELLED or FINISHED.
const (
	SessionScheduled = "SCHEDULED"
	SessionCancelled = "CANCELLED"
	SessionFinished  = "FINISHED"
)

// Session is a bookable class occurrence published by a venue.  Once
// published, CapacityTaken is mutated exclusively through the
// capacity ledger; everything else belongs to venue management CRUD.
// The invariant 0 <= CapacityTaken <= CapacityTotal holds between
// transactions at all times.
//
// Fields:
//  ID            – primary key identifier.
//  VenueID       – venue hosting the session.
//  ClassTypeID   – class type being taught.
//  StartsAt      – when the session begins (UTC).
//  EndsAt        – when the session ends (UTC, after StartsAt).
//  CapacityTotal – number of bookable spots.
//  CapacityTaken – spots currently reserved or confirmed.
//  PriceCents    – monetary price for non-credit payment methods.
//  CreditCost    – price in package credits.
//  Status        – SCHEDULED, CANCELLED or FINISHED.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Session struct {
	ID            uint64    // sessions.id
	VenueID       uint64    // sessions.venue_id
	ClassTypeID   uint64    // sessions.class_type_id
	StartsAt      time.Time // sessions.starts_at
	EndsAt        time.Time // sessions.ends_at
	CapacityTotal uint32    // sessions.capacity_total
	CapacityTaken uint32    // sessions.capacity_taken
	PriceCents    uint32    // sessions.price_cents
	CreditCost    uint32    // sessions.credit_cost
	Status        string    // sessions.status
	CreatedAt     time.Time // sessions.created_at
	UpdatedAt     time.Time // sessions.updated_at
}

// SpotsLeft returns the number of spots still open on the session.
func (s *Session) SpotsLeft() uint32 {
	if s.CapacityTaken >= s.CapacityTotal {
		return 0
	}
	return s.CapacityTotal - s.CapacityTaken
}

// Reservation token status values.  A token is the opaque handle
// returned by the capacity ledger; releasing an already RELEASED
// token is a no-op.
const (
	ReservationActive   = "ACTIVE"
	ReservationReleased = "RELEASED"
)

// SessionReservation is one reserved spot on a session.  The token is
// handed to the caller of the capacity ledger and is required to
// release the spot.  The status flip ACTIVE -> RELEASED is what makes
// release idempotent against double-release.
//
// Fields:
//  Token      – opaque UUID handle for this reservation.
//  SessionID  – session whose capacity is held.
//  BookingID  – booking the spot was reserved for (null for waitlist
//               promotions that have not completed checkout yet).
//  Status     – ACTIVE or RELEASED.
//  CreatedAt  – when the spot was reserved.
//  ReleasedAt – when the spot was given back (null while active).
type SessionReservation struct {
	Token      string     // session_reservations.token
	SessionID  uint64     // session_reservations.session_id
	BookingID  *uint64    // session_reservations.booking_id (nullable)
	Status     string     // session_reservations.status
	CreatedAt  time.Time  // session_reservations.created_at
	ReleasedAt *time.Time // session_reservations.released_at (nullable)
}
