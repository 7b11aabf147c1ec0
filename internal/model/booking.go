package model

import "time"

// Booking status values.  PENDING is the only non-terminal state and
// is never re-entered; CONFIRMED can later move to CANCELLED through
// the cancellation path.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
	BookingFailed    = "FAILED"
)

// Booking records a member's attempt to attend a session.  It is
// created PENDING by the checkout orchestrator and settles to
// CONFIRMED or FAILED; a confirmed booking carries exactly one PAID
// payment.
//
// Fields:
//  ID                   – primary key identifier.
//  UserID               – member who booked.
//  SessionID            – session being booked.
//  Status               – PENDING, CONFIRMED, CANCELLED or FAILED.
//  CancellationDeadline – latest instant a self-service cancel is
//                         accepted (session start minus grace window).
//  CreatedAt            – creation timestamp.
//  UpdatedAt            – last update timestamp.
type Booking struct {
	ID                   uint64    // bookings.id
	UserID               uint64    // bookings.user_id
	SessionID            uint64    // bookings.session_id
	Status               string    // bookings.status
	CancellationDeadline time.Time // bookings.cancellation_deadline
	CreatedAt            time.Time // bookings.created_at
	UpdatedAt            time.Time // bookings.updated_at
}

// WaitlistEntry status values. CLAIMED means the promoted member
// completed checkout with the parked token.
const (
	WaitlistActive    = "ACTIVE"
	WaitlistPromoted  = "PROMOTED"
	WaitlistClaimed   = "CLAIMED"
	WaitlistCancelled = "CANCELLED"
)

// WaitlistEntry queues a member for a full session.  Entries are
// consumed FIFO by CreatedAt when a cancellation frees capacity; a
// promoted entry keeps the reservation token that holds its seat.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – queued member.
//  SessionID        – full session being waited on.
//  Status           – ACTIVE, PROMOTED, CLAIMED or CANCELLED.
//  ReservationToken – capacity token held after promotion (nullable).
//  PromotedAt       – when the spot was parked on the entry (nullable);
//                     drives the promotion-hold expiry.
//  CreatedAt        – queue position; FIFO order ascending.
type WaitlistEntry struct {
	ID               uint64     // waitlist_entries.id
	UserID           uint64     // waitlist_entries.user_id
	SessionID        uint64     // waitlist_entries.session_id
	Status           string     // waitlist_entries.status
	ReservationToken *string    // waitlist_entries.reservation_token (nullable)
	PromotedAt       *time.Time // waitlist_entries.promoted_at (nullable)
	CreatedAt        time.Time  // waitlist_entries.created_at
}
