package settlement

import (
	"context"
	"time"
)

// Notification event names published on settlement outcomes.
const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventWaitlistPromoted = "waitlist.promoted"
)

// Notification is the payload handed to the notifier when a settlement
// outcome should reach the member.
type Notification struct {
	Event      string    `json:"event"`
	UserID     uint64    `json:"user_id"`
	BookingID  uint64    `json:"booking_id,omitempty"`
	SessionID  uint64    `json:"session_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier delivers notifications out of the settlement engine, e.g.
// onto a message queue. Delivery is best effort: settlement outcomes
// are never rolled back because a notification failed.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
