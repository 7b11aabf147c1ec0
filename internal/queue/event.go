// Package queue defines message payloads exchanged over the message
// broker and the background consumer that drains them.
package queue

// BookingEvent is published on every settlement outcome a member
// should hear about: booking confirmed, booking cancelled, waitlist
// spot offered. One queue carries all three; the Event field tells
// consumers which one they are looking at.
type BookingEvent struct {
	Event      string `json:"event"`
	UserID     uint64 `json:"user_id"`
	BookingID  uint64 `json:"booking_id,omitempty"`
	SessionID  uint64 `json:"session_id"`
	OccurredAt string `json:"occurred_at"`
}

// EventQueueName is the durable queue every BookingEvent goes through.
const EventQueueName = "booking.events"
