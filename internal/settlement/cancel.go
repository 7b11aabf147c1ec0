package settlement

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dsilva06/fitzy-sub001/internal/model"
	"github.com/dsilva06/fitzy-sub001/internal/repository"
)

type cancellationLog interface {
	Get(ctx context.Context, bookingID uint64) (*repository.SagaRecord, error)
	StartCancellation(ctx context.Context, bookingID uint64) error
	GetCancellation(ctx context.Context, bookingID uint64) (*repository.CancellationRecord, error)
	MarkCancellationStep(ctx context.Context, bookingID uint64, column string) error
	ListIncompleteCancellations(ctx context.Context, olderThan time.Duration) ([]repository.CancellationRecord, error)
}

type waitlistStore interface {
	ActiveBySession(ctx context.Context, sessionID uint64) ([]model.WaitlistEntry, error)
	Promote(ctx context.Context, entryID uint64, token string) (bool, error)
	ListStalePromotions(ctx context.Context, olderThan time.Duration) ([]model.WaitlistEntry, error)
	ExpirePromotion(ctx context.Context, entryID uint64) (bool, error)
}

// Canceller runs the member-facing cancellation flow: refund the
// payment, release the spot, mark the booking CANCELLED, then offer
// the freed spot to the session's waitlist in join order. Every
// sub-step stamps the cancellation log when it completes, and every
// sub-step is idempotent, so a cancel interrupted anywhere can simply
// be run again.
type Canceller struct {
	bookings bookingStore
	sagas    cancellationLog
	capacity capacityReserver
	gate     paymentCapturer
	waitlist waitlistStore
	notifier Notifier

	now func() time.Time
}

// NewCanceller wires the cancellation flow. notifier may be nil.
func NewCanceller(
	bookings bookingStore,
	sagas cancellationLog,
	capacity capacityReserver,
	gate paymentCapturer,
	waitlist waitlistStore,
	notifier Notifier,
) *Canceller {
	return &Canceller{
		bookings: bookings,
		sagas:    sagas,
		capacity: capacity,
		gate:     gate,
		waitlist: waitlist,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Cancel cancels the member's confirmed booking.
//
// Before the cancellation deadline it refunds in full and frees the
// spot; at or past the deadline it refuses with ErrDeadlinePassed and
// changes nothing. Re-cancelling an already CANCELLED booking is a
// no-op that also re-drives any incomplete sub-steps from the log, so
// a half-applied cancel converges on retry.
func (c *Canceller) Cancel(ctx context.Context, userID, bookingID uint64) error {
	booking, err := c.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return ErrNotFound
		}
		return err
	}
	if booking.UserID != userID {
		return ErrForbidden
	}

	switch booking.Status {
	case model.BookingConfirmed:
		// An existing step-log row means a previous cancel already
		// started and may already have refunded the payment; it must be
		// driven to completion no matter what the clock says now. Only
		// a brand-new cancel is held to the deadline.
		switch _, err := c.sagas.GetCancellation(ctx, bookingID); {
		case err == nil:
		case errors.Is(err, sql.ErrNoRows):
			if !c.now().Before(booking.CancellationDeadline) {
				return ErrDeadlinePassed
			}
		default:
			return err
		}
	case model.BookingCancelled:
		// Resume whatever the previous attempt left undone.
	default:
		return ErrNotFound
	}

	if err := c.sagas.StartCancellation(ctx, bookingID); err != nil {
		return err
	}
	return c.drive(ctx, booking)
}

// drive runs the cancellation's sub-steps from the step log, skipping
// anything already stamped. Shared by Cancel and the recovery sweep.
func (c *Canceller) drive(ctx context.Context, booking *model.Booking) error {
	bookingID := booking.ID
	steps, err := c.sagas.GetCancellation(ctx, bookingID)
	if err != nil {
		return err
	}
	saga, err := c.sagas.Get(ctx, bookingID)
	if err != nil {
		return err
	}

	// Step 1: refund the payment.
	if !steps.RefundedAt.Valid {
		if saga.PaymentID.Valid {
			err := withRetry(ctx, func() error {
				return c.gate.Refund(ctx, uint64(saga.PaymentID.Int64))
			})
			if err != nil {
				return err
			}
		}
		if err := c.sagas.MarkCancellationStep(ctx, bookingID, "refunded_at"); err != nil {
			return err
		}
	}

	// Step 2: release the spot.
	if !steps.ReleasedAt.Valid {
		if saga.ReservationToken.Valid {
			err := withRetry(ctx, func() error {
				return c.capacity.Release(ctx, saga.ReservationToken.String)
			})
			if err != nil {
				return err
			}
		}
		if err := c.sagas.MarkCancellationStep(ctx, bookingID, "released_at"); err != nil {
			return err
		}
	}

	// Step 3: mark the booking CANCELLED.
	if !steps.CompletedAt.Valid {
		if _, err := c.bookings.Transition(ctx, bookingID, model.BookingConfirmed, model.BookingCancelled); err != nil {
			return err
		}
		if err := c.sagas.MarkCancellationStep(ctx, bookingID, "completed_at"); err != nil {
			return err
		}
		c.notify(ctx, Notification{
			Event:     EventBookingCancelled,
			UserID:    booking.UserID,
			BookingID: bookingID,
			SessionID: booking.SessionID,
		})
	}

	// Step 4: hand the freed spot to the waitlist. Best effort; a
	// failure here never un-cancels the booking, and the next freed
	// spot (or a manual sweep) picks the queue up again.
	c.PromoteWaitlist(ctx, booking.SessionID)
	return nil
}

// PromoteWaitlist walks the session's waitlist in join order and
// reserves a spot for each entry until capacity runs out or the queue
// is empty. Promotion flips the entry under an ACTIVE guard; losing
// that race (the member left the queue meanwhile) gives the reserved
// spot straight back and moves on.
func (c *Canceller) PromoteWaitlist(ctx context.Context, sessionID uint64) {
	entries, err := c.waitlist.ActiveBySession(ctx, sessionID)
	if err != nil {
		return
	}
	for _, e := range entries {
		token, err := c.capacity.Reserve(ctx, sessionID, nil)
		if err != nil {
			// Full again, closed, or contention: stop here either way.
			return
		}
		promoted, err := c.waitlist.Promote(ctx, e.ID, token)
		if err != nil || !promoted {
			_ = c.capacity.Release(ctx, token)
			continue
		}
		c.notify(ctx, Notification{
			Event:     EventWaitlistPromoted,
			UserID:    e.UserID,
			SessionID: sessionID,
		})
	}
}

// Recover re-drives cancellations that stamped at least one step but
// never completed, e.g. after a crash between the refund and the
// release. Returns how many converged; the last error is reported but
// never stops the sweep.
func (c *Canceller) Recover(ctx context.Context, olderThan time.Duration) (int, error) {
	recs, err := c.sagas.ListIncompleteCancellations(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	settled := 0
	var lastErr error
	for _, rec := range recs {
		booking, err := c.bookings.GetByID(ctx, rec.BookingID)
		if err != nil {
			lastErr = err
			continue
		}
		if err := c.drive(ctx, booking); err != nil {
			lastErr = err
			continue
		}
		settled++
	}
	return settled, lastErr
}

// ExpirePromotions returns unclaimed promotion holds to the pool. Each
// expired entry is flipped under the PROMOTED guard first, so a
// checkout claiming the hold concurrently keeps it; the loser of that
// race changes nothing. The freed spot is offered onward to the queue.
func (c *Canceller) ExpirePromotions(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := c.waitlist.ListStalePromotions(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	expired := 0
	var lastErr error
	for _, e := range entries {
		flipped, err := c.waitlist.ExpirePromotion(ctx, e.ID)
		if err != nil {
			lastErr = err
			continue
		}
		if !flipped {
			continue
		}
		if e.ReservationToken != nil {
			if err := c.capacity.Release(ctx, *e.ReservationToken); err != nil {
				lastErr = err
				continue
			}
		}
		expired++
		c.PromoteWaitlist(ctx, e.SessionID)
	}
	return expired, lastErr
}

func (c *Canceller) notify(ctx context.Context, n Notification) {
	if c.notifier == nil {
		return
	}
	n.OccurredAt = c.now()
	_ = c.notifier.Notify(ctx, n)
}
