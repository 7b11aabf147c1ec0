package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/dsilva06/fitzy-sub001/internal/model"
	"github.com/dsilva06/fitzy-sub001/internal/repository"
)

// Narrow views of the collaborators the orchestrator drives. The
// concrete repositories and ledgers satisfy them; tests substitute
// in-memory fakes.
type sessionReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Session, error)
}

type bookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	Transition(ctx context.Context, id uint64, from, to string) (bool, error)
}

type sagaLog interface {
	Start(ctx context.Context, bookingID uint64) error
	SetReserved(ctx context.Context, bookingID uint64, token string) error
	SetPaid(ctx context.Context, bookingID, paymentID uint64, allocationID string) error
	SetState(ctx context.Context, bookingID uint64, state string) error
	Get(ctx context.Context, bookingID uint64) (*repository.SagaRecord, error)
	ListUnsettled(ctx context.Context, olderThan time.Duration) ([]repository.SagaRecord, error)
}

type capacityReserver interface {
	Reserve(ctx context.Context, sessionID uint64, bookingID *uint64) (string, error)
	Release(ctx context.Context, token string) error
}

type creditAllocator interface {
	Allocate(ctx context.Context, userID, bookingID uint64, amount uint32) (*AllocationPlan, error)
	Refund(ctx context.Context, allocationID string) error
}

type paymentCapturer interface {
	CaptureCredits(ctx context.Context, bookingID uint64, plan *AllocationPlan) (*model.Payment, error)
	CaptureMonetary(ctx context.Context, bookingID uint64, method string, amountCents uint32, meta string) (*model.Payment, error)
	Refund(ctx context.Context, paymentID uint64) error
}

type waitlistClaimer interface {
	PromotedBySessionUser(ctx context.Context, sessionID, userID uint64) (*model.WaitlistEntry, error)
	ClaimPromotion(ctx context.Context, entryID uint64) (bool, error)
}

// CheckoutInput is one member's attempt to buy one spot.
type CheckoutInput struct {
	UserID    uint64
	SessionID uint64
	Method    string
	Meta      string
}

// CheckoutResult is the confirmed booking and its payment receipt.
type CheckoutResult struct {
	Booking *model.Booking
	Payment *model.Payment
}

// Orchestrator runs the checkout saga: create booking, reserve
// capacity, capture payment, confirm. Each forward step is logged
// before the next runs; any failure after the reservation walks the
// completed steps backwards in reverse order, so a failed checkout
// converges to FAILED with every side effect undone.
type Orchestrator struct {
	sessions sessionReader
	bookings bookingStore
	sagas    sagaLog
	capacity capacityReserver
	credits  creditAllocator
	gate     paymentCapturer
	waitlist waitlistClaimer
	notifier Notifier

	cancelGrace time.Duration
	now         func() time.Time
}

// NewOrchestrator wires the saga to its collaborators. cancelGrace is
// how long before a session's start the free-cancellation window
// closes; the booking's cancellation deadline is derived from it at
// checkout time. waitlist and notifier may be nil.
func NewOrchestrator(
	sessions sessionReader,
	bookings bookingStore,
	sagas sagaLog,
	capacity capacityReserver,
	credits creditAllocator,
	gate paymentCapturer,
	waitlist waitlistClaimer,
	notifier Notifier,
	cancelGrace time.Duration,
) *Orchestrator {
	return &Orchestrator{
		sessions:    sessions,
		bookings:    bookings,
		sagas:       sagas,
		capacity:    capacity,
		credits:     credits,
		gate:        gate,
		waitlist:    waitlist,
		notifier:    notifier,
		cancelGrace: cancelGrace,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Checkout settles one booking attempt end to end. Under concurrent
// checkouts against the same session, at most capacity_total of them
// confirm; the rest fail with ErrCapacityExceeded and leave no trace
// beyond a FAILED booking row.
func (o *Orchestrator) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if !model.ValidMethod(in.Method) {
		return nil, ErrUnsupportedMethod
	}

	sess, err := o.sessions.GetByID(ctx, in.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sess.Status != model.SessionScheduled || !sess.StartsAt.After(o.now()) {
		return nil, ErrSessionClosed
	}
	if in.Method == model.MethodCredits && sess.CreditCost == 0 {
		return nil, ErrUnsupportedMethod
	}

	booking := &model.Booking{
		UserID:               in.UserID,
		SessionID:            in.SessionID,
		CancellationDeadline: sess.StartsAt.Add(-o.cancelGrace),
	}
	if err := o.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}
	if err := o.sagas.Start(ctx, booking.ID); err != nil {
		// Without a saga row the recovery sweep would never see this
		// booking; close it out here.
		o.fail(ctx, booking.ID)
		return nil, err
	}

	// Step 1: reserve capacity. A member holding a promotion from the
	// waitlist claims the spot already parked on their entry instead of
	// competing for an open one.
	token := o.claimPromotedSpot(ctx, in.SessionID, in.UserID)
	if token == "" {
		err = withRetry(ctx, func() error {
			t, rerr := o.capacity.Reserve(ctx, in.SessionID, &booking.ID)
			if rerr == nil {
				token = t
			}
			return rerr
		})
		if err != nil {
			o.fail(ctx, booking.ID)
			return nil, err
		}
	}
	if err := o.sagas.SetReserved(ctx, booking.ID, token); err != nil {
		o.abort(ctx, booking.ID, token, "", 0)
		return nil, err
	}

	// Step 2: capture payment.
	var (
		payment *model.Payment
		allocID string
	)
	if in.Method == model.MethodCredits {
		var plan *AllocationPlan
		err = withRetry(ctx, func() error {
			p, aerr := o.credits.Allocate(ctx, in.UserID, booking.ID, sess.CreditCost)
			if aerr == nil {
				plan = p
			}
			return aerr
		})
		if err != nil {
			o.abort(ctx, booking.ID, token, "", 0)
			return nil, err
		}
		allocID = plan.ID
		payment, err = o.gate.CaptureCredits(ctx, booking.ID, plan)
		if err != nil {
			o.abort(ctx, booking.ID, token, allocID, 0)
			return nil, err
		}
	} else {
		payment, err = o.gate.CaptureMonetary(ctx, booking.ID, in.Method, sess.PriceCents, in.Meta)
		if err != nil {
			o.abort(ctx, booking.ID, token, "", 0)
			return nil, err
		}
	}
	if err := o.sagas.SetPaid(ctx, booking.ID, payment.ID, allocID); err != nil {
		o.abort(ctx, booking.ID, token, allocID, payment.ID)
		return nil, err
	}

	// Step 3: confirm.
	ok, err := o.bookings.Transition(ctx, booking.ID, model.BookingPending, model.BookingConfirmed)
	if err != nil {
		o.abort(ctx, booking.ID, token, allocID, payment.ID)
		return nil, err
	}
	if !ok {
		o.abort(ctx, booking.ID, token, allocID, payment.ID)
		return nil, ErrConcurrentModification
	}
	booking.Status = model.BookingConfirmed

	// The booking is confirmed; a failure stamping the saga terminal
	// state is healed by the recovery sweep, not surfaced to the member.
	_ = o.sagas.SetState(ctx, booking.ID, repository.SagaConfirmed)

	o.notify(ctx, Notification{
		Event:     EventBookingConfirmed,
		UserID:    in.UserID,
		BookingID: booking.ID,
		SessionID: in.SessionID,
	})
	return &CheckoutResult{Booking: booking, Payment: payment}, nil
}

// claimPromotedSpot consumes the caller's waitlist promotion, if one
// exists, and returns its reservation token. Best effort: any miss
// falls back to a normal reservation.
func (o *Orchestrator) claimPromotedSpot(ctx context.Context, sessionID, userID uint64) string {
	if o.waitlist == nil {
		return ""
	}
	entry, err := o.waitlist.PromotedBySessionUser(ctx, sessionID, userID)
	if err != nil || entry == nil || entry.ReservationToken == nil {
		return ""
	}
	claimed, err := o.waitlist.ClaimPromotion(ctx, entry.ID)
	if err != nil || !claimed {
		return ""
	}
	return *entry.ReservationToken
}

// fail marks a booking FAILED when no side effect exists yet.
func (o *Orchestrator) fail(ctx context.Context, bookingID uint64) {
	_, _ = o.bookings.Transition(ctx, bookingID, model.BookingPending, model.BookingFailed)
	_ = o.sagas.SetState(ctx, bookingID, repository.SagaFailed)
}

// abort compensates a partially settled checkout in reverse step
// order: payment (or bare allocation) first, then the reservation,
// then the booking status. If a compensation step keeps failing the
// saga stays in COMPENSATING and the recovery sweep finishes the job.
func (o *Orchestrator) abort(ctx context.Context, bookingID uint64, token, allocationID string, paymentID uint64) {
	_ = o.sagas.SetState(ctx, bookingID, repository.SagaCompensating)
	if err := o.undo(ctx, token, allocationID, paymentID); err != nil {
		return
	}
	o.fail(ctx, bookingID)
}

// undo reverses whichever side effects exist, newest first. Every
// underlying operation is idempotent, so undo can run any number of
// times over the same references.
func (o *Orchestrator) undo(ctx context.Context, token, allocationID string, paymentID uint64) error {
	if paymentID != 0 {
		// Refunding the payment also reverses its allocation plan.
		if err := withRetry(ctx, func() error { return o.gate.Refund(ctx, paymentID) }); err != nil {
			return err
		}
	} else if allocationID != "" {
		if err := withRetry(ctx, func() error { return o.credits.Refund(ctx, allocationID) }); err != nil {
			return err
		}
	}
	if token != "" {
		if err := withRetry(ctx, func() error { return o.capacity.Release(ctx, token) }); err != nil {
			return err
		}
	}
	return nil
}

// Recover sweeps sagas that never reached a terminal state, typically
// after a crash mid-checkout. A saga whose booking ended up CONFIRMED
// only needs its terminal stamp; anything else is compensated from the
// logged references and driven to FAILED. Returns the number of sagas
// settled.
func (o *Orchestrator) Recover(ctx context.Context, staleAfter time.Duration) (int, error) {
	recs, err := o.sagas.ListUnsettled(ctx, staleAfter)
	if err != nil {
		return 0, err
	}
	settled := 0
	var lastErr error
	for _, rec := range recs {
		booking, err := o.bookings.GetByID(ctx, rec.BookingID)
		if err != nil {
			lastErr = err
			continue
		}
		switch booking.Status {
		case model.BookingConfirmed, model.BookingCancelled:
			// The forward path finished; only the stamp was lost.
			if err := o.sagas.SetState(ctx, rec.BookingID, repository.SagaConfirmed); err != nil {
				lastErr = err
				continue
			}
		default:
			_ = o.sagas.SetState(ctx, rec.BookingID, repository.SagaCompensating)
			var paymentID uint64
			if rec.PaymentID.Valid {
				paymentID = uint64(rec.PaymentID.Int64)
			}
			if err := o.undo(ctx, rec.ReservationToken.String, rec.AllocationID.String, paymentID); err != nil {
				lastErr = err
				continue
			}
			o.fail(ctx, rec.BookingID)
		}
		settled++
	}
	return settled, lastErr
}

func (o *Orchestrator) notify(ctx context.Context, n Notification) {
	if o.notifier == nil {
		return
	}
	n.OccurredAt = o.now()
	_ = o.notifier.Notify(ctx, n)
}
