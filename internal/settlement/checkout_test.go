package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dsilva06/fitzy-sub001/internal/model"
	"github.com/dsilva06/fitzy-sub001/internal/repository"
)

func TestCheckoutMonetaryConfirms(t *testing.T) {
	env := newSettleEnv(5)

	res, err := env.orch.Checkout(context.Background(), CheckoutInput{
		UserID: 7, SessionID: 1, Method: model.MethodCard,
	})
	if err != nil {
		t.Fatalf("checkout error: %v", err)
	}
	if res.Booking.Status != model.BookingConfirmed {
		t.Fatalf("booking status = %s, want CONFIRMED", res.Booking.Status)
	}
	if res.Payment.Status != model.PaymentPaid || res.Payment.AmountCents != 1500 {
		t.Fatalf("unexpected payment: %+v", res.Payment)
	}
	if got := env.capacity.takenOf(1); got != 1 {
		t.Fatalf("capacity taken = %d, want 1", got)
	}

	saga, err := env.sagas.Get(context.Background(), res.Booking.ID)
	if err != nil {
		t.Fatalf("saga get error: %v", err)
	}
	if saga.State != repository.SagaConfirmed {
		t.Fatalf("saga state = %s, want CONFIRMED", saga.State)
	}
	if !saga.ReservationToken.Valid || !saga.PaymentID.Valid {
		t.Fatalf("saga missing step references: %+v", saga)
	}
	if n := env.notifier.byEvent(EventBookingConfirmed); len(n) != 1 {
		t.Fatalf("confirmed notifications = %d, want 1", len(n))
	}
}

func TestCheckoutWithCreditsDebitsBalance(t *testing.T) {
	env := newSettleEnv(5)
	env.credits.balances[7] = 10

	res, err := env.orch.Checkout(context.Background(), CheckoutInput{
		UserID: 7, SessionID: 1, Method: model.MethodCredits,
	})
	if err != nil {
		t.Fatalf("checkout error: %v", err)
	}
	if res.Booking.Status != model.BookingConfirmed {
		t.Fatalf("booking status = %s, want CONFIRMED", res.Booking.Status)
	}
	if got := env.credits.balanceOf(7); got != 7 {
		t.Fatalf("balance = %d, want 7", got)
	}
	saga, _ := env.sagas.Get(context.Background(), res.Booking.ID)
	if !saga.AllocationID.Valid {
		t.Fatal("saga should reference the allocation plan")
	}
}

func TestCheckoutInsufficientCreditsReleasesSpot(t *testing.T) {
	env := newSettleEnv(5)
	env.credits.balances[7] = 2 // cost is 3

	_, err := env.orch.Checkout(context.Background(), CheckoutInput{
		UserID: 7, SessionID: 1, Method: model.MethodCredits,
	})
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("got %v, want ErrInsufficientCredits", err)
	}
	if got := env.capacity.takenOf(1); got != 0 {
		t.Fatalf("capacity taken = %d, want 0 after compensation", got)
	}
	if got := env.credits.balanceOf(7); got != 2 {
		t.Fatalf("balance = %d, want untouched 2", got)
	}
	if n := env.bookings.countByStatus(model.BookingFailed); n != 1 {
		t.Fatalf("failed bookings = %d, want 1", n)
	}
}

func TestCheckoutPaymentDeclinedCompensates(t *testing.T) {
	env := newSettleEnv(5)
	env.gate.declineMonetary = true

	_, err := env.orch.Checkout(context.Background(), CheckoutInput{
		UserID: 7, SessionID: 1, Method: model.MethodCard,
	})
	if !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("got %v, want ErrPaymentDeclined", err)
	}
	if got := env.capacity.takenOf(1); got != 0 {
		t.Fatalf("capacity taken = %d, want 0 after compensation", got)
	}
	if n := env.bookings.countByStatus(model.BookingFailed); n != 1 {
		t.Fatalf("failed bookings = %d, want 1", n)
	}

	// Every saga must land in a terminal state.
	recs, _ := env.sagas.ListUnsettled(context.Background(), 0)
	if len(recs) != 0 {
		t.Fatalf("unsettled sagas left behind: %+v", recs)
	}
}

func TestCheckoutRejectsBadInput(t *testing.T) {
	env := newSettleEnv(5)
	ctx := context.Background()

	if _, err := env.orch.Checkout(ctx, CheckoutInput{UserID: 7, SessionID: 1, Method: "GOLD"}); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("bad method: got %v, want ErrUnsupportedMethod", err)
	}
	if _, err := env.orch.Checkout(ctx, CheckoutInput{UserID: 7, SessionID: 99, Method: model.MethodCard}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing session: got %v, want ErrNotFound", err)
	}

	s := env.sessions.rows[1]
	s.Status = model.SessionCancelled
	env.sessions.rows[1] = s
	if _, err := env.orch.Checkout(ctx, CheckoutInput{UserID: 7, SessionID: 1, Method: model.MethodCard}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("cancelled session: got %v, want ErrSessionClosed", err)
	}
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	const workers = 8
	env := newSettleEnv(1)

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.orch.Checkout(context.Background(), CheckoutInput{
				UserID: uint64(100 + i), SessionID: 1, Method: model.MethodCard,
			})
		}(i)
	}
	wg.Wait()

	confirmed, exceeded := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			confirmed++
		case errors.Is(err, ErrCapacityExceeded):
			exceeded++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if confirmed != 1 || exceeded != workers-1 {
		t.Fatalf("confirmed=%d exceeded=%d, want 1/%d", confirmed, exceeded, workers-1)
	}
	if got := env.capacity.takenOf(1); got != 1 {
		t.Fatalf("capacity taken = %d, want 1", got)
	}
	if n := env.bookings.countByStatus(model.BookingConfirmed); n != 1 {
		t.Fatalf("confirmed bookings = %d, want 1", n)
	}
	if n := env.bookings.countByStatus(model.BookingFailed); n != workers-1 {
		t.Fatalf("failed bookings = %d, want %d", n, workers-1)
	}
}

func TestRecoverCompensatesStalePaidSaga(t *testing.T) {
	env := newSettleEnv(5)
	ctx := context.Background()

	// Simulate a crash after payment: booking PENDING, saga PAID with
	// all references, side effects applied.
	booking := &model.Booking{UserID: 7, SessionID: 1, CancellationDeadline: time.Now().Add(42 * time.Hour)}
	_ = env.bookings.Create(ctx, booking)
	_ = env.sagas.Start(ctx, booking.ID)
	token, err := env.capacity.Reserve(ctx, 1, &booking.ID)
	if err != nil {
		t.Fatalf("reserve error: %v", err)
	}
	_ = env.sagas.SetReserved(ctx, booking.ID, token)
	env.credits.balances[7] = 5
	plan, _ := env.credits.Allocate(ctx, 7, booking.ID, 3)
	payment, _ := env.gate.CaptureCredits(ctx, booking.ID, plan)
	_ = env.sagas.SetPaid(ctx, booking.ID, payment.ID, plan.ID)

	settled, err := env.orch.Recover(ctx, time.Minute)
	if err != nil {
		t.Fatalf("recover error: %v", err)
	}
	if settled != 1 {
		t.Fatalf("settled = %d, want 1", settled)
	}
	if got := env.capacity.takenOf(1); got != 0 {
		t.Fatalf("capacity taken = %d, want 0", got)
	}
	if got := env.credits.balanceOf(7); got != 5 {
		t.Fatalf("balance = %d, want 5 after refund", got)
	}
	b, _ := env.bookings.GetByID(ctx, booking.ID)
	if b.Status != model.BookingFailed {
		t.Fatalf("booking status = %s, want FAILED", b.Status)
	}
	saga, _ := env.sagas.Get(ctx, booking.ID)
	if saga.State != repository.SagaFailed {
		t.Fatalf("saga state = %s, want FAILED", saga.State)
	}
}

func TestRecoverHealsConfirmedBooking(t *testing.T) {
	env := newSettleEnv(5)
	ctx := context.Background()

	// Crash between the booking confirm and the saga's terminal stamp.
	booking := &model.Booking{UserID: 7, SessionID: 1, CancellationDeadline: time.Now().Add(42 * time.Hour)}
	_ = env.bookings.Create(ctx, booking)
	_ = env.sagas.Start(ctx, booking.ID)
	token, _ := env.capacity.Reserve(ctx, 1, &booking.ID)
	_ = env.sagas.SetReserved(ctx, booking.ID, token)
	payment, _ := env.gate.CaptureMonetary(ctx, booking.ID, model.MethodCard, 1500, "")
	_ = env.sagas.SetPaid(ctx, booking.ID, payment.ID, "")
	_, _ = env.bookings.Transition(ctx, booking.ID, model.BookingPending, model.BookingConfirmed)

	settled, err := env.orch.Recover(ctx, time.Minute)
	if err != nil {
		t.Fatalf("recover error: %v", err)
	}
	if settled != 1 {
		t.Fatalf("settled = %d, want 1", settled)
	}
	if got := env.capacity.takenOf(1); got != 1 {
		t.Fatalf("capacity taken = %d, want 1: confirmed booking must keep its spot", got)
	}
	if env.gate.refundedCount() != 0 {
		t.Fatal("confirmed booking must not be refunded")
	}
	saga, _ := env.sagas.Get(ctx, booking.ID)
	if saga.State != repository.SagaConfirmed {
		t.Fatalf("saga state = %s, want CONFIRMED", saga.State)
	}
}

func TestCheckoutFailsBookingWhenStepLogUnavailable(t *testing.T) {
	env := newSettleEnv(5)
	env.sagas.startErr = errors.New("step log unavailable")

	_, err := env.orch.Checkout(context.Background(), CheckoutInput{
		UserID: 7, SessionID: 1, Method: model.MethodCard,
	})
	if err == nil {
		t.Fatal("checkout must fail when the step log cannot record it")
	}
	// The booking must not linger as PENDING: nothing would ever sweep
	// it without a saga row.
	if n := env.bookings.countByStatus(model.BookingFailed); n != 1 {
		t.Fatalf("failed bookings = %d, want 1", n)
	}
	if n := env.bookings.countByStatus(model.BookingPending); n != 0 {
		t.Fatalf("pending bookings = %d, want 0", n)
	}
	if got := env.capacity.takenOf(1); got != 0 {
		t.Fatalf("capacity taken = %d, want 0", got)
	}
}

func TestCheckoutClaimsPromotedHold(t *testing.T) {
	env := newSettleEnv(1)
	res := confirmBooking(t, env, 7, model.MethodCard)
	ctx := context.Background()

	env.waitlist.entries = []*model.WaitlistEntry{
		{ID: 1, UserID: 20, SessionID: 1, Status: model.WaitlistActive},
	}
	if err := env.canceller.Cancel(ctx, 7, res.Booking.ID); err != nil {
		t.Fatalf("cancel error: %v", err)
	}
	if env.waitlist.statusOf(1) != model.WaitlistPromoted {
		t.Fatal("cancel should promote the waiting member")
	}

	// The promoted member checks out against a full session: their
	// parked token covers the spot, no second reservation is taken.
	promoted, err := env.orch.Checkout(ctx, CheckoutInput{
		UserID: 20, SessionID: 1, Method: model.MethodCard,
	})
	if err != nil {
		t.Fatalf("promoted checkout error: %v", err)
	}
	if promoted.Booking.Status != model.BookingConfirmed {
		t.Fatalf("booking status = %s, want CONFIRMED", promoted.Booking.Status)
	}
	if got := env.capacity.takenOf(1); got != 1 {
		t.Fatalf("capacity taken = %d, want 1", got)
	}
	if env.waitlist.statusOf(1) != model.WaitlistClaimed {
		t.Fatalf("entry status = %s, want CLAIMED", env.waitlist.statusOf(1))
	}

	// A walk-in still sees the session full.
	_, err = env.orch.Checkout(ctx, CheckoutInput{
		UserID: 21, SessionID: 1, Method: model.MethodCard,
	})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("got %v, want ErrCapacityExceeded", err)
	}
}
