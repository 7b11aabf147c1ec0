package settlement

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dsilva06/fitzy-sub001/internal/model"
	"github.com/dsilva06/fitzy-sub001/internal/repository"
)

// Gateway abstracts the external monetary processor. Implementations
// must return ErrPaymentDeclined (possibly wrapped) when the processor
// rejects the charge; any other error is treated as infrastructure
// failure.
type Gateway interface {
	Capture(ctx context.Context, method string, amountCents uint32, meta string) (reference string, err error)
	Refund(ctx context.Context, reference string, amountCents uint32) error
}

// PaymentGate records payment receipts and is the single entry point
// for moving money (or credits) in either direction. Every confirmed
// booking owns exactly one PAID row; refunds are single-use via the
// refunded_at claim on that row.
type PaymentGate struct {
	payments *repository.PaymentRepo
	credits  *CreditLedger
	gateway  Gateway
}

// NewPaymentGate wires the gate to its receipt store, the credit
// ledger (for refunding credit payments) and the monetary gateway.
func NewPaymentGate(payments *repository.PaymentRepo, credits *CreditLedger, gw Gateway) *PaymentGate {
	return &PaymentGate{payments: payments, credits: credits, gateway: gw}
}

// CaptureCredits records the PAID receipt for a checkout settled with
// credits. The allocation plan has already debited the grants; the
// receipt's reference stores the plan ID so Refund can find it later.
func (g *PaymentGate) CaptureCredits(ctx context.Context, bookingID uint64, plan *AllocationPlan) (*model.Payment, error) {
	p := &model.Payment{
		BookingID:   bookingID,
		Method:      model.MethodCredits,
		AmountCents: 0,
		Status:      model.PaymentPaid,
		Reference:   sql.NullString{String: plan.ID, Valid: true},
		Meta:        sql.NullString{String: fmt.Sprintf(`{"credits":%d}`, plan.Amount), Valid: true},
	}
	if err := g.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CaptureMonetary charges the external gateway and records the receipt.
// A declined charge leaves a FAILED row for audit and surfaces
// ErrPaymentDeclined; nothing else in the system has changed at that
// point, so the orchestrator's only remaining cleanup is the
// reservation.
func (g *PaymentGate) CaptureMonetary(ctx context.Context, bookingID uint64, method string, amountCents uint32, meta string) (*model.Payment, error) {
	ref, err := g.gateway.Capture(ctx, method, amountCents, meta)
	if err != nil {
		failed := &model.Payment{
			BookingID:   bookingID,
			Method:      method,
			AmountCents: amountCents,
			Status:      model.PaymentFailed,
			Meta:        sql.NullString{String: meta, Valid: meta != ""},
		}
		if insErr := g.payments.Create(ctx, failed); insErr != nil {
			return nil, insErr
		}
		return nil, err
	}
	p := &model.Payment{
		BookingID:   bookingID,
		Method:      method,
		AmountCents: amountCents,
		Status:      model.PaymentPaid,
		Reference:   sql.NullString{String: ref, Valid: true},
		Meta:        sql.NullString{String: meta, Valid: meta != ""},
	}
	if err := g.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Refund reverses a PAID payment exactly once. Credit payments replay
// the allocation plan backwards; monetary payments go back through the
// gateway. Refunding an already refunded payment is a no-op, so the
// cancel flow can re-run after a crash without paying twice.
func (g *PaymentGate) Refund(ctx context.Context, paymentID uint64) error {
	p, err := g.payments.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.Status != model.PaymentPaid {
		return nil
	}

	if p.Method == model.MethodCredits {
		// The plan's own refunded_at marker guards double credit-back;
		// the receipt stamp is bookkeeping on top of it.
		if p.Reference.Valid {
			if err := g.credits.Refund(ctx, p.Reference.String); err != nil {
				return err
			}
		}
		_, err := g.payments.ClaimRefund(ctx, paymentID)
		return err
	}

	claimed, err := g.payments.ClaimRefund(ctx, paymentID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	if err := g.gateway.Refund(ctx, p.Reference.String, p.AmountCents); err != nil {
		// Give the claim back so the next attempt retries the gateway.
		if unErr := g.payments.UnclaimRefund(ctx, paymentID); unErr != nil {
			return unErr
		}
		return err
	}
	return nil
}
