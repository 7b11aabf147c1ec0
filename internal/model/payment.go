package model

import (
	"database/sql"
	"time"
)

// Payment methods accepted at checkout.  MethodCredits settles
// against the member's credit ownerships; the rest go through the
// external gateway capability.
const (
	MethodCredits   = "credits"
	MethodCard      = "card"
	MethodZelle     = "zelle"
	MethodPagoMovil = "pago_movil"
	MethodBinance   = "binance"
)

// Payment status values.  A refund does not change Status; it is
// recorded via RefundedAt so the PAID receipt stays intact and the
// null check doubles as the at-most-once refund guard.
const (
	PaymentPending = "PENDING"
	PaymentPaid    = "PAID"
	PaymentFailed  = "FAILED"
)

// Payment is the durable receipt of the settlement outcome for one
// booking.  Credit payments carry amount 0 and reference the
// allocation plan that debited the ownerships; monetary payments
// carry the gateway receipt reference.
//
// Fields:
//  ID           – primary key identifier.
//  BookingID    – booking this payment settles.
//  Method       – credits, card, zelle, pago_movil or binance.
//  AmountCents  – captured amount; always 0 for credits.
//  Status       – PENDING, PAID or FAILED.
//  Reference    – gateway receipt or allocation plan id.
//  Meta         – opaque method-specific detail (JSON).
//  RefundedAt   – when the payment was refunded (null if never).
//  CreatedAt    – creation timestamp.
type Payment struct {
	ID          uint64         // payments.id
	BookingID   uint64         // payments.booking_id
	Method      string         // payments.method
	AmountCents uint32         // payments.amount_cents
	Status      string         // payments.status
	Reference   sql.NullString // payments.reference (nullable)
	Meta        sql.NullString // payments.meta (nullable JSON)
	RefundedAt  *time.Time     // payments.refunded_at (nullable)
	CreatedAt   time.Time      // payments.created_at
}

// IsMonetary reports whether the method settles through the external
// gateway rather than the credit ledger.
func IsMonetary(method string) bool {
	switch method {
	case MethodCard, MethodZelle, MethodPagoMovil, MethodBinance:
		return true
	}
	return false
}

// ValidMethod reports whether the method is one the checkout accepts.
func ValidMethod(method string) bool {
	return method == MethodCredits || IsMonetary(method)
}
