// Package settlement implements the checkout settlement engine: the
// capacity ledger, the credit ledger, the payment gate, the checkout
// orchestrator and the cancellation/waitlist promoter. It is the only
// part of the system that mutates bookings, session capacity, credit
// ownerships and payments, and it does so under the invariants that a
// session is never oversold, credits are never double-spent, and every
// confirmed booking carries exactly one paid payment.
package settlement

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// Business-rule failures. These are terminal outcomes returned to the
// caller; the orchestrator never retries them.
var (
	// ErrCapacityExceeded means the session had no open spot at the
	// moment of the reserve attempt.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInsufficientCredits means the member's spendable balance was
	// below the requested amount; no ownership was touched.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrPaymentDeclined means the external gateway declined the
	// monetary capture.
	ErrPaymentDeclined = errors.New("payment declined")

	// ErrDeadlinePassed means the cancel request arrived after the
	// booking's cancellation deadline.
	ErrDeadlinePassed = errors.New("cancellation deadline passed")

	// ErrSessionClosed means the session is cancelled, finished or
	// already started and no longer accepts bookings.
	ErrSessionClosed = errors.New("session closed for booking")

	// ErrUnsupportedMethod means the requested payment method is not
	// recognised, or the session does not sell spots that way.
	ErrUnsupportedMethod = errors.New("unsupported payment method")

	// ErrNotFound means the referenced booking or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller is not the owning user.
	ErrForbidden = errors.New("forbidden")
)

// ErrConcurrentModification is the retryable contention failure. Lock
// conflicts surface as this; the orchestrator retries them with bounded
// backoff and only exposes the error once attempts are exhausted.
var ErrConcurrentModification = errors.New("concurrent modification")

// MySQL error numbers that indicate lock contention rather than a
// broken statement.
const (
	mysqlErrLockDeadlock    = 1213
	mysqlErrLockWaitTimeout = 1205
)

// IsRetryable reports whether err is transient contention: either our
// own ErrConcurrentModification or a MySQL deadlock / lock-wait
// timeout bubbling up from the driver. Business-rule failures are
// never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConcurrentModification) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrLockDeadlock || me.Number == mysqlErrLockWaitTimeout
	}
	return false
}
