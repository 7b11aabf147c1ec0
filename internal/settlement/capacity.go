package settlement

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dsilva06/fitzy-sub001/internal/model"
	"github.com/dsilva06/fitzy-sub001/internal/repository"
)

// CapacityLedger owns spot counts. Reserve and Release are the only two
// ways capacity_taken moves; both run the counter update and the token
// write in one transaction so a crash can never leave a counted spot
// without a token, or a token without a counted spot.
type CapacityLedger struct {
	sessions *repository.SessionRepo
}

// NewCapacityLedger constructs the ledger over the session repository.
func NewCapacityLedger(sessions *repository.SessionRepo) *CapacityLedger {
	return &CapacityLedger{sessions: sessions}
}

// Reserve claims one spot on the session and returns an opaque token
// identifying the claim. bookingID may be nil for reservations made on
// behalf of a waitlist promotion before the promoted booking exists.
//
// Failure modes: ErrNotFound when the session does not exist,
// ErrSessionClosed when it is no longer SCHEDULED, ErrCapacityExceeded
// when every spot is taken. None of these mutate anything.
func (l *CapacityLedger) Reserve(ctx context.Context, sessionID uint64, bookingID *uint64) (string, error) {
	tx, err := l.sessions.DB().BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	taken, err := l.sessions.TakeSpotTx(ctx, tx, sessionID)
	if err != nil {
		return "", err
	}
	if !taken {
		return "", l.diagnoseReserveFailure(ctx, sessionID)
	}

	token := uuid.NewString()
	res := &model.SessionReservation{Token: token, SessionID: sessionID, BookingID: bookingID}
	if err := l.sessions.InsertReservationTx(ctx, tx, res); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	committed = true
	return token, nil
}

// diagnoseReserveFailure turns a zero-row guarded increment into the
// right taxonomy error by re-reading the session outside the failed
// attempt.
func (l *CapacityLedger) diagnoseReserveFailure(ctx context.Context, sessionID uint64) error {
	sess, err := l.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrNotFound
		}
		return err
	}
	if sess.Status != model.SessionScheduled {
		return ErrSessionClosed
	}
	return ErrCapacityExceeded
}

// Release returns the spot held by token. It is idempotent: releasing
// an already released or unknown token is a no-op, and the capacity
// decrement only happens on the call that actually flips the token, so
// double releases can never free two spots for one reservation.
func (l *CapacityLedger) Release(ctx context.Context, token string) error {
	tx, err := l.sessions.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	sessionID, claimed, err := l.sessions.ClaimReleaseTx(ctx, tx, token)
	if err != nil {
		return err
	}
	if claimed {
		if err := l.sessions.FreeSpotTx(ctx, tx, sessionID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
