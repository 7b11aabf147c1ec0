package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dsilva06/fitzy-sub001/internal/model"
	"github.com/dsilva06/fitzy-sub001/internal/repository"
)

// AllocationPlan records exactly which ownerships an allocation debited
// and by how much. The plan ID doubles as the idempotency key for
// Refund.
type AllocationPlan struct {
	ID        string
	UserID    uint64
	BookingID uint64
	Amount    uint32
	Entries   []model.AllocationEntry
}

// CreditLedger owns credit balances. Allocate debits grants
// first-expiring-first and writes a reversible plan; Refund replays the
// plan backwards exactly once.
type CreditLedger struct {
	credits *repository.CreditRepo
}

// NewCreditLedger constructs the ledger over the credit repository.
func NewCreditLedger(credits *repository.CreditRepo) *CreditLedger {
	return &CreditLedger{credits: credits}
}

// planDebits walks spendable grants in the order they arrived (already
// FEFO-sorted by the query) and assigns debits until amount is covered.
// It returns nil when the total spendable balance is short; nothing is
// decided partially.
func planDebits(grants []model.CreditOwnership, amount uint32) []model.AllocationEntry {
	remaining := amount
	entries := make([]model.AllocationEntry, 0, 2)
	for _, g := range grants {
		if remaining == 0 {
			break
		}
		take := g.CreditsRemaining
		if take > remaining {
			take = remaining
		}
		if take == 0 {
			continue
		}
		entries = append(entries, model.AllocationEntry{OwnershipID: g.ID, Debited: take})
		remaining -= take
	}
	if remaining > 0 {
		return nil
	}
	return entries
}

// Allocate debits amount credits from the member's spendable grants,
// oldest expiry first, and persists the allocation plan in the same
// transaction. The FOR UPDATE scan serializes concurrent allocations
// for one user, so two simultaneous checkouts against the same balance
// settle one after the other and the second sees the first's debits.
//
// Returns ErrInsufficientCredits, with no rows touched, when the
// spendable balance is below amount.
func (l *CreditLedger) Allocate(ctx context.Context, userID, bookingID uint64, amount uint32) (*AllocationPlan, error) {
	if amount == 0 {
		return nil, fmt.Errorf("allocate: zero amount for booking %d", bookingID)
	}
	tx, err := l.credits.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	grants, err := l.credits.SpendableForUpdateTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	entries := planDebits(grants, amount)
	if entries == nil {
		return nil, ErrInsufficientCredits
	}

	for _, e := range entries {
		if err := l.credits.DebitTx(ctx, tx, e.OwnershipID, e.Debited); err != nil {
			return nil, err
		}
	}

	plan := &AllocationPlan{
		ID:        uuid.NewString(),
		UserID:    userID,
		BookingID: bookingID,
		Amount:    amount,
		Entries:   entries,
	}
	alloc := &model.CreditAllocation{ID: plan.ID, UserID: userID, BookingID: bookingID, Amount: amount}
	if err := l.credits.InsertAllocationTx(ctx, tx, alloc, entries); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return plan, nil
}

// Refund reverses the allocation identified by allocationID. The
// refunded_at claim makes it single-use: the first call credits every
// entry back (capped at each grant's credits_total, and without
// reviving expired grants), later calls are no-ops. Unknown IDs are
// also no-ops so compensation paths can fire it blindly.
func (l *CreditLedger) Refund(ctx context.Context, allocationID string) error {
	if allocationID == "" {
		return nil
	}
	tx, err := l.credits.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	claimed, err := l.credits.ClaimRefundTx(ctx, tx, allocationID)
	if err != nil {
		return err
	}
	if claimed {
		entries, err := l.credits.EntriesTx(ctx, tx, allocationID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := l.credits.CreditBackTx(ctx, tx, e.OwnershipID, e.Debited); err != nil {
				return err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Spendable reports the member's currently spendable balance. Purely
// informational; checkout relies on Allocate's locked scan, not this.
func (l *CreditLedger) Spendable(ctx context.Context, userID uint64) (uint32, error) {
	grants, err := l.credits.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	var total uint32
	for _, g := range grants {
		if g.Spendable() {
			total += g.CreditsRemaining
		}
	}
	return total, nil
}
