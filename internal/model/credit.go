package model

import "time"

// CreditPackage is a purchasable bundle of class credits sold by a
// venue.  Buying a package creates a CreditOwnership for the member;
// the package row itself is plain catalogue data.
//
// Fields:
//  ID           – primary key identifier.
//  VenueID      – venue selling the package.
//  Name         – display name (e.g. "10-class pass").
//  Credits      – number of credits granted on purchase.
//  PriceCents   – monetary price of the package.
//  ValidityDays – days until granted credits expire.
//  CreatedAt    – creation timestamp.
type CreditPackage struct {
	ID           uint64    // credit_packages.id
	VenueID      uint64    // credit_packages.venue_id
	Name         string    // credit_packages.name
	Credits      uint32    // credit_packages.credits
	PriceCents   uint32    // credit_packages.price_cents
	ValidityDays uint32    // credit_packages.validity_days
	CreatedAt    time.Time // credit_packages.created_at
}

// CreditOwnership status values.  DEPLETED flips back to ACTIVE when
// a refund restores balance; EXPIRED is terminal regardless of
// remaining credits.
const (
	OwnershipActive   = "ACTIVE"
	OwnershipDepleted = "DEPLETED"
	OwnershipExpired  = "EXPIRED"
)

// CreditAllocation is the durable header of one allocate() call: the
// AllocationPlan that debited a member's ownerships to pay for a
// booking.  RefundedAt doubles as the single-use refund marker.
//
// Fields:
//  ID         – plan identifier (UUID).
//  UserID     – member whose credits were debited.
//  BookingID  – booking the credits paid for.
//  Amount     – total credits debited across entries.
//  RefundedAt – when the plan was refunded (null if never).
//  CreatedAt  – when the allocation was applied.
type CreditAllocation struct {
	ID         string     // credit_allocations.id
	UserID     uint64     // credit_allocations.user_id
	BookingID  uint64     // credit_allocations.booking_id
	Amount     uint32     // credit_allocations.amount
	RefundedAt *time.Time // credit_allocations.refunded_at (nullable)
	CreatedAt  time.Time  // credit_allocations.created_at
}

// AllocationEntry is one (ownership, debit) pair of a plan.  Refund
// replays these exactly, re-crediting each ownership by Debited.
type AllocationEntry struct {
	OwnershipID uint64 // credit_allocation_entries.ownership_id
	Debited     uint32 // credit_allocation_entries.debited
}

// CreditOwnership is one time-bounded grant of credits a member holds
// from purchasing a package.  A member's spendable balance is the sum
// of CreditsRemaining over their ACTIVE, unexpired ownerships.
// Mutated exclusively by the credit ledger allocate/refund paths.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – member who owns the credits.
//  PackageID        – package the grant came from.
//  CreditsTotal     – credits granted at purchase.
//  CreditsRemaining – unspent credits (0 <= remaining <= total).
//  Status           – ACTIVE, DEPLETED or EXPIRED.
//  PurchasedAt      – when the package was bought.
//  ExpiresAt        – when the grant stops being spendable.
type CreditOwnership struct {
	ID               uint64    // credit_ownerships.id
	UserID           uint64    // credit_ownerships.user_id
	PackageID        uint64    // credit_ownerships.package_id
	CreditsTotal     uint32    // credit_ownerships.credits_total
	CreditsRemaining uint32    // credit_ownerships.credits_remaining
	Status           string    // credit_ownerships.status
	PurchasedAt      time.Time // credit_ownerships.purchased_at
	ExpiresAt        time.Time // credit_ownerships.expires_at
}

// Spendable reports whether the grant still counts toward the member's
// balance: ACTIVE, unexpired and holding credits.
func (o *CreditOwnership) Spendable() bool {
	return o.Status == OwnershipActive &&
		o.CreditsRemaining > 0 &&
		o.ExpiresAt.After(time.Now().UTC())
}
