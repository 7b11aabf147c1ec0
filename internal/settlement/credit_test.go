package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dsilva06/fitzy-sub001/internal/model"
	"github.com/dsilva06/fitzy-sub001/internal/repository"
)

func grant(id uint64, remaining uint32, expires time.Time) model.CreditOwnership {
	return model.CreditOwnership{
		ID:               id,
		CreditsTotal:     remaining,
		CreditsRemaining: remaining,
		Status:           model.OwnershipActive,
		ExpiresAt:        expires,
	}
}

func TestPlanDebits(t *testing.T) {
	soon := time.Now().Add(24 * time.Hour)
	later := soon.Add(24 * time.Hour)

	cases := []struct {
		name   string
		grants []model.CreditOwnership
		amount uint32
		want   []model.AllocationEntry
	}{
		{
			name:   "single grant covers",
			grants: []model.CreditOwnership{grant(1, 5, soon)},
			amount: 3,
			want:   []model.AllocationEntry{{OwnershipID: 1, Debited: 3}},
		},
		{
			name:   "spans grants in given order",
			grants: []model.CreditOwnership{grant(1, 2, soon), grant(2, 5, later)},
			amount: 4,
			want: []model.AllocationEntry{
				{OwnershipID: 1, Debited: 2},
				{OwnershipID: 2, Debited: 2},
			},
		},
		{
			name:   "exact boundary drains first grant only",
			grants: []model.CreditOwnership{grant(1, 2, soon), grant(2, 5, later)},
			amount: 2,
			want:   []model.AllocationEntry{{OwnershipID: 1, Debited: 2}},
		},
		{
			name:   "insufficient total",
			grants: []model.CreditOwnership{grant(1, 1, soon), grant(2, 1, later)},
			amount: 3,
			want:   nil,
		},
		{
			name:   "no grants",
			grants: nil,
			amount: 1,
			want:   nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := planDebits(tc.grants, tc.amount)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d entries, want %d: %+v", len(got), len(tc.want), got)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("entry %d: got %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestAllocateSpansGrantsOldestExpiryFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	cols := []string{"id", "user_id", "package_id", "credits_total", "credits_remaining", "status", "purchased_at", "expires_at"}

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(7).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 7, 1, 5, 2, "ACTIVE", now, now.Add(24*time.Hour)).
			AddRow(2, 7, 1, 5, 5, "ACTIVE", now, now.Add(48*time.Hour)))
	mock.ExpectExec("UPDATE credit_ownerships").WithArgs(2, 1, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE credit_ownerships").WithArgs(2, 2, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO credit_allocations ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO credit_allocation_entries").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	ledger := NewCreditLedger(repository.NewCreditRepo(db))
	plan, err := ledger.Allocate(context.Background(), 7, 99, 4)
	if err != nil {
		t.Fatalf("allocate error: %v", err)
	}
	if plan.ID == "" || plan.Amount != 4 || len(plan.Entries) != 2 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if plan.Entries[0].OwnershipID != 1 || plan.Entries[0].Debited != 2 {
		t.Fatalf("first entry should drain the soonest-expiring grant: %+v", plan.Entries[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAllocateInsufficientTouchesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	cols := []string{"id", "user_id", "package_id", "credits_total", "credits_remaining", "status", "purchased_at", "expires_at"}

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(7).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 7, 1, 5, 1, "ACTIVE", now, now.Add(24*time.Hour)))
	mock.ExpectRollback()

	ledger := NewCreditLedger(repository.NewCreditRepo(db))
	_, err = ledger.Allocate(context.Background(), 7, 99, 3)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("got %v, want ErrInsufficientCredits", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefundIsSingleUse(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	const planID = "11111111-2222-3333-4444-555555555555"

	// First refund claims the plan and credits both entries back.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE credit_allocations SET refunded_at").WithArgs(planID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT ownership_id, debited").WithArgs(planID).
		WillReturnRows(sqlmock.NewRows([]string{"ownership_id", "debited"}).
			AddRow(1, 2).AddRow(2, 2))
	mock.ExpectExec("LEAST").WithArgs(2, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("LEAST").WithArgs(2, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Second refund loses the claim and does nothing.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE credit_allocations SET refunded_at").WithArgs(planID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ledger := NewCreditLedger(repository.NewCreditRepo(db))
	if err := ledger.Refund(context.Background(), planID); err != nil {
		t.Fatalf("first refund error: %v", err)
	}
	if err := ledger.Refund(context.Background(), planID); err != nil {
		t.Fatalf("second refund error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
