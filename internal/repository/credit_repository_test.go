package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// The DEPLETED flip must read credits_remaining after the subtraction:
// MySQL applies SET assignments left to right, so an expression that
// re-subtracts the amount would misclassify a grant drained exactly to
// zero (stays ACTIVE) and a grant at twice the amount (flipped while
// credits remain, hiding them from the spendable scan).
func TestDebitFlipsDepletedOnUpdatedBalance(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewCreditRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`status = IF\(credits_remaining = 0, 'DEPLETED', status\)`).
		WithArgs(uint32(2), uint64(1), uint32(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.DebitTx(context.Background(), tx, 1, 2); err != nil {
		t.Fatalf("DebitTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDebitGuardRejectsOverdraw(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewCreditRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`credits_remaining >= \?`).
		WithArgs(uint32(5), uint64(1), uint32(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.DebitTx(context.Background(), tx, 1, 5); err != ErrOwnershipNotFound {
		t.Fatalf("err = %v, want ErrOwnershipNotFound", err)
	}
	_ = tx.Rollback()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
