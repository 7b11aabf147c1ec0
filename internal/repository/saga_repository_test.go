package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSagaForwardStepsWriteInOrder(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewSagaRepo(db)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO booking_sagas").
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("SET state = 'RESERVED'").
		WithArgs("tok-1", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET state = 'PAID'").
		WithArgs(uint64(99), "", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET state = \\?").
		WithArgs(SagaConfirmed, uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Start(ctx, 7); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := repo.SetReserved(ctx, 7, "tok-1"); err != nil {
		t.Fatalf("SetReserved: %v", err)
	}
	if err := repo.SetPaid(ctx, 7, 99, ""); err != nil {
		t.Fatalf("SetPaid: %v", err)
	}
	if err := repo.SetState(ctx, 7, SagaConfirmed); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListUnsettledSkipsTerminalStates(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewSagaRepo(db)

	rows := sqlmock.NewRows([]string{"booking_id", "state", "reservation_token", "allocation_id", "payment_id", "updated_at"}).
		AddRow(uint64(3), SagaPaid, "tok-3", nil, int64(12), time.Now().Add(-5*time.Minute)).
		AddRow(uint64(4), SagaReserved, "tok-4", nil, nil, time.Now().Add(-4*time.Minute))
	mock.ExpectQuery("state NOT IN \\('CONFIRMED', 'FAILED'\\)").
		WithArgs(int64(120)).
		WillReturnRows(rows)

	got, err := repo.ListUnsettled(context.Background(), 2*time.Minute)
	if err != nil {
		t.Fatalf("ListUnsettled: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].BookingID != 3 || got[0].State != SagaPaid {
		t.Fatalf("first record = %+v", got[0])
	}
	if got[1].PaymentID.Valid {
		t.Fatalf("reserved saga should have no payment id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkCancellationStepRejectsUnknownColumn(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewSagaRepo(db)

	if err := repo.MarkCancellationStep(context.Background(), 1, "deleted_at"); err != ErrConflict {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestMarkCancellationStepStampsOnce(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewSagaRepo(db)

	mock.ExpectExec("refunded_at = COALESCE\\(refunded_at").
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkCancellationStep(context.Background(), 5, "refunded_at"); err != nil {
		t.Fatalf("MarkCancellationStep: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
