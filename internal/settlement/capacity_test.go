package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dsilva06/fitzy-sub001/internal/repository"
)

func sessionRow(id uint64, total, taken uint32, status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "venue_id", "class_type_id", "starts_at", "ends_at",
		"capacity_total", "capacity_taken", "price_cents", "credit_cost",
		"status", "created_at", "updated_at",
	}).AddRow(id, 1, 1, now.Add(time.Hour), now.Add(2*time.Hour), total, taken, 1500, 3, status, now, now)
}

func TestReserveTakesSpotAndWritesToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SET capacity_taken = capacity_taken \\+ 1").WithArgs(42).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO session_reservations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ledger := NewCapacityLedger(repository.NewSessionRepo(db))
	bookingID := uint64(9)
	token, err := ledger.Reserve(context.Background(), 42, &bookingID)
	if err != nil {
		t.Fatalf("reserve error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a reservation token")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveFullSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SET capacity_taken = capacity_taken \\+ 1").WithArgs(42).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM sessions WHERE id = ").WithArgs(42).
		WillReturnRows(sessionRow(42, 5, 5, "SCHEDULED"))
	mock.ExpectRollback()

	ledger := NewCapacityLedger(repository.NewSessionRepo(db))
	_, err = ledger.Reserve(context.Background(), 42, nil)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("got %v, want ErrCapacityExceeded", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveCancelledSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SET capacity_taken = capacity_taken \\+ 1").WithArgs(42).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM sessions WHERE id = ").WithArgs(42).
		WillReturnRows(sessionRow(42, 5, 1, "CANCELLED"))
	mock.ExpectRollback()

	ledger := NewCapacityLedger(repository.NewSessionRepo(db))
	_, err = ledger.Reserve(context.Background(), 42, nil)
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("got %v, want ErrSessionClosed", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	const token = "aaaa-bbbb"

	// First release claims the token and frees the spot.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT session_id FROM session_reservations").WithArgs(token).
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}).AddRow(42))
	mock.ExpectExec("SET status = 'RELEASED'").WithArgs(token).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET capacity_taken = capacity_taken - 1").WithArgs(42).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Second release loses the claim: no decrement.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT session_id FROM session_reservations").WithArgs(token).
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}).AddRow(42))
	mock.ExpectExec("SET status = 'RELEASED'").WithArgs(token).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ledger := NewCapacityLedger(repository.NewSessionRepo(db))
	if err := ledger.Release(context.Background(), token); err != nil {
		t.Fatalf("first release error: %v", err)
	}
	if err := ledger.Release(context.Background(), token); err != nil {
		t.Fatalf("second release error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReleaseUnknownTokenIsNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT session_id FROM session_reservations").WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}))
	mock.ExpectCommit()

	ledger := NewCapacityLedger(repository.NewSessionRepo(db))
	if err := ledger.Release(context.Background(), "nope"); err != nil {
		t.Fatalf("release error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
