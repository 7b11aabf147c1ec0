package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/dsilva06/fitzy-sub001/internal/model"
)

// The driver may hand back its duplicate-key error wrapped, so the
// detection must unwrap to *mysql.MySQLError instead of matching on the
// message text.
func TestJoinMapsWrappedDuplicateKey(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewWaitlistRepo(db)

	dup := fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '7-1'"})
	mock.ExpectExec(`INSERT INTO waitlist_entries`).
		WithArgs(uint64(7), uint64(1)).
		WillReturnError(dup)

	e := &model.WaitlistEntry{UserID: 7, SessionID: 1}
	if err := repo.Join(context.Background(), e); !errors.Is(err, ErrAlreadyWaitlisted) {
		t.Fatalf("err = %v, want ErrAlreadyWaitlisted", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestJoinPassesThroughOtherErrors(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewWaitlistRepo(db)

	down := &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}
	mock.ExpectExec(`INSERT INTO waitlist_entries`).
		WithArgs(uint64(7), uint64(1)).
		WillReturnError(down)

	e := &model.WaitlistEntry{UserID: 7, SessionID: 1}
	if err := repo.Join(context.Background(), e); errors.Is(err, ErrAlreadyWaitlisted) || err == nil {
		t.Fatalf("err = %v, want the driver error passed through", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
