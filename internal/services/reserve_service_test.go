package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
)

func TestReserveCredit(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewReserveService(db, zerolog.Nop())

	related := 12
	mock.ExpectBegin()
	mock.ExpectExec(reserveInitExec).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(reserveLockQuery).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(reserveColumns).AddRow("0.00", "0.00", "0.00"))
	mock.ExpectExec(reserveUpdateExec).
		WithArgs(decArg("25.40"), decArg("25.40"), decArg("0"), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(reserveMovementExec).
		WithArgs(12, decArg("25.40"), "credito", "Cashback aprovado - transação #12").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	account, err := svc.Credit(context.Background(), dec("25.40"), &related, "Cashback aprovado - transação #12")
	if err != nil {
		t.Fatalf("Credit() error = %v", err)
	}

	if !account.Total.Equal(dec("25.40")) || !account.Available.Equal(dec("25.40")) || !account.Used.IsZero() {
		t.Errorf("account = %+v, want total=available=25.40 used=0", account)
	}
	if !account.IsBalanced() {
		t.Errorf("account not balanced: %+v", account)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReserveDebitAllowsDeficit(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewReserveService(db, zerolog.Nop())

	mock.ExpectBegin()
	mock.ExpectExec(reserveInitExec).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(reserveLockQuery).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(reserveColumns).AddRow("30.00", "10.00", "20.00"))
	mock.ExpectExec(reserveUpdateExec).
		WithArgs(decArg("30"), decArg("-15"), decArg("45"), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(reserveMovementExec).
		WithArgs(nil, decArg("25"), "debito", "Repasse").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	account, err := svc.DebitTx(context.Background(), tx, dec("25"), nil, "Repasse")
	if err != nil {
		t.Fatalf("DebitTx() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if !account.Available.Equal(dec("-15")) {
		t.Errorf("available = %s, want -15", account.Available)
	}
	if !account.IsBalanced() {
		t.Errorf("account not balanced: %+v", account)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReserveRejectsNonPositiveAmounts(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewReserveService(db, zerolog.Nop())

	for _, amount := range []string{"0", "-5"} {
		if _, err := svc.Credit(context.Background(), dec(amount), nil, "x"); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Credit(%s) error = %v, want ErrInvalidAmount", amount, err)
		}
		if _, err := svc.DebitTx(context.Background(), nil, dec(amount), nil, "x"); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("DebitTx(%s) error = %v, want ErrInvalidAmount", amount, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database access: %v", err)
	}
}

func TestReserveReconcile(t *testing.T) {
	accountQuery := regexp.QuoteMeta("SELECT total, available, used, updated_at FROM admin_reserva_cashback WHERE id = ?")
	sumsQuery := regexp.QuoteMeta("FROM reserve_movements")

	tests := []struct {
		name              string
		account           []driver.Value
		credits, debits   string
		wantBalanced      bool
		wantLogConsistent bool
	}{
		{
			name:              "Given an account matching its log Then everything is consistent",
			account:           []driver.Value{"100.00", "60.00", "40.00", fixedTime},
			credits:           "100.00",
			debits:            "40.00",
			wantBalanced:      true,
			wantLogConsistent: true,
		},
		{
			name:              "Given a balanced account with a missing debit in the log Then the log is inconsistent",
			account:           []driver.Value{"100.00", "60.00", "40.00", fixedTime},
			credits:           "100.00",
			debits:            "30.00",
			wantBalanced:      true,
			wantLogConsistent: false,
		},
		{
			name:              "Given an account whose figures drifted Then it is unbalanced",
			account:           []driver.Value{"100.00", "70.00", "40.00", fixedTime},
			credits:           "100.00",
			debits:            "40.00",
			wantBalanced:      false,
			wantLogConsistent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			svc := NewReserveService(db, zerolog.Nop())

			mock.ExpectQuery(accountQuery).WithArgs(1).
				WillReturnRows(sqlmock.NewRows([]string{"total", "available", "used", "updated_at"}).AddRow(tt.account...))
			mock.ExpectQuery(sumsQuery).
				WillReturnRows(sqlmock.NewRows([]string{"credits", "debits"}).AddRow(tt.credits, tt.debits))

			report, err := svc.Reconcile(context.Background())
			if err != nil {
				t.Fatalf("Reconcile() error = %v", err)
			}
			if report.Balanced != tt.wantBalanced {
				t.Errorf("Balanced = %v, want %v", report.Balanced, tt.wantBalanced)
			}
			if report.LogConsistent != tt.wantLogConsistent {
				t.Errorf("LogConsistent = %v, want %v", report.LogConsistent, tt.wantLogConsistent)
			}
		})
	}
}

func TestReserveGetAccountBeforeFirstUse(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewReserveService(db, zerolog.Nop())

	mock.ExpectQuery(regexp.QuoteMeta("FROM admin_reserva_cashback WHERE id = ?")).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"total", "available", "used", "updated_at"}))

	account, err := svc.GetAccount(context.Background())
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if !account.Total.IsZero() || !account.Available.IsZero() || !account.Used.IsZero() {
		t.Errorf("account = %+v, want zeros", account)
	}
}

func TestReserveLockTakesExclusiveLockOnInit(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	svc := NewReserveService(db, zerolog.Nop())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO admin_reserva_cashback (id, total, available, used) VALUES (?, 0, 0, 0) ON DUPLICATE KEY UPDATE id = id").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT total, available, used FROM admin_reserva_cashback WHERE id = ? FOR UPDATE").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(reserveColumns).AddRow("10.00", "10.00", "0.00"))
	mock.ExpectExec("UPDATE admin_reserva_cashback SET total = ?, available = ?, used = ?, updated_at = NOW() WHERE id = ?").
		WithArgs(decArg("10"), decArg("5"), decArg("5"), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO reserve_movements (related_transaction_id, amount, kind, description) VALUES (?, ?, ?, ?)").
		WithArgs(nil, decArg("5"), "debito", "Repasse").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := svc.DebitTx(context.Background(), tx, dec("5"), nil, "Repasse"); err != nil {
		t.Fatalf("DebitTx() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected ledger statements: %v", err)
	}
}

func TestReserveInitFailureStopsBeforeLock(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewReserveService(db, zerolog.Nop())

	mock.ExpectBegin()
	mock.ExpectExec(reserveInitExec).WithArgs(1).WillReturnError(errors.New("Error 1213: Deadlock found"))
	mock.ExpectRollback()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := svc.CreditTx(context.Background(), tx, dec("5"), nil, "x"); err == nil {
		t.Fatal("CreditTx() error = nil, want init failure")
	}
	tx.Rollback()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
