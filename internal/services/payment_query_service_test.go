package services

import (
	"context"
	"reflect"
	"regexp"
	"testing"
	"time"

	"cashback-platform/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
)

func TestBuildPaymentFilter(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name      string
		filter    models.PaymentFilter
		wantWhere string
		wantArgs  []interface{}
	}{
		{
			name:      "Given no filters Then pending or in processing payments are selected",
			filter:    models.PaymentFilter{},
			wantWhere: " WHERE p.status IN (?, ?)",
			wantArgs:  []interface{}{"pendente", "em_processamento"},
		},
		{
			name:      "Given an explicit status and store Then both are AND-combined",
			filter:    models.PaymentFilter{StoreID: 7, Statuses: []models.PaymentStatus{models.PaymentStatusApproved}},
			wantWhere: " WHERE p.status IN (?) AND p.store_id = ?",
			wantArgs:  []interface{}{"aprovado", 7},
		},
		{
			name:      "Given a date range Then both bounds are applied",
			filter:    models.PaymentFilter{From: &from, To: &to},
			wantWhere: " WHERE p.status IN (?, ?) AND p.created_at >= ? AND p.created_at <= ?",
			wantArgs:  []interface{}{"pendente", "em_processamento", from, to},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := BuildPaymentFilter(tt.filter)
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %#v, want %#v", args, tt.wantArgs)
			}
		})
	}
}

func TestBuildPendingFilter(t *testing.T) {
	tests := []struct {
		name      string
		filter    models.PendingFilter
		wantWhere string
		wantArgs  []interface{}
	}{
		{
			name:      "Given no filters Then only unpaid usage movements are selected",
			wantWhere: " WHERE " + pendingMovementCond,
		},
		{
			name:      "Given a store and a search term Then both narrow the result",
			filter:    models.PendingFilter{StoreID: 3, Search: " centro "},
			wantWhere: " WHERE " + pendingMovementCond + " AND m.store_id = ? AND (s.name LIKE ? OR s.email LIKE ?)",
			wantArgs:  []interface{}{3, "%centro%", "%centro%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := BuildPendingFilter(tt.filter)
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %#v, want %#v", args, tt.wantArgs)
			}
		})
	}
}

func TestSumMovementsIsExact(t *testing.T) {
	movements := []*models.CashbackMovement{
		{Amount: dec("0.10")},
		{Amount: dec("0.20")},
		{Amount: dec("0.30")},
	}
	if got := SumMovements(movements); !got.Equal(dec("0.60")) {
		t.Errorf("SumMovements() = %s, want 0.60", got)
	}
	if got := SumMovements(nil); !got.IsZero() {
		t.Errorf("SumMovements(nil) = %s, want 0", got)
	}
}

func TestStatistics(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewPaymentQueryService(db, zerolog.Nop())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COALESCE(SUM(m.amount), 0), COUNT(DISTINCT m.store_id) FROM cashback_movimentacoes m WHERE")).
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum", "stores"}).AddRow(5, "120.50", 2))
	mock.ExpectQuery(regexp.QuoteMeta("FROM store_balance_payments GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "sum"}).
			AddRow("em_processamento", 2, "80.00").
			AddRow("pendente", 1, "10.00").
			AddRow("aprovado", 4, "300.25"))

	stats, err := svc.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}

	if stats.PendingMovements != 5 || !stats.PendingAmount.Equal(dec("120.50")) || stats.StoresWithPending != 2 {
		t.Errorf("pending figures = %+v", stats)
	}
	if stats.ProcessingPayments != 3 || !stats.ProcessingAmount.Equal(dec("90")) {
		t.Errorf("processing = %d / %s, want 3 / 90", stats.ProcessingPayments, stats.ProcessingAmount)
	}
	if stats.PaidPayments != 4 || !stats.PaidAmount.Equal(dec("300.25")) {
		t.Errorf("paid = %d / %s, want 4 / 300.25", stats.PaidPayments, stats.PaidAmount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetPaymentDetailHidesOtherStores(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewPaymentQueryService(db, zerolog.Nop())

	mock.ExpectQuery(paymentByIDQuery).WithArgs(99).WillReturnRows(paymentRow(99, models.PaymentStatusApproved))

	_, err := svc.GetPaymentDetail(context.Background(), 99, 8)
	if err != ErrPaymentNotFound {
		t.Fatalf("GetPaymentDetail() error = %v, want ErrPaymentNotFound", err)
	}
}

func TestGetPaymentDetailLoadsLinkedMovements(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewPaymentQueryService(db, zerolog.Nop())

	mock.ExpectQuery(paymentByIDQuery).WithArgs(99).WillReturnRows(paymentRow(99, models.PaymentStatusApproved))
	mock.ExpectQuery(regexp.QuoteMeta("FROM cashback_movimentacoes WHERE payment_id = ?")).WithArgs(99).
		WillReturnRows(movementRows(scenarioMovements()...))

	detail, err := svc.GetPaymentDetail(context.Background(), 99, 7)
	if err != nil {
		t.Fatalf("GetPaymentDetail() error = %v", err)
	}
	if len(detail.Movements) != 2 {
		t.Fatalf("got %d movements, want 2", len(detail.Movements))
	}
	if !SumMovements(detail.Movements).Equal(detail.Payment.TotalAmount) {
		t.Errorf("movements sum %s != payment total %s", SumMovements(detail.Movements), detail.Payment.TotalAmount)
	}
}

func TestListPaymentsPaginates(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewPaymentQueryService(db, zerolog.Nop())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM store_balance_payments p JOIN stores s ON s.id = p.store_id WHERE p.status IN (?, ?)")).
		WithArgs("pendente", "em_processamento").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(41))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?")).
		WithArgs("pendente", "em_processamento", 20, 40).
		WillReturnRows(paymentRow(3, models.PaymentStatusProcessing))

	payments, total, err := svc.ListPayments(context.Background(), models.PaymentFilter{Page: 3})
	if err != nil {
		t.Fatalf("ListPayments() error = %v", err)
	}
	if total != 41 || len(payments) != 1 {
		t.Errorf("total = %d, len = %d, want 41 and 1", total, len(payments))
	}
}

func TestStoreBalanceDetailPagesHistory(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewPaymentQueryService(db, zerolog.Nop())

	mock.ExpectQuery(storeByIDQuery).WithArgs(7).
		WillReturnRows(storeRow(7, 70, "Loja Centro", "financeiro@lojacentro.com"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM cashback_movimentacoes")).WithArgs(7).
		WillReturnRows(movementRows(scenarioMovements()...))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(total_amount), 0) FROM store_balance_payments WHERE store_id = ? AND status = ?")).
		WithArgs(7, "aprovado").
		WillReturnRows(sqlmock.NewRows([]string{"paid"}).AddRow("6500.00"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM store_balance_payments p")).
		WithArgs("pendente", "em_processamento", "aprovado", 7).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(130))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT ? OFFSET ?")).
		WithArgs("pendente", "em_processamento", "aprovado", 7, 50, 100).
		WillReturnRows(paymentRow(3, models.PaymentStatusApproved))

	detail, err := svc.StoreBalanceDetail(context.Background(), 7, 3, 50)
	if err != nil {
		t.Fatalf("StoreBalanceDetail() error = %v", err)
	}
	if want := (models.PaymentsPage{Page: 3, PerPage: 50, Total: 130}); detail.PaymentsMeta != want {
		t.Errorf("PaymentsMeta = %+v, want %+v", detail.PaymentsMeta, want)
	}
	if !detail.PendingTotal.Equal(dec("50")) || !detail.PaidTotal.Equal(dec("6500")) {
		t.Errorf("pending = %s, paid = %s, want 50 and 6500", detail.PendingTotal, detail.PaidTotal)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
