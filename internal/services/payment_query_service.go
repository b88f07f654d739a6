package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cashback-platform/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const paymentColumns = "p.id, p.store_id, s.name, p.total_amount, p.payment_method, p.reference_number, p.receipt_file, p.note, p.status, p.created_at"

const paymentFrom = " FROM store_balance_payments p JOIN stores s ON s.id = p.store_id"

// pendingMovementCond selects usage movements still owed to their store.
const pendingMovementCond = "m.kind = 'uso' AND m.usage_transaction_id IS NOT NULL AND m.payment_id IS NULL"

// DefaultPaymentStatuses applies when a history query names no status.
var DefaultPaymentStatuses = []models.PaymentStatus{
	models.PaymentStatusPending,
	models.PaymentStatusProcessing,
}

// PaymentQueryService answers the read-only balance payment views.
type PaymentQueryService struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPaymentQueryService(db *sql.DB, logger zerolog.Logger) *PaymentQueryService {
	return &PaymentQueryService{
		db:     db,
		logger: logger,
	}
}

func scanPayment(row rowScanner) (*models.BalancePayment, error) {
	var p models.BalancePayment
	var note sql.NullString
	var status string

	err := row.Scan(&p.ID, &p.StoreID, &p.StoreName, &p.TotalAmount, &p.PaymentMethod,
		&p.ReferenceNumber, &p.ReceiptFile, &note, &status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Note = note.String
	p.Status = models.PaymentStatus(status)
	return &p, nil
}

func getPayment(ctx context.Context, q queryer, paymentID int) (*models.BalancePayment, error) {
	row := q.QueryRowContext(ctx, "SELECT "+paymentColumns+paymentFrom+" WHERE p.id = ?", paymentID)
	payment, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return payment, nil
}

// BuildPaymentFilter turns f into an AND-combined WHERE clause over the
// aliased payment query. Without statuses it restricts to DefaultPaymentStatuses.
func BuildPaymentFilter(f models.PaymentFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = DefaultPaymentStatuses
	}
	placeholders := make([]string, len(statuses))
	for i, st := range statuses {
		placeholders[i] = "?"
		args = append(args, string(st))
	}
	conds = append(conds, "p.status IN ("+strings.Join(placeholders, ", ")+")")

	if f.StoreID > 0 {
		conds = append(conds, "p.store_id = ?")
		args = append(args, f.StoreID)
	}
	if f.From != nil {
		conds = append(conds, "p.created_at >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		conds = append(conds, "p.created_at <= ?")
		args = append(args, *f.To)
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// BuildPendingFilter composes the WHERE clause for pending usage movements
// joined with their store.
func BuildPendingFilter(f models.PendingFilter) (string, []interface{}) {
	conds := []string{pendingMovementCond}
	var args []interface{}

	if f.StoreID > 0 {
		conds = append(conds, "m.store_id = ?")
		args = append(args, f.StoreID)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + search + "%"
		conds = append(conds, "(s.name LIKE ? OR s.email LIKE ?)")
		args = append(args, like, like)
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListPayments returns one page of payment history and the total match count.
func (s *PaymentQueryService) ListPayments(ctx context.Context, f models.PaymentFilter) ([]*models.BalancePayment, int, error) {
	page, perPage := normalizePage(f.Page, f.PerPage)
	where, args := BuildPaymentFilter(f)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*)"+paymentFrom+where, args...).Scan(&total); err != nil {
		s.logger.Error().Err(err).Msg("Error counting payments")
		return nil, 0, fmt.Errorf("database error: %w", err)
	}

	query := "SELECT " + paymentColumns + paymentFrom + where + " ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing payments")
		return nil, 0, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var payments []*models.BalancePayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database error: %w", err)
	}

	return payments, total, nil
}

// PendingByStore groups unpaid usage movements per store, oldest debt first.
func (s *PaymentQueryService) PendingByStore(ctx context.Context, f models.PendingFilter) ([]*models.StorePendingSummary, int, error) {
	page, perPage := normalizePage(f.Page, f.PerPage)
	where, args := BuildPendingFilter(f)
	from := " FROM cashback_movimentacoes m JOIN stores s ON s.id = m.store_id"

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT m.store_id)"+from+where, args...).Scan(&total); err != nil {
		s.logger.Error().Err(err).Msg("Error counting stores with pending balance")
		return nil, 0, fmt.Errorf("database error: %w", err)
	}

	query := `SELECT s.id, s.name, s.email, COUNT(m.id), COALESCE(SUM(m.amount), 0), MIN(m.operation_at)` +
		from + where +
		` GROUP BY s.id, s.name, s.email ORDER BY MIN(m.operation_at) ASC, s.id ASC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing pending balances")
		return nil, 0, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var summaries []*models.StorePendingSummary
	for rows.Next() {
		var sum models.StorePendingSummary
		if err := rows.Scan(&sum.StoreID, &sum.StoreName, &sum.StoreEmail, &sum.MovementCount, &sum.PendingAmount, &sum.OldestMovement); err != nil {
			return nil, 0, fmt.Errorf("failed to scan pending summary: %w", err)
		}
		summaries = append(summaries, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database error: %w", err)
	}

	return summaries, total, nil
}

func (s *PaymentQueryService) pendingMovements(ctx context.Context, storeID int) ([]*models.CashbackMovement, error) {
	query := "SELECT " + movementColumns + `
		FROM cashback_movimentacoes
		WHERE store_id = ? AND kind = 'uso' AND usage_transaction_id IS NOT NULL AND payment_id IS NULL
		ORDER BY operation_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, storeID)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

// StoreBalanceDetail returns what a store is still owed together with one page
// of its payment history and the history's total size.
func (s *PaymentQueryService) StoreBalanceDetail(ctx context.Context, storeID, page, perPage int) (*models.StoreBalanceDetail, error) {
	page, perPage = normalizePage(page, perPage)

	store, err := getStore(ctx, s.db, storeID)
	if err != nil {
		return nil, err
	}

	pending, err := s.pendingMovements(ctx, storeID)
	if err != nil {
		s.logger.Error().Err(err).Int("store_id", storeID).Msg("Error loading pending movements")
		return nil, err
	}

	var paid decimal.Decimal
	err = s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(total_amount), 0) FROM store_balance_payments WHERE store_id = ? AND status = ?",
		storeID, string(models.PaymentStatusApproved),
	).Scan(&paid)
	if err != nil {
		s.logger.Error().Err(err).Int("store_id", storeID).Msg("Error summing paid balance")
		return nil, fmt.Errorf("database error: %w", err)
	}

	payments, total, err := s.ListPayments(ctx, models.PaymentFilter{
		StoreID: storeID,
		Statuses: []models.PaymentStatus{
			models.PaymentStatusPending,
			models.PaymentStatusProcessing,
			models.PaymentStatusApproved,
		},
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		return nil, err
	}

	return &models.StoreBalanceDetail{
		Store:            store,
		PendingMovements: pending,
		PendingTotal:     SumMovements(pending),
		PaidTotal:        paid,
		Payments:         payments,
		PaymentsMeta:     models.PaymentsPage{Page: page, PerPage: perPage, Total: total},
	}, nil
}

// GetPaymentDetail loads a payment and the movements it settled. A positive
// storeScope hides payments of other stores.
func (s *PaymentQueryService) GetPaymentDetail(ctx context.Context, paymentID, storeScope int) (*models.PaymentDetail, error) {
	payment, err := getPayment(ctx, s.db, paymentID)
	if err != nil {
		if !errors.Is(err, ErrPaymentNotFound) {
			s.logger.Error().Err(err).Int("payment_id", paymentID).Msg("Error fetching payment")
		}
		return nil, err
	}
	if storeScope > 0 && payment.StoreID != storeScope {
		return nil, ErrPaymentNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+movementColumns+" FROM cashback_movimentacoes WHERE payment_id = ? ORDER BY operation_at ASC, id ASC",
		paymentID,
	)
	if err != nil {
		s.logger.Error().Err(err).Int("payment_id", paymentID).Msg("Error loading payment movements")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	movements, err := scanMovements(rows)
	if err != nil {
		return nil, err
	}

	return &models.PaymentDetail{Payment: payment, Movements: movements}, nil
}

// Statistics reports what is still owed to stores against what is in flight
// and already paid.
func (s *PaymentQueryService) Statistics(ctx context.Context) (*models.PaymentStatistics, error) {
	stats := &models.PaymentStatistics{
		PendingAmount:    decimal.Zero,
		ProcessingAmount: decimal.Zero,
		PaidAmount:       decimal.Zero,
	}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(m.amount), 0), COUNT(DISTINCT m.store_id) FROM cashback_movimentacoes m WHERE "+pendingMovementCond,
	).Scan(&stats.PendingMovements, &stats.PendingAmount, &stats.StoresWithPending)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error computing pending statistics")
		return nil, fmt.Errorf("database error: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0) FROM store_balance_payments GROUP BY status",
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error computing payment statistics")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		var amount decimal.Decimal
		if err := rows.Scan(&status, &count, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan statistics: %w", err)
		}

		switch models.PaymentStatus(status) {
		case models.PaymentStatusApproved:
			stats.PaidPayments += count
			stats.PaidAmount = stats.PaidAmount.Add(amount)
		default:
			stats.ProcessingPayments += count
			stats.ProcessingAmount = stats.ProcessingAmount.Add(amount)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return stats, nil
}
