package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cashback-platform/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletService holds each client's spendable cashback (the balances table).
type WalletService struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewWalletService(db *sql.DB, logger zerolog.Logger) *WalletService {
	return &WalletService{
		db:     db,
		logger: logger,
	}
}

func (s *WalletService) GetBalance(ctx context.Context, userID int) (*models.WalletBalance, error) {
	var balance models.WalletBalance

	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, amount, last_updated_at FROM balances WHERE user_id = ?",
		userID,
	).Scan(&balance.UserID, &balance.Amount, &balance.LastUpdatedAt)

	if err == sql.ErrNoRows {
		return &models.WalletBalance{
			UserID:        userID,
			Amount:        decimal.Zero,
			LastUpdatedAt: time.Now(),
		}, nil
	}

	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error fetching balance")
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &balance, nil
}

// updateBalanceInTx applies delta to the wallet under a row lock. A change that
// would leave the wallet negative fails with ErrInsufficientBalance.
func (s *WalletService) updateBalanceInTx(ctx context.Context, tx *sql.Tx, userID int, delta decimal.Decimal) (decimal.Decimal, error) {
	var current decimal.Decimal
	err := tx.QueryRowContext(ctx,
		"SELECT amount FROM balances WHERE user_id = ? FOR UPDATE",
		userID,
	).Scan(&current)

	if err == sql.ErrNoRows {
		if delta.IsNegative() {
			return decimal.Zero, ErrInsufficientBalance
		}
		_, err = tx.ExecContext(ctx, "INSERT INTO balances (user_id, amount) VALUES (?, ?)", userID, delta)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to initialize balance: %w", err)
		}
		return delta, nil
	}

	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch balance: %w", err)
	}

	next := current.Add(delta)
	if next.IsNegative() {
		return current, ErrInsufficientBalance
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE balances SET amount = ?, last_updated_at = NOW() WHERE user_id = ?",
		next, userID,
	)
	if err != nil {
		return current, fmt.Errorf("failed to update balance: %w", err)
	}

	return next, nil
}

func (s *WalletService) GetMovements(ctx context.Context, userID int, limit, offset int) ([]*models.CashbackMovement, error) {
	query := "SELECT " + movementColumns + `
		FROM cashback_movimentacoes
		WHERE user_id = ?
		ORDER BY operation_at DESC, id DESC
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error fetching cashback movements")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

func (s *WalletService) CalculateBalanceFromMovements(ctx context.Context, userID int) (decimal.Decimal, error) {
	var total decimal.Decimal

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'credito' THEN amount ELSE -amount END), 0)
		FROM cashback_movimentacoes
		WHERE user_id = ?
	`, userID).Scan(&total)

	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error calculating balance from movements")
		return decimal.Zero, fmt.Errorf("database error: %w", err)
	}

	return total, nil
}

type WalletReconciliation struct {
	UserID     int             `json:"user_id"`
	Stored     decimal.Decimal `json:"stored"`
	Calculated decimal.Decimal `json:"calculated"`
	Consistent bool            `json:"consistent"`
}

func (s *WalletService) ReconcileBalance(ctx context.Context, userID int) (*WalletReconciliation, error) {
	current, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	calculated, err := s.CalculateBalanceFromMovements(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &WalletReconciliation{
		UserID:     userID,
		Stored:     current.Amount,
		Calculated: calculated,
		Consistent: current.Amount.Equal(calculated),
	}

	if !result.Consistent {
		s.logger.Warn().
			Int("user_id", userID).
			Str("current_balance", current.Amount.StringFixed(2)).
			Str("calculated_balance", calculated.StringFixed(2)).
			Msg("Balance discrepancy detected")
	}

	return result, nil
}

const movementColumns = "id, user_id, store_id, amount, kind, description, transaction_id, usage_transaction_id, payment_id, operation_at"

func scanMovements(rows *sql.Rows) ([]*models.CashbackMovement, error) {
	movements := []*models.CashbackMovement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func scanMovement(rows rowScanner) (*models.CashbackMovement, error) {
	var m models.CashbackMovement
	var kind string
	var transactionID, usageTransactionID, paymentID sql.NullInt64

	err := rows.Scan(
		&m.ID, &m.UserID, &m.StoreID, &m.Amount, &kind, &m.Description,
		&transactionID, &usageTransactionID, &paymentID, &m.OperationAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error scanning movement: %w", err)
	}

	m.Kind = models.MovementKind(kind)
	m.TransactionID = intPtr(transactionID)
	m.UsageTransactionID = intPtr(usageTransactionID)
	m.PaymentID = intPtr(paymentID)
	return &m, nil
}
