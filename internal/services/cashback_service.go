package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cashback-platform/internal/models"

	"github.com/rs/zerolog"
)

// CashbackService moves cashback in and out of client wallets: purchases
// granting cashback, their approval, and clients spending balance at stores.
type CashbackService struct {
	db            *sql.DB
	logger        zerolog.Logger
	wallet        *WalletService
	reserve       *ReserveService
	notifications *NotificationService
}

func NewCashbackService(db *sql.DB, logger zerolog.Logger, wallet *WalletService, reserve *ReserveService, notifications *NotificationService) *CashbackService {
	return &CashbackService{
		db:            db,
		logger:        logger,
		wallet:        wallet,
		reserve:       reserve,
		notifications: notifications,
	}
}

const transactionColumns = "id, user_id, store_id, type, purchase_amount, cashback_amount, status, pix_charge_id, created_at"

func (s *CashbackService) requireClient(ctx context.Context, q queryer, userID int) error {
	var role string
	err := q.QueryRowContext(ctx, "SELECT role FROM users WHERE id = ?", userID).Scan(&role)
	if err == sql.ErrNoRows {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if role != string(models.RoleClient) {
		return fmt.Errorf("%w: user %d is not a client", ErrValidation, userID)
	}
	return nil
}

func requireApprovedStore(ctx context.Context, q queryer, storeID int) (*models.Store, error) {
	store, err := getStore(ctx, q, storeID)
	if err != nil {
		return nil, err
	}
	if store.Status != models.StoreStatusApproved {
		return nil, ErrStoreNotApproved
	}
	return store, nil
}

func (s *CashbackService) RegisterPurchase(ctx context.Context, storeID int, req *models.PurchaseRequest) (*models.Transaction, error) {
	if !req.PurchaseAmount.IsPositive() || !req.CashbackAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.CashbackAmount.GreaterThan(req.PurchaseAmount) {
		return nil, fmt.Errorf("%w: cashback cannot exceed the purchase amount", ErrValidation)
	}

	if _, err := requireApprovedStore(ctx, s.db, storeID); err != nil {
		return nil, err
	}
	if err := s.requireClient(ctx, s.db, req.ClientUserID); err != nil {
		return nil, err
	}

	var chargeID interface{}
	if req.PixChargeID != "" {
		chargeID = req.PixChargeID
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO transactions (user_id, store_id, type, purchase_amount, cashback_amount, status, pix_charge_id) VALUES (?, ?, ?, ?, ?, ?, ?)",
		req.ClientUserID, storeID, string(models.TransactionTypePurchase),
		req.PurchaseAmount, req.CashbackAmount, string(models.TransactionStatusPending), chargeID,
	)
	if err != nil {
		s.logger.Error().Err(err).Int("store_id", storeID).Msg("Error creating purchase transaction")
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	transactionID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction ID: %w", err)
	}

	s.logger.Info().
		Int64("transaction_id", transactionID).
		Int("store_id", storeID).
		Int("user_id", req.ClientUserID).
		Str("cashback", req.CashbackAmount.StringFixed(2)).
		Msg("Purchase registered")

	return s.GetTransactionByID(ctx, int(transactionID))
}

// ApproveTransaction releases the cashback of a pending purchase to the client
// and credits the platform reserve, all in one transaction.
func (s *CashbackService) ApproveTransaction(ctx context.Context, transactionID int) (*models.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error starting approval transaction")
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ? FOR UPDATE", transactionID)
	transaction, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Int("transaction_id", transactionID).Msg("Error locking transaction")
		return nil, fmt.Errorf("database error: %w", err)
	}

	if transaction.Type != string(models.TransactionTypePurchase) {
		return nil, fmt.Errorf("%w: only purchases can be approved", ErrValidation)
	}
	if transaction.Status != models.TransactionStatusPending {
		return nil, ErrAlreadyProcessed
	}

	_, err = tx.ExecContext(ctx, "UPDATE transactions SET status = ? WHERE id = ?", string(models.TransactionStatusApproved), transactionID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error updating transaction status")
		return nil, fmt.Errorf("failed to update transaction status: %w", err)
	}

	if _, err = s.wallet.updateBalanceInTx(ctx, tx, transaction.UserID, transaction.CashbackAmount); err != nil {
		s.logger.Error().Err(err).Int("user_id", transaction.UserID).Msg("Error crediting client balance")
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO cashback_movimentacoes (user_id, store_id, kind, amount, description, transaction_id) VALUES (?, ?, ?, ?, ?, ?)",
		transaction.UserID, transaction.StoreID, string(models.MovementKindCredit), transaction.CashbackAmount,
		fmt.Sprintf("Cashback da compra #%d", transactionID), transactionID,
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error recording credit movement")
		return nil, fmt.Errorf("failed to record movement: %w", err)
	}

	related := transactionID
	if _, err = s.reserve.CreditTx(ctx, tx, transaction.CashbackAmount, &related, fmt.Sprintf("Cashback aprovado - transação #%d", transactionID)); err != nil {
		s.logger.Error().Err(err).Int("transaction_id", transactionID).Msg("Error crediting reserve")
		return nil, err
	}

	err = s.notifications.CreateTx(ctx, tx, &models.Notification{
		UserID:   transaction.UserID,
		Title:    "Cashback liberado",
		Message:  fmt.Sprintf("R$ %s de cashback foram adicionados ao seu saldo.", transaction.CashbackAmount.StringFixed(2)),
		Kind:     "cashback_aprovado",
		EntityID: &related,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error().Err(err).Msg("Error committing approval")
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	transaction.Status = models.TransactionStatusApproved

	s.logger.Info().
		Int("transaction_id", transactionID).
		Int("user_id", transaction.UserID).
		Str("cashback", transaction.CashbackAmount.StringFixed(2)).
		Msg("Cashback transaction approved")

	return transaction, nil
}

func (s *CashbackService) ApproveByCharge(ctx context.Context, chargeID string) (*models.Transaction, error) {
	var transactionID int
	err := s.db.QueryRowContext(ctx, "SELECT id FROM transactions WHERE pix_charge_id = ?", chargeID).Scan(&transactionID)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Str("charge_id", chargeID).Msg("Error looking up charge")
		return nil, fmt.Errorf("database error: %w", err)
	}

	return s.ApproveTransaction(ctx, transactionID)
}

// UseBalance records a client spending wallet balance at a store. The
// resulting usage movement is what the platform later reimburses to the store.
func (s *CashbackService) UseBalance(ctx context.Context, storeID int, req *models.BalanceUsageRequest) (*models.CashbackMovement, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	store, err := requireApprovedStore(ctx, s.db, storeID)
	if err != nil {
		return nil, err
	}
	if err := s.requireClient(ctx, s.db, req.ClientUserID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error starting usage transaction")
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"INSERT INTO transactions (user_id, store_id, type, purchase_amount, cashback_amount, status) VALUES (?, ?, ?, ?, ?, ?)",
		req.ClientUserID, storeID, string(models.TransactionTypeUsage), req.Amount, req.Amount, string(models.TransactionStatusApproved),
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating usage transaction")
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	usageID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction ID: %w", err)
	}

	if _, err = s.wallet.updateBalanceInTx(ctx, tx, req.ClientUserID, req.Amount.Neg()); err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return nil, err
		}
		s.logger.Error().Err(err).Int("user_id", req.ClientUserID).Msg("Error debiting client balance")
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	description := fmt.Sprintf("Uso de saldo em %s", store.Name)
	result, err = tx.ExecContext(ctx,
		"INSERT INTO cashback_movimentacoes (user_id, store_id, kind, amount, description, usage_transaction_id) VALUES (?, ?, ?, ?, ?, ?)",
		req.ClientUserID, storeID, string(models.MovementKindUsage), req.Amount, description, usageID,
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error recording usage movement")
		return nil, fmt.Errorf("failed to record movement: %w", err)
	}

	movementID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get movement ID: %w", err)
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error().Err(err).Msg("Error committing usage transaction")
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Int64("movement_id", movementID).
		Int("store_id", storeID).
		Int("user_id", req.ClientUserID).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("Balance usage recorded")

	usage := int(usageID)
	return &models.CashbackMovement{
		ID:                 int(movementID),
		UserID:             req.ClientUserID,
		StoreID:            storeID,
		Amount:             req.Amount,
		Kind:               models.MovementKindUsage,
		Description:        description,
		UsageTransactionID: &usage,
	}, nil
}

func (s *CashbackService) GetTransactionByID(ctx context.Context, transactionID int) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", transactionID)
	transaction, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Int("transaction_id", transactionID).Msg("Error fetching transaction")
		return nil, fmt.Errorf("database error: %w", err)
	}
	return transaction, nil
}

func (s *CashbackService) ListStoreTransactions(ctx context.Context, storeID int, limit, offset int) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE store_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		storeID, limit, offset,
	)
	if err != nil {
		s.logger.Error().Err(err).Int("store_id", storeID).Msg("Error fetching store transactions")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	transactions := []*models.Transaction{}
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		transactions = append(transactions, transaction)
	}

	return transactions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var status string
	var chargeID sql.NullString

	err := row.Scan(
		&t.ID, &t.UserID, &t.StoreID, &t.Type, &t.PurchaseAmount,
		&t.CashbackAmount, &status, &chargeID, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = models.TransactionStatus(status)
	if chargeID.Valid {
		t.PixChargeID = &chargeID.String
	}
	return &t, nil
}
