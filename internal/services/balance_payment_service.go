package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cashback-platform/internal/mailer"
	"cashback-platform/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReceiptStore persists uploaded payment receipts.
type ReceiptStore interface {
	Save(scope, originalName string, content io.Reader) (string, error)
	Remove(relPath string) error
}

// BalancePaymentService turns pending usage movements of one store into a
// balance payment (repasse) and settles the cashback reserve.
type BalancePaymentService struct {
	db            *sql.DB
	logger        zerolog.Logger
	reserve       *ReserveService
	notifications *NotificationService
	mailer        mailer.Mailer
	receipts      ReceiptStore
}

func NewBalancePaymentService(db *sql.DB, logger zerolog.Logger, reserve *ReserveService, notifications *NotificationService, m mailer.Mailer, receipts ReceiptStore) *BalancePaymentService {
	return &BalancePaymentService{
		db:            db,
		logger:        logger,
		reserve:       reserve,
		notifications: notifications,
		mailer:        m,
		receipts:      receipts,
	}
}

func validateProcessRequest(req *models.ProcessPaymentRequest) error {
	var missing []string
	if req.StoreID <= 0 {
		missing = append(missing, "storeId")
	}
	if len(req.MovementIDs) == 0 {
		missing = append(missing, "movements")
	}
	if !req.DeclaredTotal.IsPositive() {
		missing = append(missing, "totalAmount")
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		missing = append(missing, "paymentMethod")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing or invalid %s", ErrValidation, strings.Join(missing, ", "))
	}

	for _, id := range req.MovementIDs {
		if id <= 0 {
			return fmt.Errorf("%w: invalid movement id %d", ErrValidation, id)
		}
	}
	return nil
}

// payableMovements returns the movements among ids that belong to storeID, are
// usage rows tied to a usage transaction, and are not linked to a payment yet.
func (s *BalancePaymentService) payableMovements(ctx context.Context, storeID int, ids []int) ([]*models.CashbackMovement, error) {
	placeholders, args := inClause(ids)
	args = append(args, storeID, string(models.MovementKindUsage))

	query := "SELECT " + movementColumns + `
		FROM cashback_movimentacoes
		WHERE id IN (` + placeholders + `)
		AND store_id = ?
		AND kind = ?
		AND usage_transaction_id IS NOT NULL
		AND payment_id IS NULL`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

func SumMovements(movements []*models.CashbackMovement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.Amount)
	}
	return total
}

func (s *BalancePaymentService) ProcessPayment(ctx context.Context, req *models.ProcessPaymentRequest) (*models.ProcessPaymentResult, error) {
	if err := validateProcessRequest(req); err != nil {
		return nil, err
	}

	store, err := getStore(ctx, s.db, req.StoreID)
	if err != nil {
		if !errors.Is(err, ErrStoreNotFound) {
			s.logger.Error().Err(err).Int("store_id", req.StoreID).Msg("Error loading store")
		}
		return nil, err
	}

	movements, err := s.payableMovements(ctx, req.StoreID, req.MovementIDs)
	if err != nil {
		s.logger.Error().Err(err).Int("store_id", req.StoreID).Msg("Error loading movements")
		return nil, err
	}
	if len(movements) != len(req.MovementIDs) {
		s.logger.Warn().
			Int("store_id", req.StoreID).
			Int("requested", len(req.MovementIDs)).
			Int("valid", len(movements)).
			Msg("Payment rejected: movements not found or invalid")
		return nil, ErrMovementsInvalid
	}

	computed := SumMovements(movements)
	if computed.Sub(req.DeclaredTotal).Abs().GreaterThan(models.AmountTolerance) {
		return nil, fmt.Errorf("%w: declared %s, movements sum %s",
			ErrAmountMismatch, req.DeclaredTotal.StringFixed(2), computed.StringFixed(2))
	}

	var receiptPath string
	if req.Receipt != nil && req.Receipt.Content != nil {
		receiptPath, err = s.receipts.Save(fmt.Sprintf("store_%d", store.ID), req.Receipt.Filename, req.Receipt.Content)
		if err != nil {
			s.logger.Error().Err(err).Int("store_id", store.ID).Msg("Error storing receipt")
			return nil, fmt.Errorf("failed to store receipt: %w", err)
		}
	}

	status := models.PaymentStatusProcessing
	if req.AutoApprove {
		status = models.PaymentStatusApproved
	}

	paymentID, err := s.persistPayment(ctx, store, req, movements, computed, status, receiptPath)
	if err != nil {
		if receiptPath != "" {
			if rmErr := s.receipts.Remove(receiptPath); rmErr != nil {
				s.logger.Warn().Err(rmErr).Str("receipt", receiptPath).Msg("Could not remove orphan receipt")
			}
		}
		return nil, err
	}

	s.logger.Info().
		Int("payment_id", paymentID).
		Int("store_id", store.ID).
		Int("movements", len(movements)).
		Str("amount", computed.StringFixed(2)).
		Str("status", string(status)).
		Msg("Balance payment processed")

	s.sendPaymentEmail(store, paymentID, computed, req, status)

	return &models.ProcessPaymentResult{
		PaymentID:   paymentID,
		TotalAmount: computed,
		Status:      status,
	}, nil
}

// persistPayment writes payment row, movement links, reserve debit and store
// notification as one unit.
func (s *BalancePaymentService) persistPayment(ctx context.Context, store *models.Store, req *models.ProcessPaymentRequest, movements []*models.CashbackMovement, total decimal.Decimal, status models.PaymentStatus, receiptPath string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error starting payment transaction")
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"INSERT INTO store_balance_payments (store_id, total_amount, payment_method, reference_number, receipt_file, note, status) VALUES (?, ?, ?, ?, ?, ?, ?)",
		store.ID, total, strings.TrimSpace(req.PaymentMethod), req.ReferenceNumber, receiptPath, req.Note, string(status),
	)
	if err != nil {
		s.logger.Error().Err(err).Int("store_id", store.ID).Msg("Error creating balance payment")
		return 0, fmt.Errorf("failed to create payment: %w", err)
	}

	lastID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get payment ID: %w", err)
	}
	paymentID := int(lastID)

	ids := make([]int, len(movements))
	for i, m := range movements {
		ids[i] = m.ID
	}
	placeholders, idArgs := inClause(ids)
	args := append([]interface{}{paymentID}, idArgs...)
	args = append(args, store.ID)

	result, err = tx.ExecContext(ctx,
		"UPDATE cashback_movimentacoes SET payment_id = ? WHERE id IN ("+placeholders+") AND store_id = ? AND payment_id IS NULL",
		args...,
	)
	if err != nil {
		s.logger.Error().Err(err).Int("payment_id", paymentID).Msg("Error linking movements")
		return 0, fmt.Errorf("failed to link movements: %w", err)
	}

	linked, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if int(linked) != len(movements) {
		// Another payment claimed some of these movements after validation.
		s.logger.Warn().
			Int("payment_id", paymentID).
			Int64("linked", linked).
			Int("expected", len(movements)).
			Msg("Movement link count mismatch, rolling back")
		return 0, ErrMovementsInvalid
	}

	description := fmt.Sprintf("Repasse de saldo #%d - %s", paymentID, store.Name)
	if _, err = s.reserve.DebitTx(ctx, tx, total, &paymentID, description); err != nil {
		s.logger.Error().Err(err).Int("payment_id", paymentID).Msg("Error debiting reserve")
		return 0, fmt.Errorf("failed to update reserve: %w", err)
	}

	if store.UserID != nil {
		err = s.notifications.CreateTx(ctx, tx, &models.Notification{
			UserID:   *store.UserID,
			Title:    "Repasse de saldo registrado",
			Message:  fmt.Sprintf("Um repasse de R$ %s via %s foi registrado para sua loja.", total.StringFixed(2), req.PaymentMethod),
			Kind:     "repasse_saldo",
			EntityID: &paymentID,
		})
		if err != nil {
			s.logger.Error().Err(err).Int("payment_id", paymentID).Msg("Error creating store notification")
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error().Err(err).Int("payment_id", paymentID).Msg("Error committing balance payment")
		return 0, fmt.Errorf("failed to commit payment: %w", err)
	}

	return paymentID, nil
}

// sendPaymentEmail runs after commit. Failures are logged and never change the
// outcome of the payment.
func (s *BalancePaymentService) sendPaymentEmail(store *models.Store, paymentID int, total decimal.Decimal, req *models.ProcessPaymentRequest, status models.PaymentStatus) {
	if store.Email == "" {
		return
	}

	body, err := mailer.RenderPaymentEmail(mailer.PaymentEmail{
		StoreName:       store.Name,
		Amount:          total.StringFixed(2),
		Method:          req.PaymentMethod,
		Date:            time.Now().Format("02/01/2006 15:04"),
		ReferenceNumber: req.ReferenceNumber,
		Note:            req.Note,
		Status:          string(status),
	})
	if err == nil {
		err = s.mailer.Send(store.Email, fmt.Sprintf("Repasse de saldo #%d registrado", paymentID), body, store.Name)
	}
	if err != nil {
		s.logger.Error().Err(err).
			Int("payment_id", paymentID).
			Int("store_id", store.ID).
			Str("to", store.Email).
			Msg("Failed to send balance payment email")
	}
}

func (s *BalancePaymentService) UpdateStatus(ctx context.Context, paymentID int, next models.PaymentStatus) (*models.BalancePayment, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, next)
	}

	payment, err := getPayment(ctx, s.db, paymentID)
	if err != nil {
		if !errors.Is(err, ErrPaymentNotFound) {
			s.logger.Error().Err(err).Int("payment_id", paymentID).Msg("Error fetching payment")
		}
		return nil, err
	}

	if !payment.Status.CanMoveTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, payment.Status, next)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE store_balance_payments SET status = ? WHERE id = ? AND status = ?",
		string(next), paymentID, string(payment.Status),
	)
	if err != nil {
		s.logger.Error().Err(err).Int("payment_id", paymentID).Msg("Error updating payment status")
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	} else if affected == 0 {
		return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidStatusTransition)
	}

	previous := payment.Status
	payment.Status = next

	var ownerID sql.NullInt64
	err = s.db.QueryRowContext(ctx, "SELECT user_id FROM stores WHERE id = ?", payment.StoreID).Scan(&ownerID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn().Err(err).
			Int("payment_id", paymentID).
			Int("store_id", payment.StoreID).
			Msg("Could not load store owner for status notification")
	}
	if err == nil && ownerID.Valid {
		id := payment.ID
		_ = s.notifications.Create(ctx, &models.Notification{
			UserID:   int(ownerID.Int64),
			Title:    "Status do repasse atualizado",
			Message:  fmt.Sprintf("O repasse #%d de R$ %s agora está %s.", payment.ID, payment.TotalAmount.StringFixed(2), next),
			Kind:     "repasse_status",
			EntityID: &id,
		})
	}

	s.logger.Info().
		Int("payment_id", paymentID).
		Str("from", string(previous)).
		Str("to", string(next)).
		Msg("Balance payment status updated")

	return payment, nil
}
