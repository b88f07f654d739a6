package services

import (
	"context"
	"database/sql"
	"fmt"

	"cashback-platform/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const reserveAccountID = 1

// ReserveService keeps the platform cashback reserve: the singleton account row
// in admin_reserva_cashback and its append-only log in reserve_movements.
//
// CreditTx and DebitTx run inside the caller's transaction. The lazy-init
// upsert already takes the exclusive row lock, so concurrent writers queue on
// it and never hold a shared lock they would later need to upgrade. Neither operation is
// idempotent; callers must apply each business event once.
type ReserveService struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewReserveService(db *sql.DB, logger zerolog.Logger) *ReserveService {
	return &ReserveService{
		db:     db,
		logger: logger,
	}
}

func (s *ReserveService) lockAccountInTx(ctx context.Context, tx *sql.Tx) (models.ReserveAccount, error) {
	var account models.ReserveAccount

	_, err := tx.ExecContext(ctx,
		"INSERT INTO admin_reserva_cashback (id, total, available, used) VALUES (?, 0, 0, 0) ON DUPLICATE KEY UPDATE id = id",
		reserveAccountID,
	)
	if err != nil {
		return account, fmt.Errorf("failed to initialize reserve account: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		"SELECT total, available, used FROM admin_reserva_cashback WHERE id = ? FOR UPDATE",
		reserveAccountID,
	).Scan(&account.Total, &account.Available, &account.Used)
	if err != nil {
		return account, fmt.Errorf("failed to lock reserve account: %w", err)
	}

	return account, nil
}

func (s *ReserveService) writeInTx(ctx context.Context, tx *sql.Tx, next models.ReserveAccount, kind models.ReserveMovementKind, amount decimal.Decimal, relatedID *int, description string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE admin_reserva_cashback SET total = ?, available = ?, used = ?, updated_at = NOW() WHERE id = ?",
		next.Total, next.Available, next.Used, reserveAccountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update reserve account: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO reserve_movements (related_transaction_id, amount, kind, description) VALUES (?, ?, ?, ?)",
		relatedID, amount.Abs(), string(kind), description,
	)
	if err != nil {
		return fmt.Errorf("failed to record reserve movement: %w", err)
	}

	return nil
}

// CreditTx records cashback granted to a client.
func (s *ReserveService) CreditTx(ctx context.Context, tx *sql.Tx, amount decimal.Decimal, relatedID *int, description string) (models.ReserveAccount, error) {
	if !amount.IsPositive() {
		return models.ReserveAccount{}, ErrInvalidAmount
	}

	current, err := s.lockAccountInTx(ctx, tx)
	if err != nil {
		return current, err
	}

	next := current.ApplyCredit(amount)
	if err := s.writeInTx(ctx, tx, next, models.ReserveMovementCredit, amount, relatedID, description); err != nil {
		return current, err
	}

	s.logger.Debug().
		Str("amount", amount.StringFixed(2)).
		Str("available", next.Available.StringFixed(2)).
		Msg("Reserve credited")

	return next, nil
}

// DebitTx records cashback consumed. A debit larger than the available figure is
// still applied; the deficit is logged for manual investigation.
func (s *ReserveService) DebitTx(ctx context.Context, tx *sql.Tx, amount decimal.Decimal, relatedID *int, description string) (models.ReserveAccount, error) {
	if !amount.IsPositive() {
		return models.ReserveAccount{}, ErrInvalidAmount
	}

	current, err := s.lockAccountInTx(ctx, tx)
	if err != nil {
		return current, err
	}

	next := current.ApplyDebit(amount)
	if next.Available.IsNegative() {
		event := s.logger.Warn().
			Str("amount", amount.StringFixed(2)).
			Str("available_before", current.Available.StringFixed(2)).
			Str("deficit", next.Available.Neg().StringFixed(2))
		if relatedID != nil {
			event = event.Int("related_id", *relatedID)
		}
		event.Msg("Reserve debit leaves available balance negative")
	}

	if err := s.writeInTx(ctx, tx, next, models.ReserveMovementDebit, amount, relatedID, description); err != nil {
		return current, err
	}

	return next, nil
}

// Credit applies a standalone credit in its own transaction.
func (s *ReserveService) Credit(ctx context.Context, amount decimal.Decimal, relatedID *int, description string) (models.ReserveAccount, error) {
	if !amount.IsPositive() {
		return models.ReserveAccount{}, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error starting reserve credit transaction")
		return models.ReserveAccount{}, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	account, err := s.CreditTx(ctx, tx, amount, relatedID, description)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error crediting reserve")
		return models.ReserveAccount{}, err
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error().Err(err).Msg("Error committing reserve credit")
		return models.ReserveAccount{}, fmt.Errorf("failed to commit reserve credit: %w", err)
	}

	s.logger.Info().
		Str("amount", amount.StringFixed(2)).
		Str("total", account.Total.StringFixed(2)).
		Msg("Reserve credited manually")

	return account, nil
}

func (s *ReserveService) GetAccount(ctx context.Context) (models.ReserveAccount, error) {
	var account models.ReserveAccount
	var updatedAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		"SELECT total, available, used, updated_at FROM admin_reserva_cashback WHERE id = ?",
		reserveAccountID,
	).Scan(&account.Total, &account.Available, &account.Used, &updatedAt)

	if err == sql.ErrNoRows {
		return models.ReserveAccount{}, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Error fetching reserve account")
		return account, fmt.Errorf("database error: %w", err)
	}

	if updatedAt.Valid {
		account.UpdatedAt = updatedAt.Time
	}
	return account, nil
}

func (s *ReserveService) ListMovements(ctx context.Context, limit, offset int) ([]*models.ReserveMovement, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reserve_movements").Scan(&total); err != nil {
		s.logger.Error().Err(err).Msg("Error counting reserve movements")
		return nil, 0, fmt.Errorf("database error: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, related_transaction_id, amount, kind, description, created_at
		FROM reserve_movements
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error fetching reserve movements")
		return nil, 0, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	movements := []*models.ReserveMovement{}
	for rows.Next() {
		var m models.ReserveMovement
		var relatedID sql.NullInt64
		var kind string

		if err := rows.Scan(&m.ID, &relatedID, &m.Amount, &kind, &m.Description, &m.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("error scanning reserve movement: %w", err)
		}
		m.Kind = models.ReserveMovementKind(kind)
		m.RelatedTransactionID = intPtr(relatedID)
		movements = append(movements, &m)
	}

	return movements, total, rows.Err()
}

func (s *ReserveService) Overview(ctx context.Context, recent int) (*models.ReserveOverview, error) {
	account, err := s.GetAccount(ctx)
	if err != nil {
		return nil, err
	}

	movements, _, err := s.ListMovements(ctx, recent, 0)
	if err != nil {
		return nil, err
	}

	return &models.ReserveOverview{Account: account, Movements: movements}, nil
}

// Reconcile checks the account against itself and against its movement log.
func (s *ReserveService) Reconcile(ctx context.Context) (*models.ReconcileReport, error) {
	account, err := s.GetAccount(ctx)
	if err != nil {
		return nil, err
	}

	report := &models.ReconcileReport{Account: account}
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'credito' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'debito' THEN amount ELSE 0 END), 0)
		FROM reserve_movements
	`).Scan(&report.SumCredits, &report.SumDebits)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error summing reserve movements")
		return nil, fmt.Errorf("database error: %w", err)
	}

	report.Balanced = account.IsBalanced()
	report.LogConsistent = account.Total.Sub(report.SumCredits).Abs().LessThanOrEqual(models.AmountTolerance) &&
		account.Used.Sub(report.SumDebits).Abs().LessThanOrEqual(models.AmountTolerance)

	if !report.Balanced || !report.LogConsistent {
		s.logger.Warn().
			Str("total", account.Total.StringFixed(2)).
			Str("available", account.Available.StringFixed(2)).
			Str("used", account.Used.StringFixed(2)).
			Str("sum_credits", report.SumCredits.StringFixed(2)).
			Str("sum_debits", report.SumDebits.StringFixed(2)).
			Msg("Reserve discrepancy detected")
	}

	return report, nil
}
