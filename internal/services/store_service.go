package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cashback-platform/internal/models"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
)

type StoreService struct {
	db            *sql.DB
	logger        zerolog.Logger
	notifications *NotificationService
}

func NewStoreService(db *sql.DB, logger zerolog.Logger, notifications *NotificationService) *StoreService {
	return &StoreService{
		db:            db,
		logger:        logger,
		notifications: notifications,
	}
}

const storeColumns = "id, user_id, name, slug, email, cnpj, status, created_at"

func scanStore(row rowScanner) (*models.Store, error) {
	var st models.Store
	var userID sql.NullInt64
	var status string

	if err := row.Scan(&st.ID, &userID, &st.Name, &st.Slug, &st.Email, &st.CNPJ, &status, &st.CreatedAt); err != nil {
		return nil, err
	}
	st.UserID = intPtr(userID)
	st.Status = models.StoreStatus(status)
	return &st, nil
}

func getStore(ctx context.Context, q queryer, storeID int) (*models.Store, error) {
	store, err := scanStore(q.QueryRowContext(ctx, "SELECT "+storeColumns+" FROM stores WHERE id = ?", storeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return store, nil
}

func (s *StoreService) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "loja"
	}

	candidate := base
	for i := 2; i < 100; i++ {
		var exists int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stores WHERE slug = ?", candidate).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("database error: %w", err)
		}
		if exists == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("%w: could not derive a unique slug for %q", ErrValidation, name)
}

// Register creates a store owned by userID. New stores wait for admin approval.
func (s *StoreService) Register(ctx context.Context, userID int, req *models.RegisterStoreRequest) (*models.Store, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrValidation)
	}

	if existing, err := s.GetByUserID(ctx, userID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: user already owns store %d", ErrValidation, existing.ID)
	} else if err != nil && !errors.Is(err, ErrStoreNotFound) {
		return nil, err
	}

	storeSlug, err := s.uniqueSlug(ctx, req.Name)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO stores (user_id, name, slug, email, cnpj, status) VALUES (?, ?, ?, ?, ?, ?)",
		userID, req.Name, storeSlug, req.Email, req.CNPJ, string(models.StoreStatusPending),
	)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error creating store")
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	storeID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get store ID: %w", err)
	}

	s.logger.Info().Int64("store_id", storeID).Str("slug", storeSlug).Msg("Store registered")
	return s.GetByID(ctx, int(storeID))
}

func (s *StoreService) GetByID(ctx context.Context, storeID int) (*models.Store, error) {
	store, err := getStore(ctx, s.db, storeID)
	if err != nil && !errors.Is(err, ErrStoreNotFound) {
		s.logger.Error().Err(err).Int("store_id", storeID).Msg("Error fetching store")
	}
	return store, err
}

func (s *StoreService) GetByUserID(ctx context.Context, userID int) (*models.Store, error) {
	store, err := scanStore(s.db.QueryRowContext(ctx, "SELECT "+storeColumns+" FROM stores WHERE user_id = ? ORDER BY id LIMIT 1", userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error fetching store by user")
		return nil, fmt.Errorf("database error: %w", err)
	}
	return store, nil
}

func (s *StoreService) List(ctx context.Context, status string, limit, offset int) ([]*models.Store, error) {
	query := "SELECT " + storeColumns + " FROM stores"
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing stores")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	stores := []*models.Store{}
	for rows.Next() {
		store, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning store: %w", err)
		}
		stores = append(stores, store)
	}
	return stores, rows.Err()
}

func (s *StoreService) Approve(ctx context.Context, storeID int) (*models.Store, error) {
	return s.decide(ctx, storeID, models.StoreStatusApproved, "Loja aprovada", "Sua loja foi aprovada e já pode operar com cashback.")
}

func (s *StoreService) Reject(ctx context.Context, storeID int, reason string) (*models.Store, error) {
	message := "Seu cadastro de loja foi recusado."
	if reason = strings.TrimSpace(reason); reason != "" {
		message += " Motivo: " + reason
	}
	return s.decide(ctx, storeID, models.StoreStatusRejected, "Loja recusada", message)
}

func (s *StoreService) decide(ctx context.Context, storeID int, status models.StoreStatus, title, message string) (*models.Store, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE stores SET status = ? WHERE id = ? AND status = ?",
		string(status), storeID, string(models.StoreStatusPending),
	)
	if err != nil {
		s.logger.Error().Err(err).Int("store_id", storeID).Msg("Error updating store status")
		return nil, fmt.Errorf("failed to update store: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}

	store, err := s.GetByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrInvalidStatusTransition
	}

	if store.UserID != nil {
		id := store.ID
		_ = s.notifications.Create(ctx, &models.Notification{
			UserID:   *store.UserID,
			Title:    title,
			Message:  message,
			Kind:     "loja_" + string(status),
			EntityID: &id,
		})
	}

	s.logger.Info().Int("store_id", storeID).Str("status", string(status)).Msg("Store status changed")
	return store, nil
}
