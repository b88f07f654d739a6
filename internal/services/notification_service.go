package services

import (
	"context"
	"database/sql"
	"fmt"

	"cashback-platform/internal/models"

	"github.com/rs/zerolog"
)

type NotificationService struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewNotificationService(db *sql.DB, logger zerolog.Logger) *NotificationService {
	return &NotificationService{
		db:     db,
		logger: logger,
	}
}

func (s *NotificationService) insert(ctx context.Context, ex execer, n *models.Notification) error {
	_, err := ex.ExecContext(ctx,
		"INSERT INTO notifications (user_id, title, message, kind, entity_id) VALUES (?, ?, ?, ?, ?)",
		n.UserID, n.Title, n.Message, n.Kind, n.EntityID,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// CreateTx writes the notification as part of the caller's transaction.
func (s *NotificationService) CreateTx(ctx context.Context, tx *sql.Tx, n *models.Notification) error {
	return s.insert(ctx, tx, n)
}

// Create is best-effort: failures are logged and returned but callers usually
// ignore them because the primary change is already committed.
func (s *NotificationService) Create(ctx context.Context, n *models.Notification) error {
	if err := s.insert(ctx, s.db, n); err != nil {
		s.logger.Error().Err(err).Int("user_id", n.UserID).Str("kind", n.Kind).Msg("Error creating notification")
		return err
	}
	return nil
}

func (s *NotificationService) ListForUser(ctx context.Context, userID int, unreadOnly bool, limit, offset int) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, title, message, kind, entity_id, is_read, created_at
		FROM notifications
		WHERE user_id = ?`
	if unreadOnly {
		query += " AND is_read = 0"
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error fetching notifications")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	notifications := []*models.Notification{}
	for rows.Next() {
		var n models.Notification
		var entityID sql.NullInt64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Kind, &entityID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning notification: %w", err)
		}
		n.EntityID = intPtr(entityID)
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID int) error {
	var ownerID int
	err := s.db.QueryRowContext(ctx, "SELECT user_id FROM notifications WHERE id = ?", id).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return ErrNotificationNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Int("notification_id", id).Msg("Error fetching notification")
		return fmt.Errorf("database error: %w", err)
	}

	if ownerID != userID {
		return ErrNotRecipient
	}

	if _, err := s.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE id = ?", id); err != nil {
		s.logger.Error().Err(err).Int("notification_id", id).Msg("Error marking notification as read")
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return nil
}
