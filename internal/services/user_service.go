package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cashback-platform/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewUserService(db *sql.DB, logger zerolog.Logger) *UserService {
	return &UserService{
		db:     db,
		logger: logger,
	}
}

// Register creates a client or store account. Admins are provisioned out of
// band (seed or CreateAdmin) and cannot sign themselves up.
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username, email, and password are required", ErrValidation)
	}
	if len(req.Password) < 6 {
		return nil, fmt.Errorf("%w: password must have at least 6 characters", ErrValidation)
	}

	if req.Role != string(models.RoleStore) {
		req.Role = string(models.RoleClient)
	}

	return s.create(ctx, req.Username, req.Email, req.Password, req.Role)
}

func (s *UserService) CreateAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	return s.create(ctx, username, strings.ToLower(email), password, string(models.RoleAdmin))
}

func (s *UserService) create(ctx context.Context, username, email, password, role string) (*models.User, error) {
	var existingID int
	err := s.db.QueryRowContext(ctx, "SELECT id FROM users WHERE email = ?", email).Scan(&existingID)
	if err == nil {
		return nil, ErrUserExists
	} else if err != sql.ErrNoRows {
		s.logger.Error().Err(err).Msg("Error checking existing user")
		return nil, fmt.Errorf("database error: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error hashing password")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, role) VALUES (?, ?, ?, ?)",
		username, email, string(hashedPassword), role,
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	userID, err := result.LastInsertId()
	if err != nil {
		s.logger.Error().Err(err).Msg("Error getting user ID")
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}

	user, err := s.GetUserByID(ctx, int(userID))
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("user_id", user.ID).Str("role", user.Role).Msg("User registered successfully")
	return user, nil
}

func (s *UserService) Authenticate(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	if req.Email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, role, created_at, updated_at FROM users WHERE email = ?",
		strings.ToLower(strings.TrimSpace(req.Email)),
	).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Error querying user")
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn().Str("email", req.Email).Msg("Failed authentication attempt")
		return nil, ErrInvalidCredentials
	}

	s.logger.Info().Int("user_id", user.ID).Msg("User authenticated successfully")
	return &user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID int) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, role, created_at, updated_at FROM users WHERE id = ?",
		userID,
	).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error fetching user")
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &user, nil
}
