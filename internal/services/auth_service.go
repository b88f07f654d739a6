package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

type AuthService struct {
	secretKey []byte
	logger    zerolog.Logger
}

// Claims is what a request is allowed to know about its caller. StoreID is set
// for users that own a store.
type Claims struct {
	UserID  int    `json:"user_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	StoreID *int   `json:"store_id,omitempty"`
	jwt.RegisteredClaims
}

func NewAuthService(secret string, logger zerolog.Logger) *AuthService {
	if secret == "" {
		secret = "default-secret-key-change-in-production"
		logger.Warn().Msg("JWT_SECRET not set, using default key")
	}

	return &AuthService{
		secretKey: []byte(secret),
		logger:    logger,
	}
}

func (s *AuthService) GenerateToken(userID int, email, role string, storeID *int) (string, error) {
	now := time.Now()

	claims := &Claims{
		UserID:  userID,
		Email:   email,
		Role:    role,
		StoreID: storeID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error generating token")
		return "", err
	}

	return tokenString, nil
}

func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
