package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"cashback-platform/internal/middleware"
	"cashback-platform/internal/models"
	"cashback-platform/internal/services"

	"github.com/rs/zerolog"
)

type UserStore interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Authenticate(ctx context.Context, req *models.LoginRequest) (*models.User, error)
	GetUserByID(ctx context.Context, userID int) (*models.User, error)
}

type TokenIssuer interface {
	GenerateToken(userID int, email, role string, storeID *int) (string, error)
}

type StoreOwnerLookup interface {
	GetByUserID(ctx context.Context, userID int) (*models.Store, error)
}

type AuthHandler struct {
	users  UserStore
	tokens TokenIssuer
	stores StoreOwnerLookup
	logger zerolog.Logger
}

func NewAuthHandler(users UserStore, tokens TokenIssuer, stores StoreOwnerLookup, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		stores: stores,
		logger: logger,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.users.Register(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Registration")
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.users.Authenticate(r.Context(), &req)
	if err != nil {
		h.logger.Warn().Str("email", req.Email).Msg("Login failed")
		if errors.Is(err, services.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		respondWithServiceError(w, r, h.logger, err, "Login")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user)
}

// Refresh issues a new token, picking up a store registered since the last one.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthContext(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	user, err := h.users.GetUserByID(r.Context(), auth.UserID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Token refresh")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, code int, user *models.User) {
	var storeID *int
	if user.Role == string(models.RoleStore) {
		store, err := h.stores.GetByUserID(r.Context(), user.ID)
		switch {
		case err == nil:
			storeID = &store.ID
		case !errors.Is(err, services.ErrStoreNotFound):
			respondWithServiceError(w, r, h.logger, err, "Store lookup")
			return
		}
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Email, user.Role, storeID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Token generation failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondWithJSON(w, code, "", models.AuthResponse{
		User:    user,
		StoreID: storeID,
		Token:   token,
	})
}
