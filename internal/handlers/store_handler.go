package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"cashback-platform/internal/middleware"
	"cashback-platform/internal/models"

	"github.com/rs/zerolog"
)

type StoreManager interface {
	Register(ctx context.Context, userID int, req *models.RegisterStoreRequest) (*models.Store, error)
	List(ctx context.Context, status string, limit, offset int) ([]*models.Store, error)
	Approve(ctx context.Context, storeID int) (*models.Store, error)
	Reject(ctx context.Context, storeID int, reason string) (*models.Store, error)
}

type StoreHandler struct {
	stores StoreManager
	logger zerolog.Logger
}

func NewStoreHandler(stores StoreManager, logger zerolog.Logger) *StoreHandler {
	return &StoreHandler{
		stores: stores,
		logger: logger,
	}
}

func (h *StoreHandler) Register(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthContext(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req models.RegisterStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	store, err := h.stores.Register(r.Context(), auth.UserID, &req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Store registration")
		return
	}

	respondWithJSON(w, http.StatusCreated, "Store registered, awaiting approval", store)
}

func (h *StoreHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage, offset := pagination(r)

	stores, err := h.stores.List(r.Context(), r.URL.Query().Get("status"), perPage, offset)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Store listing")
		return
	}

	respondWithPage(w, stores, page, perPage, len(stores))
}

func (h *StoreHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid store ID")
		return
	}

	store, err := h.stores.Approve(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Store approval")
		return
	}

	respondWithJSON(w, http.StatusOK, "Store approved", store)
}

func (h *StoreHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid store ID")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	store, err := h.stores.Reject(r.Context(), id, body.Reason)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Store rejection")
		return
	}

	respondWithJSON(w, http.StatusOK, "Store rejected", store)
}
