package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"cashback-platform/internal/middleware"
	"cashback-platform/internal/models"
	"cashback-platform/internal/services"

	"github.com/rs/zerolog"
)

type Wallet interface {
	GetBalance(ctx context.Context, userID int) (*models.WalletBalance, error)
	GetMovements(ctx context.Context, userID int, limit, offset int) ([]*models.CashbackMovement, error)
	ReconcileBalance(ctx context.Context, userID int) (*services.WalletReconciliation, error)
}

type CashbackOperations interface {
	RegisterPurchase(ctx context.Context, storeID int, req *models.PurchaseRequest) (*models.Transaction, error)
	ApproveTransaction(ctx context.Context, transactionID int) (*models.Transaction, error)
	UseBalance(ctx context.Context, storeID int, req *models.BalanceUsageRequest) (*models.CashbackMovement, error)
	ListStoreTransactions(ctx context.Context, storeID int, limit, offset int) ([]*models.Transaction, error)
}

// CashbackHandler serves the client wallet and the store side of cashback
// transactions.
type CashbackHandler struct {
	wallet   Wallet
	cashback CashbackOperations
	logger   zerolog.Logger
}

func NewCashbackHandler(wallet Wallet, cashback CashbackOperations, logger zerolog.Logger) *CashbackHandler {
	return &CashbackHandler{
		wallet:   wallet,
		cashback: cashback,
		logger:   logger,
	}
}

// targetUser is the caller, or any user_id an admin asks for.
func targetUser(r *http.Request, auth *middleware.AuthContext) int {
	if auth.IsAdmin() {
		if uid, err := strconv.Atoi(r.URL.Query().Get("user_id")); err == nil && uid > 0 {
			return uid
		}
	}
	return auth.UserID
}

// storeScope is the store the caller acts for.
func storeScope(r *http.Request) (int, bool) {
	auth, ok := middleware.GetAuthContext(r)
	if !ok || auth.StoreID == nil {
		return 0, false
	}
	return *auth.StoreID, true
}

func (h *CashbackHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthContext(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	balance, err := h.wallet.GetBalance(r.Context(), targetUser(r, auth))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Balance fetch")
		return
	}

	respondWithJSON(w, http.StatusOK, "", balance)
}

func (h *CashbackHandler) GetMovements(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthContext(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	page, perPage, offset := pagination(r)
	movements, err := h.wallet.GetMovements(r.Context(), targetUser(r, auth), perPage, offset)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Movement history")
		return
	}

	respondWithPage(w, movements, page, perPage, len(movements))
}

func (h *CashbackHandler) ReconcileWallet(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthContext(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	report, err := h.wallet.ReconcileBalance(r.Context(), targetUser(r, auth))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Wallet reconciliation")
		return
	}

	respondWithJSON(w, http.StatusOK, "", report)
}

func (h *CashbackHandler) RegisterPurchase(w http.ResponseWriter, r *http.Request) {
	storeID, ok := storeScope(r)
	if !ok {
		respondWithError(w, http.StatusForbidden, "No store linked to this account")
		return
	}

	var req models.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transaction, err := h.cashback.RegisterPurchase(r.Context(), storeID, &req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Purchase registration")
		return
	}

	respondWithJSON(w, http.StatusCreated, "Purchase registered", transaction)
}

func (h *CashbackHandler) ListStoreTransactions(w http.ResponseWriter, r *http.Request) {
	storeID, ok := storeScope(r)
	if !ok {
		respondWithError(w, http.StatusForbidden, "No store linked to this account")
		return
	}

	page, perPage, offset := pagination(r)
	transactions, err := h.cashback.ListStoreTransactions(r.Context(), storeID, perPage, offset)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Transaction listing")
		return
	}

	respondWithPage(w, transactions, page, perPage, len(transactions))
}

func (h *CashbackHandler) UseBalance(w http.ResponseWriter, r *http.Request) {
	storeID, ok := storeScope(r)
	if !ok {
		respondWithError(w, http.StatusForbidden, "No store linked to this account")
		return
	}

	var req models.BalanceUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	movement, err := h.cashback.UseBalance(r.Context(), storeID, &req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Balance usage")
		return
	}

	respondWithJSON(w, http.StatusCreated, "Balance used", movement)
}

func (h *CashbackHandler) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	transaction, err := h.cashback.ApproveTransaction(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Transaction approval")
		return
	}

	respondWithJSON(w, http.StatusOK, "Transaction approved", transaction)
}
