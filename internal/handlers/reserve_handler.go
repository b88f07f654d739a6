package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"cashback-platform/internal/middleware"
	"cashback-platform/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type ReserveLedger interface {
	Credit(ctx context.Context, amount decimal.Decimal, relatedID *int, description string) (models.ReserveAccount, error)
	ListMovements(ctx context.Context, limit, offset int) ([]*models.ReserveMovement, int, error)
	Overview(ctx context.Context, recent int) (*models.ReserveOverview, error)
	Reconcile(ctx context.Context) (*models.ReconcileReport, error)
}

type ReserveHandler struct {
	reserve ReserveLedger
	logger  zerolog.Logger
}

func NewReserveHandler(reserve ReserveLedger, logger zerolog.Logger) *ReserveHandler {
	return &ReserveHandler{
		reserve: reserve,
		logger:  logger,
	}
}

type creditReserveRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	RelatedID   *int            `json:"related_id"`
}

func (h *ReserveHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.reserve.Overview(r.Context(), queryInt(r, "recent", 10))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Reserve overview")
		return
	}

	respondWithJSON(w, http.StatusOK, "", overview)
}

func (h *ReserveHandler) Movements(w http.ResponseWriter, r *http.Request) {
	page, perPage, offset := pagination(r)

	movements, total, err := h.reserve.ListMovements(r.Context(), perPage, offset)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Reserve movements")
		return
	}

	respondWithPage(w, movements, page, perPage, total)
}

// Credit records a manual top-up of the reserve.
func (h *ReserveHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req creditReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	description := req.Description
	if description == "" {
		description = "Crédito manual"
	}

	account, err := h.reserve.Credit(r.Context(), req.Amount, req.RelatedID, description)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Reserve credit")
		return
	}

	if auth, ok := middleware.GetAuthContext(r); ok {
		h.logger.Info().
			Int("admin_id", auth.UserID).
			Str("amount", req.Amount.StringFixed(2)).
			Msg("Manual reserve credit")
	}

	respondWithJSON(w, http.StatusOK, "Reserve credited", account)
}

func (h *ReserveHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reserve.Reconcile(r.Context())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Reserve reconciliation")
		return
	}

	respondWithJSON(w, http.StatusOK, "", report)
}
