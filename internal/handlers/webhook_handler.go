package handlers

import (
	"context"
	"io"
	"net/http"

	"cashback-platform/internal/models"

	"github.com/rs/zerolog"
)

const (
	SignatureHeader   = "X-Webhook-Signature"
	maxWebhookPayload = 1 << 20
)

type PixWebhook interface {
	Handle(ctx context.Context, body []byte, signature string) (*models.PixWebhookResult, error)
}

type WebhookHandler struct {
	pix    PixWebhook
	logger zerolog.Logger
}

func NewWebhookHandler(pix PixWebhook, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		pix:    pix,
		logger: logger,
	}
}

func (h *WebhookHandler) Pix(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookPayload))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	result, err := h.pix.Handle(r.Context(), body, r.Header.Get(SignatureHeader))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "PIX webhook")
		return
	}

	message := "Event processed"
	switch {
	case result.Duplicate:
		message = "duplicate"
	case result.Ignored:
		message = "Event ignored"
	}

	respondWithJSON(w, http.StatusOK, message, result)
}
