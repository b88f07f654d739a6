package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cashback-platform/internal/models"

	"github.com/rs/zerolog"
)

// ChargeApprover approves the purchase bound to a PIX charge.
type ChargeApprover interface {
	ApproveByCharge(ctx context.Context, chargeID string) (*models.Transaction, error)
}

type PixWebhookService struct {
	secret   []byte
	approver ChargeApprover
	logger   zerolog.Logger
}

func NewPixWebhookService(secret string, approver ChargeApprover, logger zerolog.Logger) *PixWebhookService {
	if secret == "" {
		logger.Warn().Msg("PIX_WEBHOOK_SECRET not set, every webhook call will be rejected")
	}
	return &PixWebhookService{
		secret:   []byte(secret),
		approver: approver,
		logger:   logger,
	}
}

// Sign returns the hex HMAC-SHA256 of body under the webhook secret.
func (s *PixWebhookService) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *PixWebhookService) VerifySignature(body []byte, signature string) error {
	if len(s.secret) == 0 {
		return ErrInvalidSignature
	}
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(given) == 0 {
		return ErrInvalidSignature
	}
	expected, _ := hex.DecodeString(s.Sign(body))
	if !hmac.Equal(given, expected) {
		return ErrInvalidSignature
	}
	return nil
}

// Handle authenticates and applies one webhook delivery. Redeliveries of an
// already approved charge succeed with Duplicate set.
func (s *PixWebhookService) Handle(ctx context.Context, body []byte, signature string) (*models.PixWebhookResult, error) {
	if err := s.VerifySignature(body, signature); err != nil {
		s.logger.Warn().Msg("Rejected PIX webhook with invalid signature")
		return nil, err
	}

	var event models.PixEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook body", ErrValidation)
	}
	if event.ChargeID == "" {
		return nil, fmt.Errorf("%w: charge_id is required", ErrValidation)
	}

	result := &models.PixWebhookResult{Event: event.Event, ChargeID: event.ChargeID}
	if event.Event != models.PixEventChargePaid {
		result.Ignored = true
		s.logger.Info().Str("event", event.Event).Str("charge_id", event.ChargeID).Msg("Ignoring PIX event")
		return result, nil
	}

	transaction, err := s.approver.ApproveByCharge(ctx, event.ChargeID)
	if errors.Is(err, ErrAlreadyProcessed) {
		result.Duplicate = true
		s.logger.Info().Str("charge_id", event.ChargeID).Msg("Duplicate PIX payment notification")
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.TransactionID = transaction.ID
	s.logger.Info().
		Str("charge_id", event.ChargeID).
		Int("transaction_id", transaction.ID).
		Msg("PIX charge paid, cashback approved")

	return result, nil
}
