package models

import "github.com/shopspring/decimal"

const PixEventChargePaid = "charge.paid"

// PixEvent is the body the PIX provider posts to the webhook.
type PixEvent struct {
	Event    string          `json:"event"`
	ChargeID string          `json:"charge_id"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
}

type PixWebhookResult struct {
	Event         string `json:"event"`
	ChargeID      string `json:"charge_id"`
	TransactionID int    `json:"transaction_id,omitempty"`
	Duplicate     bool   `json:"duplicate"`
	Ignored       bool   `json:"ignored"`
}
