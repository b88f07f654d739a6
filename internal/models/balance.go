package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletBalance is the spendable cashback a client holds on the platform.
type WalletBalance struct {
	UserID        int             `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	LastUpdatedAt time.Time       `json:"last_updated_at"`
}

type MovementKind string

const (
	MovementKindCredit MovementKind = "credito"
	MovementKindUsage  MovementKind = "uso"
)

// CashbackMovement is a row of cashback_movimentacoes. Usage rows (kind "uso")
// become reimbursement obligations towards the store until PaymentID is set.
type CashbackMovement struct {
	ID                 int             `json:"id"`
	UserID             int             `json:"user_id"`
	StoreID            int             `json:"store_id"`
	Amount             decimal.Decimal `json:"amount"`
	Kind               MovementKind    `json:"kind"`
	Description        string          `json:"description,omitempty"`
	TransactionID      *int            `json:"transaction_id,omitempty"`
	UsageTransactionID *int            `json:"usage_transaction_id,omitempty"`
	PaymentID          *int            `json:"payment_id,omitempty"`
	OperationAt        time.Time       `json:"operation_at"`
}
