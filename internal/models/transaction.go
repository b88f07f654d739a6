package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID             int               `json:"id"`
	UserID         int               `json:"user_id"`
	StoreID        int               `json:"store_id"`
	Type           string            `json:"type"`
	PurchaseAmount decimal.Decimal   `json:"purchase_amount"`
	CashbackAmount decimal.Decimal   `json:"cashback_amount"`
	Status         TransactionStatus `json:"status"`
	PixChargeID    *string           `json:"pix_charge_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

type TransactionType string

const (
	TransactionTypePurchase TransactionType = "compra"
	TransactionTypeUsage    TransactionType = "uso"
)

type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pendente"
	TransactionStatusApproved TransactionStatus = "aprovado"
	TransactionStatusCanceled TransactionStatus = "cancelado"
)

type PurchaseRequest struct {
	ClientUserID   int             `json:"client_user_id"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	CashbackAmount decimal.Decimal `json:"cashback_amount"`
	PixChargeID    string          `json:"pix_charge_id"`
}

type BalanceUsageRequest struct {
	ClientUserID int             `json:"client_user_id"`
	Amount       decimal.Decimal `json:"amount"`
}
