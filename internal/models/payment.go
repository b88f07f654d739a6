package models

import (
	"io"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pendente"
	PaymentStatusProcessing PaymentStatus = "em_processamento"
	PaymentStatusApproved   PaymentStatus = "aprovado"
)

var paymentStatusRank = map[PaymentStatus]int{
	PaymentStatusPending:    0,
	PaymentStatusProcessing: 1,
	PaymentStatusApproved:   2,
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentStatusRank[s]
	return ok
}

// CanMoveTo reports whether next is strictly ahead of s. Payments never go back.
func (s PaymentStatus) CanMoveTo(next PaymentStatus) bool {
	from, ok := paymentStatusRank[s]
	if !ok {
		return false
	}
	to, ok := paymentStatusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// BalancePayment is a reimbursement batch paid by the platform to a store,
// covering one or more usage movements.
type BalancePayment struct {
	ID              int             `json:"id"`
	StoreID         int             `json:"store_id"`
	StoreName       string          `json:"store_name,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaymentMethod   string          `json:"payment_method"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	ReceiptFile     string          `json:"receipt_file,omitempty"`
	Note            string          `json:"note,omitempty"`
	Status          PaymentStatus   `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

type ReceiptUpload struct {
	Filename string
	Content  io.Reader
}

type ProcessPaymentRequest struct {
	StoreID         int
	MovementIDs     []int
	DeclaredTotal   decimal.Decimal
	PaymentMethod   string
	ReferenceNumber string
	Note            string
	Receipt         *ReceiptUpload
	AutoApprove     bool
}

type ProcessPaymentResult struct {
	PaymentID   int             `json:"payment_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      PaymentStatus   `json:"status"`
}

type PaymentFilter struct {
	StoreID  int
	Statuses []PaymentStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PerPage  int
}

type PendingFilter struct {
	StoreID int
	Search  string
	Page    int
	PerPage int
}

type StorePendingSummary struct {
	StoreID        int             `json:"store_id"`
	StoreName      string          `json:"store_name"`
	StoreEmail     string          `json:"store_email"`
	MovementCount  int             `json:"movement_count"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
	OldestMovement time.Time       `json:"oldest_movement"`
}

type PaymentDetail struct {
	Payment   *BalancePayment     `json:"payment"`
	Movements []*CashbackMovement `json:"movements"`
}

type StoreBalanceDetail struct {
	Store            *Store              `json:"store"`
	PendingMovements []*CashbackMovement `json:"pending_movements"`
	PendingTotal     decimal.Decimal     `json:"pending_total"`
	PaidTotal        decimal.Decimal     `json:"paid_total"`
	Payments         []*BalancePayment   `json:"payments"`
	PaymentsMeta     PaymentsPage        `json:"payments_meta"`
}

type PaymentsPage struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

type PaymentStatistics struct {
	PendingAmount      decimal.Decimal `json:"pending_amount"`
	PendingMovements   int             `json:"pending_movements"`
	StoresWithPending  int             `json:"stores_with_pending"`
	ProcessingAmount   decimal.Decimal `json:"processing_amount"`
	ProcessingPayments int             `json:"processing_payments"`
	PaidAmount         decimal.Decimal `json:"paid_amount"`
	PaidPayments       int             `json:"paid_payments"`
}
