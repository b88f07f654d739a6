package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmountTolerance is the largest difference, in currency units, accepted
// between two figures that must agree.
var AmountTolerance = decimal.New(1, -2)

// ReserveAccount is the singleton cashback liability account (id=1).
// Total is everything ever credited, Used everything debited, Available the
// remainder. Total == Available + Used holds after every committed operation.
type ReserveAccount struct {
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
	Used      decimal.Decimal `json:"used"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (a ReserveAccount) ApplyCredit(amount decimal.Decimal) ReserveAccount {
	a.Total = a.Total.Add(amount)
	a.Available = a.Available.Add(amount)
	return a
}

func (a ReserveAccount) ApplyDebit(amount decimal.Decimal) ReserveAccount {
	a.Available = a.Available.Sub(amount)
	a.Used = a.Used.Add(amount)
	return a
}

func (a ReserveAccount) IsBalanced() bool {
	return a.Total.Sub(a.Available.Add(a.Used)).Abs().LessThanOrEqual(AmountTolerance)
}

type ReserveMovementKind string

const (
	ReserveMovementCredit ReserveMovementKind = "credito"
	ReserveMovementDebit  ReserveMovementKind = "debito"
)

type ReserveMovement struct {
	ID                   int                 `json:"id"`
	RelatedTransactionID *int                `json:"related_transaction_id,omitempty"`
	Amount               decimal.Decimal     `json:"amount"`
	Kind                 ReserveMovementKind `json:"kind"`
	Description          string              `json:"description"`
	CreatedAt            time.Time           `json:"created_at"`
}

type ReserveOverview struct {
	Account   ReserveAccount     `json:"account"`
	Movements []*ReserveMovement `json:"movements"`
}

type ReconcileReport struct {
	Account       ReserveAccount  `json:"account"`
	SumCredits    decimal.Decimal `json:"sum_credits"`
	SumDebits     decimal.Decimal `json:"sum_debits"`
	Balanced      bool            `json:"balanced"`
	LogConsistent bool            `json:"log_consistent"`
}
