package models

import "time"

type StoreStatus string

const (
	StoreStatusPending  StoreStatus = "pendente"
	StoreStatusApproved StoreStatus = "aprovado"
	StoreStatusRejected StoreStatus = "rejeitado"
)

type Store struct {
	ID        int         `json:"id"`
	UserID    *int        `json:"user_id,omitempty"`
	Name      string      `json:"name"`
	Slug      string      `json:"slug"`
	Email     string      `json:"email"`
	CNPJ      string      `json:"cnpj,omitempty"`
	Status    StoreStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

type RegisterStoreRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	CNPJ  string `json:"cnpj"`
}
