package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

var (
	ErrValidation              = errors.New("invalid request")
	ErrInvalidAmount           = errors.New("amount must be greater than zero")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrMovementsInvalid        = errors.New("movements not found or invalid")
	ErrAmountMismatch          = errors.New("declared total does not match the movements total")
	ErrStoreNotFound           = errors.New("store not found")
	ErrStoreNotApproved        = errors.New("store is not approved")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrAlreadyProcessed        = errors.New("transaction already processed")
	ErrNotificationNotFound    = errors.New("notification not found")
	ErrNotRecipient            = errors.New("not the recipient of this notification")
	ErrUserNotFound            = errors.New("user not found")
	ErrUserExists              = errors.New("user with this email already exists")
	ErrInvalidCredentials      = errors.New("invalid email or password")
	ErrInvalidSignature        = errors.New("invalid webhook signature")
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// inClause returns "?, ?, ?" for ids together with the matching args.
func inClause(ids []int) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}
