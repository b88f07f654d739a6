package services

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

var fixedTime = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// decimalArg matches a driver value that renders the same amount as want.
type decimalArg struct {
	want decimal.Decimal
}

func decArg(s string) decimalArg {
	return decimalArg{want: dec(s)}
}

func (a decimalArg) Match(v driver.Value) bool {
	var got decimal.Decimal
	switch val := v.(type) {
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return false
		}
		got = d
	case []byte:
		d, err := decimal.NewFromString(string(val))
		if err != nil {
			return false
		}
		got = d
	case float64:
		got = decimal.NewFromFloat(val)
	case int64:
		got = decimal.NewFromInt(val)
	default:
		return false
	}
	return got.Equal(a.want)
}

var storeRowColumns = []string{"id", "user_id", "name", "slug", "email", "cnpj", "status", "created_at"}

func storeRow(id int, userID interface{}, name, email string) *sqlmock.Rows {
	return sqlmock.NewRows(storeRowColumns).
		AddRow(id, userID, name, fmt.Sprintf("loja-%d", id), email, "", "aprovado", fixedTime)
}

var movementRowColumns = []string{"id", "user_id", "store_id", "amount", "kind", "description", "transaction_id", "usage_transaction_id", "payment_id", "operation_at"}

type movementFixture struct {
	id      int
	storeID int
	amount  string
}

func movementRows(fixtures ...movementFixture) *sqlmock.Rows {
	rows := sqlmock.NewRows(movementRowColumns)
	for _, f := range fixtures {
		rows.AddRow(f.id, 500+f.id, f.storeID, f.amount, "uso", "Uso de saldo", nil, 900+f.id, nil, fixedTime)
	}
	return rows
}

type receiptStoreMock struct {
	SaveFunc   func(scope, originalName string, content io.Reader) (string, error)
	RemoveFunc func(relPath string) error

	saved   []string
	removed []string
}

func (m *receiptStoreMock) Save(scope, originalName string, content io.Reader) (string, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(scope, originalName, content)
	}
	path := scope + "/receipt" + originalName
	m.saved = append(m.saved, path)
	return path, nil
}

func (m *receiptStoreMock) Remove(relPath string) error {
	m.removed = append(m.removed, relPath)
	if m.RemoveFunc != nil {
		return m.RemoveFunc(relPath)
	}
	return nil
}

type sentMail struct {
	to, subject, body, name string
}

type mailerMock struct {
	SendFunc func(to, subject, htmlBody, recipientName string) error
	sent     []sentMail
}

func (m *mailerMock) Send(to, subject, htmlBody, recipientName string) error {
	m.sent = append(m.sent, sentMail{to, subject, htmlBody, recipientName})
	if m.SendFunc != nil {
		return m.SendFunc(to, subject, htmlBody, recipientName)
	}
	return nil
}
