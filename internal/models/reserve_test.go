package models

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func TestReserveAccountOperations(t *testing.T) {
	tests := []struct {
		name          string
		start         ReserveAccount
		credit        string
		debit         string
		wantTotal     string
		wantAvailable string
		wantUsed      string
	}{
		{
			name:          "Given an empty account When crediting 100 Then total and available grow",
			credit:        "100.00",
			wantTotal:     "100",
			wantAvailable: "100",
			wantUsed:      "0",
		},
		{
			name:          "Given a funded account When debiting 50 Then available shrinks and used grows",
			start:         ReserveAccount{Total: decimal.RequireFromString("100"), Available: decimal.RequireFromString("100"), Used: decimal.Zero},
			debit:         "50.00",
			wantTotal:     "100",
			wantAvailable: "50",
			wantUsed:      "50",
		},
		{
			name:          "Given a short account When debiting more than available Then available goes negative",
			start:         ReserveAccount{Total: decimal.RequireFromString("10"), Available: decimal.RequireFromString("10"), Used: decimal.Zero},
			debit:         "25.50",
			wantTotal:     "10",
			wantAvailable: "-15.5",
			wantUsed:      "25.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.start
			if tt.credit != "" {
				got = got.ApplyCredit(decimal.RequireFromString(tt.credit))
			}
			if tt.debit != "" {
				got = got.ApplyDebit(decimal.RequireFromString(tt.debit))
			}

			if !got.Total.Equal(decimal.RequireFromString(tt.wantTotal)) {
				t.Errorf("total = %s, want %s", got.Total, tt.wantTotal)
			}
			if !got.Available.Equal(decimal.RequireFromString(tt.wantAvailable)) {
				t.Errorf("available = %s, want %s", got.Available, tt.wantAvailable)
			}
			if !got.Used.Equal(decimal.RequireFromString(tt.wantUsed)) {
				t.Errorf("used = %s, want %s", got.Used, tt.wantUsed)
			}
			if !got.IsBalanced() {
				t.Errorf("account %+v is not balanced", got)
			}
		})
	}
}

func TestReserveAccountStaysBalancedUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		var account ReserveAccount
		for op := 0; op < 50; op++ {
			amount := decimal.New(int64(rng.Intn(1_000_000)+1), -2)
			if rng.Intn(2) == 0 {
				account = account.ApplyCredit(amount)
			} else {
				account = account.ApplyDebit(amount)
			}

			if !account.IsBalanced() {
				t.Fatalf("run %d op %d: total %s != available %s + used %s",
					run, op, account.Total, account.Available, account.Used)
			}
		}
	}
}

func TestReserveAccountIsBalancedTolerance(t *testing.T) {
	tests := []struct {
		name string
		acc  ReserveAccount
		want bool
	}{
		{
			name: "Given a drift of exactly one cent Then it is still balanced",
			acc:  ReserveAccount{Total: decimal.RequireFromString("100.01"), Available: decimal.RequireFromString("60"), Used: decimal.RequireFromString("40")},
			want: true,
		},
		{
			name: "Given a drift of two cents Then it is unbalanced",
			acc:  ReserveAccount{Total: decimal.RequireFromString("100.02"), Available: decimal.RequireFromString("60"), Used: decimal.RequireFromString("40")},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.acc.IsBalanced(); got != tt.want {
				t.Errorf("IsBalanced() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPaymentStatusCanMoveTo(t *testing.T) {
	tests := []struct {
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{PaymentStatusPending, PaymentStatusProcessing, true},
		{PaymentStatusPending, PaymentStatusApproved, true},
		{PaymentStatusProcessing, PaymentStatusApproved, true},
		{PaymentStatusProcessing, PaymentStatusProcessing, false},
		{PaymentStatusApproved, PaymentStatusProcessing, false},
		{PaymentStatusApproved, PaymentStatusPending, false},
		{PaymentStatusPending, PaymentStatus("cancelado"), false},
		{PaymentStatus("desconhecido"), PaymentStatusApproved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanMoveTo(tt.to); got != tt.want {
				t.Errorf("CanMoveTo() = %v, want %v", got, tt.want)
			}
		})
	}
}
