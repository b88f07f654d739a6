package mailer

import (
	"strings"
	"testing"
)

func TestRenderPaymentEmail(t *testing.T) {
	tests := []struct {
		name        string
		data        PaymentEmail
		contains    []string
		notContains []string
	}{
		{
			name: "Given a full payment When rendering Then every field is present",
			data: PaymentEmail{
				StoreName:       "Padaria Central",
				Amount:          "50.00",
				Method:          "pix",
				Date:            "19/10/2026",
				ReferenceNumber: "E123",
				Note:            "Repasse semanal",
				Status:          "em_processamento",
			},
			contains: []string{"Padaria Central", "R$ 50.00", "pix", "19/10/2026", "E123", "Repasse semanal"},
		},
		{
			name:        "Given no reference or note When rendering Then optional rows are omitted",
			data:        PaymentEmail{StoreName: "Loja", Amount: "10.00", Method: "ted", Date: "01/01/2026"},
			notContains: []string{"Referência", "Observação"},
		},
		{
			name:        "Given markup in the note When rendering Then it is escaped",
			data:        PaymentEmail{StoreName: "Loja", Note: "<script>alert(1)</script>"},
			contains:    []string{"&lt;script&gt;"},
			notContains: []string{"<script>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := RenderPaymentEmail(tt.data)
			if err != nil {
				t.Fatalf("RenderPaymentEmail() error = %v", err)
			}
			for _, s := range tt.contains {
				if !strings.Contains(body, s) {
					t.Errorf("body missing %q", s)
				}
			}
			for _, s := range tt.notContains {
				if strings.Contains(body, s) {
					t.Errorf("body unexpectedly contains %q", s)
				}
			}
		})
	}
}
