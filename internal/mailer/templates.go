package mailer

import (
	"bytes"
	"html/template"
)

type PaymentEmail struct {
	StoreName       string
	Amount          string
	Method          string
	Date            string
	ReferenceNumber string
	Note            string
	Status          string
}

var paymentTemplate = template.Must(template.New("payment").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Repasse de saldo registrado</h2>
  <p>Olá, {{.StoreName}}.</p>
  <p>Registramos um repasse referente ao saldo de cashback utilizado pelos seus clientes.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td><strong>Valor</strong></td><td>R$ {{.Amount}}</td></tr>
    <tr><td><strong>Forma de pagamento</strong></td><td>{{.Method}}</td></tr>
    <tr><td><strong>Data</strong></td><td>{{.Date}}</td></tr>
    <tr><td><strong>Status</strong></td><td>{{.Status}}</td></tr>
    {{if .ReferenceNumber}}<tr><td><strong>Referência</strong></td><td>{{.ReferenceNumber}}</td></tr>{{end}}
  </table>
  {{if .Note}}<p><strong>Observação:</strong> {{.Note}}</p>{{end}}
</body>
</html>`))

func RenderPaymentEmail(data PaymentEmail) (string, error) {
	var buf bytes.Buffer
	if err := paymentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
