package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/payment"
	"github.com/flx-it/assistbot/internal/storage"
)

type stubProvider struct {
	initErr error
}

func (p *stubProvider) InitPayment(context.Context, string, string, int64) (payment.InitResult, error) {
	if p.initErr != nil {
		return payment.InitResult{}, p.initErr
	}
	return payment.InitResult{PaymentID: "555", PaymentURL: "https://pay.example/checkout"}, nil
}

func (p *stubProvider) VerifyWebhook(fields map[string]string, token string) bool {
	return strings.EqualFold(payment.SignToken(fields, "pw"), token)
}

type stubLedger struct {
	txByPID   map[string]domain.Transaction
	confirmed []int64
}

func (l *stubLedger) WalletByCompany(_ context.Context, companyID int64) (domain.Wallet, error) {
	if companyID != 1 {
		return domain.Wallet{}, storage.ErrNotFound
	}
	return domain.Wallet{ID: 10, CompanyID: 1, Balance: decimal.NewFromInt(50)}, nil
}

func (l *stubLedger) CreateTransaction(_ context.Context, t domain.Transaction) (domain.Transaction, error) {
	t.ID = 42
	return t, nil
}

func (l *stubLedger) SetProviderPaymentID(context.Context, int64, string) error { return nil }

func (l *stubLedger) TransactionByProviderPaymentID(_ context.Context, paymentID string) (domain.Transaction, error) {
	tx, ok := l.txByPID[paymentID]
	if !ok {
		return domain.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

func (l *stubLedger) ConfirmPayment(_ context.Context, txID int64) error {
	l.confirmed = append(l.confirmed, txID)
	return nil
}

func (l *stubLedger) FailTransaction(context.Context, int64) error { return nil }

func newTestServer(ledger *stubLedger) *Server {
	svc := payment.NewService(&stubProvider{}, ledger)
	return New("127.0.0.1:0", svc)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestCreatePaymentEndpoint(t *testing.T) {
	s := newTestServer(&stubLedger{})

	rec := do(t, s, http.MethodPost, "/payment/create-payment",
		`{"company_id":1,"amount":"150.50","description":"Top up"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		PaymentURL string `json:"payment_url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PaymentURL != "https://pay.example/checkout" {
		t.Fatalf("payment_url = %q", resp.PaymentURL)
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	s := newTestServer(&stubLedger{})

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"company_id":`},
		{"missing fields", `{"description":"x"}`},
		{"non-decimal amount", `{"company_id":1,"amount":"abc"}`},
		{"negative amount", `{"company_id":1,"amount":"-5"}`},
	}
	for _, c := range cases {
		rec := do(t, s, http.MethodPost, "/payment/create-payment", c.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", c.name, rec.Code)
		}
	}
}

func TestCreatePaymentUnknownCompany(t *testing.T) {
	s := newTestServer(&stubLedger{})

	rec := do(t, s, http.MethodPost, "/payment/create-payment",
		`{"company_id":999,"amount":"10"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func webhookBody(t *testing.T, fields map[string]any, token string) string {
	t.Helper()
	fields["Token"] = token
	body, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal webhook body: %v", err)
	}
	return string(body)
}

func TestTinkoffWebhookConfirmed(t *testing.T) {
	ledger := &stubLedger{txByPID: map[string]domain.Transaction{
		"555": {ID: 42, Status: domain.TxPending},
	}}
	s := newTestServer(ledger)

	signed := map[string]string{
		"TerminalKey": "term",
		"PaymentId":   "555",
		"Status":      "CONFIRMED",
		"Amount":      "10000",
		"Success":     "true",
	}
	token := payment.SignToken(signed, "pw")

	// Numeric and boolean JSON values must flatten to the signed strings.
	body := webhookBody(t, map[string]any{
		"TerminalKey": "term",
		"PaymentId":   555,
		"Status":      "CONFIRMED",
		"Amount":      10000,
		"Success":     true,
	}, token)

	rec := do(t, s, http.MethodPost, "/webhook/tinkoff", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "OK" {
		t.Fatalf("body = %q, want OK", rec.Body.String())
	}
	if len(ledger.confirmed) != 1 || ledger.confirmed[0] != 42 {
		t.Fatalf("confirmed = %v, want [42]", ledger.confirmed)
	}
}

func TestTinkoffWebhookFormEncoded(t *testing.T) {
	ledger := &stubLedger{txByPID: map[string]domain.Transaction{
		"556": {ID: 43, Status: domain.TxPending},
	}}
	s := newTestServer(ledger)

	signed := map[string]string{
		"TerminalKey": "term",
		"PaymentId":   "556",
		"Status":      "CONFIRMED",
		"Amount":      "5000",
	}
	form := url.Values{}
	for k, v := range signed {
		form.Set(k, v)
	}
	form.Set("Token", payment.SignToken(signed, "pw"))

	req := httptest.NewRequest(http.MethodPost, "/webhook/tinkoff", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(ledger.confirmed) != 1 || ledger.confirmed[0] != 43 {
		t.Fatalf("confirmed = %v, want [43]", ledger.confirmed)
	}
}

func TestTinkoffWebhookBadSignature(t *testing.T) {
	ledger := &stubLedger{txByPID: map[string]domain.Transaction{
		"555": {ID: 42, Status: domain.TxPending},
	}}
	s := newTestServer(ledger)

	body := webhookBody(t, map[string]any{
		"PaymentId": 555,
		"Status":    "CONFIRMED",
	}, "deadbeef")

	rec := do(t, s, http.MethodPost, "/webhook/tinkoff", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(ledger.confirmed) != 0 {
		t.Fatal("unverified webhook reached the ledger")
	}
}

func TestTinkoffWebhookUnknownPayment(t *testing.T) {
	s := newTestServer(&stubLedger{})

	signed := map[string]string{
		"PaymentId": "404404",
		"Status":    "CONFIRMED",
	}
	body := webhookBody(t, map[string]any{
		"PaymentId": 404404,
		"Status":    "CONFIRMED",
	}, payment.SignToken(signed, "pw"))

	rec := do(t, s, http.MethodPost, "/webhook/tinkoff", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestTinkoffWebhookMissingFields(t *testing.T) {
	s := newTestServer(&stubLedger{})

	signed := map[string]string{"Status": "CONFIRMED"}
	body := webhookBody(t, map[string]any{"Status": "CONFIRMED"}, payment.SignToken(signed, "pw"))

	rec := do(t, s, http.MethodPost, "/webhook/tinkoff", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestFlattenValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{true, "true"},
		{false, "false"},
		{float64(10000), "10000"},
		{float64(150.5), "150.5"},
		{float64(99.99), "99.99"},
	}
	for _, c := range cases {
		if got := flattenValue(c.in); got != c.want {
			t.Fatalf("flattenValue(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
