package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/storage"
)

type fakeProvider struct {
	initResult InitResult
	initErr    error
	gotKopeks  int64
	gotDesc    string
	calls      int
}

func (p *fakeProvider) InitPayment(_ context.Context, _, description string, amountKopeks int64) (InitResult, error) {
	p.calls++
	p.gotKopeks = amountKopeks
	p.gotDesc = description
	return p.initResult, p.initErr
}

func (p *fakeProvider) VerifyWebhook(map[string]string, string) bool { return true }

type fakeLedger struct {
	wallet    domain.Wallet
	walletErr error
	tx        domain.Transaction
	txByPID   map[string]domain.Transaction

	created      *domain.Transaction
	providerPIDs map[int64]string
	confirmed    []int64
	failed       []int64
	confirmErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		wallet:       domain.Wallet{ID: 10, CompanyID: 1, Balance: decimal.NewFromInt(50)},
		txByPID:      map[string]domain.Transaction{},
		providerPIDs: map[int64]string{},
	}
}

func (l *fakeLedger) WalletByCompany(_ context.Context, companyID int64) (domain.Wallet, error) {
	if l.walletErr != nil {
		return domain.Wallet{}, l.walletErr
	}
	if companyID != l.wallet.CompanyID {
		return domain.Wallet{}, storage.ErrNotFound
	}
	return l.wallet, nil
}

func (l *fakeLedger) CreateTransaction(_ context.Context, t domain.Transaction) (domain.Transaction, error) {
	t.ID = 77
	l.created = &t
	return t, nil
}

func (l *fakeLedger) SetProviderPaymentID(_ context.Context, txID int64, paymentID string) error {
	l.providerPIDs[txID] = paymentID
	return nil
}

func (l *fakeLedger) TransactionByProviderPaymentID(_ context.Context, paymentID string) (domain.Transaction, error) {
	tx, ok := l.txByPID[paymentID]
	if !ok {
		return domain.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

func (l *fakeLedger) ConfirmPayment(_ context.Context, txID int64) error {
	if l.confirmErr != nil {
		return l.confirmErr
	}
	l.confirmed = append(l.confirmed, txID)
	return nil
}

func (l *fakeLedger) FailTransaction(_ context.Context, txID int64) error {
	l.failed = append(l.failed, txID)
	return nil
}

func TestCreatePayment(t *testing.T) {
	provider := &fakeProvider{initResult: InitResult{PaymentID: "900123", PaymentURL: "https://pay.example/abc"}}
	ledger := newFakeLedger()
	svc := NewService(provider, ledger)

	url, err := svc.CreatePayment(context.Background(), 1, decimal.RequireFromString("150.50"), "Top up")
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if url != "https://pay.example/abc" {
		t.Fatalf("url = %q", url)
	}
	if provider.gotKopeks != 15050 {
		t.Fatalf("kopeks = %d, want 15050", provider.gotKopeks)
	}
	if ledger.created == nil {
		t.Fatal("no transaction created")
	}
	if ledger.created.Type != domain.TxIncome || ledger.created.Status != domain.TxPending {
		t.Fatalf("created tx type=%s status=%s", ledger.created.Type, ledger.created.Status)
	}
	if ledger.created.WalletID != 10 {
		t.Fatalf("tx wallet = %d, want 10", ledger.created.WalletID)
	}
	if got := ledger.providerPIDs[77]; got != "900123" {
		t.Fatalf("provider payment id = %q, want 900123", got)
	}
}

func TestCreatePaymentRejectsNonPositiveAmount(t *testing.T) {
	provider := &fakeProvider{}
	ledger := newFakeLedger()
	svc := NewService(provider, ledger)

	for _, amount := range []string{"0", "-5"} {
		_, err := svc.CreatePayment(context.Background(), 1, decimal.RequireFromString(amount), "")
		if err == nil {
			t.Fatalf("amount %s accepted", amount)
		}
	}
	if provider.calls != 0 {
		t.Fatal("provider called for invalid amount")
	}
	if ledger.created != nil {
		t.Fatal("transaction created for invalid amount")
	}
}

func TestCreatePaymentUnknownCompany(t *testing.T) {
	svc := NewService(&fakeProvider{}, newFakeLedger())

	_, err := svc.CreatePayment(context.Background(), 404, decimal.NewFromInt(10), "")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreatePaymentProviderFailureFailsTransaction(t *testing.T) {
	provider := &fakeProvider{initErr: errors.New("provider down")}
	ledger := newFakeLedger()
	svc := NewService(provider, ledger)

	_, err := svc.CreatePayment(context.Background(), 1, decimal.NewFromInt(10), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(ledger.failed) != 1 || ledger.failed[0] != 77 {
		t.Fatalf("failed = %v, want [77]", ledger.failed)
	}
}

func TestHandleNotificationConfirmed(t *testing.T) {
	ledger := newFakeLedger()
	ledger.txByPID["900123"] = domain.Transaction{ID: 77, Status: domain.TxPending}
	svc := NewService(&fakeProvider{}, ledger)

	if err := svc.HandleNotification(context.Background(), "900123", "CONFIRMED"); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}
	if len(ledger.confirmed) != 1 || ledger.confirmed[0] != 77 {
		t.Fatalf("confirmed = %v, want [77]", ledger.confirmed)
	}
}

func TestHandleNotificationRejected(t *testing.T) {
	ledger := newFakeLedger()
	ledger.txByPID["900123"] = domain.Transaction{ID: 77, Status: domain.TxPending}
	svc := NewService(&fakeProvider{}, ledger)

	if err := svc.HandleNotification(context.Background(), "900123", "REJECTED"); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}
	if len(ledger.failed) != 1 || ledger.failed[0] != 77 {
		t.Fatalf("failed = %v, want [77]", ledger.failed)
	}
}

func TestHandleNotificationIgnoresIntermediateStatus(t *testing.T) {
	ledger := newFakeLedger()
	ledger.txByPID["900123"] = domain.Transaction{ID: 77, Status: domain.TxPending}
	svc := NewService(&fakeProvider{}, ledger)

	if err := svc.HandleNotification(context.Background(), "900123", "AUTHORIZED"); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}
	if len(ledger.confirmed) != 0 || len(ledger.failed) != 0 {
		t.Fatal("intermediate status mutated the ledger")
	}
}

func TestHandleNotificationUnknownPayment(t *testing.T) {
	svc := NewService(&fakeProvider{}, newFakeLedger())

	err := svc.HandleNotification(context.Background(), "nope", "CONFIRMED")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
