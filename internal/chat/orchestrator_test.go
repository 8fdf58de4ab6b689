package chat

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/flx-it/assistbot/internal/ai"
	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/session"
	"github.com/flx-it/assistbot/internal/storage"
)

type fakeChatClient struct {
	result      ai.ChatResult
	err         error
	calls       int
	gotMessages []ai.Message
	gotModel    string
}

func (c *fakeChatClient) Chat(_ context.Context, messages []ai.Message, model string) (ai.ChatResult, error) {
	c.calls++
	c.gotMessages = messages
	c.gotModel = model
	return c.result, c.err
}

func (c *fakeChatClient) Transcribe(context.Context, io.Reader, string) (string, error) {
	return "", errors.New("not implemented")
}

func (c *fakeChatClient) Translate(context.Context, string, string) (string, error) {
	return "", errors.New("not implemented")
}

type fakeBilling struct {
	model     domain.Model
	modelErr  error
	wallet    domain.Wallet
	walletErr error
	chargeErr error

	charged    *domain.Request
	chargedWID int64
}

func (b *fakeBilling) WalletByCompany(context.Context, int64) (domain.Wallet, error) {
	if b.walletErr != nil {
		return domain.Wallet{}, b.walletErr
	}
	return b.wallet, nil
}

func (b *fakeBilling) ModelByID(context.Context, int64) (domain.Model, error) {
	if b.modelErr != nil {
		return domain.Model{}, b.modelErr
	}
	return b.model, nil
}

func (b *fakeBilling) ChargeAndRecord(_ context.Context, walletID int64, rec domain.Request) (domain.Wallet, error) {
	if b.chargeErr != nil {
		return domain.Wallet{}, b.chargeErr
	}
	b.charged = &rec
	b.chargedWID = walletID
	updated := b.wallet
	updated.Balance = updated.Balance.Sub(rec.Price)
	return updated, nil
}

func testBilling() *fakeBilling {
	return &fakeBilling{
		model: domain.Model{
			ID:          3,
			Name:        "gpt-4o-mini",
			InputPrice:  decimal.RequireFromString("0.000001"),
			OutputPrice: decimal.RequireFromString("0.000002"),
		},
		wallet: domain.Wallet{ID: 10, CompanyID: 1, Balance: decimal.NewFromInt(5)},
	}
}

func testUser() domain.User {
	modelID := int64(3)
	return domain.User{ID: 2, TelegramID: 900, CompanyID: 1, ModelID: &modelID}
}

func newTestOrchestrator(t *testing.T, client *fakeChatClient, billing *fakeBilling) (*Orchestrator, session.Store) {
	t.Helper()
	artifacts, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	sessions := session.NewMemoryStore()
	return NewOrchestrator(client, billing, sessions, artifacts), sessions
}

func TestHandleTurn(t *testing.T) {
	client := &fakeChatClient{result: ai.ChatResult{
		Content:          "hello there",
		PromptTokens:     1000,
		CompletionTokens: 500,
		TotalTokens:      1500,
	}}
	billing := testBilling()
	o, sessions := newTestOrchestrator(t, client, billing)
	ctx := context.Background()

	res, err := o.HandleTurn(ctx, testUser(), "hi")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if res.Reply != "hello there" {
		t.Fatalf("reply = %q", res.Reply)
	}
	if client.gotModel != "gpt-4o-mini" {
		t.Fatalf("model = %q", client.gotModel)
	}

	// 1000*0.000001 + 500*0.000002 = 0.002
	if billing.charged == nil {
		t.Fatal("no charge recorded")
	}
	if !billing.charged.Price.Equal(decimal.RequireFromString("0.002")) {
		t.Fatalf("price = %s, want 0.002", billing.charged.Price)
	}
	if billing.chargedWID != 10 {
		t.Fatalf("wallet = %d, want 10", billing.chargedWID)
	}
	if billing.charged.InputMessage != "hi" || billing.charged.OutputMessage != "hello there" {
		t.Fatalf("audit record = %+v", billing.charged)
	}

	history := sessions.Load(ctx, 900).Messages
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Role != ai.RoleUser || history[1].Role != ai.RoleAssistant {
		t.Fatalf("history roles = %s, %s", history[0].Role, history[1].Role)
	}
}

func TestHandleTurnSendsHistory(t *testing.T) {
	client := &fakeChatClient{result: ai.ChatResult{Content: "sure"}}
	o, sessions := newTestOrchestrator(t, client, testBilling())
	ctx := context.Background()

	sessions.AppendTurn(ctx, 900,
		ai.Message{Role: ai.RoleUser, Content: "first"},
		ai.Message{Role: ai.RoleAssistant, Content: "second"},
	)

	if _, err := o.HandleTurn(ctx, testUser(), "third"); err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if len(client.gotMessages) != 3 {
		t.Fatalf("provider got %d messages, want 3", len(client.gotMessages))
	}
	if client.gotMessages[2].Content != "third" {
		t.Fatalf("last message = %q", client.gotMessages[2].Content)
	}
}

func TestHandleTurnNoModel(t *testing.T) {
	client := &fakeChatClient{}
	o, _ := newTestOrchestrator(t, client, testBilling())

	user := testUser()
	user.ModelID = nil
	if _, err := o.HandleTurn(context.Background(), user, "hi"); !errors.Is(err, ErrNoModel) {
		t.Fatalf("err = %v, want ErrNoModel", err)
	}

	billing := testBilling()
	billing.modelErr = storage.ErrNotFound
	o, _ = newTestOrchestrator(t, client, billing)
	if _, err := o.HandleTurn(context.Background(), testUser(), "hi"); !errors.Is(err, ErrNoModel) {
		t.Fatalf("err = %v, want ErrNoModel", err)
	}
	if client.calls != 0 {
		t.Fatal("provider called without a model")
	}
}

func TestHandleTurnNoWallet(t *testing.T) {
	client := &fakeChatClient{}
	billing := testBilling()
	billing.walletErr = storage.ErrNotFound
	o, _ := newTestOrchestrator(t, client, billing)

	if _, err := o.HandleTurn(context.Background(), testUser(), "hi"); !errors.Is(err, ErrNoWallet) {
		t.Fatalf("err = %v, want ErrNoWallet", err)
	}
	if client.calls != 0 {
		t.Fatal("provider called without a wallet")
	}
}

func TestHandleTurnEmptyBalancePreflight(t *testing.T) {
	client := &fakeChatClient{}
	billing := testBilling()
	billing.wallet.Balance = decimal.Zero
	o, _ := newTestOrchestrator(t, client, billing)

	if _, err := o.HandleTurn(context.Background(), testUser(), "hi"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if client.calls != 0 {
		t.Fatal("provider called with an empty wallet")
	}
}

func TestHandleTurnUnbillableReplyPreserved(t *testing.T) {
	client := &fakeChatClient{result: ai.ChatResult{Content: "expensive answer"}}
	billing := testBilling()
	billing.chargeErr = storage.ErrInsufficientFunds
	o, sessions := newTestOrchestrator(t, client, billing)
	ctx := context.Background()

	_, err := o.HandleTurn(ctx, testUser(), "hi")
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want wrapped ErrInsufficientFunds", err)
	}
	if perr.ArtifactPath == "" {
		t.Fatal("reply not preserved")
	}
	data, readErr := os.ReadFile(perr.ArtifactPath)
	if readErr != nil {
		t.Fatalf("read artifact: %v", readErr)
	}
	if string(data) != "expensive answer" {
		t.Fatalf("artifact = %q", data)
	}
	if len(sessions.Load(ctx, 900).Messages) != 0 {
		t.Fatal("failed turn appended to history")
	}
}

func TestHandleTurnProviderError(t *testing.T) {
	client := &fakeChatClient{err: errors.New("rate limited")}
	billing := testBilling()
	o, _ := newTestOrchestrator(t, client, billing)

	_, err := o.HandleTurn(context.Background(), testUser(), "hi")
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("err = %v", err)
	}
	if billing.charged != nil {
		t.Fatal("charge recorded for failed provider call")
	}
}
