package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flx-it/assistbot/core/logger"
	"log/slog"

	"github.com/flx-it/assistbot/internal/ai"
	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/session"
	"github.com/flx-it/assistbot/internal/storage"
)

// Typed failures the bot layer translates into user-facing messages.
var (
	ErrNoWallet          = errors.New("chat: company has no wallet")
	ErrNoModel           = errors.New("chat: user has no model assigned")
	ErrInsufficientFunds = errors.New("chat: insufficient funds")
)

// PersistenceError reports that the AI call succeeded but the debit or audit
// write failed afterwards. The reply is preserved at ArtifactPath.
type PersistenceError struct {
	ArtifactPath string
	Err          error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("chat: persistence failed (reply preserved at %s): %v", e.ArtifactPath, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Billing is the storage surface the orchestrator needs.
type Billing interface {
	WalletByCompany(ctx context.Context, companyID int64) (domain.Wallet, error)
	ModelByID(ctx context.Context, id int64) (domain.Model, error)
	ChargeAndRecord(ctx context.Context, walletID int64, rec domain.Request) (domain.Wallet, error)
}

// Orchestrator runs one billed chat turn end to end: preflight, provider
// call, debit plus audit record, session update.
type Orchestrator struct {
	client    ai.ChatClient
	store     Billing
	sessions  session.Store
	artifacts *ArtifactStore
}

// NewOrchestrator wires the chat pipeline.
func NewOrchestrator(client ai.ChatClient, store Billing, sessions session.Store, artifacts *ArtifactStore) *Orchestrator {
	return &Orchestrator{client: client, store: store, sessions: sessions, artifacts: artifacts}
}

// TurnResult is the outcome of a successful chat turn.
type TurnResult struct {
	Reply   string
	Price   string
	Balance string
}

// HandleTurn processes one user message. The preflight rejects users without
// a wallet or model before any provider spend; the provider call happens
// outside any database transaction; the debit and audit record land
// atomically afterwards.
func (o *Orchestrator) HandleTurn(ctx context.Context, user domain.User, text string) (TurnResult, error) {
	start := time.Now()

	if user.ModelID == nil {
		return TurnResult{}, ErrNoModel
	}
	model, err := o.store.ModelByID(ctx, *user.ModelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return TurnResult{}, ErrNoModel
		}
		return TurnResult{}, fmt.Errorf("chat: load model: %w", err)
	}

	wallet, err := o.store.WalletByCompany(ctx, user.CompanyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return TurnResult{}, ErrNoWallet
		}
		return TurnResult{}, fmt.Errorf("chat: load wallet: %w", err)
	}
	if !wallet.Balance.IsPositive() {
		return TurnResult{}, ErrInsufficientFunds
	}

	history := o.sessions.Load(ctx, user.TelegramID).Messages
	messages := append(history, ai.Message{Role: ai.RoleUser, Content: text})

	res, err := o.client.Chat(ctx, messages, model.Name)
	if err != nil {
		return TurnResult{}, fmt.Errorf("chat: provider: %w", err)
	}

	price := model.Cost(res.PromptTokens, res.CompletionTokens)
	rec := domain.Request{
		Model:            model.Name,
		UserID:           user.ID,
		CompanyID:        user.CompanyID,
		InputMessage:     text,
		OutputMessage:    res.Content,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		TotalTokens:      res.TotalTokens,
		Price:            price,
	}

	updated, err := o.store.ChargeAndRecord(ctx, wallet.ID, rec)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) {
			// The call was made but cannot be paid for. Keep the reply
			// on disk so it is not lost with the refusal.
			path := o.preserve(user.TelegramID, res.Content)
			logger.AI.Warn("reply unbillable",
				slog.String("event", "chat.charge"),
				slog.String("status", "fail"),
				slog.Int64("wallet_id", wallet.ID),
				slog.String("price", price.String()),
				slog.String("cause", "insufficient_funds"),
			)
			return TurnResult{}, &PersistenceError{ArtifactPath: path, Err: ErrInsufficientFunds}
		}
		path := o.preserve(user.TelegramID, res.Content)
		return TurnResult{}, &PersistenceError{ArtifactPath: path, Err: err}
	}

	o.sessions.AppendTurn(ctx, user.TelegramID,
		ai.Message{Role: ai.RoleUser, Content: text},
		ai.Message{Role: ai.RoleAssistant, Content: res.Content},
	)

	logger.AI.Info("chat turn billed",
		slog.String("event", "chat.turn"),
		slog.String("model", model.Name),
		slog.Int64("wallet_id", wallet.ID),
		slog.String("price", price.String()),
		slog.Int64("prompt_tokens", res.PromptTokens),
		slog.Int64("completion_tokens", res.CompletionTokens),
		slog.Duration("duration", logger.Took(start)),
	)

	return TurnResult{
		Reply:   res.Content,
		Price:   price.StringFixed(6),
		Balance: updated.Balance.StringFixed(2),
	}, nil
}

func (o *Orchestrator) preserve(userID int64, content string) string {
	if o.artifacts == nil {
		return ""
	}
	path, err := o.artifacts.Save(userID, content)
	if err != nil {
		logger.AI.Error("artifact save failed",
			slog.String("event", "chat.artifact"),
			slog.String("err", err.Error()),
		)
		return ""
	}
	return path
}
