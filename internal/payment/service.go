package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flx-it/assistbot/core/logger"
	"log/slog"

	"github.com/flx-it/assistbot/internal/domain"
)

// Provider is the outbound payment surface the service depends on.
type Provider interface {
	InitPayment(ctx context.Context, orderID, description string, amountKopeks int64) (InitResult, error)
	VerifyWebhook(fields map[string]string, token string) bool
}

// Ledger is the storage surface the service depends on.
type Ledger interface {
	WalletByCompany(ctx context.Context, companyID int64) (domain.Wallet, error)
	CreateTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error)
	SetProviderPaymentID(ctx context.Context, txID int64, paymentID string) error
	TransactionByProviderPaymentID(ctx context.Context, paymentID string) (domain.Transaction, error)
	ConfirmPayment(ctx context.Context, txID int64) error
	FailTransaction(ctx context.Context, txID int64) error
}

// Service orchestrates wallet top-ups through the payment provider.
type Service struct {
	provider Provider
	ledger   Ledger
}

// NewService wires the payment service.
func NewService(provider Provider, ledger Ledger) *Service {
	return &Service{provider: provider, ledger: ledger}
}

var kopeksPerUnit = decimal.NewFromInt(100)

// CreatePayment opens a pending income transaction for the company wallet
// and returns the provider checkout URL. The transaction stays pending until
// the webhook confirms or rejects it.
func (s *Service) CreatePayment(ctx context.Context, companyID int64, amount decimal.Decimal, description string) (string, error) {
	start := time.Now()

	if !amount.IsPositive() {
		return "", fmt.Errorf("create payment: amount must be positive")
	}

	wallet, err := s.ledger.WalletByCompany(ctx, companyID)
	if err != nil {
		return "", fmt.Errorf("create payment: %w", err)
	}

	tx, err := s.ledger.CreateTransaction(ctx, domain.Transaction{
		WalletID:    wallet.ID,
		Amount:      amount,
		Type:        domain.TxIncome,
		Description: description,
		Status:      domain.TxPending,
	})
	if err != nil {
		return "", fmt.Errorf("create payment: %w", err)
	}

	orderID := uuid.NewString()
	kopeks := amount.Mul(kopeksPerUnit).IntPart()

	res, err := s.provider.InitPayment(ctx, orderID, description, kopeks)
	if err != nil {
		if failErr := s.ledger.FailTransaction(ctx, tx.ID); failErr != nil {
			logger.PAY.Error("orphaned pending transaction",
				slog.String("event", "payment.init"),
				slog.Int64("tx_id", tx.ID),
				slog.String("err", failErr.Error()),
			)
		}
		return "", fmt.Errorf("create payment: %w", err)
	}

	if err := s.ledger.SetProviderPaymentID(ctx, tx.ID, res.PaymentID); err != nil {
		return "", fmt.Errorf("create payment: %w", err)
	}

	logger.PAY.Info("payment initialized",
		slog.String("event", "payment.init"),
		slog.Int64("wallet_id", wallet.ID),
		slog.Int64("tx_id", tx.ID),
		slog.String("amount", amount.String()),
		slog.Duration("duration", logger.Took(start)),
	)
	return res.PaymentURL, nil
}

// HandleNotification applies a verified provider status update. CONFIRMED
// credits the wallet exactly once; REJECTED and CANCELED fail the pending
// transaction; other statuses are acknowledged without effect.
func (s *Service) HandleNotification(ctx context.Context, paymentID, status string) error {
	tx, err := s.ledger.TransactionByProviderPaymentID(ctx, paymentID)
	if err != nil {
		return err
	}

	switch status {
	case "CONFIRMED":
		if err := s.ledger.ConfirmPayment(ctx, tx.ID); err != nil {
			return err
		}
	case "REJECTED", "CANCELED", "CANCELLED":
		if err := s.ledger.FailTransaction(ctx, tx.ID); err != nil {
			return err
		}
		logger.PAY.Info("payment failed",
			slog.String("event", "payment.webhook"),
			slog.Int64("tx_id", tx.ID),
			slog.String("status", status),
		)
	default:
		logger.PAY.Debug("payment status ignored",
			slog.String("event", "payment.webhook"),
			slog.String("status", status),
			slog.Int64("tx_id", tx.ID),
		)
	}
	return nil
}

// VerifyWebhook delegates signature verification to the provider client.
func (s *Service) VerifyWebhook(fields map[string]string, token string) bool {
	return s.provider.VerifyWebhook(fields, token)
}
