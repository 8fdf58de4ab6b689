package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/flx-it/assistbot/core/logger"
	"log/slog"

	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/storage"
)

const txColumns = `id, wallet_id, amount, type, description,
	provider_payment_id, status, created_at`

// CreateTransaction inserts a ledger entry and returns it with its id.
func (s *Store) CreateTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	err := s.db.GetContext(ctx, &t.ID, `
		INSERT INTO transactions (wallet_id, amount, type, description, provider_payment_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		t.WalletID, t.Amount, t.Type, t.Description, t.ProviderPaymentID, t.Status)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return t, nil
}

// TransactionByProviderPaymentID looks up a transaction by the payment id the
// provider assigned at init time.
func (s *Store) TransactionByProviderPaymentID(ctx context.Context, paymentID string) (domain.Transaction, error) {
	var t domain.Transaction
	err := s.db.GetContext(ctx, &t,
		`SELECT `+txColumns+` FROM transactions WHERE provider_payment_id = $1`, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction by payment id: %w", err)
	}
	return t, nil
}

// SetProviderPaymentID attaches the provider payment id to a pending entry.
func (s *Store) SetProviderPaymentID(ctx context.Context, txID int64, paymentID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET provider_payment_id = $2 WHERE id = $1`, txID, paymentID)
	if err != nil {
		return fmt.Errorf("set provider payment id: %w", err)
	}
	return requireRowAffected(res, "set provider payment id")
}

// FailTransaction moves a pending transaction to failed. Terminal entries are
// left untouched.
func (s *Store) FailTransaction(ctx context.Context, txID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = $2 WHERE id = $1 AND status = $3`,
		txID, domain.TxFailed, domain.TxPending)
	if err != nil {
		return fmt.Errorf("fail transaction: %w", err)
	}
	return nil
}

// ConfirmPayment completes a pending income transaction and credits its
// wallet in one database transaction. Confirming an already completed entry
// is a no-op, which makes duplicate provider notifications harmless.
func (s *Store) ConfirmPayment(ctx context.Context, txID int64) error {
	var credited bool
	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		var t domain.Transaction
		err := tx.GetContext(ctx, &t,
			`SELECT `+txColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, txID)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("confirm payment: load: %w", err)
		}

		if t.Status == domain.TxCompleted {
			return nil
		}
		if !t.Status.CanTransition(domain.TxCompleted) {
			return fmt.Errorf("confirm payment: tx %d is %s", t.ID, t.Status)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET status = $2 WHERE id = $1`,
			t.ID, domain.TxCompleted); err != nil {
			return fmt.Errorf("confirm payment: complete: %w", err)
		}
		if _, err := creditWallet(ctx, tx, t.WalletID, t.Amount); err != nil {
			return fmt.Errorf("confirm payment: credit: %w", err)
		}
		credited = true
		return nil
	})
	if err != nil {
		return err
	}

	if credited {
		logger.DB.Info("payment confirmed",
			slog.String("event", "db.payment.confirm"),
			slog.Int64("tx_id", txID),
		)
	} else {
		logger.DB.Debug("payment already confirmed",
			slog.String("event", "db.payment.confirm"),
			slog.String("status", "skip"),
			slog.Int64("tx_id", txID),
		)
	}
	return nil
}
