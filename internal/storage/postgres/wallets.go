package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/flx-it/assistbot/core/logger"
	"log/slog"

	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/storage"
)

const walletColumns = `id, company_id, balance, currency, created_at, updated_at`

// WalletByCompany fetches the single wallet of a company.
func (s *Store) WalletByCompany(ctx context.Context, companyID int64) (domain.Wallet, error) {
	var w domain.Wallet
	err := s.db.GetContext(ctx, &w,
		`SELECT `+walletColumns+` FROM wallets WHERE company_id = $1`, companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Wallet{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("wallet by company: %w", err)
	}
	return w, nil
}

// WalletByID fetches a wallet by primary key.
func (s *Store) WalletByID(ctx context.Context, id int64) (domain.Wallet, error) {
	var w domain.Wallet
	err := s.db.GetContext(ctx, &w,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Wallet{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("wallet by id: %w", err)
	}
	return w, nil
}

// debitWallet subtracts amount from the wallet balance inside tx. The update
// is conditioned on sufficient funds, so the balance can never go negative
// regardless of concurrent debits.
func debitWallet(ctx context.Context, tx *sqlx.Tx, walletID int64, amount decimal.Decimal) (domain.Wallet, error) {
	var w domain.Wallet
	err := tx.GetContext(ctx, &w, `
		UPDATE wallets
		SET balance = balance - $2, updated_at = now()
		WHERE id = $1 AND balance >= $2
		RETURNING `+walletColumns,
		walletID, amount)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish a missing wallet from one that is short on funds.
		var exists bool
		if checkErr := tx.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`, walletID); checkErr != nil {
			return domain.Wallet{}, fmt.Errorf("debit wallet: check existence: %w", checkErr)
		}
		if !exists {
			return domain.Wallet{}, storage.ErrNotFound
		}
		return domain.Wallet{}, storage.ErrInsufficientFunds
	}
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("debit wallet: %w", err)
	}
	return w, nil
}

// creditWallet adds amount to the wallet balance inside tx.
func creditWallet(ctx context.Context, tx *sqlx.Tx, walletID int64, amount decimal.Decimal) (domain.Wallet, error) {
	var w domain.Wallet
	err := tx.GetContext(ctx, &w, `
		UPDATE wallets
		SET balance = balance + $2, updated_at = now()
		WHERE id = $1
		RETURNING `+walletColumns,
		walletID, amount)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Wallet{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("credit wallet: %w", err)
	}
	return w, nil
}

// ChargeAndRecord atomically debits the wallet and writes the request audit
// record. Either both happen or neither does.
func (s *Store) ChargeAndRecord(ctx context.Context, walletID int64, rec domain.Request) (domain.Wallet, error) {
	var wallet domain.Wallet
	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		w, err := debitWallet(ctx, tx, walletID, rec.Price)
		if err != nil {
			return err
		}
		if err := insertRequest(ctx, tx, rec); err != nil {
			return err
		}
		wallet = w
		return nil
	})
	if err != nil {
		return domain.Wallet{}, err
	}

	logger.DB.Debug("wallet charged",
		slog.String("event", "db.wallet.charge"),
		slog.Int64("wallet_id", walletID),
		slog.String("amount", rec.Price.String()),
		slog.String("model", rec.Model),
	)
	return wallet, nil
}
