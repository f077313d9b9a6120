package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
)

// Wallet moves naira balances. Debit never drives a balance below zero.
type Wallet interface {
	Balance(ctx context.Context, userID string) (int64, error)
	Credit(ctx context.Context, userID string, amount int64) (int64, error)
	Debit(ctx context.Context, userID string, amount int64) (int64, error)
	RecordSpend(ctx context.Context, userID string, amount int64) error
	RecordEarning(ctx context.Context, userID string, amount int64) error
	RecordFunding(ctx context.Context, userID string) error
}

type PostgresWallet struct {
	db *pgxpool.Pool
}

func NewPostgresWallet(db *pgxpool.Pool) *PostgresWallet {
	return &PostgresWallet{db: db}
}

func (w *PostgresWallet) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := w.db.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperrors.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (w *PostgresWallet) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.ErrInvalidAmount
	}

	var balance int64
	err := w.db.QueryRow(ctx, `
		UPDATE users
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance
	`, amount, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperrors.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to credit wallet: %w", err)
	}
	return balance, nil
}

// Debit is a single conditional update, so concurrent debits cannot
// overdraw.
func (w *PostgresWallet) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.ErrInvalidAmount
	}

	var balance int64
	err := w.db.QueryRow(ctx, `
		UPDATE users
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
		RETURNING balance
	`, amount, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, berr := w.Balance(ctx, userID); berr != nil {
			return 0, berr
		}
		return 0, apperrors.ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("failed to debit wallet: %w", err)
	}
	return balance, nil
}

func (w *PostgresWallet) RecordSpend(ctx context.Context, userID string, amount int64) error {
	_, err := w.db.Exec(ctx, `
		UPDATE users
		SET total_transactions = total_transactions + 1, total_spent = total_spent + $1, updated_at = NOW()
		WHERE id = $2
	`, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to record spend: %w", err)
	}
	return nil
}

func (w *PostgresWallet) RecordEarning(ctx context.Context, userID string, amount int64) error {
	_, err := w.db.Exec(ctx, `
		UPDATE users
		SET total_transactions = total_transactions + 1, total_earned = total_earned + $1, updated_at = NOW()
		WHERE id = $2
	`, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to record earning: %w", err)
	}
	return nil
}

// RecordFunding counts a settled funding without touching spend or earnings.
func (w *PostgresWallet) RecordFunding(ctx context.Context, userID string) error {
	_, err := w.db.Exec(ctx, `
		UPDATE users
		SET total_transactions = total_transactions + 1, updated_at = NOW()
		WHERE id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to record funding: %w", err)
	}
	return nil
}
