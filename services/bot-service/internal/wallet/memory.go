package wallet

import (
	"context"

	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

// UserMutator is satisfied by repository.MemoryUserRepository.
type UserMutator interface {
	Mutate(id string, fn func(*types.User) error) (types.User, error)
}

type MemoryWallet struct {
	users UserMutator
}

func NewMemoryWallet(users UserMutator) *MemoryWallet {
	return &MemoryWallet{users: users}
}

func (w *MemoryWallet) Balance(_ context.Context, userID string) (int64, error) {
	u, err := w.users.Mutate(userID, func(*types.User) error { return nil })
	return u.Balance, err
}

func (w *MemoryWallet) Credit(_ context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.ErrInvalidAmount
	}
	u, err := w.users.Mutate(userID, func(u *types.User) error {
		u.Balance += amount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return u.Balance, nil
}

func (w *MemoryWallet) Debit(_ context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.ErrInvalidAmount
	}
	u, err := w.users.Mutate(userID, func(u *types.User) error {
		if u.Balance < amount {
			return apperrors.ErrInsufficientFunds
		}
		u.Balance -= amount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return u.Balance, nil
}

func (w *MemoryWallet) RecordSpend(_ context.Context, userID string, amount int64) error {
	_, err := w.users.Mutate(userID, func(u *types.User) error {
		u.TotalTransactions++
		u.TotalSpent += amount
		return nil
	})
	return err
}

func (w *MemoryWallet) RecordEarning(_ context.Context, userID string, amount int64) error {
	_, err := w.users.Mutate(userID, func(u *types.User) error {
		u.TotalTransactions++
		u.TotalEarned += amount
		return nil
	})
	return err
}

func (w *MemoryWallet) RecordFunding(_ context.Context, userID string) error {
	_, err := w.users.Mutate(userID, func(u *types.User) error {
		u.TotalTransactions++
		return nil
	})
	return err
}

var (
	_ Wallet = (*PostgresWallet)(nil)
	_ Wallet = (*MemoryWallet)(nil)
)
