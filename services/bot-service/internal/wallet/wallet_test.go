package wallet

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/repository"
)

func newTestWallet(t *testing.T, balance int64) (*MemoryWallet, string) {
	t.Helper()
	users := repository.NewMemoryUserRepository()
	u, err := users.GetOrCreate(context.Background(), "08012345678", "")
	if err != nil {
		t.Fatal(err)
	}
	w := NewMemoryWallet(users)
	if balance > 0 {
		if _, err := w.Credit(context.Background(), u.ID, balance); err != nil {
			t.Fatal(err)
		}
	}
	return w, u.ID
}

func TestMemoryWallet_CreditDebit(t *testing.T) {
	w, id := newTestWallet(t, 5000)
	ctx := context.Background()

	bal, err := w.Debit(ctx, id, 1000)
	if err != nil {
		t.Fatalf("Debit() error = %v", err)
	}
	if bal != 4000 {
		t.Errorf("balance = %d, want 4000", bal)
	}

	bal, _ = w.Credit(ctx, id, 1000)
	if bal != 5000 {
		t.Errorf("balance after refund = %d, want 5000", bal)
	}
}

func TestMemoryWallet_Validation(t *testing.T) {
	w, id := newTestWallet(t, 100)
	ctx := context.Background()

	tests := []struct {
		name    string
		op      func() (int64, error)
		wantErr *apperrors.AppError
	}{
		{"zero credit", func() (int64, error) { return w.Credit(ctx, id, 0) }, apperrors.ErrInvalidAmount},
		{"negative debit", func() (int64, error) { return w.Debit(ctx, id, -5) }, apperrors.ErrInvalidAmount},
		{"overdraft", func() (int64, error) { return w.Debit(ctx, id, 101) }, apperrors.ErrInsufficientFunds},
		{"unknown user", func() (int64, error) { return w.Credit(ctx, "nope", 10) }, apperrors.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.op(); !apperrors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if bal, _ := w.Balance(ctx, id); bal != 100 {
		t.Errorf("balance = %d, rejected operations should not change it", bal)
	}
}

func TestMemoryWallet_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	w, id := newTestWallet(t, 1000)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.Debit(ctx, id, 100); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != 10 {
		t.Errorf("successful debits = %d, want 10", succeeded.Load())
	}
	if bal, _ := w.Balance(ctx, id); bal != 0 {
		t.Errorf("balance = %d, want 0", bal)
	}
}

func TestMemoryWallet_Stats(t *testing.T) {
	users := repository.NewMemoryUserRepository()
	ctx := context.Background()
	u, _ := users.GetOrCreate(ctx, "08012345678", "")
	w := NewMemoryWallet(users)

	w.RecordSpend(ctx, u.ID, 1000)
	w.RecordEarning(ctx, u.ID, 35000)

	got, _ := users.GetByID(ctx, u.ID)
	if got.TotalTransactions != 2 || got.TotalSpent != 1000 || got.TotalEarned != 35000 {
		t.Errorf("stats = %+v", got)
	}
}
