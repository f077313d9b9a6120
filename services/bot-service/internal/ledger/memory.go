package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

type MemoryStore struct {
	mu  sync.Mutex
	txs map[string]types.Transaction
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{txs: make(map[string]types.Transaction), now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, tx types.Transaction) (types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := prepare(tx, s.now())
	if err != nil {
		return tx, err
	}
	for _, existing := range s.txs {
		if existing.Reference == tx.Reference {
			return tx, apperrors.ErrConflict.WithDetails("duplicate reference " + tx.Reference)
		}
	}
	s.txs[tx.ID] = tx
	return clone(tx), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) (types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return types.Transaction{}, apperrors.ErrTransactionNotFound
	}
	next, err := Apply(tx, patch, s.now())
	if err != nil {
		return clone(tx), err
	}
	s.txs[id] = next
	return clone(next), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return types.Transaction{}, apperrors.ErrTransactionNotFound
	}
	return clone(tx), nil
}

func (s *MemoryStore) FindByUser(_ context.Context, userID string, limit int) ([]types.Transaction, error) {
	return s.filter(func(tx types.Transaction) bool { return tx.UserID == userID }, limit), nil
}

func (s *MemoryStore) FindPendingOfType(_ context.Context, txType string) ([]types.Transaction, error) {
	return s.filter(func(tx types.Transaction) bool {
		return tx.Type == txType && !IsTerminal(tx.Status)
	}, 0), nil
}

// FindByReference matches the transaction reference or the payment
// reference.
func (s *MemoryStore) FindByReference(_ context.Context, reference string) (types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.txs {
		if tx.Reference == reference || (tx.Payment.Reference != "" && tx.Payment.Reference == reference) {
			return clone(tx), nil
		}
	}
	return types.Transaction{}, apperrors.ErrTransactionNotFound
}

// filter returns matches newest first.
func (s *MemoryStore) filter(match func(types.Transaction) bool, limit int) []types.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.Transaction
	for _, tx := range s.txs {
		if match(tx) {
			out = append(out, clone(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
