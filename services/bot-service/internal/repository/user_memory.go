package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

// MemoryUserRepository keeps users in process. The memory wallet mutates
// balances through Mutate so both views stay consistent.
type MemoryUserRepository struct {
	mu      sync.Mutex
	byID    map[string]*types.User
	byPhone map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]*types.User),
		byPhone: make(map[string]string),
	}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	user := *u
	return &user, nil
}

func (r *MemoryUserRepository) GetByPhone(ctx context.Context, phone string) (*types.User, error) {
	r.mu.Lock()
	id, ok := r.byPhone[phone]
	r.mu.Unlock()
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryUserRepository) GetOrCreate(_ context.Context, phone, name string) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if id, ok := r.byPhone[phone]; ok {
		u := r.byID[id]
		u.LastActiveAt = now
		if u.Name == "" {
			u.Name = name
		}
		user := *u
		return &user, nil
	}

	u := &types.User{
		ID:           uuid.NewString(),
		Phone:        phone,
		Name:         name,
		Status:       types.UserStatusActive,
		LastActiveAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[u.ID] = u
	r.byPhone[phone] = u.ID

	user := *u
	return &user, nil
}

func (r *MemoryUserRepository) SetStatus(_ context.Context, id, status string) error {
	_, err := r.Mutate(id, func(u *types.User) error {
		u.Status = status
		return nil
	})
	return err
}

// Mutate applies fn to the stored user atomically. If fn fails the user is
// left unchanged.
func (r *MemoryUserRepository) Mutate(id string, fn func(*types.User) error) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return types.User{}, apperrors.ErrUserNotFound
	}

	draft := *u
	if err := fn(&draft); err != nil {
		return *u, err
	}
	draft.UpdatedAt = time.Now()
	*u = draft
	return draft, nil
}
