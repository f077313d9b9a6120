package session

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/pkg/metrics"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

const (
	DefaultTimeout     = 5 * time.Minute
	DefaultLockTimeout = 10 * time.Second
)

// Store persists sessions and serializes work per phone number.
type Store interface {
	Get(ctx context.Context, phone string) (*types.Session, error)
	Put(ctx context.Context, sess types.Session, ttl time.Duration) error
	Delete(ctx context.Context, phone string) error
	Lock(ctx context.Context, phone string, ttl time.Duration) (func(), error)
}

type Config struct {
	Timeout     time.Duration
	LockTimeout time.Duration
}

type Manager struct {
	store       Store
	timeout     time.Duration
	lockTimeout time.Duration
	now         func() time.Time
}

func NewManager(store Store, cfg Config) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	return &Manager{
		store:       store,
		timeout:     cfg.Timeout,
		lockTimeout: cfg.LockTimeout,
		now:         time.Now,
	}
}

func (m *Manager) Timeout() time.Duration { return m.timeout }

// Get returns nil, nil when there is no session or it has expired.
func (m *Manager) Get(ctx context.Context, phone string) (*types.Session, error) {
	sess, err := m.store.Get(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}

	if sess.Expired(m.now()) {
		if err := m.store.Delete(ctx, phone); err != nil {
			return nil, fmt.Errorf("failed to delete expired session: %w", err)
		}
		metrics.RecordSessionReset("expired")
		return nil, nil
	}

	return sess, nil
}

func (m *Manager) CreateDefault(phone string) types.Session {
	return types.NewSession(phone, m.now(), m.timeout)
}

// Transition moves sess to (flow, state), merging patch into its data, and
// persists the result. sess itself is left untouched.
func (m *Manager) Transition(ctx context.Context, sess types.Session, flow, state string, patch map[string]string) (types.Session, error) {
	if !types.ValidState(flow, state) {
		return sess, apperrors.ErrInvalidTransition.WithDetails(fmt.Sprintf("state %q is not part of flow %q", state, flow))
	}

	next := sess.Advance(flow, state, patch, m.now(), m.timeout)
	if err := m.store.Put(ctx, next, m.timeout); err != nil {
		return sess, fmt.Errorf("failed to save session: %w", err)
	}

	metrics.RecordTransition(flow, state)
	return next, nil
}

// Reset returns sess to the main menu with empty data.
func (m *Manager) Reset(ctx context.Context, sess types.Session) (types.Session, error) {
	now := m.now()
	next := sess
	next.Flow = types.FlowNone
	next.State = types.StateMainMenu
	next.Data = map[string]string{}
	next.History = append([]types.HistoryEntry(nil), sess.History...)
	next.ExpiresAt = now.Add(m.timeout)
	next.UpdatedAt = now

	if err := m.store.Put(ctx, next, m.timeout); err != nil {
		return sess, fmt.Errorf("failed to reset session: %w", err)
	}

	metrics.RecordSessionReset("reset")
	return next, nil
}

// Save persists sess as-is with a refreshed expiry.
func (m *Manager) Save(ctx context.Context, sess types.Session) (types.Session, error) {
	now := m.now()
	sess.ExpiresAt = now.Add(m.timeout)
	sess.UpdatedAt = now
	if err := m.store.Put(ctx, sess, m.timeout); err != nil {
		return sess, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}

// Lock serializes handling for phone until the returned func is called.
// It waits at most the configured lock timeout.
func (m *Manager) Lock(ctx context.Context, phone string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, m.lockTimeout)
	defer cancel()

	unlock, err := m.store.Lock(lockCtx, phone, m.lockTimeout+m.maxHold())
	if err != nil {
		return nil, apperrors.ErrSessionLocked.WithError(err)
	}
	return unlock, nil
}

// maxHold bounds how long a crashed holder can keep a distributed lock.
func (m *Manager) maxHold() time.Duration {
	return 2 * time.Minute
}
