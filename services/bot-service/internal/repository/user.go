package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

const userColumns = `id, phone, name, balance, total_transactions, total_spent, total_earned,
	status, last_active_at, created_at, updated_at`

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID, &user.Phone, &user.Name, &user.Balance,
		&user.TotalTransactions, &user.TotalSpent, &user.TotalEarned,
		&user.Status, &user.LastActiveAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*types.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate returns the user for phone, creating it on first contact.
// last_active_at is refreshed either way.
func (r *UserRepository) GetOrCreate(ctx context.Context, phone, name string) (*types.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (id, phone, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE
		SET last_active_at = NOW(),
		    name = CASE WHEN users.name = '' THEN EXCLUDED.name ELSE users.name END
		RETURNING `+userColumns,
		uuid.NewString(), phone, name,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) SetStatus(ctx context.Context, id, status string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set user status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}
