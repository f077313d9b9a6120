package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

const txColumns = `id, reference, user_id, phone, type, status, amount, details, payment, error, created_at, updated_at`

type PostgresStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func scanTransaction(row pgx.Row) (types.Transaction, error) {
	var (
		tx                   types.Transaction
		details, payment, ie []byte
	)
	err := row.Scan(
		&tx.ID, &tx.Reference, &tx.UserID, &tx.Phone, &tx.Type, &tx.Status, &tx.Amount,
		&details, &payment, &ie, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return tx, apperrors.ErrTransactionNotFound
	}
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if err := json.Unmarshal(details, &tx.Details); err != nil {
		return tx, fmt.Errorf("failed to decode details: %w", err)
	}
	if err := json.Unmarshal(payment, &tx.Payment); err != nil {
		return tx, fmt.Errorf("failed to decode payment: %w", err)
	}
	if len(ie) > 0 {
		tx.Error = &types.TransactionError{}
		if err := json.Unmarshal(ie, tx.Error); err != nil {
			return tx, fmt.Errorf("failed to decode error: %w", err)
		}
	}
	return tx, nil
}

func encode(tx types.Transaction) (details, payment, txErr []byte, err error) {
	if details, err = json.Marshal(tx.Details); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode details: %w", err)
	}
	if payment, err = json.Marshal(tx.Payment); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode payment: %w", err)
	}
	if tx.Error != nil {
		if txErr, err = json.Marshal(tx.Error); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode error: %w", err)
		}
	}
	return details, payment, txErr, nil
}

func (s *PostgresStore) Create(ctx context.Context, tx types.Transaction) (types.Transaction, error) {
	tx, err := prepare(tx, s.now())
	if err != nil {
		return tx, err
	}
	details, payment, txErr, err := encode(tx)
	if err != nil {
		return tx, err
	}

	created, err := scanTransaction(s.db.QueryRow(ctx, `
		INSERT INTO transactions (id, reference, user_id, phone, type, status, amount, details, payment, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING `+txColumns,
		tx.ID, tx.Reference, tx.UserID, tx.Phone, tx.Type, tx.Status, tx.Amount,
		details, payment, txErr, tx.CreatedAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return tx, apperrors.ErrConflict.WithDetails("duplicate reference " + tx.Reference)
		}
		return tx, fmt.Errorf("failed to create transaction: %w", err)
	}
	return created, nil
}

// Update locks the row, validates the transition and writes the result in
// one database transaction.
func (s *PostgresStore) Update(ctx context.Context, id string, patch Patch) (types.Transaction, error) {
	dbtx, err := s.db.Begin(ctx)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("tx begin failed: %w", err)
	}
	defer dbtx.Rollback(ctx)

	current, err := scanTransaction(dbtx.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return types.Transaction{}, err
	}

	next, err := Apply(current, patch, s.now())
	if err != nil {
		return current, err
	}
	details, payment, txErr, err := encode(next)
	if err != nil {
		return current, err
	}

	updated, err := scanTransaction(dbtx.QueryRow(ctx, `
		UPDATE transactions
		SET status = $1, details = $2, payment = $3, error = $4, updated_at = $5
		WHERE id = $6
		RETURNING `+txColumns,
		next.Status, details, payment, txErr, next.UpdatedAt, id,
	))
	if err != nil {
		return current, fmt.Errorf("failed to update transaction: %w", err)
	}

	if err := dbtx.Commit(ctx); err != nil {
		return current, fmt.Errorf("tx commit failed: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (types.Transaction, error) {
	return scanTransaction(s.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id))
}

func (s *PostgresStore) FindByReference(ctx context.Context, reference string) (types.Transaction, error) {
	return scanTransaction(s.db.QueryRow(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE reference = $1 OR payment->>'reference' = $1
		LIMIT 1
	`, reference))
}

func (s *PostgresStore) FindByUser(ctx context.Context, userID string, limit int) ([]types.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.query(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
}

func (s *PostgresStore) FindPendingOfType(ctx context.Context, txType string) ([]types.Transaction, error) {
	return s.query(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE type = $1 AND status IN ('pending', 'processing')
		ORDER BY created_at DESC
	`, txType)
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]types.Transaction, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []types.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
