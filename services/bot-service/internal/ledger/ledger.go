package ledger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Rohianon/chatcommerce/pkg/crypto"
	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

// Store is the transaction audit log.
type Store interface {
	Create(ctx context.Context, tx types.Transaction) (types.Transaction, error)
	Update(ctx context.Context, id string, patch Patch) (types.Transaction, error)
	Get(ctx context.Context, id string) (types.Transaction, error)
	FindByUser(ctx context.Context, userID string, limit int) ([]types.Transaction, error)
	FindPendingOfType(ctx context.Context, txType string) ([]types.Transaction, error)
	FindByReference(ctx context.Context, reference string) (types.Transaction, error)
}

type Review struct {
	By    string
	Notes string
	At    time.Time
}

// Patch lists the fields an update may change. Zero values are left alone.
type Patch struct {
	Status            string
	Provider          string
	ProviderReference string
	Error             *types.TransactionError
	GatewayReference  string
	PaidAt            *time.Time
	Review            *Review

	// ClaimReview makes Review a claim: it fails once any reviewer is
	// recorded or the transaction is terminal.
	ClaimReview bool
}

func (p Patch) onlyReview() bool {
	return p.Status == "" && p.Provider == "" && p.ProviderReference == "" &&
		p.Error == nil && p.GatewayReference == "" && p.PaidAt == nil
}

var transitions = map[string][]string{
	types.TxStatusPending:    {types.TxStatusProcessing, types.TxStatusCompleted, types.TxStatusFailed, types.TxStatusCancelled},
	types.TxStatusProcessing: {types.TxStatusCompleted, types.TxStatusFailed, types.TxStatusCancelled},
}

func IsTerminal(status string) bool {
	switch status {
	case types.TxStatusCompleted, types.TxStatusFailed, types.TxStatusCancelled:
		return true
	}
	return false
}

func CanTransition(from, to string) bool {
	return slices.Contains(transitions[from], to)
}

// Apply returns tx with patch applied. A patch status must be a legal move
// away from the current status, so two callers racing on the same move see
// exactly one success. Terminal transactions accept only review annotations.
func Apply(tx types.Transaction, patch Patch, now time.Time) (types.Transaction, error) {
	if patch.ClaimReview {
		if patch.Review == nil || patch.Review.By == "" {
			return tx, apperrors.ErrValidation.WithDetails("review claim needs a reviewer")
		}
		if IsTerminal(tx.Status) {
			return tx, apperrors.ErrInvalidTransition.WithDetails(fmt.Sprintf("transaction is %s", tx.Status))
		}
		if tx.Details.ReviewedBy != "" {
			return tx, apperrors.ErrInvalidTransition.WithDetails("already reviewed by " + tx.Details.ReviewedBy)
		}
	}
	if IsTerminal(tx.Status) && !patch.onlyReview() {
		return tx, apperrors.ErrInvalidTransition.WithDetails(fmt.Sprintf("transaction is %s", tx.Status))
	}
	if patch.Status != "" && !CanTransition(tx.Status, patch.Status) {
		return tx, apperrors.ErrInvalidTransition.WithDetails(fmt.Sprintf("%s -> %s", tx.Status, patch.Status))
	}

	next := clone(tx)
	if patch.Status != "" {
		next.Status = patch.Status
	}
	if patch.Provider != "" {
		next.Details.Provider = patch.Provider
	}
	if patch.ProviderReference != "" {
		next.Details.ProviderReference = patch.ProviderReference
	}
	if patch.Error != nil {
		e := *patch.Error
		next.Error = &e
	}
	if patch.GatewayReference != "" {
		next.Payment.GatewayReference = patch.GatewayReference
	}
	if patch.PaidAt != nil {
		t := *patch.PaidAt
		next.Payment.PaidAt = &t
	}
	if patch.Review != nil {
		at := patch.Review.At
		next.Details.ReviewedBy = patch.Review.By
		next.Details.ReviewNotes = patch.Review.Notes
		next.Details.ReviewedAt = &at
	}
	next.UpdatedAt = now
	return next, nil
}

var referencePrefixes = map[string]string{
	types.TxTypeAirtime:          "AIR",
	types.TxTypeData:             "DAT",
	types.TxTypeGiftCardSale:     "GFT",
	types.TxTypeWalletFunding:    "FND",
	types.TxTypeWalletWithdrawal: "WDR",
}

// NewReference returns a human-readable reference for txType.
func NewReference(txType string, now time.Time) (string, error) {
	prefix, ok := referencePrefixes[txType]
	if !ok {
		prefix = "TXN"
	}
	return crypto.GenerateReference(prefix, now)
}

func defaultStatus(txType string) string {
	switch txType {
	case types.TxTypeWalletFunding, types.TxTypeWalletWithdrawal:
		return types.TxStatusPending
	default:
		return types.TxStatusProcessing
	}
}

// prepare fills generated fields on a new transaction.
func prepare(tx types.Transaction, now time.Time) (types.Transaction, error) {
	if tx.Amount <= 0 {
		return tx, apperrors.ErrInvalidAmount
	}
	if _, ok := referencePrefixes[tx.Type]; !ok {
		return tx, apperrors.ErrValidation.WithDetails("unknown transaction type " + tx.Type)
	}

	tx = clone(tx)
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Reference == "" {
		ref, err := NewReference(tx.Type, now)
		if err != nil {
			return tx, err
		}
		tx.Reference = ref
	}
	if tx.Status == "" {
		tx.Status = defaultStatus(tx.Type)
	}
	tx.CreatedAt = now
	tx.UpdatedAt = now
	return tx, nil
}

func clone(tx types.Transaction) types.Transaction {
	tx.Details.Images = slices.Clone(tx.Details.Images)
	if tx.Error != nil {
		e := *tx.Error
		tx.Error = &e
	}
	return tx
}
