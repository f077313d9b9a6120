package ledger

import (
	"github.com/Rohianon/chatcommerce/pkg/events"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

// EventSource is stamped on every event the bot publishes.
const EventSource = "bot-service"

func TransactionPayload(tx types.Transaction, refunded bool) events.TransactionPayload {
	p := events.TransactionPayload{
		TransactionID:     tx.ID,
		Reference:         tx.Reference,
		UserID:            tx.UserID,
		Phone:             tx.Phone,
		Type:              tx.Type,
		Status:            tx.Status,
		Amount:            tx.Amount,
		ProviderReference: tx.Details.ProviderReference,
		Refunded:          refunded,
		OccurredAt:        tx.UpdatedAt,
	}
	if tx.Error != nil {
		p.ErrorCode = tx.Error.Code
		p.ErrorMessage = tx.Error.Message
	}
	return p
}

func GiftCardPayload(tx types.Transaction) events.GiftCardPayload {
	return events.GiftCardPayload{
		TransactionID: tx.ID,
		Reference:     tx.Reference,
		UserID:        tx.UserID,
		CardType:      tx.Details.CardType,
		CardValue:     tx.Details.CardValue,
		Payout:        tx.Amount,
		Status:        tx.Status,
		ReviewedBy:    tx.Details.ReviewedBy,
		Notes:         tx.Details.ReviewNotes,
	}
}
