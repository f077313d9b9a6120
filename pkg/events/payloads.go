package events

import "time"

// TransactionPayload is the payload for transaction.completed.v1 and
// transaction.failed.v1 events.
type TransactionPayload struct {
	TransactionID     string    `json:"transaction_id"`
	Reference         string    `json:"reference"`
	UserID            string    `json:"user_id"`
	Phone             string    `json:"phone"`
	Type              string    `json:"type"`
	Status            string    `json:"status"`
	Amount            int64     `json:"amount"`
	ProviderReference string    `json:"provider_reference,omitempty"`
	ErrorCode         string    `json:"error_code,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	Refunded          bool      `json:"refunded,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// GiftCardPayload is the payload for giftcard.* events.
type GiftCardPayload struct {
	TransactionID string `json:"transaction_id"`
	Reference     string `json:"reference"`
	UserID        string `json:"user_id"`
	CardType      string `json:"card_type"`
	CardValue     int64  `json:"card_value"`
	Payout        int64  `json:"payout"`
	Status        string `json:"status"`
	ReviewedBy    string `json:"reviewed_by,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// PaymentPayload is the payload for payment.initiated.v1 and
// payment.confirmed.v1 events.
type PaymentPayload struct {
	Reference        string     `json:"reference"`
	Gateway          string     `json:"gateway"`
	Amount           int64      `json:"amount"`
	Phone            string     `json:"phone,omitempty"`
	GatewayReference string     `json:"gateway_reference,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
}
