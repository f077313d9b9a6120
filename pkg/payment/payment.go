package payment

import (
	"context"
	"errors"
	"time"
)

const (
	GatewayPaystack    = "paystack"
	GatewayFlutterwave = "flutterwave"
)

// ErrNotPaid is returned by Verify when the gateway reports the payment as
// anything other than successful.
var ErrNotPaid = errors.New("payment not successful")

// InitiateRequest describes a wallet funding checkout. Amount is in whole
// naira.
type InitiateRequest struct {
	Amount    int64
	Email     string
	Phone     string
	Reference string
	Metadata  map[string]string
}

type InitiateResult struct {
	Reference string
	Link      string
}

type Verification struct {
	Reference string
	Amount    int64
	PaidAt    time.Time
}

// Gateway initiates and verifies hosted checkouts.
type Gateway interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Verify(ctx context.Context, reference string) (*Verification, error)
}
