package payment

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockGateway returns deterministic checkout links. Paid references
// verify successfully; Err forces Initiate to fail.
type MockGateway struct {
	name string
	mu   sync.Mutex
	paid map[string]int64
	Err  error
}

func NewMockGateway(name string) *MockGateway {
	return &MockGateway{name: name, paid: make(map[string]int64)}
}

func (g *MockGateway) Name() string { return g.name }

func (g *MockGateway) Initiate(_ context.Context, req InitiateRequest) (*InitiateResult, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	return &InitiateResult{
		Reference: req.Reference,
		Link:      fmt.Sprintf("https://checkout.example.com/%s/%s", g.name, req.Reference),
	}, nil
}

// MarkPaid records a successful payment for Verify.
func (g *MockGateway) MarkPaid(reference string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paid[reference] = amount
}

func (g *MockGateway) Verify(_ context.Context, reference string) (*Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	amount, ok := g.paid[reference]
	if !ok {
		return nil, ErrNotPaid
	}
	return &Verification{Reference: reference, Amount: amount, PaidAt: time.Now()}, nil
}

var (
	_ Gateway = (*PaystackClient)(nil)
	_ Gateway = (*FlutterwaveClient)(nil)
	_ Gateway = (*MockGateway)(nil)
)
