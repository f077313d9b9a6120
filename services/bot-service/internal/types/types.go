package types

import (
	"maps"
	"strconv"
	"strings"
	"time"
)

// Flows. A session outside any flow sits at StateMainMenu with FlowNone.
const (
	FlowNone          = "none"
	FlowAirtime       = "airtime"
	FlowData          = "data"
	FlowGiftCardSale  = "giftcard_sale"
	FlowWalletFunding = "wallet_funding"
)

const (
	StateMainMenu = "main_menu"

	StateAirtimeNetwork = "airtime_network"
	StateAirtimePhone   = "airtime_phone"
	StateAirtimeAmount  = "airtime_amount"
	StateAirtimeConfirm = "airtime_confirm"

	StateDataNetwork = "data_network"
	StateDataPlan    = "data_plan"
	StateDataPhone   = "data_phone"
	StateDataConfirm = "data_confirm"

	StateGiftCardType    = "giftcard_type"
	StateGiftCardValue   = "giftcard_value"
	StateGiftCardImages  = "giftcard_images"
	StateGiftCardCode    = "giftcard_code"
	StateGiftCardConfirm = "giftcard_confirm"

	StateWalletMenu       = "wallet_menu"
	StateWalletFundAmount = "wallet_fund_amount"
	StateWalletFundMethod = "wallet_fund_method"
)

var flowStates = map[string][]string{
	FlowNone:          {StateMainMenu},
	FlowAirtime:       {StateAirtimeNetwork, StateAirtimePhone, StateAirtimeAmount, StateAirtimeConfirm},
	FlowData:          {StateDataNetwork, StateDataPlan, StateDataPhone, StateDataConfirm},
	FlowGiftCardSale:  {StateGiftCardType, StateGiftCardValue, StateGiftCardImages, StateGiftCardCode, StateGiftCardConfirm},
	FlowWalletFunding: {StateWalletMenu, StateWalletFundAmount, StateWalletFundMethod},
}

// StatesFor returns the states belonging to flow, in order, or nil for an
// unknown flow.
func StatesFor(flow string) []string {
	states, ok := flowStates[flow]
	if !ok {
		return nil
	}
	return append([]string(nil), states...)
}

// ValidState reports whether state belongs to flow.
func ValidState(flow, state string) bool {
	for _, s := range flowStates[flow] {
		if s == state {
			return true
		}
	}
	return false
}

const MaxHistory = 20

type HistoryEntry struct {
	State string            `json:"state"`
	Data  map[string]string `json:"data"`
	At    time.Time         `json:"at"`
}

// Session is a value: transitions return a new Session and never mutate the
// Data map or History slice of the receiver.
type Session struct {
	Phone     string            `json:"phone"`
	Flow      string            `json:"flow"`
	State     string            `json:"state"`
	Data      map[string]string `json:"data"`
	History   []HistoryEntry    `json:"history,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func NewSession(phone string, now time.Time, ttl time.Duration) Session {
	return Session{
		Phone:     phone,
		Flow:      FlowNone,
		State:     StateMainMenu,
		Data:      map[string]string{},
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s Session) Get(key string) string {
	return s.Data[key]
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Advance returns the session moved to (flow, state) with patch merged over
// the current data. The prior state and data are appended to history.
func (s Session) Advance(flow, state string, patch map[string]string, now time.Time, ttl time.Duration) Session {
	data := maps.Clone(s.Data)
	if data == nil {
		data = make(map[string]string, len(patch))
	}
	maps.Copy(data, patch)

	history := make([]HistoryEntry, 0, len(s.History)+1)
	history = append(history, s.History...)
	history = append(history, HistoryEntry{State: s.State, Data: maps.Clone(s.Data), At: now})
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}

	next := s
	next.Flow = flow
	next.State = state
	next.Data = data
	next.History = history
	next.ExpiresAt = now.Add(ttl)
	next.UpdatedAt = now
	return next
}

const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusBlocked   = "blocked"
)

type User struct {
	ID                string    `json:"id"`
	Phone             string    `json:"phone"`
	Name              string    `json:"name"`
	Balance           int64     `json:"balance"`
	TotalTransactions int64     `json:"total_transactions"`
	TotalSpent        int64     `json:"total_spent"`
	TotalEarned       int64     `json:"total_earned"`
	Status            string    `json:"status"`
	LastActiveAt      time.Time `json:"last_active_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

const (
	TxTypeAirtime          = "airtime"
	TxTypeData             = "data"
	TxTypeGiftCardSale     = "giftcard_sale"
	TxTypeWalletFunding    = "wallet_funding"
	TxTypeWalletWithdrawal = "wallet_withdrawal"
)

const (
	TxStatusPending    = "pending"
	TxStatusProcessing = "processing"
	TxStatusCompleted  = "completed"
	TxStatusFailed     = "failed"
	TxStatusCancelled  = "cancelled"
)

const (
	PaymentMethodWallet       = "wallet"
	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodAdmin        = "admin"
)

type Transaction struct {
	ID        string             `json:"id"`
	Reference string             `json:"reference"`
	UserID    string             `json:"user_id"`
	Phone     string             `json:"phone"`
	Type      string             `json:"type"`
	Status    string             `json:"status"`
	Amount    int64              `json:"amount"`
	Details   TransactionDetails `json:"details"`
	Payment   PaymentInfo        `json:"payment"`
	Error     *TransactionError  `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type TransactionDetails struct {
	Recipient         string     `json:"recipient,omitempty"`
	Network           string     `json:"network,omitempty"`
	PlanCode          string     `json:"plan_code,omitempty"`
	PlanName          string     `json:"plan_name,omitempty"`
	CardType          string     `json:"card_type,omitempty"`
	CardValue         int64      `json:"card_value,omitempty"`
	CardCode          string     `json:"card_code,omitempty"`
	Images            []string   `json:"images,omitempty"`
	Provider          string     `json:"provider,omitempty"`
	ProviderReference string     `json:"provider_reference,omitempty"`
	Description       string     `json:"description,omitempty"`
	ReviewNotes       string     `json:"review_notes,omitempty"`
	ReviewedBy        string     `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time `json:"reviewed_at,omitempty"`
}

type PaymentInfo struct {
	Method           string     `json:"method,omitempty"`
	Gateway          string     `json:"gateway,omitempty"`
	Reference        string     `json:"reference,omitempty"`
	GatewayReference string     `json:"gateway_reference,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
}

type TransactionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GiftCardProduct rates map a face value in USD to a fixed naira payout.
type GiftCardProduct struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Rates         map[int64]int64 `json:"rates"`
	DefaultRate   string          `json:"default_rate"`
	RequiresImage bool            `json:"requires_image"`
	RequiresCode  bool            `json:"requires_code"`
	MinImages     int             `json:"min_images"`
	MaxImages     int             `json:"max_images"`
	Enabled       bool            `json:"enabled"`
	DisplayOrder  int             `json:"display_order"`
}

type DataPlan struct {
	Code         string `json:"code"`
	Network      string `json:"network"`
	Name         string `json:"name"`
	DataSize     string `json:"data_size"`
	Validity     string `json:"validity"`
	Price        int64  `json:"price"`
	ProviderCode string `json:"provider_code"`
	Enabled      bool   `json:"enabled"`
	DisplayOrder int    `json:"display_order"`
}

// FormatAmount renders n with thousands separators, e.g. ₦12,500.
func FormatAmount(symbol string, n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + symbol + b.String()
}
