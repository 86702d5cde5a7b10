package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// ParseSide validates an order side.
func ParseSide(s string) (OrderSide, error) {
	switch OrderSide(s) {
	case OrderSideBuy, OrderSideSell:
		return OrderSide(s), nil
	}
	return "", ErrInvalidSide
}

// OrderType is the draft's pricing mode.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// ParseOrderType validates an order type.
func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(s) {
	case OrderTypeLimit, OrderTypeMarket:
		return OrderType(s), nil
	}
	return "", ErrInvalidOrderType
}

// Expiry indicates the time-in-force policy.
type Expiry string

const (
	ExpiryGTC Expiry = "GTC" // Good-Till-Cancelled
	ExpiryIOC Expiry = "IOC" // Immediate-Or-Cancel
	ExpiryFOK Expiry = "FOK" // Fill-Or-Kill
)

// ParseExpiry validates an expiry policy.
func ParseExpiry(s string) (Expiry, error) {
	switch Expiry(s) {
	case ExpiryGTC, ExpiryIOC, ExpiryFOK:
		return Expiry(s), nil
	}
	return "", ErrInvalidExpiry
}

// OrderDraft is the in-progress order form state. Price, Amount, Slippage
// and Total are kept as text exactly as entered or derived.
type OrderDraft struct {
	ID        string    `json:"id"`
	OrderType OrderType `json:"order_type"`
	Side      OrderSide `json:"side"`
	Price     string    `json:"price"`
	Amount    string    `json:"amount"`
	Total     string    `json:"total"`
	Slippage  string    `json:"slippage"`
	Expiry    Expiry    `json:"expiry"`
	CanSubmit bool      `json:"can_submit"`
}

// OrderRecord is the structured record emitted when a draft is submitted.
type OrderRecord struct {
	DraftID     string    `json:"draft_id,omitempty"`
	Type        OrderType `json:"type"`
	Side        OrderSide `json:"side"`
	Price       float64   `json:"price"`
	Amount      float64   `json:"amount"`
	Total       float64   `json:"total"`
	Slippage    string    `json:"slippage"`
	Expiry      Expiry    `json:"expiry"`
	SubmittedAt time.Time `json:"submitted_at"`
}
