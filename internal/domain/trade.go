package domain

import "time"

// Trade is a synthetic executed trade shown on the recent-trades tape.
type Trade struct {
	ID        string    `json:"id"`
	Side      OrderSide `json:"side"`
	Amount    float64   `json:"amount"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
