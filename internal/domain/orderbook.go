package domain

import "time"

// DepthLevel is a single price+quantity entry in the depth ladder.
type DepthLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Total    float64 `json:"total"`
}

// DepthLadder is a full snapshot of bids and asks around a reference price.
// Bids are ordered highest first, asks lowest first.
type DepthLadder struct {
	Reference float64      `json:"reference"`
	Bids      []DepthLevel `json:"bids"`
	Asks      []DepthLevel `json:"asks"`
	MaxTotal  float64      `json:"max_total"`
	Time      time.Time    `json:"time"`
}

// BestBid returns the highest bid price, or 0 when there are no bids.
func (l DepthLadder) BestBid() float64 {
	if len(l.Bids) == 0 {
		return 0
	}
	return l.Bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 when there are no asks.
func (l DepthLadder) BestAsk() float64 {
	if len(l.Asks) == 0 {
		return 0
	}
	return l.Asks[0].Price
}

// DepthPercent sizes a level's depth bar relative to the largest total in
// the ladder. It is 0 whenever MaxTotal is not positive.
func (l DepthLadder) DepthPercent(level DepthLevel) float64 {
	if l.MaxTotal <= 0 {
		return 0
	}
	return level.Total / l.MaxTotal * 100
}
