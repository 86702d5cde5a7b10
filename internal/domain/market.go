package domain

import "time"

// PriceTick is one step of the synthetic reference price. Change is the
// signed delta from the previous tick and ChangePercent expresses it as a
// percentage of the previous price.
type PriceTick struct {
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Time          time.Time `json:"time"`
}

// Balances is the explicit account configuration handed to order drafts and
// the wallet widget.
type Balances struct {
	BaseAsset    string  `json:"base_asset"`
	QuoteAsset   string  `json:"quote_asset"`
	BaseBalance  float64 `json:"base_balance"`
	QuoteBalance float64 `json:"quote_balance"`
}

// Available returns the balance spendable on the given side: quote for buys,
// base for sells.
func (b Balances) Available(side OrderSide) float64 {
	if side == OrderSideBuy {
		return b.QuoteBalance
	}
	return b.BaseBalance
}
