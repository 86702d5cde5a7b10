// Package order implements the order-entry draft: the derived total, the
// percentage quick fill and the submit gate, plus the Desk that hosts one
// draft per session and the sinks submitted records are handed to.
package order

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

const (
	// DefaultSlippage is the slippage tolerance a fresh draft starts with.
	DefaultSlippage = "0.1"

	limitSeedOffset = 1
	priceDecimals   = 2
	totalDecimals   = 2
	amountDecimals  = 4
)

var hundred = decimal.NewFromInt(100)

// QuickFillPercents are the accepted quick-fill steps.
var QuickFillPercents = []int{25, 50, 75, 100}

// Form is one order-entry draft. All derived fields are recomputed before a
// mutating call returns. A Form is safe for concurrent use.
type Form struct {
	mu        sync.Mutex
	draft     domain.OrderDraft
	reference float64
	balances  domain.Balances
	now       func() time.Time
}

// NewForm returns a limit buy draft whose price is seeded one below the
// reference price.
func NewForm(id string, reference float64, balances domain.Balances) *Form {
	f := &Form{
		draft: domain.OrderDraft{
			ID:        id,
			OrderType: domain.OrderTypeLimit,
			Side:      domain.OrderSideBuy,
			Slippage:  DefaultSlippage,
			Expiry:    domain.ExpiryGTC,
		},
		reference: reference,
		balances:  balances,
		now:       time.Now,
	}
	f.draft.Price = formatFixed(decimal.NewFromFloat(reference).Sub(decimal.NewFromInt(limitSeedOffset)), priceDecimals)
	f.recompute()
	return f
}

// Input bounds for user-entered numbers. Values outside them are treated as
// unparsable so a short exponent string cannot expand into megabytes of digits.
const (
	maxNumberLen   = 64
	maxNumberScale = 32
)

// parseNumber reads user-entered numeric text. Anything unparsable, too long
// or with an exponent beyond ±maxNumberScale is 0. Trailing garbage such as
// "1.5abc" is unparsable.
func parseNumber(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if len(s) > maxNumberLen {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if exp := d.Exponent(); exp > maxNumberScale || exp < -maxNumberScale {
		return decimal.Zero
	}
	return d
}

func formatFixed(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

// recompute refreshes Total and CanSubmit. Callers hold mu.
func (f *Form) recompute() {
	price := parseNumber(f.draft.Price)
	amount := parseNumber(f.draft.Amount)
	f.draft.Total = formatFixed(price.Mul(amount).Round(totalDecimals), totalDecimals)
	f.draft.CanSubmit = strings.TrimSpace(f.draft.Amount) != "" && amount.IsPositive()
}

// Draft returns a copy of the current state.
func (f *Form) Draft() domain.OrderDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// SetOrderType switches between limit and market. Market pins the price to
// the reference; moving back to limit seeds it once to reference-1 for buys
// and reference+1 for sells. Selecting the current type changes nothing.
func (f *Form) SetOrderType(t domain.OrderType) error {
	if _, err := domain.ParseOrderType(string(t)); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draft.OrderType == t {
		return nil
	}
	f.draft.OrderType = t

	ref := decimal.NewFromFloat(f.reference)
	switch t {
	case domain.OrderTypeMarket:
		f.draft.Price = formatFixed(ref, priceDecimals)
	case domain.OrderTypeLimit:
		offset := decimal.NewFromInt(limitSeedOffset)
		if f.draft.Side == domain.OrderSideSell {
			f.draft.Price = formatFixed(ref.Add(offset), priceDecimals)
		} else {
			f.draft.Price = formatFixed(ref.Sub(offset), priceDecimals)
		}
	}
	f.recompute()
	return nil
}

// SetSide changes the side. The price is left alone.
func (f *Form) SetSide(s domain.OrderSide) error {
	if _, err := domain.ParseSide(string(s)); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.Side = s
	return nil
}

// SetPrice stores the entered price text. While market is selected the
// price belongs to the reference feed and the edit is dropped.
func (f *Form) SetPrice(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draft.OrderType == domain.OrderTypeMarket {
		return
	}
	f.draft.Price = text
	f.recompute()
}

// SetAmount stores the entered amount text.
func (f *Form) SetAmount(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.Amount = text
	f.recompute()
}

// SetSlippage stores the slippage tolerance text.
func (f *Form) SetSlippage(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.Slippage = text
}

// SetExpiry changes the time-in-force policy.
func (f *Form) SetExpiry(e domain.Expiry) error {
	if _, err := domain.ParseExpiry(string(e)); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.Expiry = e
	return nil
}

// QuickFill sets the amount to percent of the available balance. Buys spend
// quote balance at the draft price; a zero or unparsable price yields a zero
// amount.
func (f *Form) QuickFill(percent int) (domain.OrderDraft, error) {
	if !validPercent(percent) {
		return domain.OrderDraft{}, fmt.Errorf("order: quick fill %d%%: %w", percent, domain.ErrInvalidPercent)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	available := decimal.NewFromFloat(f.balances.Available(f.draft.Side))
	units := available
	if f.draft.Side == domain.OrderSideBuy {
		price := parseNumber(f.draft.Price)
		if !price.IsPositive() {
			units = decimal.Zero
		} else {
			units = available.Div(price)
		}
	}
	amount := units.Mul(decimal.NewFromInt(int64(percent))).Div(hundred)
	f.draft.Amount = formatFixed(amount, amountDecimals)
	f.recompute()
	return f.draft, nil
}

func validPercent(p int) bool {
	for _, v := range QuickFillPercents {
		if v == p {
			return true
		}
	}
	return false
}

// Submit turns the draft into a record when the amount is a positive number,
// then clears amount and total. A rejected submit leaves the draft untouched
// and returns domain.ErrSubmitDisabled.
func (f *Form) Submit() (domain.OrderRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.draft.CanSubmit {
		return domain.OrderRecord{}, domain.ErrSubmitDisabled
	}

	rec := domain.OrderRecord{
		DraftID:     f.draft.ID,
		Type:        f.draft.OrderType,
		Side:        f.draft.Side,
		Price:       parseNumber(f.draft.Price).InexactFloat64(),
		Amount:      parseNumber(f.draft.Amount).InexactFloat64(),
		Total:       parseNumber(f.draft.Total).InexactFloat64(),
		Slippage:    f.draft.Slippage,
		Expiry:      f.draft.Expiry,
		SubmittedAt: f.now(),
	}

	f.draft.Amount = ""
	f.recompute()
	return rec, nil
}

// OnReferencePrice records a new reference price and re-syncs the draft
// price when market is selected.
func (f *Form) OnReferencePrice(p float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reference = p
	if f.draft.OrderType == domain.OrderTypeMarket {
		f.draft.Price = formatFixed(decimal.NewFromFloat(p), priceDecimals)
		f.recompute()
	}
}

// Patch is a partial update of a draft. Nil fields are left unchanged.
type Patch struct {
	OrderType *domain.OrderType `json:"order_type,omitempty"`
	Side      *domain.OrderSide `json:"side,omitempty"`
	Price     *string           `json:"price,omitempty"`
	Amount    *string           `json:"amount,omitempty"`
	Slippage  *string           `json:"slippage,omitempty"`
	Expiry    *domain.Expiry    `json:"expiry,omitempty"`
}

// validate checks every enum field before anything is applied.
func (p Patch) validate() error {
	if p.OrderType != nil {
		if _, err := domain.ParseOrderType(string(*p.OrderType)); err != nil {
			return err
		}
	}
	if p.Side != nil {
		if _, err := domain.ParseSide(string(*p.Side)); err != nil {
			return err
		}
	}
	if p.Expiry != nil {
		if _, err := domain.ParseExpiry(string(*p.Expiry)); err != nil {
			return err
		}
	}
	return nil
}

// Apply validates p and applies it field by field. The side is applied
// before the order type so a limit seed uses the new side.
func (f *Form) Apply(p Patch) (domain.OrderDraft, error) {
	if err := p.validate(); err != nil {
		return domain.OrderDraft{}, err
	}
	if p.Side != nil {
		_ = f.SetSide(*p.Side)
	}
	if p.OrderType != nil {
		_ = f.SetOrderType(*p.OrderType)
	}
	if p.Price != nil {
		f.SetPrice(*p.Price)
	}
	if p.Amount != nil {
		f.SetAmount(*p.Amount)
	}
	if p.Slippage != nil {
		f.SetSlippage(*p.Slippage)
	}
	if p.Expiry != nil {
		_ = f.SetExpiry(*p.Expiry)
	}
	return f.Draft(), nil
}
