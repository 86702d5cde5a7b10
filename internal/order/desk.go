package order

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

// MaxOpenDrafts bounds the drafts a Desk keeps open at once.
const MaxOpenDrafts = 256

// PriceSource is the reference price a Desk seeds and tracks drafts from.
type PriceSource interface {
	Price() float64
	Subscribe() (<-chan domain.PriceTick, func())
}

// Desk hosts order drafts keyed by id and keeps market drafts in step with
// the reference price.
type Desk struct {
	mu       sync.RWMutex
	forms    map[string]*Form
	prices   PriceSource
	balances domain.Balances
	sink     Sink
	limit    int
	logger   *slog.Logger
}

// NewDesk creates a Desk. A nil sink discards submitted records.
func NewDesk(prices PriceSource, balances domain.Balances, sink Sink, logger *slog.Logger) *Desk {
	if sink == nil {
		sink = MultiSink(nil)
	}
	return &Desk{
		forms:    make(map[string]*Form),
		prices:   prices,
		balances: balances,
		sink:     sink,
		limit:    MaxOpenDrafts,
		logger:   logger.With(slog.String("component", "order_desk")),
	}
}

// Open creates a draft seeded from the current reference price.
func (d *Desk) Open() (domain.OrderDraft, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.forms) >= d.limit {
		return domain.OrderDraft{}, fmt.Errorf("order: open draft: %w", domain.ErrTooManyDrafts)
	}

	f := NewForm(uuid.NewString(), d.prices.Price(), d.balances)
	draft := f.Draft()
	d.forms[draft.ID] = f
	return draft, nil
}

func (d *Desk) form(id string) (*Form, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.forms[id]
	if !ok {
		return nil, fmt.Errorf("order: draft %s: %w", id, domain.ErrNotFound)
	}
	return f, nil
}

// Get returns the draft with the given id.
func (d *Desk) Get(id string) (domain.OrderDraft, error) {
	f, err := d.form(id)
	if err != nil {
		return domain.OrderDraft{}, err
	}
	return f.Draft(), nil
}

// Update applies p to the draft with the given id.
func (d *Desk) Update(id string, p Patch) (domain.OrderDraft, error) {
	f, err := d.form(id)
	if err != nil {
		return domain.OrderDraft{}, err
	}
	return f.Apply(p)
}

// QuickFill sets the draft amount to percent of the available balance.
func (d *Desk) QuickFill(id string, percent int) (domain.OrderDraft, error) {
	f, err := d.form(id)
	if err != nil {
		return domain.OrderDraft{}, err
	}
	return f.QuickFill(percent)
}

// Submit submits the draft and hands the record to the sink. Sink failures
// are logged and do not fail the submit.
func (d *Desk) Submit(ctx context.Context, id string) (domain.OrderRecord, domain.OrderDraft, error) {
	f, err := d.form(id)
	if err != nil {
		return domain.OrderRecord{}, domain.OrderDraft{}, err
	}
	rec, err := f.Submit()
	if err != nil {
		return domain.OrderRecord{}, f.Draft(), err
	}

	if err := d.sink.Submit(ctx, rec); err != nil {
		d.logger.WarnContext(ctx, "order sink failed",
			slog.String("draft_id", id),
			slog.String("error", err.Error()),
		)
	}
	return rec, f.Draft(), nil
}

// Close discards the draft with the given id.
func (d *Desk) Close(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.forms[id]; !ok {
		return fmt.Errorf("order: draft %s: %w", id, domain.ErrNotFound)
	}
	delete(d.forms, id)
	return nil
}

// Len returns the number of open drafts.
func (d *Desk) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.forms)
}

func (d *Desk) broadcast(price float64) {
	d.mu.RLock()
	forms := make([]*Form, 0, len(d.forms))
	for _, f := range d.forms {
		forms = append(forms, f)
	}
	d.mu.RUnlock()

	for _, f := range forms {
		f.OnReferencePrice(price)
	}
}

// Run forwards every reference tick to the open drafts until ctx is
// cancelled.
func (d *Desk) Run(ctx context.Context) error {
	ticks, cancel := d.prices.Subscribe()
	defer cancel()

	d.logger.InfoContext(ctx, "order desk started")
	defer d.logger.Info("order desk stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			d.broadcast(tick.Price)
		}
	}
}
