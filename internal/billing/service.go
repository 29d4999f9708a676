package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeancarlo3213/ferrefactura/internal/backend"
	"github.com/jeancarlo3213/ferrefactura/internal/draft"
	"github.com/jeancarlo3213/ferrefactura/internal/draftstore"
	"github.com/jeancarlo3213/ferrefactura/internal/money"
	"github.com/jeancarlo3213/ferrefactura/internal/obs"
	"github.com/jeancarlo3213/ferrefactura/internal/session"
)

// ErrNoProducts is returned when a draft with no lines is submitted.
var ErrNoProducts = errors.New("billing: draft has no products")

// ErrMissingCustomer is returned when the customer name is blank.
var ErrMissingCustomer = errors.New("billing: customer name is required")

// ErrMissingDate is returned when no delivery date is set.
var ErrMissingDate = errors.New("billing: delivery date is required")

// StockError reports a stock decrement that failed after the invoice was
// already persisted. The product needs manual stock correction.
type StockError struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Reason      string `json:"reason"`
}

// Result is the outcome of a submission. InvoiceID is always set on success
// even when some stock decrements failed.
type Result struct {
	InvoiceID   int64        `json:"invoiceId"`
	Total       money.Amount `json:"-"`
	StockErrors []StockError `json:"stockErrors,omitempty"`
}

// Service runs the invoice submission pipeline: validate, expand, persist,
// decrement stock, release the draft.
type Service struct {
	Backend *backend.Client
	Drafts  *draftstore.Store
	UserID  int64
	Logger  zerolog.Logger
}

// Validate runs the fail-fast checks in their fixed order. No network I/O
// happens until validation passes.
func Validate(d *draft.Draft) error {
	if len(d.Lines) == 0 {
		return ErrNoProducts
	}
	if !d.HasCustomer() {
		return ErrMissingCustomer
	}
	if !d.HasDeliveryDate() {
		return ErrMissingDate
	}
	return nil
}

// ExpandLines converts draft lines into invoice entries. A line with both
// quantities yields two entries: the bulk packs at the bulk price and the
// loose units at the unit price net of any per-unit discount.
func ExpandLines(d *draft.Draft) []backend.InvoiceEntry {
	entries := make([]backend.InvoiceEntry, 0, len(d.Lines)*2)
	for _, line := range d.Lines {
		if line.BulkQty > 0 {
			entries = append(entries, backend.InvoiceEntry{
				ProductID: line.Product.ID,
				Quantity:  line.BulkQty,
				UnitPrice: money.V(line.Product.BulkPrice),
			})
		}
		if line.UnitQty > 0 {
			entries = append(entries, backend.InvoiceEntry{
				ProductID: line.Product.ID,
				Quantity:  line.UnitQty,
				UnitPrice: money.V(line.Product.UnitPrice - line.UnitDiscount),
			})
		}
	}
	return entries
}

// Submit persists the draft as an invoice. Stock decrements run concurrently
// after invoice creation; their failures are collected into the result rather
// than aborting, since the invoice already exists at that point.
func (s *Service) Submit(ctx context.Context, sess *session.Session, d *draft.Draft) (*Result, error) {
	start := time.Now()
	if err := Validate(d); err != nil {
		obs.InvoiceSubmitTotal.WithLabelValues("validation_failed").Inc()
		return nil, err
	}

	inv, err := s.Backend.CreateInvoice(ctx, sess, backend.NewInvoice{
		CustomerName:  d.CustomerName,
		DeliveryDate:  d.DeliveryDate,
		ShippingCost:  money.V(d.Shipping),
		TotalDiscount: money.V(d.Discount),
		UserID:        s.UserID,
		Entries:       ExpandLines(d),
	})
	if err != nil {
		obs.InvoiceSubmitTotal.WithLabelValues("backend_failed").Inc()
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	stockErrs := s.decrementStock(ctx, sess, d)

	if err := s.Drafts.Delete(ctx, d.ID); err != nil {
		// the invoice and stock updates already landed; the draft will
		// expire on its own TTL
		s.Logger.Warn().Err(err).Str("draft_id", d.ID).Msg("draft_cleanup_failed")
	}

	result := "ok"
	if len(stockErrs) > 0 {
		result = "partial"
	}
	obs.InvoiceSubmitTotal.WithLabelValues(result).Inc()
	obs.SubmitDuration.Observe(obs.DurationMillis(time.Since(start)))
	s.Logger.Info().
		Int64("invoice_id", inv.ID).
		Str("draft_id", d.ID).
		Int("lines", len(d.Lines)).
		Int("stock_errors", len(stockErrs)).
		Msg("invoice_submitted")

	return &Result{InvoiceID: inv.ID, Total: d.Total(), StockErrors: stockErrs}, nil
}

// decrementStock issues one absolute stock update per line, concurrently, and
// waits for all of them. Each new value comes from the snapshot taken when the
// line was staged, matching the reservation the draft displayed.
func (s *Service) decrementStock(ctx context.Context, sess *session.Session, d *draft.Draft) []StockError {
	type outcome struct {
		idx int
		err error
	}
	results := make([]outcome, len(d.Lines))
	var wg sync.WaitGroup
	for i, line := range d.Lines {
		wg.Add(1)
		go func(i int, line draft.Line) {
			defer wg.Done()
			newStock := line.Product.Stock - line.RequestedUnits()
			err := s.Backend.UpdateStock(ctx, sess, line.Product.ID, newStock)
			results[i] = outcome{idx: i, err: err}
		}(i, line)
	}
	wg.Wait()

	var errs []StockError
	for _, res := range results {
		line := d.Lines[res.idx]
		if res.err != nil {
			obs.StockDecrementTotal.WithLabelValues("failed").Inc()
			s.Logger.Error().Err(res.err).
				Int64("product_id", line.Product.ID).
				Msg("stock_decrement_failed")
			errs = append(errs, StockError{
				ProductID:   line.Product.ID,
				ProductName: line.Product.Name,
				Reason:      res.err.Error(),
			})
			continue
		}
		obs.StockDecrementTotal.WithLabelValues("ok").Inc()
	}
	return errs
}
