package draft

import (
	"errors"
	"strings"
	"time"

	"github.com/jeancarlo3213/ferrefactura/internal/money"
)

// ErrDuplicateLine indicates the product is already staged on the draft.
var ErrDuplicateLine = errors.New("product already in draft")

// ErrZeroQuantity is returned when a requested quantity totals zero units.
var ErrZeroQuantity = errors.New("requested quantity is zero")

// ErrOutOfStock indicates the product has no available stock at all.
var ErrOutOfStock = errors.New("product out of stock")

// ErrInsufficientStock indicates the requested units exceed the stock snapshot.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrPreferBulk steers callers towards bulk units when the individual-unit
// quantity reaches a full bulk pack. It is a usability guard, not a stock
// constraint, and is reported before any stock check.
var ErrPreferBulk = errors.New("quantity should be expressed in bulk units")

// ErrLineNotFound indicates no line exists for the given product.
var ErrLineNotFound = errors.New("line not found")

// QuantityField selects which quantity of a line an update targets.
type QuantityField string

const (
	// FieldBulk addresses the bulk-unit (quintal) count of a line.
	FieldBulk QuantityField = "bulkQuantity"
	// FieldUnit addresses the individual-unit count of a line.
	FieldUnit QuantityField = "unitQuantity"
)

// Product is a catalog snapshot taken when the product is staged. Prices and
// stock are frozen at selection time; the backend remains the system of record.
type Product struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	UnitPrice    money.Amount `json:"unitPrice"`
	BulkPrice    money.Amount `json:"bulkPrice"`
	UnitsPerBulk int          `json:"unitsPerBulk"`
	Stock        int          `json:"stock"`
	Category     string       `json:"category,omitempty"`
}

// SoldInBulk reports whether the product carries quintal pricing.
func (p Product) SoldInBulk() bool {
	return p.BulkPrice > 0 && p.UnitsPerBulk > 0
}

func (p Product) unitsPerBulkOrOne() int {
	if p.UnitsPerBulk > 0 {
		return p.UnitsPerBulk
	}
	return 1
}

// Line stages one product on a draft with its requested quantities.
type Line struct {
	Product Product `json:"product"`
	BulkQty int     `json:"bulkQuantity"`
	UnitQty int     `json:"unitQuantity"`
	// UnitDiscount is an optional per-unit rebate applied to the unit
	// portion only, never to bulk packs.
	UnitDiscount money.Amount `json:"unitDiscount,omitempty"`
}

// RequestedUnits returns the total individual units the line reserves.
func (l Line) RequestedUnits() int {
	return l.BulkQty*l.Product.unitsPerBulkOrOne() + l.UnitQty
}

// Total computes the line amount: bulk packs at bulk price plus individual
// units at unit price less the per-unit discount.
func (l Line) Total() money.Amount {
	bulk := l.Product.BulkPrice * money.Amount(l.BulkQty)
	unit := (l.Product.UnitPrice - l.UnitDiscount) * money.Amount(l.UnitQty)
	return bulk + unit
}

// Draft is an in-progress invoice owned by a single checkout session. It is
// never shared between sessions, so no internal locking is required.
type Draft struct {
	ID           string       `json:"id"`
	CustomerName string       `json:"customerName"`
	DeliveryDate string       `json:"deliveryDate"`
	Lines        []Line       `json:"lines"`
	Shipping     money.Amount `json:"shippingCost"`
	Discount     money.Amount `json:"totalDiscount"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// New returns an empty draft with the given identifier.
func New(id string) *Draft {
	return &Draft{ID: id, CreatedAt: time.Now().UTC()}
}

// Line returns the staged line for the product, if any.
func (d *Draft) Line(productID int64) (*Line, bool) {
	for i := range d.Lines {
		if d.Lines[i].Product.ID == productID {
			return &d.Lines[i], true
		}
	}
	return nil, false
}

// AddLine stages a product on the draft after validating the requested
// quantities against the stock snapshot.
func (d *Draft) AddLine(p Product, bulkQty, unitQty int) (*Line, error) {
	if _, ok := d.Line(p.ID); ok {
		return nil, ErrDuplicateLine
	}
	if bulkQty < 0 {
		bulkQty = 0
	}
	if unitQty < 0 {
		unitQty = 0
	}
	line := Line{Product: p, BulkQty: bulkQty, UnitQty: unitQty}
	requested := line.RequestedUnits()
	if requested <= 0 {
		return nil, ErrZeroQuantity
	}
	if p.Stock <= 0 {
		return nil, ErrOutOfStock
	}
	if requested > p.Stock {
		return nil, ErrInsufficientStock
	}
	d.Lines = append(d.Lines, line)
	return &d.Lines[len(d.Lines)-1], nil
}

// UpdateQuantity replaces one quantity field of a line. Negative values are
// ignored without touching the line, matching the clamp-to-previous behaviour
// of the checkout screens. The prefer-bulk guard runs before the stock check;
// a stock violation leaves the line unchanged.
func (d *Draft) UpdateQuantity(productID int64, field QuantityField, value int) error {
	line, ok := d.Line(productID)
	if !ok {
		return ErrLineNotFound
	}
	if value < 0 {
		return nil
	}
	next := *line
	switch field {
	case FieldBulk:
		next.BulkQty = value
	case FieldUnit:
		if line.Product.SoldInBulk() && value >= line.Product.UnitsPerBulk {
			return ErrPreferBulk
		}
		next.UnitQty = value
	default:
		return ErrLineNotFound
	}
	if next.RequestedUnits() > line.Product.Stock {
		return ErrInsufficientStock
	}
	*line = next
	return nil
}

// RemoveLine drops the product from the draft. Removing an absent product is
// a no-op.
func (d *Draft) RemoveLine(productID int64) {
	for i := range d.Lines {
		if d.Lines[i].Product.ID == productID {
			d.Lines = append(d.Lines[:i], d.Lines[i+1:]...)
			return
		}
	}
}

// SetShipping replaces the flat shipping cost. Negative values are ignored.
func (d *Draft) SetShipping(v money.Amount) {
	if v < 0 {
		return
	}
	d.Shipping = v
}

// SetDiscount replaces the flat invoice discount. Negative values are ignored.
func (d *Draft) SetDiscount(v money.Amount) {
	if v < 0 {
		return
	}
	d.Discount = v
}

// Subtotal sums all line totals.
func (d *Draft) Subtotal() money.Amount {
	var sum money.Amount
	for _, line := range d.Lines {
		sum += line.Total()
	}
	return sum
}

// Total computes subtotal + shipping - discount. The result may be negative
// when the discount exceeds the rest; the value is preserved, never clamped.
func (d *Draft) Total() money.Amount {
	return d.Subtotal() + d.Shipping - d.Discount
}

// HasCustomer reports whether a non-blank customer name is set.
func (d *Draft) HasCustomer() bool {
	return strings.TrimSpace(d.CustomerName) != ""
}

// HasDeliveryDate reports whether a delivery date is set.
func (d *Draft) HasDeliveryDate() bool {
	return strings.TrimSpace(d.DeliveryDate) != ""
}
