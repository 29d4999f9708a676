package backend

import (
	"fmt"

	"github.com/jeancarlo3213/ferrefactura/internal/draft"
	"github.com/jeancarlo3213/ferrefactura/internal/money"
)

// Error is returned for any non-2xx backend response. The body is kept
// verbatim for logging; it is never forwarded to API clients as-is.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Product mirrors the backend catalog entry. Money fields arrive as decimal
// strings and nullable fields as JSON null.
type Product struct {
	ID           int64        `json:"id"`
	Name         string       `json:"nombre"`
	UnitPrice    money.Value  `json:"precio"`
	BulkPrice    *money.Value `json:"precio_quintal"`
	UnitsPerBulk *int         `json:"unidades_por_quintal"`
	Stock        int          `json:"stock"`
	Category     string       `json:"categoria"`
}

// Snapshot converts the backend representation into the calculator's product
// snapshot, resolving nullable bulk fields.
func (p Product) Snapshot() draft.Product {
	out := draft.Product{
		ID:        p.ID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice.Amount,
		Stock:     p.Stock,
		Category:  p.Category,
	}
	if p.BulkPrice != nil {
		out.BulkPrice = p.BulkPrice.Amount
	}
	if p.UnitsPerBulk != nil {
		out.UnitsPerBulk = *p.UnitsPerBulk
	}
	return out
}

// NewProduct is the creation payload for a catalog entry.
type NewProduct struct {
	Name         string       `json:"nombre"`
	UnitPrice    money.Value  `json:"precio"`
	BulkPrice    *money.Value `json:"precio_quintal,omitempty"`
	UnitsPerBulk *int         `json:"unidades_por_quintal,omitempty"`
	Stock        int          `json:"stock"`
	Category     string       `json:"categoria,omitempty"`
}

// InvoiceEntry is one expanded line of the invoice payload. A draft line with
// both quantities produces two entries at their respective prices.
type InvoiceEntry struct {
	ProductID int64       `json:"producto_id"`
	Quantity  int         `json:"cantidad"`
	UnitPrice money.Value `json:"precio_unitario"`
}

// NewInvoice is the creation payload for POST /facturas/.
type NewInvoice struct {
	CustomerName  string         `json:"nombre_cliente"`
	DeliveryDate  string         `json:"fecha_entrega"`
	ShippingCost  money.Value    `json:"costo_envio"`
	TotalDiscount money.Value    `json:"descuento_total"`
	UserID        int64          `json:"usuario_id"`
	Entries       []InvoiceEntry `json:"productos"`
}

// Invoice is the persisted invoice as returned by the backend.
type Invoice struct {
	ID           int64       `json:"id"`
	CustomerName string      `json:"nombre_cliente"`
	DeliveryDate string      `json:"fecha_entrega"`
	ShippingCost money.Value `json:"costo_envio"`
	Total        money.Value `json:"total"`
	CreatedAt    string      `json:"fecha_creacion"`
}

// Debtor is a registered credit customer.
type Debtor struct {
	ID   int64  `json:"id"`
	Name string `json:"nombre"`
}

// DebtRecord is one debt entry for a debtor. A record with comment PAGADO or
// a zero amount is settled.
type DebtRecord struct {
	ID          int64       `json:"id"`
	DebtorID    int64       `json:"deudor"`
	Description string      `json:"descripcion"`
	Amount      money.Value `json:"cantidad"`
	Comment     string      `json:"comentario"`
	CreatedAt   string      `json:"fecha"`
}

// NewDebtRecord is the creation payload for POST /registros-deudas/.
type NewDebtRecord struct {
	DebtorID    int64       `json:"deudor"`
	Description string      `json:"descripcion"`
	Amount      money.Value `json:"cantidad"`
	Comment     string      `json:"comentario,omitempty"`
}

// DebtRecordPatch carries the mutable fields of a debt record. Nil fields are
// omitted from the PATCH body.
type DebtRecordPatch struct {
	Description *string      `json:"descripcion,omitempty"`
	Amount      *money.Value `json:"cantidad,omitempty"`
	Comment     *string      `json:"comentario,omitempty"`
}
