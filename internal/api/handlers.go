package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jeancarlo3213/ferrefactura/internal/backend"
	"github.com/jeancarlo3213/ferrefactura/internal/billing"
	"github.com/jeancarlo3213/ferrefactura/internal/common"
	"github.com/jeancarlo3213/ferrefactura/internal/debt"
	"github.com/jeancarlo3213/ferrefactura/internal/draft"
	"github.com/jeancarlo3213/ferrefactura/internal/draftstore"
	"github.com/jeancarlo3213/ferrefactura/internal/money"
	"github.com/jeancarlo3213/ferrefactura/internal/obs"
	"github.com/jeancarlo3213/ferrefactura/internal/session"
)

// Handler carries the HTTP endpoints for the checkout flow.
type Handler struct {
	Backend  *backend.Client
	Drafts   *draftstore.Store
	Billing  *billing.Service
	Debt     *debt.Service
	Validate *validator.Validate
	Logger   zerolog.Logger
}

// NewHandler wires a handler with a ready validator.
func NewHandler(bc *backend.Client, drafts *draftstore.Store, bs *billing.Service, ds *debt.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		Backend:  bc,
		Drafts:   drafts,
		Billing:  bs,
		Debt:     ds,
		Validate: validator.New(),
		Logger:   logger,
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login exchanges credentials for a backend session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.Backend.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"token":    sess.Token,
		"username": sess.Username,
		"issuedAt": sess.IssuedAt,
	})
}

// ListProducts proxies the catalog read with an optional search filter.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	products, err := h.Backend.ListProducts(r.Context(), sess, r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	page, p := paginate(r, products)
	common.JSON(w, http.StatusOK, map[string]any{"products": page, "pagination": p})
}

// CreateDraft opens a new empty draft.
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	d := draft.New(uuid.NewString())
	if err := h.Drafts.Save(r.Context(), d); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	obs.DraftOperationTotal.WithLabelValues("create", "ok").Inc()
	common.JSON(w, http.StatusCreated, draftView(d))
}

// GetDraft returns the draft with computed line totals and the totals block.
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, draftView(d))
}

type updateDraftRequest struct {
	CustomerName  *string      `json:"customerName"`
	DeliveryDate  *string      `json:"deliveryDate"`
	ShippingCost  *money.Value `json:"shippingCost"`
	TotalDiscount *money.Value `json:"totalDiscount"`
}

// UpdateDraft patches the draft header fields. Negative shipping or discount
// values are ignored, matching quantity semantics.
func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	var req updateDraftRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.CustomerName != nil {
		d.CustomerName = *req.CustomerName
	}
	if req.DeliveryDate != nil {
		d.DeliveryDate = *req.DeliveryDate
	}
	if req.ShippingCost != nil {
		d.SetShipping(req.ShippingCost.Amount)
	}
	if req.TotalDiscount != nil {
		d.SetDiscount(req.TotalDiscount.Amount)
	}
	if err := h.Drafts.Save(r.Context(), d); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	obs.DraftOperationTotal.WithLabelValues("update", "ok").Inc()
	common.JSON(w, http.StatusOK, draftView(d))
}

type addLineRequest struct {
	ProductID    int64        `json:"productId" validate:"required,gt=0"`
	BulkQuantity int          `json:"bulkQuantity" validate:"gte=0"`
	UnitQuantity int          `json:"unitQuantity" validate:"gte=0"`
	UnitDiscount *money.Value `json:"unitDiscount"`
}

// AddLine fetches a fresh product snapshot and stages it on the draft.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	var req addLineRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, _ := session.FromContext(r.Context())
	product, err := h.Backend.GetProduct(r.Context(), sess, req.ProductID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	line, err := d.AddLine(product.Snapshot(), req.BulkQuantity, req.UnitQuantity)
	if err != nil {
		obs.DraftOperationTotal.WithLabelValues("add_line", "rejected").Inc()
		writeError(w, h.Logger, err)
		return
	}
	if req.UnitDiscount != nil && req.UnitDiscount.Amount > 0 {
		line.UnitDiscount = req.UnitDiscount.Amount
	}
	if err := h.Drafts.Save(r.Context(), d); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	obs.DraftOperationTotal.WithLabelValues("add_line", "ok").Inc()
	common.JSON(w, http.StatusCreated, draftView(d))
}

type updateLineRequest struct {
	Field string `json:"field" validate:"required,oneof=bulkQuantity unitQuantity"`
	Value int    `json:"value"`
}

// UpdateLine replaces one quantity field of a staged line.
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	var req updateLineRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := d.UpdateQuantity(productID, draft.QuantityField(req.Field), req.Value); err != nil {
		obs.DraftOperationTotal.WithLabelValues("update_line", "rejected").Inc()
		writeError(w, h.Logger, err)
		return
	}
	if err := h.Drafts.Save(r.Context(), d); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	obs.DraftOperationTotal.WithLabelValues("update_line", "ok").Inc()
	common.JSON(w, http.StatusOK, draftView(d))
}

// RemoveLine drops a product from the draft. Removing an absent line succeeds.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	d.RemoveLine(productID)
	if err := h.Drafts.Save(r.Context(), d); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	obs.DraftOperationTotal.WithLabelValues("remove_line", "ok").Inc()
	common.JSON(w, http.StatusOK, draftView(d))
}

// Submit runs the invoice pipeline on the draft.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	sess, _ := session.FromContext(r.Context())
	res, err := h.Billing.Submit(r.Context(), sess, d)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"invoiceId":   res.InvoiceID,
		"total":       money.V(res.Total),
		"stockErrors": res.StockErrors,
	})
}

type debtRequest struct {
	DebtorID   int64        `json:"debtorId" validate:"required_without=DebtorName"`
	DebtorName string       `json:"debtorName" validate:"required_without=DebtorID"`
	Comment    string       `json:"comment"`
	Amount     *money.Value `json:"amount"`
}

// RecordDebt converts the draft into a debt record instead of an invoice. The
// amount defaults to the draft total but stays editable, as at the counter.
func (h *Handler) RecordDebt(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	var req debtRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(d.Lines) == 0 {
		writeError(w, h.Logger, billing.ErrNoProducts)
		return
	}
	amount := d.Total()
	if req.Amount != nil {
		amount = req.Amount.Amount
	}
	sess, _ := session.FromContext(r.Context())
	var (
		rec *backend.DebtRecord
		err error
	)
	if req.DebtorID > 0 {
		rec, err = h.Debt.RecordForDebtor(r.Context(), sess, d, req.DebtorID, req.Comment, amount)
	} else {
		rec, err = h.Debt.RecordForNewDebtor(r.Context(), sess, d, req.DebtorName, req.Comment, amount)
	}
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if err := h.Drafts.Delete(r.Context(), d.ID); err != nil {
		h.Logger.Warn().Err(err).Str("draft_id", d.ID).Msg("draft_cleanup_failed")
	}
	common.JSON(w, http.StatusCreated, map[string]any{"record": rec})
}

// ListDebtRecords returns the debt registry, optionally filtered by debtor.
func (h *Handler) ListDebtRecords(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	records, err := h.Backend.ListDebtRecords(r.Context(), sess)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if q := r.URL.Query().Get("debtorId"); q != "" {
		debtorID, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			writeError(w, h.Logger, common.NewAppError("BAD_REQUEST", "invalid debtor id", http.StatusBadRequest, err))
			return
		}
		filtered := records[:0]
		for _, rec := range records {
			if rec.DebtorID == debtorID {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	page, p := paginate(r, records)
	common.JSON(w, http.StatusOK, map[string]any{"records": page, "pagination": p})
}

type paymentRequest struct {
	Amount money.Value `json:"amount"`
}

// RegisterPayment applies a payment to a debt record, settling it when the
// balance reaches zero.
func (h *Handler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	recordID, err := strconv.ParseInt(chi.URLParam(r, "recordId"), 10, 64)
	if err != nil || recordID <= 0 {
		writeError(w, h.Logger, common.NewAppError("BAD_REQUEST", "invalid record id", http.StatusBadRequest, err))
		return
	}
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Amount.Amount <= 0 {
		writeError(w, h.Logger, common.NewAppError("VALIDATION", "amount must be positive", http.StatusBadRequest, nil))
		return
	}
	sess, _ := session.FromContext(r.Context())
	records, err := h.Backend.ListDebtRecords(r.Context(), sess)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	var target *backend.DebtRecord
	for i := range records {
		if records[i].ID == recordID {
			target = &records[i]
			break
		}
	}
	if target == nil {
		writeError(w, h.Logger, common.NewAppError("RECORD_NOT_FOUND", "debt record not found", http.StatusNotFound, nil))
		return
	}
	rec, err := h.Debt.RegisterPayment(r.Context(), sess, *target, req.Amount.Amount)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"record": rec})
}

const defaultPerPage = 50

// paginate slices a backend list down to the requested page.
func paginate[T any](r *http.Request, items []T) ([]T, common.Pagination) {
	page, perPage := common.ParsePagination(r, defaultPerPage)
	p := common.Pagination{Page: page, PerPage: perPage, TotalItems: len(items)}
	start := (page - 1) * perPage
	if start >= len(items) {
		return items[:0], p
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], p
}

func (h *Handler) loadDraft(w http.ResponseWriter, r *http.Request) (*draft.Draft, bool) {
	id := chi.URLParam(r, "id")
	d, err := h.Drafts.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return nil, false
	}
	return d, true
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, h.Logger, common.NewAppError("BAD_REQUEST", "invalid product id", http.StatusBadRequest, err))
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := common.DecodeJSON(r, dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body", map[string]any{"error": err.Error()})
		return false
	}
	if err := h.Validate.Struct(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "request validation failed", map[string]any{"error": err.Error()})
		return false
	}
	return true
}

// lineView decorates a staged line with its computed total.
type lineView struct {
	draft.Line
	LineTotal money.Value `json:"lineTotal"`
}

func draftView(d *draft.Draft) map[string]any {
	lines := make([]lineView, 0, len(d.Lines))
	for _, l := range d.Lines {
		lines = append(lines, lineView{Line: l, LineTotal: money.V(l.Total())})
	}
	return map[string]any{
		"id":           d.ID,
		"customerName": d.CustomerName,
		"deliveryDate": d.DeliveryDate,
		"createdAt":    d.CreatedAt,
		"lines":        lines,
		"totals": map[string]any{
			"subtotal":      money.V(d.Subtotal()),
			"shippingCost":  money.V(d.Shipping),
			"totalDiscount": money.V(d.Discount),
			"total":         money.V(d.Total()),
		},
	}
}
