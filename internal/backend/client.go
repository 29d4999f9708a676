package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jeancarlo3213/ferrefactura/internal/resilience"
	"github.com/jeancarlo3213/ferrefactura/internal/session"
)

// Client is a typed HTTP client over the ferretería store backend. Reads and
// login retry through the resilience wrapper; writes run single-attempt since
// the backend offers no idempotency keys.
type Client struct {
	BaseURL string
	Reads   resilience.HTTPClient
	Writes  resilience.HTTPClient
	Tracer  trace.Tracer
}

// New constructs a client from a base URL and pre-configured resilience
// wrappers. The write wrapper should have MaxAttempts of 1.
func New(baseURL string, reads, writes resilience.HTTPClient) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Reads:   reads,
		Writes:  writes,
	}
}

// Login exchanges credentials for a backend token.
func (c *Client) Login(ctx context.Context, username, password string) (*session.Session, error) {
	body := map[string]string{"username": username, "password": password}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.call(ctx, nil, c.Reads, http.MethodPost, "/api-token-auth/", body, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("backend: login response missing token")
	}
	return &session.Session{Token: out.Token, Username: username, IssuedAt: time.Now()}, nil
}

// ListProducts fetches the full catalog. The optional search argument filters
// by name server-side when supported and is otherwise applied by the caller.
func (c *Client) ListProducts(ctx context.Context, sess *session.Session, search string) ([]Product, error) {
	path := "/productos/"
	if s := strings.TrimSpace(search); s != "" {
		path += "?search=" + url.QueryEscape(s)
	}
	var out []Product
	if err := c.call(ctx, sess, c.Reads, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct fetches a single product snapshot by id.
func (c *Client) GetProduct(ctx context.Context, sess *session.Session, id int64) (*Product, error) {
	var out Product
	if err := c.call(ctx, sess, c.Reads, http.MethodGet, fmt.Sprintf("/productos/%d/", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProduct registers a new catalog entry.
func (c *Client) CreateProduct(ctx context.Context, sess *session.Session, p NewProduct) (*Product, error) {
	var out Product
	if err := c.call(ctx, sess, c.Writes, http.MethodPost, "/productos/", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStock sets the absolute stock value for one product.
func (c *Client) UpdateStock(ctx context.Context, sess *session.Session, productID int64, stock int) error {
	body := map[string]int{"stock": stock}
	return c.call(ctx, sess, c.Writes, http.MethodPatch, fmt.Sprintf("/productos/%d/", productID), body, nil)
}

// CreateInvoice persists an invoice with its expanded product entries.
func (c *Client) CreateInvoice(ctx context.Context, sess *session.Session, inv NewInvoice) (*Invoice, error) {
	var out Invoice
	if err := c.call(ctx, sess, c.Writes, http.MethodPost, "/facturas/", inv, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDebtors returns all registered debtors.
func (c *Client) ListDebtors(ctx context.Context, sess *session.Session) ([]Debtor, error) {
	var out []Debtor
	if err := c.call(ctx, sess, c.Reads, http.MethodGet, "/deudores/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDebtor registers a new debtor by name.
func (c *Client) CreateDebtor(ctx context.Context, sess *session.Session, name string) (*Debtor, error) {
	body := map[string]string{"nombre": name}
	var out Debtor
	if err := c.call(ctx, sess, c.Writes, http.MethodPost, "/deudores/", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDebtRecords returns every debt record; callers filter by debtor.
func (c *Client) ListDebtRecords(ctx context.Context, sess *session.Session) ([]DebtRecord, error) {
	var out []DebtRecord
	if err := c.call(ctx, sess, c.Reads, http.MethodGet, "/registros-deudas/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDebtRecord opens a new debt entry for a debtor.
func (c *Client) CreateDebtRecord(ctx context.Context, sess *session.Session, rec NewDebtRecord) (*DebtRecord, error) {
	var out DebtRecord
	if err := c.call(ctx, sess, c.Writes, http.MethodPost, "/registros-deudas/", rec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDebtRecord patches the mutable fields of an existing debt record.
func (c *Client) UpdateDebtRecord(ctx context.Context, sess *session.Session, id int64, patch DebtRecordPatch) (*DebtRecord, error) {
	var out DebtRecord
	if err := c.call(ctx, sess, c.Writes, http.MethodPatch, fmt.Sprintf("/registros-deudas/%d/", id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping performs a cheap authenticated read used by health checks.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/productos/", nil)
	if err != nil {
		return err
	}
	resp, err := c.Reads.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	// 401 still proves the backend is reachable
	if resp.StatusCode >= 500 {
		return &Error{StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) call(ctx context.Context, sess *session.Session, cl resilience.HTTPClient, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess != nil && sess.Valid() {
		req.Header.Set("Authorization", sess.AuthorizationValue())
	}
	if c.Tracer != nil {
		var span trace.Span
		ctx, span = c.Tracer.Start(ctx, fmt.Sprintf("backend %s %s", method, path))
		span.SetAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", c.BaseURL+path),
		)
		defer span.End()
	}

	resp, err := cl.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("backend: read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, path, err)
	}
	return nil
}
