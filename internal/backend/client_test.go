package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeancarlo3213/ferrefactura/internal/backend"
	"github.com/jeancarlo3213/ferrefactura/internal/money"
	"github.com/jeancarlo3213/ferrefactura/internal/resilience"
	"github.com/jeancarlo3213/ferrefactura/internal/session"
)

func newClient(t *testing.T, handler http.Handler) (*backend.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	wrapped := resilience.HTTPClient{
		Client:      srv.Client(),
		Breaker:     resilience.NewBreaker(100, 0.99, time.Minute),
		MaxAttempts: 1,
	}
	return backend.New(srv.URL, wrapped, wrapped), srv
}

func testSession() *session.Session {
	return &session.Session{Token: "tok", Username: "cajero", IssuedAt: time.Now()}
}

func TestLogin(t *testing.T) {
	cl, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api-token-auth/", r.URL.Path)
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "cajero", creds["username"])
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "abc123"})
	}))

	sess, err := cl.Login(context.Background(), "cajero", "secreto")
	require.NoError(t, err)
	assert.Equal(t, "abc123", sess.Token)
	assert.Equal(t, "Token abc123", sess.AuthorizationValue())
}

func TestListProductsDecodesDecimalStrings(t *testing.T) {
	cl, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/productos/", r.URL.Path)
		assert.Equal(t, "Token tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":2,"nombre":"Clavo 3\"","precio":"1000.00","precio_quintal":"45000.00","unidades_por_quintal":50,"stock":120,"categoria":"fijaciones"},
			{"id":7,"nombre":"Cinta métrica","precio":"35.50","precio_quintal":null,"unidades_por_quintal":null,"stock":8,"categoria":"medición"}
		]`))
	}))

	products, err := cl.ListProducts(context.Background(), testSession(), "")
	require.NoError(t, err)
	require.Len(t, products, 2)

	bulk := products[0].Snapshot()
	assert.Equal(t, money.Amount(100000), bulk.UnitPrice)
	assert.Equal(t, money.Amount(4500000), bulk.BulkPrice)
	assert.Equal(t, 50, bulk.UnitsPerBulk)
	assert.True(t, bulk.SoldInBulk())

	unitOnly := products[1].Snapshot()
	assert.Equal(t, money.Amount(3550), unitOnly.UnitPrice)
	assert.Zero(t, unitOnly.BulkPrice)
	assert.False(t, unitOnly.SoldInBulk())
}

func TestCreateInvoicePayload(t *testing.T) {
	var got map[string]any
	cl, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/facturas/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 91, "nombre_cliente": "Don Mario"})
	}))

	inv, err := cl.CreateInvoice(context.Background(), testSession(), backend.NewInvoice{
		CustomerName:  "Don Mario",
		DeliveryDate:  "2026-09-02",
		ShippingCost:  money.V(2500),
		TotalDiscount: money.V(0),
		UserID:        1,
		Entries: []backend.InvoiceEntry{
			{ProductID: 2, Quantity: 2, UnitPrice: money.V(4500000)},
			{ProductID: 2, Quantity: 10, UnitPrice: money.V(100000)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(91), inv.ID)

	assert.Equal(t, "Don Mario", got["nombre_cliente"])
	assert.Equal(t, "25.00", got["costo_envio"])
	entries, ok := got["productos"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]any)
	assert.Equal(t, "45000.00", first["precio_unitario"])
}

func TestUpdateStock(t *testing.T) {
	cl, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/productos/2/", r.URL.Path)
		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 110, body["stock"])
		w.WriteHeader(http.StatusOK)
	}))

	err := cl.UpdateStock(context.Background(), testSession(), 2, 110)
	require.NoError(t, err)
}

func TestBackendErrorSurfacesStatus(t *testing.T) {
	cl, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
	}))

	_, err := cl.GetProduct(context.Background(), testSession(), 999)
	require.Error(t, err)
	var be *backend.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusNotFound, be.StatusCode)
	assert.Contains(t, be.Body, "not found")
}

func TestDebtRecordRoundTrip(t *testing.T) {
	cl, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/registros-deudas/":
			var rec map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
			assert.Equal(t, "450.00", rec["cantidad"])
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":5,"deudor":3,"descripcion":"2 martillos","cantidad":"450.00","comentario":""}`))
		case r.Method == http.MethodGet && r.URL.Path == "/registros-deudas/":
			_, _ = w.Write([]byte(`[{"id":5,"deudor":3,"descripcion":"2 martillos","cantidad":"450.00","comentario":""}]`))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	rec, err := cl.CreateDebtRecord(context.Background(), testSession(), backend.NewDebtRecord{
		DebtorID:    3,
		Description: "2 martillos",
		Amount:      money.V(45000),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.ID)
	assert.Equal(t, money.Amount(45000), rec.Amount.Amount)

	records, err := cl.ListDebtRecords(context.Background(), testSession())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(3), records[0].DebtorID)
}
