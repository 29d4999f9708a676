package debt_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeancarlo3213/ferrefactura/internal/backend"
	"github.com/jeancarlo3213/ferrefactura/internal/debt"
	"github.com/jeancarlo3213/ferrefactura/internal/draft"
	"github.com/jeancarlo3213/ferrefactura/internal/money"
	"github.com/jeancarlo3213/ferrefactura/internal/obs"
	"github.com/jeancarlo3213/ferrefactura/internal/resilience"
	"github.com/jeancarlo3213/ferrefactura/internal/session"
)

func init() {
	obs.MustRegisterDomainMetrics("ferrefactura_test", prometheus.NewRegistry())
}

var fixedNow = time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T, handler http.Handler) *debt.Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	wrapped := resilience.HTTPClient{
		Client:      srv.Client(),
		Breaker:     resilience.NewBreaker(100, 0.99, time.Minute),
		MaxAttempts: 1,
	}
	return &debt.Service{
		Backend: backend.New(srv.URL, wrapped, wrapped),
		Logger:  zerolog.Nop(),
		Now:     func() time.Time { return fixedNow },
	}
}

func creditDraft(t *testing.T) *draft.Draft {
	t.Helper()
	d := draft.New("d-1")
	_, err := d.AddLine(draft.Product{
		ID: 2, Name: "Clavo 3\"", UnitPrice: 100000, BulkPrice: 4500000,
		UnitsPerBulk: 50, Stock: 120,
	}, 1, 5)
	require.NoError(t, err)
	_, err = d.AddLine(draft.Product{ID: 9, Name: "Martillo", UnitPrice: 22500, Stock: 10}, 0, 2)
	require.NoError(t, err)
	return d
}

func TestDescription(t *testing.T) {
	d := creditDraft(t)
	got := debt.Description(d, fixedNow)
	assert.Equal(t, "01/09/2026 - Clavo 3\" x1 qq + Clavo 3\" x5 u, Martillo x2 u", got)
}

func TestRecordForNewDebtor(t *testing.T) {
	var recorded map[string]any
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/deudores/":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Doña Rosa", body["nombre"])
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 3, "nombre": "Doña Rosa"})
		case r.Method == http.MethodPost && r.URL.Path == "/registros-deudas/":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&recorded))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":5,"deudor":3,"descripcion":"x","cantidad":"495.50","comentario":"Pendiente"}`))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	d := creditDraft(t)
	rec, err := svc.RecordForNewDebtor(context.Background(), testSession(), d, "Doña Rosa", "", d.Total())
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.ID)
	assert.Equal(t, "Pendiente", recorded["comentario"])
	assert.Contains(t, recorded["descripcion"], "Clavo 3\" x1 qq")
	// 1 qq at 45000.00 + 5 units at 1000.00 + 2 hammers at 225.00
	assert.Equal(t, "50450.00", recorded["cantidad"])
}

func TestRecordForDebtorMergesActiveRecord(t *testing.T) {
	var patched map[string]any
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/registros-deudas/":
			_, _ = w.Write([]byte(`[
				{"id":4,"deudor":3,"descripcion":"old paid","cantidad":"0.00","comentario":"PAGADO"},
				{"id":5,"deudor":3,"descripcion":"old open","cantidad":"100.00","comentario":"Pendiente"},
				{"id":6,"deudor":8,"descripcion":"other debtor","cantidad":"50.00","comentario":"Pendiente"}
			]`))
		case r.Method == http.MethodPatch && r.URL.Path == "/registros-deudas/5/":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
			_, _ = w.Write([]byte(`{"id":5,"deudor":3,"descripcion":"merged","cantidad":"50550.00","comentario":"Pendiente"}`))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	d := creditDraft(t)
	rec, err := svc.RecordForDebtor(context.Background(), testSession(), d, 3, "", d.Total())
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.ID)

	desc, _ := patched["descripcion"].(string)
	assert.Contains(t, desc, "old open\n01/09/2026")
	assert.Equal(t, "50550.00", patched["cantidad"])
	// merge patch never rewrites the comment
	_, hasComment := patched["comentario"]
	assert.False(t, hasComment)
}

func TestRecordForDebtorWithoutActiveRecordCreates(t *testing.T) {
	created := false
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/registros-deudas/":
			_, _ = w.Write([]byte(`[{"id":4,"deudor":3,"descripcion":"old","cantidad":"0.00","comentario":"PAGADO"}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/registros-deudas/":
			created = true
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":9,"deudor":3,"descripcion":"new","cantidad":"50450.00","comentario":"fiado"}`))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	d := creditDraft(t)
	rec, err := svc.RecordForDebtor(context.Background(), testSession(), d, 3, "fiado", d.Total())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(9), rec.ID)
}

func TestRegisterPaymentSettles(t *testing.T) {
	var patched map[string]any
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/registros-deudas/5/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
		_, _ = w.Write([]byte(`{"id":5,"deudor":3,"descripcion":"x","cantidad":"0.00","comentario":"PAGADO"}`))
	}))

	record := backend.DebtRecord{ID: 5, DebtorID: 3, Amount: money.V(10000), Comment: "Pendiente"}
	rec, err := svc.RegisterPayment(context.Background(), testSession(), record, 10000)
	require.NoError(t, err)
	assert.Equal(t, "PAGADO", rec.Comment)
	assert.Equal(t, "0.00", patched["cantidad"])
	assert.Equal(t, "PAGADO", patched["comentario"])
}

func TestRegisterPaymentPartial(t *testing.T) {
	var patched map[string]any
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
		_, _ = w.Write([]byte(`{"id":5,"deudor":3,"descripcion":"x","cantidad":"60.00","comentario":"Pendiente"}`))
	}))

	record := backend.DebtRecord{ID: 5, DebtorID: 3, Amount: money.V(10000), Comment: "Pendiente"}
	rec, err := svc.RegisterPayment(context.Background(), testSession(), record, 4000)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(6000), rec.Amount.Amount)
	assert.Equal(t, "60.00", patched["cantidad"])
	// still open, comment untouched
	_, hasComment := patched["comentario"]
	assert.False(t, hasComment)
}

func testSession() *session.Session {
	return &session.Session{Token: "tok", Username: "cajero", IssuedAt: time.Now()}
}
