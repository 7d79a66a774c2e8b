package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/api/transactions/"+id, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/transactions/{id}", "404"))
	if got != 3 {
		t.Errorf("requests counter = %v, want 3", got)
	}
}

func TestObservers(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveWrite("transaction", "created")
	m.ObserveSnapshot(true)
	m.ObserveSnapshot(false)
	m.ObserveSnapshot(false)
	m.ObserveSheetsSync(errors.New("quota"))
	m.ObservePublishFailure()
	m.ObserveDrop()

	if v := testutil.ToFloat64(m.SnapshotLookups.WithLabelValues("miss")); v != 2 {
		t.Errorf("misses = %v", v)
	}
	if v := testutil.ToFloat64(m.SheetsSyncs.WithLabelValues("error")); v != 1 {
		t.Errorf("sheets errors = %v", v)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "hisaab_ledger_writes_total") {
		t.Errorf("exposition missing writes counter:\n%s", body)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveWrite("loan", "deleted")
	m.ObserveSnapshot(true)
	m.ObserveSheetsSync(nil)
	m.ObservePublishFailure()
	m.ObserveDrop()

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}
