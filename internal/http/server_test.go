package http

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hisaab/internal/cache"
	"hisaab/internal/events"
	"hisaab/internal/idempotency"
	"hisaab/internal/log"
	"hisaab/internal/metrics"
	"hisaab/internal/services"
	"hisaab/internal/session"
	"hisaab/internal/storage/memory"
)

type testEnv struct {
	srv     *Server
	hub     *events.Hub
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	store := memory.New()
	sessions, err := session.NewManager("test-secret-0123456789", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	idem, err := idempotency.Open(filepath.Join(t.TempDir(), "idem.db"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idem.Close() })

	m := metrics.New(prometheus.NewRegistry())
	hub := events.NewHub(8)
	views := services.NewViews(store, cache.NewLRUCache[*services.Snapshot](16, time.Minute))
	opts := []services.Option{services.WithPublisher(events.MultiPublisher{views, hub}), services.WithMetrics(m)}

	srv := NewServer(":0", Deps{
		Auth:         services.NewAuthService(store, sessions),
		Sessions:     sessions,
		Transactions: services.NewTransactionService(store, opts...),
		Loans:        services.NewLoanService(store, opts...),
		Views:        views,
		Events:       hub,
		Idempotency:  idem,
		Metrics:      m,
		Ready:        store,
		Logger:       log.New(log.Config{Handler: log.NewHandler(io.Discard, "text", log.ParseLevel("error"))}),
		Currency:     "INR",
	})
	return testEnv{srv: srv, hub: hub, metrics: m}
}

func (e testEnv) do(t *testing.T, method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (e testEnv) signup(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/signup", "", `{"email": "`+email+`", "password": "secret1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status %d: %s", rec.Code, rec.Body)
	}
	return decode[authJSON](t, rec).Token
}

func (e testEnv) createTx(t *testing.T, token, body string) transactionJSON {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/transactions", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", rec.Code, rec.Body)
	}
	return decode[transactionJSON](t, rec)
}

func TestHealthAndPing(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz", "/api/ping"} {
		rec := env.do(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
	rec := env.do(t, http.MethodGet, "/api/ping", "", "")
	if got := decode[map[string]string](t, rec)["message"]; got != "pong" {
		t.Errorf("ping message = %q", got)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing middleware headers: %v", rec.Header())
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "asha@example.com")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{"duplicate signup", http.MethodPost, "/api/auth/signup", "", `{"email": "ASHA@example.com", "password": "secret1"}`, http.StatusConflict},
		{"short password", http.MethodPost, "/api/auth/signup", "", `{"email": "b@example.com", "password": "123"}`, http.StatusBadRequest},
		{"missing fields", http.MethodPost, "/api/auth/signup", "", `{"email": "b@example.com"}`, http.StatusBadRequest},
		{"login", http.MethodPost, "/api/auth/login", "", `{"email": "asha@example.com", "password": "secret1"}`, http.StatusOK},
		{"wrong password", http.MethodPost, "/api/auth/login", "", `{"email": "asha@example.com", "password": "nope12"}`, http.StatusUnauthorized},
		{"me", http.MethodGet, "/api/auth/me", token, "", http.StatusOK},
		{"me without token", http.MethodGet, "/api/auth/me", "", "", http.StatusUnauthorized},
		{"me with garbage token", http.MethodGet, "/api/auth/me", "garbage", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.token, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}

	t.Run("refresh then logout", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/refresh", token, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("refresh status = %d", rec.Code)
		}
		fresh := decode[authJSON](t, rec).Token
		if env.do(t, http.MethodGet, "/api/auth/me", token, "").Code != http.StatusUnauthorized {
			t.Error("old token still valid after refresh")
		}
		if rec := env.do(t, http.MethodPost, "/api/auth/logout", fresh, ""); rec.Code != http.StatusNoContent {
			t.Errorf("logout status = %d", rec.Code)
		}
		if env.do(t, http.MethodGet, "/api/auth/me", fresh, "").Code != http.StatusUnauthorized {
			t.Error("token still valid after logout")
		}
	})
}

func TestTransactionsAPI(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "asha@example.com")
	other := env.signup(t, "ravi@example.com")

	tx := env.createTx(t, token, `{"amount": 1000, "type": "credit", "date": "2024-03-01", "payment_method": "Account"}`)
	if tx.Amount != "1000.00" || tx.PaymentMethod != "Account" || tx.Date.String() != "2024-03-01" {
		t.Errorf("created = %+v", tx)
	}
	env.createTx(t, token, `{"amount": "250.5", "type": "debit", "date": "2024-03-05", "time": "18:30", "description": "groceries"}`)

	t.Run("list with filters", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/transactions?type=debit&method=Not%20Specified", token, "")
		list := decode[map[string][]transactionJSON](t, rec)["transactions"]
		if len(list) != 1 || list[0].Amount != "250.50" || list[0].PaymentMethod != "Not Specified" {
			t.Errorf("list = %+v", list)
		}
	})

	t.Run("expenses alias", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/expenses", token, "")
		if got := decode[map[string][]transactionJSON](t, rec)["expenses"]; len(got) != 2 {
			t.Errorf("alias list = %d items", len(got))
		}
	})

	t.Run("ownership", func(t *testing.T) {
		path := "/api/transactions/" + tx.ID
		if rec := env.do(t, http.MethodGet, path, other, ""); rec.Code != http.StatusForbidden {
			t.Errorf("get by other = %d", rec.Code)
		}
		if rec := env.do(t, http.MethodDelete, path, other, ""); rec.Code != http.StatusForbidden {
			t.Errorf("delete by other = %d", rec.Code)
		}
		if rec := env.do(t, http.MethodGet, "/api/transactions/missing", token, ""); rec.Code != http.StatusNotFound {
			t.Errorf("get missing = %d", rec.Code)
		}
	})

	t.Run("validation", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/transactions", token, `{"amount": -1, "type": "debit", "date": "2024-03-01"}`)
		if rec.Code != http.StatusBadRequest || decode[map[string]string](t, rec)["error"] == "" {
			t.Errorf("negative amount = %d %s", rec.Code, rec.Body)
		}
		rec = env.do(t, http.MethodGet, "/api/transactions?startDate=2024-04-01&endDate=2024-03-01", token, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("inverted range = %d", rec.Code)
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		path := "/api/transactions/" + tx.ID
		rec := env.do(t, http.MethodPut, path, token, `{"amount": 900, "type": "credit", "date": "2024-03-01", "payment_method": "Cash"}`)
		if rec.Code != http.StatusOK || decode[transactionJSON](t, rec).Amount != "900.00" {
			t.Fatalf("update = %d %s", rec.Code, rec.Body)
		}
		if rec := env.do(t, http.MethodDelete, path, token, ""); rec.Code != http.StatusOK {
			t.Fatalf("delete = %d", rec.Code)
		}
		if rec := env.do(t, http.MethodDelete, path, token, ""); rec.Code != http.StatusNotFound {
			t.Errorf("second delete = %d", rec.Code)
		}
	})
}

func TestViewsReadOwnWrites(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "asha@example.com")

	env.createTx(t, token, `{"amount": 1000, "type": "credit", "date": "2024-02-28", "payment_method": "Account"}`)
	// warm the snapshot cache, then write again
	env.do(t, http.MethodGet, "/api/summary?month=all", token, "")
	env.createTx(t, token, `{"amount": 200, "type": "debit", "date": "2024-03-01", "payment_method": "Credit Card"}`)

	rec := env.do(t, http.MethodGet, "/api/summary?month=3&year=2024", token, "")
	sum := decode[totalsJSON](t, rec)
	if sum.Credit != "0.00" || sum.Debit != "200.00" || sum.Balance != "800.00" {
		t.Errorf("summary = %+v", sum)
	}

	rec = env.do(t, http.MethodGet, "/api/ledger", token, "")
	entries := decode[map[string][]entryJSON](t, rec)["entries"]
	if len(entries) != 2 || entries[0].RunningBalance != "800.00" || entries[1].RunningBalance != "1000.00" {
		t.Errorf("ledger = %+v", entries)
	}

	rec = env.do(t, http.MethodGet, "/api/accounts", token, "")
	acc := decode[accountsJSON](t, rec)
	if acc.Sections.Account != "1000.00" || acc.Sections.CreditCard != "200.00" || len(acc.Groups) != 3 {
		t.Errorf("accounts = %+v", acc)
	}

	rec = env.do(t, http.MethodGet, "/api/methods", token, "")
	methods := decode[struct {
		Methods  []methodStatJSON `json:"methods"`
		Defaults []string         `json:"defaults"`
	}](t, rec)
	if len(methods.Methods) != 2 || methods.Methods[0].Color != "#3b82f6" || len(methods.Defaults) == 0 {
		t.Errorf("methods = %+v", methods)
	}

	rec = env.do(t, http.MethodGet, "/api/methods/breakdown?month=3&year=2024", token, "")
	bd := decode[struct {
		Breakdown []breakdownJSON `json:"breakdown"`
	}](t, rec).Breakdown
	if len(bd) != 1 || bd[0].Name != "Credit Card" || bd[0].Debit != "200.00" {
		t.Errorf("breakdown = %+v", bd)
	}

	rec = env.do(t, http.MethodGet, "/api/profile", token, "")
	p := decode[profileJSON](t, rec)
	if p.TotalTransactions != 2 || p.Balance != "800.00" || p.User.Email != "asha@example.com" {
		t.Errorf("profile = %+v", p)
	}

	if rec := env.do(t, http.MethodGet, "/api/summary?month=13", token, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad month = %d", rec.Code)
	}
}

func TestLoansAPI(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "asha@example.com")

	rec := env.do(t, http.MethodPost, "/api/loans", token, `{"account_type": "loan-given", "name": "Ravi", "initial_amount": 1000}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body)
	}
	loan := decode[loanJSON](t, rec)

	env.do(t, http.MethodPost, "/api/loans/"+loan.ID+"/paid", token, `{"amount": 200}`)
	rec = env.do(t, http.MethodPost, "/api/loans/"+loan.ID+"/received", token, `{"amount": "300"}`)
	loan = decode[loanJSON](t, rec)
	// loan given: initial + paid - received
	if loan.Balance != "900.00" || loan.AmountPaid != "200.00" || loan.AmountReceived != "300.00" {
		t.Errorf("loan = %+v", loan)
	}

	if rec := env.do(t, http.MethodPost, "/api/loans/"+loan.ID+"/paid", token, `{"amount": 0}`); rec.Code != http.StatusBadRequest {
		t.Errorf("zero movement = %d", rec.Code)
	}
	other := env.signup(t, "ravi@example.com")
	if rec := env.do(t, http.MethodPost, "/api/loans/"+loan.ID+"/paid", other, `{"amount": 5}`); rec.Code != http.StatusForbidden {
		t.Errorf("other owner movement = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/loans", token, "")
	if got := decode[map[string][]loanJSON](t, rec)["accounts"]; len(got) != 1 {
		t.Errorf("list = %+v", got)
	}
	if rec := env.do(t, http.MethodDelete, "/api/loans/"+loan.ID, token, ""); rec.Code != http.StatusOK {
		t.Errorf("delete = %d", rec.Code)
	}
}

func TestIdempotencyKeyReplays(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "asha@example.com")
	body := `{"amount": 10, "type": "debit", "date": "2024-03-01"}`

	first := env.do(t, http.MethodPost, "/api/transactions", token, body, HeaderIdempotencyKey, "k-1")
	second := env.do(t, http.MethodPost, "/api/transactions", token, body, HeaderIdempotencyKey, "k-1")
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("status = %d, %d", first.Code, second.Code)
	}
	if second.Header().Get(headerReplayed) != "true" {
		t.Error("second response not marked as replayed")
	}
	if decode[transactionJSON](t, first).ID != decode[transactionJSON](t, second).ID {
		t.Error("replay returned a different transaction")
	}

	env.do(t, http.MethodPost, "/api/transactions", token, body, HeaderIdempotencyKey, "k-2")
	rec := env.do(t, http.MethodGet, "/api/transactions", token, "")
	if got := decode[map[string][]transactionJSON](t, rec)["transactions"]; len(got) != 2 {
		t.Errorf("stored %d transactions, want 2", len(got))
	}
}

func TestBodyLimit(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "asha@example.com")
	body := `{"amount": 1, "type": "debit", "date": "2024-03-01", "description": "` + strings.Repeat("x", maxBodyBytes) + `"}`
	if rec := env.do(t, http.MethodPost, "/api/transactions", token, body); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/ping", "", "")
	rec := env.do(t, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "hisaab_http_requests_total") {
		t.Errorf("metrics = %d\n%s", rec.Code, rec.Body)
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "asha@example.com")

	ts := httptest.NewServer(env.srv.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events?token="+token, nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// the handler subscribes before it flushes headers
	if n := env.hub.Subscribers(); n != 1 {
		t.Fatalf("subscribers = %d", n)
	}
	env.createTx(t, token, `{"amount": 5, "type": "credit", "date": "2024-03-01"}`)

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if sc.Text() == "event: transaction.created" {
			return
		}
	}
	t.Fatalf("stream ended without change event: %v", sc.Err())
}
