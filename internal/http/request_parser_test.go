package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hisaab/internal/core"
	"hisaab/internal/ledger"
	"hisaab/internal/services"
)

func parse(t *testing.T, contentType, body string) *RequestBody {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	b, err := ParseBody(httptest.NewRecorder(), r)
	if err != nil {
		t.Fatalf("ParseBody() = %v", err)
	}
	return b
}

func TestParseBody_Formats(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"json", "application/json", `{"amount": 12.5, "type": "debit", "date": "2024-03-01", "paymentMethod": "cash"}`},
		{"json without content type", "", `{"amount": "12.5", "type": "debit", "date": "2024-03-01", "payment_method": "Cash"}`},
		{"form", "application/x-www-form-urlencoded", "amount=12%2C5&type=DEBIT&date=2024-03-01&payment_method=cash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := parse(t, tt.contentType, tt.body).TransactionInput()
			if err != nil {
				t.Fatalf("TransactionInput() = %v", err)
			}
			if !in.Amount.Equal(decimal.RequireFromString("12.5")) {
				t.Errorf("amount = %s", in.Amount)
			}
			if in.Kind != core.Debit || in.PaymentMethod != core.MethodCash || in.OccurredOn.String() != "2024-03-01" {
				t.Errorf("input = %+v", in)
			}
		})
	}
}

func TestParseBody_Rejects(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount": `))
	r.Header.Set("Content-Type", "application/json")
	if _, err := ParseBody(httptest.NewRecorder(), r); !services.IsValidation(err) {
		t.Errorf("malformed JSON: %v", err)
	}

	big := `{"description": "` + strings.Repeat("x", maxBodyBytes) + `"}`
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	if _, err := ParseBody(httptest.NewRecorder(), r); !errors.Is(err, errBodyTooLarge) {
		t.Errorf("oversized body: %v", err)
	}
}

func TestTransactionInput_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing amount", `{"type": "debit", "date": "2024-03-01"}`},
		{"zero amount", `{"amount": 0, "type": "debit", "date": "2024-03-01"}`},
		{"negative amount", `{"amount": -4, "type": "debit", "date": "2024-03-01"}`},
		{"bad type", `{"amount": 4, "type": "transfer", "date": "2024-03-01"}`},
		{"missing date", `{"amount": 4, "type": "credit"}`},
		{"bad date", `{"amount": 4, "type": "credit", "date": "2024-02-30"}`},
		{"bad time", `{"amount": 4, "type": "credit", "date": "2024-02-01", "time": "25:00"}`},
		{"bad timestamp", `{"amount": 4, "type": "credit", "timestamp": "yesterday"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, "application/json", tt.body).TransactionInput()
			if !services.IsValidation(err) {
				t.Errorf("TransactionInput() = %v, want validation error", err)
			}
		})
	}
}

func TestTransactionInput_TimeAndTimestamp(t *testing.T) {
	in, err := parse(t, "", `{"amount": 1, "type": "credit", "date": "2024-03-01", "time": "09:15"}`).TransactionInput()
	if err != nil {
		t.Fatal(err)
	}
	if in.OccurredAt.String() != "09:15" {
		t.Errorf("time = %q", in.OccurredAt)
	}

	in, err = parse(t, "", `{"amount": 1, "type": "credit", "timestamp": "2024-03-01T22:00:00Z"}`).TransactionInput()
	if err != nil {
		t.Fatal(err)
	}
	if !in.Timestamp.Equal(time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)) || !in.OccurredOn.IsZero() {
		t.Errorf("input = %+v", in)
	}
}

func TestLoanInput(t *testing.T) {
	in, err := parse(t, "", `{"account_type": "loan-given", "name": " Ravi ", "initial_amount": "1000", "opened_on": "2024-01-05"}`).LoanInput()
	if err != nil {
		t.Fatal(err)
	}
	if in.Type != core.LoanGiven || in.Name != "Ravi" || !in.InitialAmount.Equal(decimal.NewFromInt(1000)) || in.OpenedOn.String() != "2024-01-05" {
		t.Errorf("input = %+v", in)
	}

	if _, err := parse(t, "", `{"account_type": "loan-given", "name": "x", "initial_amount": "-1"}`).LoanInput(); !services.IsValidation(err) {
		t.Errorf("negative initial amount: %v", err)
	}
	if _, err := parse(t, "", `{"account_type": "savings", "name": "x"}`).LoanInput(); !services.IsValidation(err) {
		t.Errorf("bad type: %v", err)
	}
}

func TestParsePeriod(t *testing.T) {
	now := time.Date(2024, 3, 31, 20, 0, 0, 0, time.UTC)
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		query   string
		loc     *time.Location
		want    ledger.Period
		wantErr bool
	}{
		{"defaults to current month", "", time.UTC, ledger.Period{Year: 2024, Month: 3}, false},
		{"current month follows zone", "", kolkata, ledger.Period{Year: 2024, Month: 4}, false},
		{"explicit", "month=12&year=2023", time.UTC, ledger.Period{Year: 2023, Month: 12}, false},
		{"all time", "month=all", time.UTC, ledger.Period{}, false},
		{"month out of range", "month=13", time.UTC, ledger.Period{}, true},
		{"month not a number", "month=abc", time.UTC, ledger.Period{}, true},
		{"year out of range", "year=0", time.UTC, ledger.Period{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := ParsePeriod(q, now, tt.loc)
			if tt.wantErr {
				if !services.IsValidation(err) {
					t.Errorf("ParsePeriod() = %v, want validation error", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParsePeriod() = %+v, %v, want %+v", got, err, tt.want)
			}
		})
	}
}

func TestParseListFilter(t *testing.T) {
	q, _ := url.ParseQuery("startDate=2024-01-01&endDate=2024-01-31&type=all&method=not%20specified")
	f, err := ParseListFilter(q)
	if err != nil {
		t.Fatal(err)
	}
	if f.From.String() != "2024-01-01" || f.To.String() != "2024-01-31" || f.Kind != "" || f.Method != core.NotSpecified {
		t.Errorf("filter = %+v", f)
	}

	q, _ = url.ParseQuery("type=refund")
	if _, err := ParseListFilter(q); !services.IsValidation(err) {
		t.Errorf("bad type: %v", err)
	}
}
