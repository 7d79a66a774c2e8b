package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hisaab/internal/core"
	"hisaab/internal/ledger"
	"hisaab/internal/services"
	"hisaab/internal/storage"
)

const maxBodyBytes = 64 << 10

var (
	errBodyTooLarge = errors.New("request body too large")
	errInvalidMonth = errors.New("month must be between 1 and 12")
	errInvalidYear  = errors.New("year must be between 1 and 9999")
)

// badRequest marks err as caused by client input.
func badRequest(err error) error {
	if err == nil {
		return nil
	}
	return &services.ValidationError{Err: err}
}

// RequestBody holds a decoded JSON object or form body. Values are read as
// trimmed strings with control characters removed.
type RequestBody struct {
	json map[string]any
	form url.Values
}

// ParseBody reads at most 64 KiB. JSON is used when the content type says so
// or the body starts with '{'; anything else is parsed as a form.
func ParseBody(w http.ResponseWriter, r *http.Request) (*RequestBody, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, badRequest(fmt.Errorf("read body: %w", err))
	}

	body := &RequestBody{}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		body.form = url.Values{}
		return body, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" || trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&body.json); err != nil || body.json == nil {
			return nil, badRequest(errors.New("malformed JSON body"))
		}
		return body, nil
	}

	if body.form, err = url.ParseQuery(trimmed); err != nil {
		return nil, badRequest(errors.New("malformed form body"))
	}
	return body, nil
}

// Has reports whether key was present at all.
func (b *RequestBody) Has(key string) bool {
	if b.json != nil {
		_, ok := b.json[key]
		return ok
	}
	_, ok := b.form[key]
	return ok
}

// Get returns the first present key. JSON numbers keep their literal text.
func (b *RequestBody) Get(keys ...string) string {
	for _, key := range keys {
		if b.json != nil {
			if v, ok := b.json[key]; ok && v != nil {
				return sanitizeInput(stringValue(v))
			}
			continue
		}
		if b.form.Has(key) {
			return sanitizeInput(b.form.Get(key))
		}
	}
	return ""
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput trims and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// TransactionInput maps a body onto a service input. Field names follow the
// JSON API (snake_case); camelCase spellings from older clients are accepted.
func (b *RequestBody) TransactionInput() (services.TransactionInput, error) {
	var in services.TransactionInput

	amount := b.Get("amount")
	if amount == "" {
		return in, badRequest(errors.New("amount, type and date are required"))
	}
	var err error
	if in.Amount, err = core.ParseAmount(amount); err != nil {
		return in, badRequest(err)
	}
	if in.Kind, err = core.ParseKind(b.Get("type", "kind")); err != nil {
		return in, badRequest(err)
	}

	if ts := b.Get("timestamp"); ts != "" {
		if in.Timestamp, err = time.Parse(time.RFC3339, ts); err != nil {
			return in, badRequest(fmt.Errorf("invalid timestamp %q", ts))
		}
	} else {
		if in.OccurredOn, err = core.ParseDate(b.Get("date")); err != nil {
			return in, badRequest(err)
		}
		if in.OccurredAt, err = core.ParseTimeOfDay(b.Get("time")); err != nil {
			return in, badRequest(err)
		}
	}

	if in.PaymentMethod, err = core.ParseMethod(b.Get("payment_method", "paymentMethod")); err != nil {
		return in, badRequest(err)
	}
	in.Description = b.Get("description")
	return in, nil
}

func (b *RequestBody) LoanInput() (services.LoanInput, error) {
	var in services.LoanInput
	var err error
	if in.Type, err = core.ParseAccountType(b.Get("account_type", "accountType", "type")); err != nil {
		return in, badRequest(err)
	}
	in.Name = b.Get("name")
	in.Description = b.Get("description")

	in.InitialAmount = decimal.Zero
	if v := b.Get("initial_amount", "initialAmount"); v != "" {
		if in.InitialAmount, err = parseNonNegative(v); err != nil {
			return in, badRequest(err)
		}
	}
	if v := b.Get("opened_on", "openedOn"); v != "" {
		if in.OpenedOn, err = core.ParseDate(v); err != nil {
			return in, badRequest(err)
		}
	}
	return in, nil
}

// Amount reads a strictly positive "amount" field.
func (b *RequestBody) Amount() (decimal.Decimal, error) {
	d, err := core.ParseAmount(b.Get("amount"))
	return d, badRequest(err)
}

func parseNonNegative(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil || d.IsNegative() {
		return decimal.Zero, core.ErrNegativeAmount
	}
	return core.RoundAmount(d), nil
}

// ParseListFilter reads startDate, endDate, type and method.
func ParseListFilter(q url.Values) (storage.ListFilter, error) {
	var f storage.ListFilter
	var err error
	if v := strings.TrimSpace(q.Get("startDate")); v != "" {
		if f.From, err = core.ParseDate(v); err != nil {
			return f, badRequest(err)
		}
	}
	if v := strings.TrimSpace(q.Get("endDate")); v != "" {
		if f.To, err = core.ParseDate(v); err != nil {
			return f, badRequest(err)
		}
	}
	if f.Kind, err = parseKindFilter(q); err != nil {
		return f, err
	}
	f.Method, err = parseMethodFilter(q)
	return f, err
}

func ParseLedgerFilter(q url.Values) (ledger.LedgerFilter, error) {
	var f ledger.LedgerFilter
	var err error
	if f.Kind, err = parseKindFilter(q); err != nil {
		return f, err
	}
	f.Method, err = parseMethodFilter(q)
	return f, err
}

// parseKindFilter treats "" and "all" as no filter.
func parseKindFilter(q url.Values) (core.Kind, error) {
	v := strings.TrimSpace(q.Get("type"))
	if v == "" || strings.EqualFold(v, "all") {
		return "", nil
	}
	k, err := core.ParseKind(v)
	return k, badRequest(err)
}

// parseMethodFilter returns the grouping label, so "Not Specified" selects
// transactions without a method.
func parseMethodFilter(q url.Values) (string, error) {
	v := strings.TrimSpace(q.Get("method"))
	if v == "" || strings.EqualFold(v, "all") {
		return "", nil
	}
	m, err := core.ParseMethod(v)
	if err != nil {
		return "", badRequest(err)
	}
	return m.Label(), nil
}

// ParsePeriod reads month and year. Missing values default to the current
// month in loc; "all" for month selects all time.
func ParsePeriod(q url.Values, now time.Time, loc *time.Location) (ledger.Period, error) {
	p := ledger.CurrentPeriod(now, loc)
	month := strings.TrimSpace(q.Get("month"))
	if strings.EqualFold(month, "all") {
		return ledger.Period{}, nil
	}
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return p, badRequest(errInvalidYear)
		}
		p.Year = y
	}
	if month != "" {
		m, err := strconv.Atoi(month)
		if err != nil || m < 1 || m > 12 {
			return p, badRequest(errInvalidMonth)
		}
		p.Month = m
	}
	return p, nil
}
