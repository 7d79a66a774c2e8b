package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"hisaab/internal/core"
	"hisaab/internal/ledger"
	"hisaab/internal/log"
	"hisaab/internal/services"
	"hisaab/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps service errors to a status and a client-safe message.
func errorStatus(err error) (int, string) {
	switch {
	case services.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, session.ErrInvalidToken), errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict, "user already exists"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// fail logs server-side failures and writes the mapped error.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		fields := log.NewFields().WithError(err)
		fields[log.FieldPath] = r.URL.Path
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	}
	writeError(w, status, msg)
}

// money renders amounts as fixed two-place strings plus a display form.
type money struct {
	currency string
}

func (m money) amount(d decimal.Decimal) string { return d.StringFixed(2) }

func (m money) formatted(d decimal.Decimal) string { return core.FormatAmount(d, m.currency) }

type userJSON struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toUser(u core.User) userJSON {
	return userJSON{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

type authJSON struct {
	User      userJSON  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type transactionJSON struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Amount        string         `json:"amount"`
	Formatted     string         `json:"formatted"`
	Type          core.Kind      `json:"type"`
	Date          core.Date      `json:"date"`
	Time          core.TimeOfDay `json:"time"`
	Description   string         `json:"description,omitempty"`
	PaymentMethod string         `json:"payment_method"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (m money) transaction(tx core.Transaction) transactionJSON {
	return transactionJSON{
		ID:            tx.ID,
		UserID:        tx.Owner,
		Amount:        m.amount(tx.Amount),
		Formatted:     m.formatted(tx.Amount),
		Type:          tx.Kind,
		Date:          tx.OccurredOn,
		Time:          tx.OccurredAt,
		Description:   tx.Description,
		PaymentMethod: tx.PaymentMethod.Label(),
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
	}
}

func (m money) transactions(txs []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(txs))
	for _, tx := range txs {
		out = append(out, m.transaction(tx))
	}
	return out
}

type entryJSON struct {
	transactionJSON
	RunningBalance string `json:"running_balance"`
}

func (m money) ledger(entries []ledger.Entry) []entryJSON {
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryJSON{transactionJSON: m.transaction(e.Transaction), RunningBalance: m.amount(e.RunningBalance)})
	}
	return out
}

type loanJSON struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	AccountType    core.AccountType `json:"account_type"`
	Name           string           `json:"name"`
	InitialAmount  string           `json:"initial_amount"`
	AmountReceived string           `json:"amount_received"`
	AmountPaid     string           `json:"amount_paid"`
	Balance        string           `json:"balance"`
	Formatted      string           `json:"formatted"`
	Description    string           `json:"description,omitempty"`
	OpenedOn       core.Date        `json:"opened_on"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (m money) loan(a core.LoanAccount) loanJSON {
	balance := ledger.ComputeAccountBalance(a)
	return loanJSON{
		ID:             a.ID,
		UserID:         a.Owner,
		AccountType:    a.Type,
		Name:           a.Name,
		InitialAmount:  m.amount(a.InitialAmount),
		AmountReceived: m.amount(a.AmountReceived),
		AmountPaid:     m.amount(a.AmountPaid),
		Balance:        m.amount(balance),
		Formatted:      m.formatted(balance),
		Description:    a.Description,
		OpenedOn:       a.OpenedOn,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func (m money) loans(accounts []core.LoanAccount) []loanJSON {
	out := make([]loanJSON, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, m.loan(a))
	}
	return out
}

type totalsJSON struct {
	Year    int    `json:"year,omitempty"`
	Month   int    `json:"month,omitempty"`
	Method  string `json:"method,omitempty"`
	Credit  string `json:"credit"`
	Debit   string `json:"debit"`
	Balance string `json:"balance"`

	BalanceFormatted string `json:"balance_formatted"`
}

func (m money) totals(q ledger.TotalsQuery, t ledger.Totals) totalsJSON {
	return totalsJSON{
		Year:             q.Period.Year,
		Month:            q.Period.Month,
		Method:           q.Method,
		Credit:           m.amount(t.Credit),
		Debit:            m.amount(t.Debit),
		Balance:          m.amount(t.Balance),
		BalanceFormatted: m.formatted(t.Balance),
	}
}

type methodStatJSON struct {
	Name     string    `json:"name"`
	Count    int       `json:"count"`
	Total    string    `json:"total"`
	LastUsed core.Date `json:"last_used"`
	Color    string    `json:"color"`
}

func (m money) methodStats(stats []ledger.MethodStat) []methodStatJSON {
	out := make([]methodStatJSON, 0, len(stats))
	for _, s := range stats {
		out = append(out, methodStatJSON{Name: s.Name, Count: s.Count, Total: m.amount(s.Total), LastUsed: s.LastUsed, Color: s.Color})
	}
	return out
}

type breakdownJSON struct {
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Credit string `json:"credit"`
	Debit  string `json:"debit"`
	Color  string `json:"color"`
}

func (m money) breakdown(rows []ledger.MethodBreakdown) []breakdownJSON {
	out := make([]breakdownJSON, 0, len(rows))
	for _, b := range rows {
		out = append(out, breakdownJSON{Name: b.Name, Count: b.Count, Credit: m.amount(b.Credit), Debit: m.amount(b.Debit), Color: b.Color})
	}
	return out
}

type groupJSON struct {
	Type     core.AccountType `json:"account_type"`
	Accounts []loanJSON       `json:"accounts"`
	Total    string           `json:"total"`
}

type accountsJSON struct {
	Sections struct {
		Cash       string `json:"cash"`
		Account    string `json:"account"`
		CreditCard string `json:"credit_card"`
	} `json:"sections"`
	Groups []groupJSON `json:"groups"`
}

func (m money) accounts(a services.Accounts) accountsJSON {
	var out accountsJSON
	out.Sections.Cash = m.amount(a.Sections.Cash)
	out.Sections.Account = m.amount(a.Sections.Account)
	out.Sections.CreditCard = m.amount(a.Sections.CreditCard)
	out.Groups = make([]groupJSON, 0, len(a.Groups))
	for _, g := range a.Groups {
		accounts := make([]core.LoanAccount, 0, len(g.Accounts))
		for _, ab := range g.Accounts {
			accounts = append(accounts, ab.LoanAccount)
		}
		out.Groups = append(out.Groups, groupJSON{Type: g.Type, Accounts: m.loans(accounts), Total: m.amount(g.Total)})
	}
	return out
}

type profileJSON struct {
	User              userJSON `json:"user"`
	TotalTransactions int      `json:"total_transactions"`
	TotalCredit       string   `json:"total_credit"`
	TotalDebit        string   `json:"total_debit"`
	Balance           string   `json:"balance"`
	BalanceFormatted  string   `json:"balance_formatted"`
	LoanAccounts      int      `json:"loan_accounts"`
}

func (m money) profile(p services.Profile) profileJSON {
	return profileJSON{
		User:              userJSON{ID: p.UserID, Email: p.Email, CreatedAt: p.MemberSince},
		TotalTransactions: p.TotalTransactions,
		TotalCredit:       m.amount(p.TotalCredit),
		TotalDebit:        m.amount(p.TotalDebit),
		Balance:           m.amount(p.Balance),
		BalanceFormatted:  m.formatted(p.Balance),
		LoanAccounts:      p.LoanAccounts,
	}
}
