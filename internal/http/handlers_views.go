package http

import (
	"net/http"

	"hisaab/internal/core"
	"hisaab/internal/ledger"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := ParsePeriod(q, s.now(), s.loc)
	if err != nil {
		fail(w, r, err)
		return
	}
	method, err := parseMethodFilter(q)
	if err != nil {
		fail(w, r, err)
		return
	}
	tq := ledger.TotalsQuery{Period: period, Method: method}
	totals, err := s.views.Totals(r.Context(), owner(r), tq)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.money.totals(tq, totals))
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	f, err := ParseLedgerFilter(r.URL.Query())
	if err != nil {
		fail(w, r, err)
		return
	}
	entries, err := s.views.Ledger(r.Context(), owner(r), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.money.ledger(entries)})
}

// handleMethods returns usage stats plus the default methods so a new user
// has something to pick from.
func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	stats, err := s.views.MethodStats(r.Context(), owner(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	defaults := make([]string, 0, len(core.DefaultMethods()))
	for _, m := range core.DefaultMethods() {
		defaults = append(defaults, string(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"methods":  s.money.methodStats(stats),
		"defaults": defaults,
	})
}

func (s *Server) handleMethodBreakdown(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriod(r.URL.Query(), s.now(), s.loc)
	if err != nil {
		fail(w, r, err)
		return
	}
	rows, err := s.views.MethodBreakdown(r.Context(), owner(r), period)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":      period.Year,
		"month":     period.Month,
		"breakdown": s.money.breakdown(rows),
	})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	acc, err := s.views.Accounts(r.Context(), owner(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.money.accounts(acc))
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.views.Profile(r.Context(), owner(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.money.profile(p))
}
