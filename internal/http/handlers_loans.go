package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"hisaab/internal/core"
)

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.loans.List(r.Context(), owner(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": s.money.loans(accounts)})
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	body, err := ParseBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	in, err := body.LoanInput()
	if err != nil {
		fail(w, r, err)
		return
	}
	a, err := s.loans.Create(r.Context(), owner(r), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.money.loan(a))
}

func (s *Server) handleUpdateLoan(w http.ResponseWriter, r *http.Request) {
	body, err := ParseBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	in, err := body.LoanInput()
	if err != nil {
		fail(w, r, err)
		return
	}
	a, err := s.loans.Update(r.Context(), owner(r), chi.URLParam(r, "id"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.money.loan(a))
}

func (s *Server) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	if err := s.loans.Delete(r.Context(), owner(r), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

type loanMovement func(ctx context.Context, owner, id string, amount decimal.Decimal) (core.LoanAccount, error)

// handleLoanMovement serves /received and /paid, which differ only in the
// total they increase.
func (s *Server) handleLoanMovement(record loanMovement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := ParseBody(w, r)
		if err != nil {
			fail(w, r, err)
			return
		}
		amount, err := body.Amount()
		if err != nil {
			fail(w, r, err)
			return
		}
		a, err := record(r.Context(), owner(r), chi.URLParam(r, "id"), amount)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.money.loan(a))
	}
}
