package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// listKey names the array in list responses; /api/expenses keeps the
// "expenses" key older clients read.
func listKey(r *http.Request) string {
	if strings.HasPrefix(r.URL.Path, "/api/expenses") {
		return "expenses"
	}
	return "transactions"
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseListFilter(r.URL.Query())
	if err != nil {
		fail(w, r, err)
		return
	}
	txs, err := s.transactions.List(r.Context(), owner(r), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{listKey(r): s.money.transactions(txs)})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := ParseBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	in, err := body.TransactionInput()
	if err != nil {
		fail(w, r, err)
		return
	}
	tx, err := s.transactions.Create(r.Context(), owner(r), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.money.transaction(tx))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.transactions.Get(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.money.transaction(tx))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := ParseBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	in, err := body.TransactionInput()
	if err != nil {
		fail(w, r, err)
		return
	}
	tx, err := s.transactions.Update(r.Context(), owner(r), chi.URLParam(r, "id"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.money.transaction(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.transactions.Delete(r.Context(), owner(r), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
