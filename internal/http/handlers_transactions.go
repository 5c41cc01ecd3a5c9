package http

import (
	"net/http"

	"github.com/arsenis-cmd/BudgetBot/internal/log"
	"github.com/arsenis-cmd/BudgetBot/internal/services"
	"github.com/arsenis-cmd/BudgetBot/internal/storage"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput(userIDFrom(r), s.now(), s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.Transactions.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := createTransactionResponse{
		Transaction:          newTransactionDTO(res.Transaction),
		CategorizationQueued: res.CategorizationQueued,
	}
	if res.Alert != nil {
		a := newAlertDTO(*res.Alert)
		out.Alert = &a
	}
	w.Header().Set("Location", "/api/v1/transactions/"+res.Transaction.ID)
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimit(q, 100, 1000)
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, to, err := parseRange(q, s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	kind, err := parseKind(q.Get("kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	txs, err := s.deps.Transactions.List(r.Context(), storage.TransactionFilter{
		UserID:     userIDFrom(r),
		Kind:       kind,
		CategoryID: sanitizeInput(q.Get("category_id")),
		From:       from,
		To:         to,
		Limit:      limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]transactionDTO, len(txs))
	for i, tx := range txs {
		out[i] = newTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, listResponse[transactionDTO]{Items: out})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.deps.Transactions.Get(r.Context(), userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionDTO(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Transactions.Delete(r.Context(), userIDFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted", log.FieldTxID, id)
	w.WriteHeader(http.StatusNoContent)
}

var _ TransactionService = (*services.TransactionService)(nil)
