package http

import (
	"net/http"

	"ledgerly/internal/core"
	applog "ledgerly/internal/log"
)

type transactionRequest struct {
	Description   string `json:"description"`
	Amount        any    `json:"amount"`
	Date          string `json:"date"`
	PaymentMethod string `json:"paymentMethod"`
	Category      string `json:"category"`
	ImageRef      string `json:"imageRef"`
	Kind          string `json:"kind"`
}

// toTransaction parses the amount; everything else is validated by the
// ledger service.
func (req transactionRequest) toTransaction() (core.Transaction, error) {
	amount, err := core.ParseAmount(stringValue(req.Amount))
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		Description:   sanitizeInput(req.Description),
		Amount:        amount,
		Date:          sanitizeInput(req.Date),
		PaymentMethod: sanitizeInput(req.PaymentMethod),
		Category:      sanitizeInput(req.Category),
		ImageRef:      sanitizeInput(req.ImageRef),
		Kind:          core.Kind(sanitizeInput(req.Kind)),
	}, nil
}

func (s *Server) handleListTransactions(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rng, err := ParseRangeParams(r.URL.Query())
		if err != nil {
			writeError(w, r, err, applog.OpList)
			return
		}
		txs, err := s.svc.Ledger.List(r.Context(), userID(r), collection, rng)
		if err != nil {
			writeError(w, r, err, applog.OpList)
			return
		}
		if txs == nil {
			txs = []core.Transaction{}
		}
		NewResponse().JSON(txs).Write(w)
	}
}

func (s *Server) handleCreateTransaction(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, ok := s.readTransaction(w, r, applog.OpCreate)
		if !ok {
			return
		}
		created, err := s.svc.Ledger.Create(r.Context(), userID(r), collection, tx)
		if err != nil {
			writeError(w, r, err, applog.OpCreate)
			return
		}
		NewResponse().Status(http.StatusCreated).
			Header("Location", "/api/"+collection+"/"+created.ID).
			JSON(created).Write(w)
	}
}

func (s *Server) handleGetTransaction(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, err := s.svc.Ledger.Get(r.Context(), userID(r), collection, r.PathValue("id"))
		if err != nil {
			writeError(w, r, err, applog.OpRead)
			return
		}
		NewResponse().JSON(tx).Write(w)
	}
}

func (s *Server) handleReplaceTransaction(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, ok := s.readTransaction(w, r, applog.OpUpdate)
		if !ok {
			return
		}
		updated, err := s.svc.Ledger.Replace(r.Context(), userID(r), collection, r.PathValue("id"), tx)
		if err != nil {
			writeError(w, r, err, applog.OpUpdate)
			return
		}
		NewResponse().JSON(updated).Write(w)
	}
}

func (s *Server) handleDeleteTransaction(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.svc.Ledger.Delete(r.Context(), userID(r), collection, r.PathValue("id")); err != nil {
			writeError(w, r, err, applog.OpDelete)
			return
		}
		NoContent().Write(w)
	}
}

func (s *Server) readTransaction(w http.ResponseWriter, r *http.Request, op string) (core.Transaction, bool) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, op)
		return core.Transaction{}, false
	}
	tx, err := req.toTransaction()
	if err != nil {
		writeError(w, r, err, op)
		return core.Transaction{}, false
	}
	return tx, true
}
