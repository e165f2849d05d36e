package http

import (
	"net/http"

	"finledger/internal/core"
	"finledger/internal/services"
)

type transactionRequest struct {
	Type                 core.TxType `json:"type"`
	Amount               core.Money  `json:"amount"`
	Category             string      `json:"category"`
	Description          string      `json:"description"`
	Date                 Date        `json:"date"`
	AccountID            int64       `json:"account_id"`
	DestinationAccountID *int64      `json:"destination_account_id"`
}

// updateTransactionRequest holds the editable fields; absent fields keep
// their stored value.
type updateTransactionRequest struct {
	Type        *core.TxType `json:"type"`
	Amount      *core.Money  `json:"amount"`
	Category    *string      `json:"category"`
	Description *string      `json:"description"`
	Date        *Date        `json:"date"`
	AccountID   *int64       `json:"account_id"`
}

func (req updateTransactionRequest) patch() services.TransactionPatch {
	p := services.TransactionPatch{
		Type:        req.Type,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
	}
	if req.Date != nil {
		p.Date = &req.Date.Time
	}
	return p
}

type transferRequest struct {
	Amount               core.Money `json:"amount"`
	Description          string     `json:"description"`
	Date                 Date       `json:"date"`
	AccountID            int64      `json:"account_id"`
	DestinationAccountID int64      `json:"destination_account_id"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, err := parsePaging(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter, err := parseFilter(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.svc.Ledger.List(r.Context(), owner(r), filter, page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Type = core.NormalizeTxType(req.Type)
	if req.Type == core.TxTransfer {
		// same body shape as POST /transfers
		if req.DestinationAccountID == nil {
			writeError(w, r, core.ErrMissingDestination)
			return
		}
		s.createTransfer(w, r, services.TransferRequest{
			Amount:               req.Amount,
			Description:          req.Description,
			Date:                 req.Date.Time,
			AccountID:            req.AccountID,
			DestinationAccountID: *req.DestinationAccountID,
		})
		return
	}

	created, err := s.svc.Ledger.Create(r.Context(), owner(r), core.Transaction{
		Type:        req.Type,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Date:        req.Date.Time,
		AccountID:   req.AccountID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.Ledger.Get(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.AccountID != nil {
		// the account is fixed at creation; echoing it back is allowed
		current, err := s.svc.Ledger.Get(r.Context(), owner(r), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if *req.AccountID != current.AccountID {
			writeError(w, r, core.Invalidf("account_id cannot be changed, delete and recreate the transaction instead"))
			return
		}
	}

	updated, err := s.svc.Ledger.Update(r.Context(), owner(r), id, req.patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Ledger.Delete(r.Context(), owner(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.createTransfer(w, r, services.TransferRequest{
		Amount:               req.Amount,
		Description:          req.Description,
		Date:                 req.Date.Time,
		AccountID:            req.AccountID,
		DestinationAccountID: req.DestinationAccountID,
	})
}

func (s *Server) createTransfer(w http.ResponseWriter, r *http.Request, req services.TransferRequest) {
	t, err := s.svc.Transfers.Create(r.Context(), owner(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.svc.Ledger.Summary(r.Context(), owner(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCategorySummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	totals, err := s.svc.Ledger.SummaryByCategory(r.Context(), owner(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}
