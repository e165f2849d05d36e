package http

import (
	"net/http"

	"finledger/internal/core"
)

type createAccountRequest struct {
	Name           string           `json:"name"`
	Type           core.AccountType `json:"type"`
	InitialBalance *core.Money      `json:"initial_balance"`
	// CurrentBalance is accepted as the opening balance for older clients.
	CurrentBalance *core.Money `json:"current_balance"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.svc.Accounts.List(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var initial core.Money
	switch {
	case req.InitialBalance != nil:
		initial = *req.InitialBalance
	case req.CurrentBalance != nil:
		initial = *req.CurrentBalance
	}

	account, err := s.svc.Accounts.Create(r.Context(), owner(r), req.Name, req.Type, initial)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	account, err := s.svc.Accounts.Get(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type verifyResponse struct {
	AccountID       int64      `json:"account_id"`
	StoredBalance   core.Money `json:"stored_balance"`
	ReplayedBalance core.Money `json:"replayed_balance"`
	Drift           core.Money `json:"drift"`
	Consistent      bool       `json:"consistent"`
}

// handleVerifyAccount replays the account history and compares the result
// with the stored balance.
func (s *Server) handleVerifyAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	check, err := s.svc.Accounts.Verify(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		AccountID:       check.AccountID,
		StoredBalance:   check.Stored,
		ReplayedBalance: check.Replayed,
		Drift:           check.Drift,
		Consistent:      check.Consistent(),
	})
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.svc.Categories.List(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	category, err := s.svc.Categories.Create(r.Context(), owner(r), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}
