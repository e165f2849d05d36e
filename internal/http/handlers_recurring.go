package http

import (
	"net/http"

	"finledger/internal/core"
	"finledger/internal/services"
)

type recurringRequest struct {
	Type                 core.TxType    `json:"type"`
	Amount               core.Money     `json:"amount"`
	Category             string         `json:"category"`
	Description          string         `json:"description"`
	AccountID            int64          `json:"account_id"`
	DestinationAccountID *int64         `json:"destination_account_id"`
	Frequency            core.Frequency `json:"frequency"`
	Interval             int            `json:"interval"`
	StartDate            Date           `json:"start_date"`
}

type ruleFailure struct {
	RuleID int64  `json:"rule_id"`
	Error  string `json:"error"`
}

type passResponse struct {
	RulesChecked int           `json:"rules_checked"`
	Materialized int           `json:"materialized"`
	Failures     []ruleFailure `json:"failures"`
}

func newPassResponse(res services.PassResult) passResponse {
	out := passResponse{
		RulesChecked: res.RulesChecked,
		Materialized: res.Materialized,
		Failures:     make([]ruleFailure, 0, len(res.Failures)),
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, ruleFailure{RuleID: f.RuleID, Error: f.Err.Error()})
	}
	return out
}

// handleListRecurring first brings the owner's rules up to date so the
// listed next_due_date values account for everything already due.
func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	ownerID := owner(r)
	if _, err := s.svc.Recurring.CatchUp(r.Context(), ownerID, s.now().UTC()); err != nil {
		writeError(w, r, err)
		return
	}
	rules, err := s.svc.Recurring.List(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := s.svc.Recurring.Create(r.Context(), owner(r), core.RecurringRule{
		Type:                 req.Type,
		Amount:               req.Amount,
		Category:             req.Category,
		Description:          req.Description,
		AccountID:            req.AccountID,
		DestinationAccountID: req.DestinationAccountID,
		Frequency:            req.Frequency,
		Interval:             req.Interval,
		StartDate:            req.StartDate.Time,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// handleRunRecurring materializes the owner's due occurrences now and
// reports what happened, including rules that could not be caught up.
func (s *Server) handleRunRecurring(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Recurring.CatchUp(r.Context(), owner(r), s.now().UTC())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPassResponse(res))
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Recurring.Delete(r.Context(), owner(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
