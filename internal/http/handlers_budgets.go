package http

import (
	"net/http"
	"strings"

	"finledger/internal/core"
)

type budgetRequest struct {
	CategoryName string     `json:"category_name"`
	Amount       core.Money `json:"amount"`
	Month        int        `json:"month"`
	Year         int        `json:"year"`
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	month, year, err := parseMonthYear(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	budgets, err := s.svc.Budgets.List(r.Context(), owner(r), month, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

// handleUpsertBudget creates or replaces the budget for one category and
// month. Posting the same body twice leaves a single budget.
func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	budget, err := s.svc.Budgets.Upsert(r.Context(), owner(r), req.CategoryName, req.Amount, req.Month, req.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

func (s *Server) handleBudgetReport(w http.ResponseWriter, r *http.Request) {
	month, year, err := parseMonthYear(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	lines, err := s.svc.Budgets.Report(r.Context(), owner(r), month, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

type actualsResponse struct {
	Category string     `json:"category"`
	Month    int        `json:"month"`
	Year     int        `json:"year"`
	Actual   core.Money `json:"actual"`
}

// handleBudgetActuals reports the spending of one category in a month,
// whether or not it has a budget.
func (s *Server) handleBudgetActuals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	if category == "" {
		writeError(w, r, core.ErrEmptyCategory)
		return
	}
	month, year, err := parseMonthYear(q, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	actual, err := s.svc.Budgets.Actuals(r.Context(), owner(r), category, month, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actualsResponse{Category: category, Month: month, Year: year, Actual: actual})
}
