package http

import (
	"errors"
	"net/http"

	"expensetracker/internal/core"
	"expensetracker/internal/filter"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
)

type expenseList struct {
	Expenses []core.Expense `json:"expenses"`
	Count    int            `json:"count"`
	Total    core.Money     `json:"total"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	c, err := filter.ParseCriteria(r.URL.Query())
	if err != nil {
		badRequest(w, r, err)
		return
	}
	expenses := s.expenses.List(r.Context(), c)
	var total core.Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	writeJSON(w, r, http.StatusOK, expenseList{Expenses: expenses, Count: len(expenses), Total: total})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.expenses.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		notFound(w, r, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var d core.Draft
	if err := decodeJSON(w, r, &d); err != nil {
		s.rejectBody(w, r, err)
		return
	}
	e, err := s.expenses.Create(r.Context(), d)
	if err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	NewJSONResponse(e).
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+e.ID).
		Write(w, r)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var p core.Patch
	if err := decodeJSON(w, r, &p); err != nil {
		s.rejectBody(w, r, err)
		return
	}
	e, err := s.expenses.Update(r.Context(), r.PathValue("id"), p)
	if err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.expenses.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearExpenses(w http.ResponseWriter, r *http.Request) {
	if err := s.expenses.Clear(r.Context()); err != nil {
		serviceUnavailable(w, r, "expenses could not be cleared", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSeedSampleData(w http.ResponseWriter, r *http.Request) {
	n, err := s.expenses.SeedSampleData(r.Context())
	if err != nil {
		serviceUnavailable(w, r, "sample data could not be added", err)
		return
	}
	status := http.StatusCreated
	if n == 0 {
		status = http.StatusOK
	}
	writeJSON(w, r, status, map[string]int{"added": n})
}

// rejectBody answers 400 for malformed JSON and 422 when a field value, such
// as a date or amount, could not be decoded.
func (s *Server) rejectBody(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errEmptyBody) || isClientError(err) {
		badRequest(w, r, err)
		return
	}
	field := ""
	switch {
	case errors.Is(err, core.ErrInvalidDate):
		field = "date"
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrAmountTooLarge):
		field = "amount"
	default:
		badRequest(w, r, err)
		return
	}
	unprocessable(w, r, field, err)
}

func (s *Server) writeMutationError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		unprocessable(w, r, ve.Field, ve.Err)
	case errors.Is(err, services.ErrNotFound):
		notFound(w, r, err.Error())
	default:
		log.FromContext(r.Context()).WithComponent(log.ComponentExpense).ErrorContext(r.Context(),
			"Expense mutation failed", log.FieldError, err, log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusServiceUnavailable, services.ErrWriteFailed.Error()).Write(w, r)
	}
}
