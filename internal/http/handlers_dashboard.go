package http

import (
	"errors"
	"net/http"

	"expensetracker/internal/core"
	"expensetracker/internal/services"
)

const defaultTrendMonths = 6

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string][]core.Category{"categories": core.Categories()})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.expenses.Dashboard(r.Context()))
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	months, err := intParam(r.URL.Query(), "months", defaultTrendMonths)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	trend, err := s.expenses.Trend(r.Context(), months)
	if err != nil {
		if errors.Is(err, services.ErrInvalidMonth) {
			badRequest(w, r, err)
			return
		}
		internalError(w, r, "trend could not be computed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"months": trend})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.expenses.Insights(r.Context()))
}
