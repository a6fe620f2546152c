package server

import (
	"net/http"
	"strconv"
)

func (s *Server) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.analytics.DashboardStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) RevenueHandler(w http.ResponseWriter, r *http.Request) {
	sum, err := s.analytics.RevenueSummary(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) TopProductsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	top, err := s.analytics.TopProducts(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, top)
}
