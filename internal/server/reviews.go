package server

import (
	"net/http"

	"github.com/avolkov/shopcore/internal/model"
)

func (s *Server) CreateReviewHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req model.ReviewRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		http.Error(w, "invalid review payload", http.StatusBadRequest)
		return
	}

	review, err := s.reviews.Create(r.Context(), user.ID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, review)
}

func (s *Server) UpdateReviewHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid review id", http.StatusBadRequest)
		return
	}

	var req model.ReviewRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		http.Error(w, "invalid review payload", http.StatusBadRequest)
		return
	}

	review, err := s.reviews.Update(r.Context(), id, user.ID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, review)
}

func (s *Server) DeleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid review id", http.StatusBadRequest)
		return
	}

	if err := s.reviews.Delete(r.Context(), id, user.ID); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) AdminDeleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid review id", http.StatusBadRequest)
		return
	}

	if err := s.reviews.DeleteByAdmin(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ListProductReviewsHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}

	reviews, err := s.reviews.ListByProduct(r.Context(), productID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	rating, count, err := s.reviews.ProductRating(r.Context(), productID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reviews": reviews,
		"rating":  rating,
		"count":   count,
	})
}

func (s *Server) ListMyReviewsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	reviews, err := s.reviews.ListByUser(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reviews)
}
