package server

import (
	"net/http"
	"strconv"

	"github.com/avolkov/shopcore/internal/model"
)

func (s *Server) CreateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var req model.CategoryRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		http.Error(w, "category name required", http.StatusBadRequest)
		return
	}

	category, err := s.catalog.CreateCategory(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, category)
}

func (s *Server) UpdateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid category id", http.StatusBadRequest)
		return
	}

	var req model.CategoryRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		http.Error(w, "category name required", http.StatusBadRequest)
		return
	}

	category, err := s.catalog.UpdateCategory(r.Context(), id, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, category)
}

func (s *Server) DeleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid category id", http.StatusBadRequest)
		return
	}

	if err := s.catalog.DeleteCategory(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) GetCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid category id", http.StatusBadRequest)
		return
	}

	category, err := s.catalog.GetCategory(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, category)
}

func (s *Server) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := s.catalog.ListCategories(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req model.ProductRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		http.Error(w, "invalid product payload", http.StatusBadRequest)
		return
	}

	product, err := s.catalog.CreateProduct(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

func (s *Server) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}

	var req model.ProductRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		http.Error(w, "invalid product payload", http.StatusBadRequest)
		return
	}

	product, err := s.catalog.UpdateProduct(r.Context(), id, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func (s *Server) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}

	if err := s.catalog.DeleteProduct(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}

	product, err := s.catalog.GetProduct(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func (s *Server) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := productFilterFromQuery(r)
	if err != nil {
		http.Error(w, "invalid filter", http.StatusBadRequest)
		return
	}

	products, err := s.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

func productFilterFromQuery(r *http.Request) (model.ProductFilter, error) {
	q := r.URL.Query()

	filter := model.ProductFilter{
		Keyword:   q.Get("keyword"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	var err error
	if v := q.Get("category_id"); v != "" {
		if filter.CategoryID, err = strconv.Atoi(v); err != nil {
			return filter, err
		}
	}
	if v := q.Get("min_price"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, err
		}
		filter.MinPrice = &p
	}
	if v := q.Get("max_price"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, err
		}
		filter.MaxPrice = &p
	}
	if v := q.Get("page"); v != "" {
		if filter.Page, err = strconv.Atoi(v); err != nil {
			return filter, err
		}
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			return filter, err
		}
	}

	return filter, nil
}
