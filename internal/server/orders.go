package server

import (
	"net/http"

	"github.com/avolkov/shopcore/internal/model"
)

func (s *Server) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req model.OrderRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		http.Error(w, "invalid order payload", http.StatusBadRequest)
		return
	}

	order, err := s.orders.Create(r.Context(), user.ID, req.Items)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// CheckoutHandler создаёт заказ и сразу списывает оплату. Если оплата не
// прошла, заказ остаётся в PENDING и возвращается вместе с причиной отказа.
func (s *Server) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req model.OrderRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		http.Error(w, "invalid order payload", http.StatusBadRequest)
		return
	}

	order, err := s.orders.CreateAndPay(r.Context(), user.ID, req.Items)
	if err != nil {
		if order.ID != 0 {
			writeJSON(w, http.StatusPaymentRequired, map[string]any{
				"order": order,
				"error": err.Error(),
			})
			return
		}
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) PayOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	orderID, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	order, err := s.orders.Pay(r.Context(), orderID, user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (s *Server) CancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	orderID, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	order, err := s.orders.Cancel(r.Context(), orderID, user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (s *Server) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	orderID, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	order, err := s.orders.GetByID(r.Context(), orderID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// чужие заказы видит только админ
	if order.UserID != user.ID && user.Role != model.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (s *Server) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	orders, err := s.orders.ListByUser(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) ListAllOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.ListAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := idParam(r)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	var req model.StatusRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		http.Error(w, "status required", http.StatusBadRequest)
		return
	}

	order, err := s.orders.UpdateStatus(r.Context(), orderID, model.OrderStatus(req.Status))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}
