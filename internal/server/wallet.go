package server

import (
	"net/http"

	"github.com/avolkov/shopcore/internal/model"
)

func (s *Server) CreateWalletHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req model.CreateWalletRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		http.Error(w, "invalid wallet payload", http.StatusBadRequest)
		return
	}

	wallet, err := s.wallets.CreateWallet(r.Context(), user.ID, req.InitialBalance)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, wallet)
}

func (s *Server) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	wallet, err := s.wallets.GetWallet(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) DepositHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req model.AmountRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	wallet, err := s.wallets.Deposit(r.Context(), user.ID, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req model.AmountRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	wallet, err := s.wallets.Withdraw(r.Context(), user.ID, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) GetTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	transactions, err := s.wallets.TransactionHistory(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if len(transactions) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, transactions)
}
