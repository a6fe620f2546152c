package service

import (
	"context"
	"fmt"

	"github.com/avolkov/shopcore/internal/errs"
	"github.com/avolkov/shopcore/internal/model"
	"github.com/avolkov/shopcore/internal/storage"
)

type WalletStore interface {
	InTx(ctx context.Context, fn func(tx storage.Tx) error) error

	GetUserByID(ctx context.Context, id int) (model.User, error)
	GetWalletByUser(ctx context.Context, userID int) (model.Wallet, error)
	ListTransactions(ctx context.Context, userID int) ([]model.Transaction, error)
}

type WalletService struct {
	store WalletStore
}

func NewWalletService(store WalletStore) *WalletService {
	return &WalletService{store: store}
}

// CreateWallet provisions the single wallet a user gets. A positive
// initial balance is recorded as the wallet's first DEPOSIT entry.
func (s *WalletService) CreateWallet(ctx context.Context, userID int, initialBalance float64) (model.Wallet, error) {
	if initialBalance < 0 {
		return model.Wallet{}, fmt.Errorf("initial balance: %w", errs.ErrInvalidAmount)
	}

	var created model.Wallet

	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetUserByID(ctx, userID); err != nil {
			return err
		}

		var err error
		created, err = tx.CreateWallet(ctx, model.Wallet{UserID: userID, Balance: initialBalance})
		if err != nil {
			return err
		}

		if initialBalance > 0 {
			_, err = tx.AppendTransaction(ctx, model.Transaction{
				UserID:       userID,
				Type:         model.Deposit,
				Amount:       initialBalance,
				Description:  "Initial wallet balance",
				BalanceAfter: initialBalance,
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return model.Wallet{}, err
	}

	return created, nil
}

func (s *WalletService) Deposit(ctx context.Context, userID int, amount float64) (model.Wallet, error) {
	if amount <= 0 {
		return model.Wallet{}, fmt.Errorf("deposit: %w", errs.ErrInvalidAmount)
	}

	var updated model.Wallet

	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		wallet, err := tx.GetWalletForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		wallet.Balance += amount
		if err := tx.UpdateWalletBalance(ctx, userID, wallet.Balance); err != nil {
			return err
		}

		_, err = tx.AppendTransaction(ctx, model.Transaction{
			UserID:       userID,
			Type:         model.Deposit,
			Amount:       amount,
			Description:  "Deposit to wallet",
			BalanceAfter: wallet.Balance,
		})
		if err != nil {
			return err
		}

		updated = wallet
		return nil
	})
	if err != nil {
		return model.Wallet{}, err
	}

	return updated, nil
}

func (s *WalletService) Withdraw(ctx context.Context, userID int, amount float64) (model.Wallet, error) {
	if amount <= 0 {
		return model.Wallet{}, fmt.Errorf("withdrawal: %w", errs.ErrInvalidAmount)
	}

	var updated model.Wallet

	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		wallet, err := tx.GetWalletForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		if wallet.Balance < amount {
			return fmt.Errorf("required %.2f, available %.2f: %w",
				amount, wallet.Balance, errs.ErrInsufficientFunds)
		}

		wallet.Balance -= amount
		if err := tx.UpdateWalletBalance(ctx, userID, wallet.Balance); err != nil {
			return err
		}

		_, err = tx.AppendTransaction(ctx, model.Transaction{
			UserID:       userID,
			Type:         model.Withdrawal,
			Amount:       amount,
			Description:  "Withdrawal from wallet",
			BalanceAfter: wallet.Balance,
		})
		if err != nil {
			return err
		}

		updated = wallet
		return nil
	})
	if err != nil {
		return model.Wallet{}, err
	}

	return updated, nil
}

func (s *WalletService) GetWallet(ctx context.Context, userID int) (model.Wallet, error) {
	return s.store.GetWalletByUser(ctx, userID)
}

func (s *WalletService) HasSufficientBalance(ctx context.Context, userID int, amount float64) (bool, error) {
	wallet, err := s.store.GetWalletByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return wallet.Balance >= amount, nil
}

// TransactionHistory returns the user's ledger entries, newest first.
func (s *WalletService) TransactionHistory(ctx context.Context, userID int) ([]model.Transaction, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, userID)
}
