// Package service holds the business operations behind the HTTP
// handlers. Every mutating operation runs as one storage transaction:
// it either commits all of its order, stock, wallet, and ledger
// writes, or none of them.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/avolkov/shopcore/internal/errs"
	"github.com/avolkov/shopcore/internal/model"
	"github.com/avolkov/shopcore/internal/order"
	"github.com/avolkov/shopcore/internal/storage"
)

type OrderStore interface {
	InTx(ctx context.Context, fn func(tx storage.Tx) error) error

	GetOrderByID(ctx context.Context, id int) (model.Order, error)
	ListOrdersByUser(ctx context.Context, userID int) ([]model.Order, error)
	ListAllOrders(ctx context.Context) ([]model.Order, error)
}

type OrderService struct {
	store OrderStore
}

func NewOrderService(store OrderStore) *OrderService {
	return &OrderService{store: store}
}

// Create validates the user, the products and their availability, and
// persists a PENDING order with the current prices snapshot into its
// items. Stock is not touched here: it is only taken at payment time.
func (s *OrderService) Create(ctx context.Context, userID int, items []model.OrderItemRequest) (model.Order, error) {
	if len(items) == 0 {
		return model.Order{}, errs.ErrEmptyOrder
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return model.Order{}, fmt.Errorf("product %d quantity: %w", it.ProductID, errs.ErrInvalidAmount)
		}
	}

	var created model.Order

	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetUserByID(ctx, userID); err != nil {
			return err
		}

		o := model.Order{
			UserID: userID,
			Status: model.Pending,
		}

		for _, it := range items {
			product, err := tx.GetProductByID(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if product.Stock < it.Quantity {
				return fmt.Errorf("product %q: %w", product.Name, errs.ErrInsufficientStock)
			}

			o.Items = append(o.Items, model.OrderItem{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Price:     product.Price,
			})
			o.TotalPrice += product.Price * float64(it.Quantity)
		}

		var err error
		created, err = tx.CreateOrder(ctx, o)
		return err
	})
	if err != nil {
		return model.Order{}, err
	}

	return created, nil
}

// Pay charges the order total to the owner's wallet and takes the
// stock for every item. A failed stock decrement aborts the whole
// transaction, so no wallet, stock, or order change survives.
func (s *OrderService) Pay(ctx context.Context, orderID, userID int) (model.Order, error) {
	var paid model.Order

	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return fmt.Errorf("order %d does not belong to user %d: %w", orderID, userID, errs.ErrInvalidState)
		}
		if err := order.CanPay(o.Status); err != nil {
			return err
		}

		wallet, err := tx.GetWalletForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if wallet.Balance < o.TotalPrice {
			return fmt.Errorf("required %.2f, available %.2f: %w",
				o.TotalPrice, wallet.Balance, errs.ErrInsufficientFunds)
		}

		wallet.Balance -= o.TotalPrice
		if err := tx.UpdateWalletBalance(ctx, userID, wallet.Balance); err != nil {
			return err
		}

		for _, it := range o.Items {
			if err := tx.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := tx.SetOrderStatus(ctx, o.ID, model.Paid, &now); err != nil {
			return err
		}

		_, err = tx.AppendTransaction(ctx, model.Transaction{
			UserID:       userID,
			Type:         model.Payment,
			Amount:       o.TotalPrice,
			OrderID:      &o.ID,
			Description:  fmt.Sprintf("Payment for order #%d", o.ID),
			BalanceAfter: wallet.Balance,
		})
		if err != nil {
			return err
		}

		o.Status = model.Paid
		o.PaidAt = &now
		paid = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	return paid, nil
}

// CreateAndPay is a two-phase composite: if the payment fails the
// created order survives as PENDING and is returned together with the
// payment error, so the caller can retry payment separately.
func (s *OrderService) CreateAndPay(ctx context.Context, userID int, items []model.OrderItemRequest) (model.Order, error) {
	created, err := s.Create(ctx, userID, items)
	if err != nil {
		return model.Order{}, err
	}

	paid, err := s.Pay(ctx, created.ID, userID)
	if err != nil {
		return created, err
	}

	return paid, nil
}

// Cancel applies the cancel transition. Orders that were already
// charged (PAID, PROCESSING) get their money and stock back and end
// up REFUNDED; everything else just becomes CANCELLED.
func (s *OrderService) Cancel(ctx context.Context, orderID, userID int) (model.Order, error) {
	var cancelled model.Order

	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return fmt.Errorf("order %d does not belong to user %d: %w", orderID, userID, errs.ErrInvalidState)
		}

		next, refund, err := order.Cancel(o.Status)
		if err != nil {
			return err
		}

		if refund {
			wallet, err := tx.GetWalletForUpdate(ctx, userID)
			if err != nil {
				return err
			}

			wallet.Balance += o.TotalPrice
			if err := tx.UpdateWalletBalance(ctx, userID, wallet.Balance); err != nil {
				return err
			}

			for _, it := range o.Items {
				if err := tx.RestoreStock(ctx, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}

			_, err = tx.AppendTransaction(ctx, model.Transaction{
				UserID:       userID,
				Type:         model.Refund,
				Amount:       o.TotalPrice,
				OrderID:      &o.ID,
				Description:  fmt.Sprintf("Refund for cancelled order #%d", o.ID),
				BalanceAfter: wallet.Balance,
			})
			if err != nil {
				return err
			}
		}

		if err := tx.SetOrderStatus(ctx, o.ID, next, nil); err != nil {
			return err
		}

		o.Status = next
		cancelled = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	return cancelled, nil
}

// UpdateStatus is the administrative transition. It is validated
// against the same lifecycle graph as the user operations and never
// moves money or stock.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int, status model.OrderStatus) (model.Order, error) {
	var updated model.Order

	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if err := order.AdminSet(o.Status, status); err != nil {
			return err
		}

		if err := tx.SetOrderStatus(ctx, o.ID, status, nil); err != nil {
			return err
		}

		o.Status = status
		updated = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	return updated, nil
}

func (s *OrderService) GetByID(ctx context.Context, orderID int) (model.Order, error) {
	return s.store.GetOrderByID(ctx, orderID)
}

func (s *OrderService) ListByUser(ctx context.Context, userID int) ([]model.Order, error) {
	return s.store.ListOrdersByUser(ctx, userID)
}

func (s *OrderService) ListAll(ctx context.Context) ([]model.Order, error) {
	return s.store.ListAllOrders(ctx)
}
