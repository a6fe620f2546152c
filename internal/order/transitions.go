// Package order holds the status transition rules shared by the user
// and admin order operations.
package order

import (
	"fmt"

	"github.com/avolkov/shopcore/internal/errs"
	"github.com/avolkov/shopcore/internal/model"
)

var statuses = map[model.OrderStatus]struct{}{
	model.Pending:    {},
	model.Paid:       {},
	model.Processing: {},
	model.Shipped:    {},
	model.Delivered:  {},
	model.Cancelled:  {},
	model.Refunded:   {},
}

// adminTransitions is the full lifecycle graph. Terminal statuses
// (DELIVERED, CANCELLED, REFUNDED) admit nothing.
var adminTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.Pending:    {model.Paid, model.Cancelled},
	model.Paid:       {model.Processing, model.Refunded},
	model.Processing: {model.Shipped, model.Refunded},
	model.Shipped:    {model.Delivered, model.Cancelled},
}

func Valid(s model.OrderStatus) bool {
	_, ok := statuses[s]
	return ok
}

// CanPay allows payment from PENDING only.
func CanPay(current model.OrderStatus) error {
	if current != model.Pending {
		return fmt.Errorf("pay from %s: %w", current, errs.ErrInvalidState)
	}
	return nil
}

// Cancel returns the status a cancelled order moves to and whether the
// money and stock must be returned. A DELIVERED order cannot be
// cancelled. PAID and PROCESSING orders were already charged, so they
// go to REFUNDED. Everything else, including an already CANCELLED or
// REFUNDED order, lands in CANCELLED with no monetary effect (the
// original behaves this way, see DESIGN.md).
func Cancel(current model.OrderStatus) (next model.OrderStatus, refund bool, err error) {
	switch current {
	case model.Delivered:
		return current, false, fmt.Errorf("cannot cancel delivered order: %w", errs.ErrInvalidState)
	case model.Paid, model.Processing:
		return model.Refunded, true, nil
	default:
		return model.Cancelled, false, nil
	}
}

// AdminSet validates an administrative status change against the
// lifecycle graph instead of overwriting blindly.
func AdminSet(current, next model.OrderStatus) error {
	if !Valid(next) {
		return fmt.Errorf("unknown status %q: %w", next, errs.ErrInvalidState)
	}
	for _, allowed := range adminTransitions[current] {
		if next == allowed {
			return nil
		}
	}
	return fmt.Errorf("transition %s -> %s: %w", current, next, errs.ErrInvalidState)
}
