package orders

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrUnauthenticated = errors.New("authentication required")

	// ErrStatusConflict means a conditional status update matched no row: the
	// order changed under us and the caller lost the race.
	ErrStatusConflict = errors.New("order status changed concurrently")

	ErrAlreadyRestored = errors.New("stock already restored for order")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	nexts := NextStates(e.From)
	if len(nexts) == 0 {
		return fmt.Sprintf("invalid transition %s -> %s: %s is terminal", e.From, e.To, e.From)
	}
	valid := ""
	for i, s := range nexts {
		if i > 0 {
			valid += ", "
		}
		valid += string(s)
	}
	return fmt.Sprintf("invalid transition %s -> %s: valid from %s are %s", e.From, e.To, e.From, valid)
}

// NotEligibleError: the entity exists but is in the wrong state for the
// requested operation.
type NotEligibleError struct {
	OrderID string
	Status  Status
	Op      string
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("order %s not eligible for %s (status %s)", e.OrderID, e.Op, e.Status)
}

// QuantityBoundsError: the requested quantity falls outside the product's
// pre-order window.
type QuantityBoundsError struct {
	ProductID string
	Quantity  int
	Min       int
	Max       int
}

func (e *QuantityBoundsError) Error() string {
	if e.Max > 0 {
		return fmt.Sprintf("product %s: quantity %d outside allowed range %d-%d",
			e.ProductID, e.Quantity, e.Min, e.Max)
	}
	return fmt.Sprintf("product %s: quantity %d below minimum %d",
		e.ProductID, e.Quantity, e.Min)
}

type InventoryConflict struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type InventoryConflictError struct {
	Conflicts []InventoryConflict
}

func (e *InventoryConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for %d item(s)", len(e.Conflicts))
}

// ItemRestoreError names the line item that broke an all-or-nothing restoration.
type ItemRestoreError struct {
	ProductID string
	Err       error
}

func (e *ItemRestoreError) Error() string {
	return fmt.Sprintf("restore product %s: %v", e.ProductID, e.Err)
}

func (e *ItemRestoreError) Unwrap() error { return e.Err }
