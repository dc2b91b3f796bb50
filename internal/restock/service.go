package restock

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/andrewkhoh/farmstand-orders/internal/orders"
)

type FailReason string

const (
	ReasonNotFound        FailReason = "order_not_found"
	ReasonNotEligible     FailReason = "not_eligible"
	ReasonAlreadyRestored FailReason = "already_restored"
	ReasonItemFailed      FailReason = "item_failed"
	ReasonInvalidInput    FailReason = "invalid_input"
)

type OrderGetter interface {
	Get(ctx context.Context, id string) (*orders.Order, error)
}

type Store interface {
	CompletedRestorationExists(ctx context.Context, orderID string) (bool, error)
	RestoreItems(ctx context.Context, orderID string, items []orders.OrderItem, typ RestorationType) ([]RestoredItem, error)
	RestoreProduct(ctx context.Context, productID string, qty int, orderID string, typ RestorationType, operatorID, reason string) (RestoredItem, error)
	ListByOrder(ctx context.Context, orderID string) ([]LogEntry, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, eventType, key string, payload any) error
}

type RestoreResult struct {
	Success       bool           `json:"success"`
	OrderID       string         `json:"order_id,omitempty"`
	Restored      []RestoredItem `json:"restored,omitempty"`
	Error         string         `json:"error,omitempty"`
	Reason        FailReason     `json:"reason,omitempty"`
	FailedProduct string         `json:"failed_product,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// Service reverses inventory commitments exactly once per order.
type Service struct {
	Orders    OrderGetter
	Store     Store
	Broadcast Broadcaster
	Log       *zap.Logger
}

// RestoreOrderStock puts back every line item of a cancelled order. The
// completed-log check runs before anything mutates, so a second call for the
// same order is rejected instead of double-incrementing stock. Infrastructure
// errors propagate; domain rejections come back as a failure result.
func (s *Service) RestoreOrderStock(ctx context.Context, orderID string) (*RestoreResult, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return fail(orderID, ReasonNotFound, orders.ErrOrderNotFound.Error()), nil
	}
	if err != nil {
		return nil, err
	}

	if o.Status != orders.StatusCancelled {
		e := &orders.NotEligibleError{OrderID: orderID, Status: o.Status, Op: "stock restoration"}
		return fail(orderID, ReasonNotEligible, e.Error()), nil
	}

	done, err := s.Store.CompletedRestorationExists(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if done {
		return fail(orderID, ReasonAlreadyRestored, orders.ErrAlreadyRestored.Error()), nil
	}

	restored, err := s.Store.RestoreItems(ctx, orderID, o.Items, TypeOrderCancellation)
	if err != nil {
		var ire *orders.ItemRestoreError
		if errors.As(err, &ire) {
			r := fail(orderID, ReasonItemFailed, err.Error())
			r.FailedProduct = ire.ProductID
			return r, nil
		}
		return nil, err
	}

	res := &RestoreResult{Success: true, OrderID: orderID, Restored: restored}
	s.broadcastRestored(ctx, o.UserID, orderID, restored, res)
	return res, nil
}

// RestoreProductStock is the single-item primitive.
func (s *Service) RestoreProductStock(ctx context.Context, productID string, qty int, orderID string) (*RestoreResult, error) {
	if qty <= 0 {
		return fail(orderID, ReasonInvalidInput, orders.ErrInvalidQuantity.Error()), nil
	}
	item, err := s.Store.RestoreProduct(ctx, productID, qty, orderID, TypeOrderCancellation, "", "")
	if errors.Is(err, orders.ErrProductNotFound) {
		return fail(orderID, ReasonNotFound, err.Error()), nil
	}
	if err != nil {
		return nil, err
	}
	res := &RestoreResult{Success: true, OrderID: orderID, Restored: []RestoredItem{item}}
	s.broadcastRestored(ctx, "", orderID, res.Restored, res)
	return res, nil
}

// EmergencyRestore is the admin override: no order linkage, mandatory reason,
// always logged with type emergency.
func (s *Service) EmergencyRestore(ctx context.Context, productID string, qty int, operatorID, reason string) (*RestoreResult, error) {
	if qty <= 0 {
		return fail("", ReasonInvalidInput, orders.ErrInvalidQuantity.Error()), nil
	}
	if reason == "" {
		return fail("", ReasonInvalidInput, "emergency restoration requires a reason"), nil
	}
	item, err := s.Store.RestoreProduct(ctx, productID, qty, "", TypeEmergency, operatorID, reason)
	if errors.Is(err, orders.ErrProductNotFound) {
		return fail("", ReasonNotFound, err.Error()), nil
	}
	if err != nil {
		return nil, err
	}
	s.Log.Info("emergency stock restoration",
		zap.String("product_id", productID),
		zap.Int("quantity", qty),
		zap.String("operator_id", operatorID),
		zap.String("reason", reason))
	res := &RestoreResult{Success: true, Restored: []RestoredItem{item}}
	s.broadcastRestored(ctx, "", "", res.Restored, res)
	return res, nil
}

// History returns the restoration audit trail for one order.
func (s *Service) History(ctx context.Context, orderID string) ([]LogEntry, error) {
	return s.Store.ListByOrder(ctx, orderID)
}

type BatchResult struct {
	OrderID string         `json:"order_id"`
	Result  *RestoreResult `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// RestoreBatch processes each order independently; one failure never blocks
// the rest.
func (s *Service) RestoreBatch(ctx context.Context, orderIDs []string) []BatchResult {
	out := make([]BatchResult, 0, len(orderIDs))
	for _, id := range orderIDs {
		res, err := s.RestoreOrderStock(ctx, id)
		if err != nil {
			s.Log.Warn("batch restoration failed", zap.String("order_id", id), zap.Error(err))
			out = append(out, BatchResult{OrderID: id, Error: err.Error()})
			continue
		}
		out = append(out, BatchResult{OrderID: id, Result: res})
	}
	return out
}

func (s *Service) broadcastRestored(ctx context.Context, userID, orderID string, items []RestoredItem, res *RestoreResult) {
	if s.Broadcast == nil {
		return
	}
	for _, it := range items {
		if err := s.Broadcast.Broadcast(ctx, orders.EventStockRestored, it.ProductID, orders.StockRestoredEvent{
			OrderID:   orderID,
			UserID:    userID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			NewStock:  it.NewStock,
		}); err != nil {
			s.Log.Warn("stock-updated broadcast failed",
				zap.String("product_id", it.ProductID), zap.Error(err))
			res.Warnings = append(res.Warnings, "broadcast failed: "+err.Error())
		}
	}
}

func fail(orderID string, reason FailReason, msg string) *RestoreResult {
	return &RestoreResult{OrderID: orderID, Reason: reason, Error: msg}
}
