package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andrewkhoh/farmstand-orders/internal/notify"
)

// Store is what the submission service needs from the order repository.
type Store interface {
	SubmitTx(ctx context.Context, o *Order) ([]InventoryConflict, error)
	Get(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	ListAll(ctx context.Context) ([]*Order, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, eventType, key string, payload any) error
}

type SubmitItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
}

type SubmitRequest struct {
	UserID          string          `json:"user_id"`
	Customer        Customer        `json:"customer"`
	Items           []SubmitItem    `json:"items"`
	Fulfillment     FulfillmentType `json:"fulfillment_type"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PickupDate      string          `json:"pickup_date,omitempty"`
	PickupTime      string          `json:"pickup_time,omitempty"`
	DeliveryAddress string          `json:"delivery_address,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// SubmitResult is the discriminated submission outcome. Warnings carry
// fail-soft side-effect failures; they never flip Success.
type SubmitResult struct {
	Success            bool                `json:"success"`
	Order              *Order              `json:"order,omitempty"`
	Error              string              `json:"error,omitempty"`
	InventoryConflicts []InventoryConflict `json:"inventory_conflicts,omitempty"`
	Warnings           []string            `json:"warnings,omitempty"`
}

type Service struct {
	Store     Store
	Notifier  notify.Notifier
	Broadcast Broadcaster
	TaxRate   float64
	Log       *zap.Logger
}

// Submit validates the request, derives the monetary fields, and hands the
// order to the all-or-nothing submission transaction. Store errors propagate;
// validation failures and inventory conflicts come back as a failure result.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if verr := validateSubmit(req); verr != nil {
		return &SubmitResult{Success: false, Error: verr.Error()}, nil
	}

	items := make([]OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
		})
	}
	o := &Order{
		UserID:          req.UserID,
		Customer:        req.Customer,
		Items:           items,
		Fulfillment:     req.Fulfillment,
		Status:          StatusPending,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   PaymentPending,
		PickupDate:      req.PickupDate,
		PickupTime:      req.PickupTime,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	}
	o.Subtotal, o.Tax, o.Total = ComputeTotals(o.Items, s.TaxRate)

	conflicts, err := s.Store.SubmitTx(ctx, o)
	if err != nil {
		var qbe *QuantityBoundsError
		if errors.As(err, &qbe) {
			return &SubmitResult{Success: false, Error: qbe.Error()}, nil
		}
		return nil, err
	}
	if len(conflicts) > 0 {
		return &SubmitResult{
			Success:            false,
			Error:              (&InventoryConflictError{Conflicts: conflicts}).Error(),
			InventoryConflicts: conflicts,
		}, nil
	}

	res := &SubmitResult{Success: true, Order: o}
	if s.Broadcast != nil {
		if err := s.Broadcast.Broadcast(ctx, EventOrderSubmitted, o.ID, OrderSubmittedEvent{
			OrderID:     o.ID,
			UserID:      o.UserID,
			Fulfillment: o.Fulfillment,
			Total:       o.Total,
			ItemCount:   len(o.Items),
		}); err != nil {
			s.Log.Warn("order-created broadcast failed", zap.String("order_id", o.ID), zap.Error(err))
			res.Warnings = append(res.Warnings, "broadcast failed: "+err.Error())
		}
	}
	if s.Notifier != nil {
		if _, err := s.Notifier.Send(ctx, notify.Notification{
			UserID:   o.UserID,
			Email:    o.Customer.Email,
			Phone:    o.Customer.Phone,
			Type:     notify.TypeOrderConfirmation,
			Channels: []notify.Channel{notify.ChannelPush, notify.ChannelEmail},
			OrderID:  o.ID,
		}); err != nil {
			s.Log.Warn("confirmation notification failed", zap.String("order_id", o.ID), zap.Error(err))
			res.Warnings = append(res.Warnings, "notification failed: "+err.Error())
		}
	}
	return res, nil
}

// GetOrder fetches one order and checks the stored totals against a fresh
// recomputation. A drift beyond tolerance is recorded for observability, never
// blocked on.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.checkTotals(o)
	return o, nil
}

func (s *Service) GetCustomerOrders(ctx context.Context, userID string) ([]*Order, error) {
	out, err := s.Store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, o := range out {
		s.checkTotals(o)
	}
	return out, nil
}

func (s *Service) GetAllOrders(ctx context.Context) ([]*Order, error) {
	out, err := s.Store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range out {
		s.checkTotals(o)
	}
	return out, nil
}

func (s *Service) checkTotals(o *Order) {
	if !o.TotalsConsistent() {
		s.Log.Warn("order totals drift beyond tolerance",
			zap.String("order_id", o.ID),
			zap.Float64("subtotal", o.Subtotal),
			zap.Float64("tax", o.Tax),
			zap.Float64("total", o.Total))
	}
}

func validateSubmit(req SubmitRequest) *ValidationError {
	if req.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "required"}
	}
	if req.Customer.Name == "" {
		return &ValidationError{Field: "customer.name", Reason: "required"}
	}
	if req.Customer.Email == "" {
		return &ValidationError{Field: "customer.email", Reason: "required"}
	}
	if len(req.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one item required"}
	}
	for i, it := range req.Items {
		if it.ProductID == "" {
			return &ValidationError{Field: fmt.Sprintf("items[%d].product_id", i), Reason: "required"}
		}
		if it.Quantity <= 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be positive"}
		}
		if it.UnitPrice < 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].unit_price", i), Reason: "must not be negative"}
		}
	}
	switch req.Fulfillment {
	case FulfillmentPickup:
		if req.PickupDate == "" || req.PickupTime == "" {
			return &ValidationError{Field: "pickup", Reason: "pickup orders require date and time"}
		}
		if _, err := time.ParseInLocation("2006-01-02 15:04", req.PickupDate+" "+req.PickupTime, time.Local); err != nil {
			return &ValidationError{Field: "pickup", Reason: "unparseable pickup date/time"}
		}
	case FulfillmentDelivery:
		if req.DeliveryAddress == "" {
			return &ValidationError{Field: "delivery_address", Reason: "delivery orders require an address"}
		}
	default:
		return &ValidationError{Field: "fulfillment_type", Reason: "unsupported"}
	}
	switch req.PaymentMethod {
	case PaymentOnline, PaymentCashOnPickup:
	default:
		return &ValidationError{Field: "payment_method", Reason: "unsupported"}
	}
	return nil
}
