// Package lifecycle owns order status transitions and their side effects.
// Every status change in the system funnels through Service.UpdateStatus.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/andrewkhoh/farmstand-orders/internal/notify"
	"github.com/andrewkhoh/farmstand-orders/internal/orders"
	"github.com/andrewkhoh/farmstand-orders/internal/restock"
)

type OrderStore interface {
	Get(ctx context.Context, id string) (*orders.Order, error)
	UpdateStatusCond(ctx context.Context, id string, from, to orders.Status, reason string) (time.Time, error)
}

type StockRestorer interface {
	RestoreOrderStock(ctx context.Context, orderID string) (*restock.RestoreResult, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, eventType, key string, payload any) error
}

// StatusCache keeps the hot read path fresh; failures are never fatal.
type StatusCache interface {
	SetStatus(ctx context.Context, orderID string, status orders.Status) error
}

// TransitionResult reports the primary outcome plus any fail-soft side-effect
// failures, so callers can assert on them without scraping logs.
type TransitionResult struct {
	Success  bool          `json:"success"`
	Order    *orders.Order `json:"order,omitempty"`
	Error    string        `json:"error,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

type Service struct {
	Store     OrderStore
	Restorer  StockRestorer
	Notifier  notify.Notifier
	Broadcast Broadcaster
	Cache     StatusCache
	Log       *zap.Logger
}

// UpdateStatus validates and applies one transition. The order is read fresh,
// the transition checked against the table, and the write is conditional on
// the status we validated — a concurrent writer makes us the race loser, not
// a silent overwriter. Side effects (notification, restoration, broadcast)
// run after the commit and can only add warnings.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, newStatus orders.Status) (*TransitionResult, error) {
	return s.UpdateStatusReason(ctx, orderID, newStatus, "")
}

func (s *Service) UpdateStatusReason(ctx context.Context, orderID string, newStatus orders.Status, reason string) (*TransitionResult, error) {
	o, err := s.Store.Get(ctx, orderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return &TransitionResult{Error: err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}

	if !orders.CanTransition(o.Status, newStatus) {
		e := &orders.InvalidTransitionError{From: o.Status, To: newStatus}
		return &TransitionResult{Error: e.Error()}, nil
	}

	prev := o.Status
	ts, err := s.Store.UpdateStatusCond(ctx, orderID, prev, newStatus, reason)
	if errors.Is(err, orders.ErrStatusConflict) {
		return &TransitionResult{Error: err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}
	o.Status = newStatus
	o.UpdatedAt = ts
	if reason != "" {
		o.CancellationReason = reason
	}

	res := &TransitionResult{Success: true, Order: o}
	s.runSideEffects(ctx, o, prev, res)
	return res, nil
}

func (s *Service) runSideEffects(ctx context.Context, o *orders.Order, prev orders.Status, res *TransitionResult) {
	warn := func(what string, err error) {
		s.Log.Warn(what, zap.String("order_id", o.ID), zap.Error(err))
		res.Warnings = append(res.Warnings, what+": "+err.Error())
	}

	if s.Cache != nil {
		if err := s.Cache.SetStatus(ctx, o.ID, o.Status); err != nil {
			warn("status cache update failed", err)
		}
	}

	if o.Status == orders.StatusReady && o.Fulfillment == orders.FulfillmentPickup && s.Notifier != nil {
		if _, err := s.Notifier.Send(ctx, notify.Notification{
			UserID:   o.UserID,
			Email:    o.Customer.Email,
			Phone:    o.Customer.Phone,
			Type:     notify.TypePickupReady,
			Channels: []notify.Channel{notify.ChannelPush, notify.ChannelSMS},
			OrderID:  o.ID,
		}); err != nil {
			warn("pickup-ready notification failed", err)
		}
	}

	// no-show cancellations get their own notification from the sweep
	if o.Status == orders.StatusCancelled && o.CancellationReason != orders.CancelReasonNoShow && s.Notifier != nil {
		if _, err := s.Notifier.Send(ctx, notify.Notification{
			UserID:   o.UserID,
			Email:    o.Customer.Email,
			Phone:    o.Customer.Phone,
			Type:     notify.TypeOrderCancelled,
			Channels: []notify.Channel{notify.ChannelPush, notify.ChannelEmail},
			OrderID:  o.ID,
		}); err != nil {
			warn("cancellation notification failed", err)
		}
	}

	if o.Status == orders.StatusCancelled && s.Restorer != nil {
		r, err := s.Restorer.RestoreOrderStock(ctx, o.ID)
		switch {
		case err != nil:
			warn("stock restoration failed", err)
		case !r.Success && r.Reason != restock.ReasonAlreadyRestored:
			warn("stock restoration rejected", errors.New(r.Error))
		default:
			res.Warnings = append(res.Warnings, r.Warnings...)
		}
	}

	if s.Broadcast != nil {
		if err := s.Broadcast.Broadcast(ctx, orders.EventOrderStatusChange, o.ID, orders.StatusChangedEvent{
			OrderID: o.ID,
			UserID:  o.UserID,
			From:    prev,
			To:      o.Status,
			At:      o.UpdatedAt,
		}); err != nil {
			warn("status-change broadcast failed", err)
		}
	}
}

type BulkResult struct {
	UpdatedCount int               `json:"updated_count"`
	FailedOrders []string          `json:"failed_orders,omitempty"`
	Errors       map[string]string `json:"errors,omitempty"`
}

// BulkUpdateStatus applies one transition across many orders, accumulating
// successes and failures without short-circuiting on a bad record.
func (s *Service) BulkUpdateStatus(ctx context.Context, orderIDs []string, newStatus orders.Status) *BulkResult {
	res := &BulkResult{Errors: map[string]string{}}
	for _, id := range orderIDs {
		tr, err := s.UpdateStatus(ctx, id, newStatus)
		if err != nil {
			res.FailedOrders = append(res.FailedOrders, id)
			res.Errors[id] = err.Error()
			continue
		}
		if !tr.Success {
			res.FailedOrders = append(res.FailedOrders, id)
			res.Errors[id] = tr.Error
			continue
		}
		res.UpdatedCount++
	}
	return res
}
