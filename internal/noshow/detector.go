// Package noshow converts overdue pickups into cancellations: a periodic sweep
// finds ready pickup orders past their grace period, filters out the ones with
// a recent reschedule, and drives the rest through the order state machine.
package noshow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andrewkhoh/farmstand-orders/internal/lifecycle"
	"github.com/andrewkhoh/farmstand-orders/internal/notify"
	"github.com/andrewkhoh/farmstand-orders/internal/orders"
)

type Config struct {
	GracePeriod        time.Duration
	RescheduleLookback time.Duration
	AutoCancel         bool
	NotifyCustomer     bool
	Now                func() time.Time // test hook, defaults to time.Now
}

type OrderStore interface {
	Get(ctx context.Context, id string) (*orders.Order, error)
	ListReadyPickups(ctx context.Context) ([]*orders.Order, error)
}

type RescheduleChecker interface {
	WasRecentlyRescheduled(ctx context.Context, orderID string, within time.Duration) (bool, *time.Time, error)
}

type Canceller interface {
	UpdateStatusReason(ctx context.Context, orderID string, st orders.Status, reason string) (*lifecycle.TransitionResult, error)
}

type LogStore interface {
	InsertNoShow(ctx context.Context, e *LogEntry) error
	InsertRun(ctx context.Context, s *RunSummary) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, eventType, key string, payload any) error
}

type Detector struct {
	Orders    OrderStore
	Resched   RescheduleChecker
	Statuses  Canceller
	Logs      LogStore
	Notifier  notify.Notifier
	Broadcast Broadcaster
	Cfg       Config
	Log       *zap.Logger
}

// Run is one sweep. A single order's failure is recorded in the summary's
// errors and never aborts the batch; the per-order no-show log row is written
// regardless of the cancel/notify outcome.
func (d *Detector) Run(ctx context.Context) (*RunSummary, error) {
	now := d.now()
	cutoff := now.Add(-d.Cfg.GracePeriod)

	candidates, err := d.Orders.ListReadyPickups(ctx)
	if err != nil {
		return nil, err
	}

	sum := &RunSummary{Scanned: len(candidates), StartedAt: now}
	for _, o := range candidates {
		pickupAt, ok := o.PickupAt()
		if !ok {
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: unparseable pickup slot", o.ID))
			continue
		}
		if !pickupAt.Before(cutoff) {
			continue // still inside the grace period
		}
		sum.Overdue++

		recent, _, err := d.Resched.WasRecentlyRescheduled(ctx, o.ID, d.Cfg.RescheduleLookback)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: reschedule check: %v", o.ID, err))
			continue
		}
		if recent {
			// a fresh reschedule is a legitimate reason for the original
			// slot to look overdue
			sum.Skipped++
			continue
		}

		d.processOne(ctx, o, now, sum)
	}

	sum.FinishedAt = d.now()
	if err := d.Logs.InsertRun(ctx, sum); err != nil {
		d.Log.Warn("no-show run summary write failed", zap.Error(err))
	}
	d.Log.Info("no-show sweep finished",
		zap.Int("scanned", sum.Scanned),
		zap.Int("overdue", sum.Overdue),
		zap.Int("skipped", sum.Skipped),
		zap.Int("cancelled", sum.Cancelled),
		zap.Int("errors", len(sum.Errors)))
	return sum, nil
}

func (d *Detector) processOne(ctx context.Context, o *orders.Order, now time.Time, sum *RunSummary) {
	entry := &LogEntry{
		OrderID:      o.ID,
		UserID:       o.UserID,
		PickupDate:   o.PickupDate,
		PickupTime:   o.PickupTime,
		GraceMinutes: int(d.Cfg.GracePeriod / time.Minute),
		CreatedAt:    now,
	}

	if d.Cfg.AutoCancel {
		tr, err := d.Statuses.UpdateStatusReason(ctx, o.ID, orders.StatusCancelled, orders.CancelReasonNoShow)
		switch {
		case err != nil:
			entry.Error = err.Error()
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: cancel: %v", o.ID, err))
		case !tr.Success:
			entry.Error = tr.Error
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: cancel: %s", o.ID, tr.Error))
		default:
			entry.Cancelled = true
			sum.Cancelled++
		}
	}

	if d.Cfg.NotifyCustomer && d.Notifier != nil {
		if _, err := d.Notifier.Send(ctx, notify.Notification{
			UserID:   o.UserID,
			Email:    o.Customer.Email,
			Phone:    o.Customer.Phone,
			Type:     notify.TypeNoShowCancelled,
			Channels: []notify.Channel{notify.ChannelPush, notify.ChannelEmail},
			OrderID:  o.ID,
		}); err != nil {
			d.Log.Warn("no-show notification failed", zap.String("order_id", o.ID), zap.Error(err))
		} else {
			entry.Notified = true
			sum.Notified++
		}
	}

	if err := d.Logs.InsertNoShow(ctx, entry); err != nil {
		d.Log.Warn("no-show log write failed", zap.String("order_id", o.ID), zap.Error(err))
		sum.Errors = append(sum.Errors, fmt.Sprintf("%s: log: %v", o.ID, err))
	}

	if d.Broadcast != nil {
		if err := d.Broadcast.Broadcast(ctx, orders.EventNoShowProcessed, o.ID, orders.NoShowProcessedEvent{
			OrderID:   o.ID,
			UserID:    o.UserID,
			Cancelled: entry.Cancelled,
		}); err != nil {
			d.Log.Warn("no-show broadcast failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
}

// IsOrderNoShow is the on-demand eligibility check: same rules as the sweep,
// no side effects.
func (d *Detector) IsOrderNoShow(ctx context.Context, orderID string, grace time.Duration) (bool, error) {
	o, err := d.Orders.Get(ctx, orderID)
	if err != nil {
		return false, err
	}
	if o.Status != orders.StatusReady || o.Fulfillment != orders.FulfillmentPickup {
		return false, nil
	}
	pickupAt, ok := o.PickupAt()
	if !ok {
		return false, nil
	}
	if !pickupAt.Before(d.now().Add(-grace)) {
		return false, nil
	}
	recent, _, err := d.Resched.WasRecentlyRescheduled(ctx, orderID, d.Cfg.RescheduleLookback)
	if err != nil {
		return false, err
	}
	return !recent, nil
}

func (d *Detector) now() time.Time {
	if d.Cfg.Now != nil {
		return d.Cfg.Now()
	}
	return time.Now()
}
