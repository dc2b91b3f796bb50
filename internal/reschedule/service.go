package reschedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andrewkhoh/farmstand-orders/internal/notify"
	"github.com/andrewkhoh/farmstand-orders/internal/orders"
)

type FailCode string

const (
	CodeNotFound      FailCode = "order_not_found"
	CodeNotEligible   FailCode = "not_eligible"
	CodeBadDatetime   FailCode = "bad_datetime"
	CodePastDate      FailCode = "past_date"
	CodeOutsideHours  FailCode = "outside_business_hours"
	CodeTooFarAhead   FailCode = "too_far_ahead"
	CodeDuplicateSlot FailCode = "duplicate_slot"
	CodeLimitExceeded FailCode = "daily_limit_exceeded"
)

type OrderStore interface {
	Get(ctx context.Context, id string) (*orders.Order, error)
	UpdatePickupSlot(ctx context.Context, id, date, tm string) error
	PickupSlotCounts(ctx context.Context, date string) (map[string]int, error)
}

type LogStore interface {
	Insert(ctx context.Context, e *LogEntry) error
	SuccessfulSlotExists(ctx context.Context, orderID, date, tm string) (bool, error)
	CountToday(ctx context.Context, orderID string, now time.Time) (int, error)
	LatestSuccessSince(ctx context.Context, orderID string, since time.Time) (*time.Time, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, eventType, key string, payload any) error
}

// DailyCounter is the fast path for the daily limit: when it already shows the
// limit reached, the log-table count is skipped. The log table stays the
// source of truth, so a cold or expired counter only costs the DB read.
type DailyCounter interface {
	Today(ctx context.Context, orderID string, day time.Time) (int64, error)
	Bump(ctx context.Context, orderID string, day time.Time) (int64, error)
}

type Config struct {
	BusinessOpen   string // "08:00"
	BusinessClose  string // "20:00"
	SlotMinutes    int
	MaxAdvanceDays int
	DailyLimit     int
	Now            func() time.Time // test hook, defaults to time.Now
}

type Requester struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type Result struct {
	Success  bool          `json:"success"`
	Order    *orders.Order `json:"order,omitempty"`
	Error    string        `json:"error,omitempty"`
	Code     FailCode      `json:"code,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

type TimeSlot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// Service gatekeeps changes to an order's pickup slot.
type Service struct {
	Orders    OrderStore
	Logs      LogStore
	Notifier  notify.Notifier
	Broadcast Broadcaster
	Counter   DailyCounter // optional
	Cfg       Config
	Log       *zap.Logger
}

// Reschedule runs the validation chain in order, each step producing its own
// rejection code. Failed attempts are logged too; nothing else is persisted on
// failure. On success the slot is updated, the attempt logged, and the
// customer notified (fail-soft).
func (s *Service) Reschedule(ctx context.Context, orderID, newDate, newTime, reason string, req Requester) (*Result, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return &Result{Code: CodeNotFound, Error: err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}

	reject := func(code FailCode, msg string) (*Result, error) {
		s.logAttempt(ctx, o, newDate, newTime, reason, req, AttemptFailed, string(code))
		return &Result{Code: code, Error: msg}, nil
	}

	if o.Fulfillment != orders.FulfillmentPickup || !rescheduleEligible(o.Status) {
		e := &orders.NotEligibleError{OrderID: orderID, Status: o.Status, Op: "pickup reschedule"}
		return reject(CodeNotEligible, e.Error())
	}

	now := s.now()
	slot, perr := time.ParseInLocation("2006-01-02 15:04", newDate+" "+newTime, time.Local)
	if perr != nil {
		return reject(CodeBadDatetime, "unparseable pickup date/time")
	}
	// the layout accepts unpadded input like "9:30"; everything downstream
	// (persistence, logs, slot comparisons) uses the normalized form
	newDate, newTime = slot.Format("2006-01-02"), slot.Format("15:04")

	if !slot.After(now) {
		return reject(CodePastDate, "new pickup time must be in the future")
	}
	openMin, err := clockMinutes(s.Cfg.BusinessOpen)
	if err != nil {
		return nil, err
	}
	closeMin, err := clockMinutes(s.Cfg.BusinessClose)
	if err != nil {
		return nil, err
	}
	if m := slot.Hour()*60 + slot.Minute(); m < openMin || m > closeMin {
		return reject(CodeOutsideHours,
			fmt.Sprintf("pickup time must be between %s and %s", s.Cfg.BusinessOpen, s.Cfg.BusinessClose))
	}
	if slot.After(now.AddDate(0, 0, s.Cfg.MaxAdvanceDays)) {
		return reject(CodeTooFarAhead,
			fmt.Sprintf("pickup date must be within %d days", s.Cfg.MaxAdvanceDays))
	}

	dup, err := s.Logs.SuccessfulSlotExists(ctx, orderID, newDate, newTime)
	if err != nil {
		return nil, err
	}
	if dup {
		return reject(CodeDuplicateSlot, "order was already rescheduled to this slot")
	}

	limited := false
	if s.Counter != nil {
		if n, err := s.Counter.Today(ctx, orderID, now); err == nil && n >= int64(s.Cfg.DailyLimit) {
			limited = true
		}
		// a counter miss or error just falls through to the log count
	}
	if !limited {
		n, err := s.Logs.CountToday(ctx, orderID, now)
		if err != nil {
			return nil, err
		}
		limited = n >= s.Cfg.DailyLimit
	}
	if limited {
		return reject(CodeLimitExceeded,
			fmt.Sprintf("daily reschedule limit of %d reached", s.Cfg.DailyLimit))
	}

	oldDate, oldTime := o.PickupDate, o.PickupTime
	if err := s.Orders.UpdatePickupSlot(ctx, orderID, newDate, newTime); err != nil {
		return nil, err
	}

	res := &Result{Success: true, Order: o}
	s.logAttempt(ctx, o, newDate, newTime, reason, req, AttemptSuccess, "")
	o.PickupDate, o.PickupTime = newDate, newTime
	if s.Counter != nil {
		if _, err := s.Counter.Bump(ctx, orderID, now); err != nil {
			s.warn(res, o.ID, "reschedule counter bump failed", err)
		}
	}
	if s.Notifier != nil {
		if _, err := s.Notifier.Send(ctx, notify.Notification{
			UserID:   o.UserID,
			Email:    o.Customer.Email,
			Phone:    o.Customer.Phone,
			Type:     notify.TypePickupRescheduled,
			Channels: []notify.Channel{notify.ChannelPush, notify.ChannelSMS},
			OrderID:  o.ID,
			Message:  fmt.Sprintf("Your pickup was moved to %s %s", newDate, newTime),
		}); err != nil {
			s.warn(res, o.ID, "reschedule notification failed", err)
		}
	}
	if s.Broadcast != nil {
		if err := s.Broadcast.Broadcast(ctx, orders.EventPickupRescheduled, o.ID, orders.PickupRescheduledEvent{
			OrderID: o.ID,
			UserID:  o.UserID,
			OldDate: oldDate,
			OldTime: oldTime,
			NewDate: newDate,
			NewTime: newTime,
		}); err != nil {
			s.warn(res, o.ID, "reschedule broadcast failed", err)
		}
	}
	return res, nil
}

// AvailableTimeSlots enumerates the business day in fixed-size slots and marks
// each unavailable when an active order already holds it.
func (s *Service) AvailableTimeSlots(ctx context.Context, date string) ([]TimeSlot, error) {
	counts, err := s.Orders.PickupSlotCounts(ctx, date)
	if err != nil {
		return nil, err
	}
	open, err := time.Parse("15:04", s.Cfg.BusinessOpen)
	if err != nil {
		return nil, fmt.Errorf("bad business open time: %w", err)
	}
	closeAt, err := time.Parse("15:04", s.Cfg.BusinessClose)
	if err != nil {
		return nil, fmt.Errorf("bad business close time: %w", err)
	}

	step := s.Cfg.SlotMinutes
	if step <= 0 {
		step = 30
	}

	var out []TimeSlot
	for t := open; !t.After(closeAt); t = t.Add(time.Duration(step) * time.Minute) {
		tm := t.Format("15:04")
		out = append(out, TimeSlot{Time: tm, Available: counts[tm] == 0})
	}
	return out, nil
}

// WasRecentlyRescheduled tells the no-show detector whether a successful
// reschedule happened inside the trailing window, and when.
func (s *Service) WasRecentlyRescheduled(ctx context.Context, orderID string, within time.Duration) (bool, *time.Time, error) {
	ts, err := s.Logs.LatestSuccessSince(ctx, orderID, s.now().Add(-within))
	if err != nil {
		return false, nil, err
	}
	return ts != nil, ts, nil
}

func (s *Service) logAttempt(ctx context.Context, o *orders.Order, newDate, newTime, reason string, req Requester, status AttemptStatus, failReason string) {
	err := s.Logs.Insert(ctx, &LogEntry{
		OrderID:       o.ID,
		UserID:        req.UserID,
		RequestedRole: req.Role,
		OriginalDate:  o.PickupDate,
		OriginalTime:  o.PickupTime,
		NewDate:       newDate,
		NewTime:       newTime,
		Reason:        reason,
		Status:        status,
		FailureReason: failReason,
	})
	if err != nil {
		s.Log.Warn("reschedule log write failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (s *Service) warn(res *Result, orderID, what string, err error) {
	s.Log.Warn(what, zap.String("order_id", orderID), zap.Error(err))
	res.Warnings = append(res.Warnings, what+": "+err.Error())
}

func (s *Service) now() time.Time {
	if s.Cfg.Now != nil {
		return s.Cfg.Now()
	}
	return time.Now()
}

func clockMinutes(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, fmt.Errorf("bad business hours time %q: %w", hhmm, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func rescheduleEligible(st orders.Status) bool {
	switch st {
	case orders.StatusConfirmed, orders.StatusPreparing, orders.StatusReady:
		return true
	}
	return false
}
