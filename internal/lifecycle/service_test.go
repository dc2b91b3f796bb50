package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andrewkhoh/farmstand-orders/internal/notify"
	"github.com/andrewkhoh/farmstand-orders/internal/orders"
	"github.com/andrewkhoh/farmstand-orders/internal/restock"
)

type fakeOrderStore struct {
	orders    map[string]*orders.Order
	updateErr error
	updated   []string
}

func (f *fakeOrderStore) Get(ctx context.Context, id string) (*orders.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) UpdateStatusCond(ctx context.Context, id string, from, to orders.Status, reason string) (time.Time, error) {
	if f.updateErr != nil {
		return time.Time{}, f.updateErr
	}
	o := f.orders[id]
	if o.Status != from {
		return time.Time{}, orders.ErrStatusConflict
	}
	o.Status = to
	if reason != "" {
		o.CancellationReason = reason
	}
	f.updated = append(f.updated, id)
	return time.Now(), nil
}

type fakeRestorer struct {
	calls  []string
	result *restock.RestoreResult
	err    error
}

func (f *fakeRestorer) RestoreOrderStock(ctx context.Context, orderID string) (*restock.RestoreResult, error) {
	f.calls = append(f.calls, orderID)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &restock.RestoreResult{Success: true, OrderID: orderID}, nil
}

type fakeNotifier struct {
	sent []notify.Notification
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, n notify.Notification) (notify.Result, error) {
	if f.err != nil {
		return notify.Result{}, f.err
	}
	f.sent = append(f.sent, n)
	return notify.Result{Success: true}, nil
}

type fakeBroadcaster struct {
	events []string
	err    error
}

func (f *fakeBroadcaster) Broadcast(ctx context.Context, eventType, key string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, eventType)
	return nil
}

type fakeCache struct {
	statuses map[string]orders.Status
	err      error
}

func (f *fakeCache) SetStatus(ctx context.Context, orderID string, status orders.Status) error {
	if f.err != nil {
		return f.err
	}
	if f.statuses == nil {
		f.statuses = map[string]orders.Status{}
	}
	f.statuses[orderID] = status
	return nil
}

func pickupOrder(id string, status orders.Status) *orders.Order {
	return &orders.Order{
		ID:          id,
		UserID:      "user-1",
		Customer:    orders.Customer{Name: "Ada", Email: "ada@example.com"},
		Fulfillment: orders.FulfillmentPickup,
		Status:      status,
	}
}

func newService(store *fakeOrderStore) (*Service, *fakeRestorer, *fakeNotifier, *fakeBroadcaster, *fakeCache) {
	rs := &fakeRestorer{}
	nf := &fakeNotifier{}
	bc := &fakeBroadcaster{}
	c := &fakeCache{}
	return &Service{Store: store, Restorer: rs, Notifier: nf, Broadcast: bc, Cache: c, Log: zap.NewNop()}, rs, nf, bc, c
}

func TestUpdateStatusHappyPath(t *testing.T) {
	store := &fakeOrderStore{orders: map[string]*orders.Order{"A": pickupOrder("A", orders.StatusPending)}}
	svc, _, _, bc, cache := newService(store)

	res, err := svc.UpdateStatus(context.Background(), "A", orders.StatusConfirmed)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, orders.StatusConfirmed, res.Order.Status)
	assert.Equal(t, orders.StatusConfirmed, store.orders["A"].Status)
	assert.Equal(t, []string{orders.EventOrderStatusChange}, bc.events)
	assert.Equal(t, orders.StatusConfirmed, cache.statuses["A"])
}

func TestUpdateStatusInvalidTransitionLeavesOrderUnchanged(t *testing.T) {
	store := &fakeOrderStore{orders: map[string]*orders.Order{"A": pickupOrder("A", orders.StatusPending)}}
	svc, rs, _, bc, _ := newService(store)

	res, err := svc.UpdateStatus(context.Background(), "A", orders.StatusReady)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid transition")

	assert.Equal(t, orders.StatusPending, store.orders["A"].Status)
	assert.Empty(t, store.updated)
	assert.Empty(t, rs.calls)
	assert.Empty(t, bc.events)
}

func TestUpdateStatusTerminalStatesNeverExit(t *testing.T) {
	for _, from := range []orders.Status{orders.StatusCompleted, orders.StatusCancelled} {
		store := &fakeOrderStore{orders: map[string]*orders.Order{"A": pickupOrder("A", from)}}
		svc, _, _, _, _ := newService(store)
		for _, to := range []orders.Status{
			orders.StatusPending, orders.StatusConfirmed, orders.StatusPreparing,
			orders.StatusReady, orders.StatusCompleted, orders.StatusCancelled,
		} {
			res, err := svc.UpdateStatus(context.Background(), "A", to)
			require.NoError(t, err)
			assert.False(t, res.Success, "%s -> %s", from, to)
		}
		assert.Equal(t, from, store.orders["A"].Status)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc, _, _, _, _ := newService(&fakeOrderStore{orders: map[string]*orders.Order{}})

	res, err := svc.UpdateStatus(context.Background(), "missing", orders.StatusConfirmed)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not found")
}

func TestUpdateStatusConflictLosesRace(t *testing.T) {
	store := &fakeOrderStore{orders: map[string]*orders.Order{"A": pickupOrder("A", orders.StatusPending)}}
	store.updateErr = orders.ErrStatusConflict
	svc, _, _, _, _ := newService(store)

	res, err := svc.UpdateStatus(context.Background(), "A", orders.StatusConfirmed)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "concurrently")
}

func TestReadyPickupSendsNotification(t *testing.T) {
	store := &fakeOrderStore{orders: map[string]*orders.Order{"A": pickupOrder("A", orders.StatusPreparing)}}
	svc, _, nf, _, _ := newService(store)

	res, err := svc.UpdateStatus(context.Background(), "A", orders.StatusReady)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, nf.sent, 1)
	assert.Equal(t, notify.TypePickupReady, nf.sent[0].Type)
}

func TestCancellationTriggersRestoration(t *testing.T) {
	store := &fakeOrderStore{orders: map[string]*orders.Order{"A": pickupOrder("A", orders.StatusConfirmed)}}
	svc, rs, nf, _, _ := newService(store)

	res, err := svc.UpdateStatusReason(context.Background(), "A", orders.StatusCancelled, "customer request")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, []string{"A"}, rs.calls)
	assert.Equal(t, "customer request", store.orders["A"].CancellationReason)
	require.Len(t, nf.sent, 1)
	assert.Equal(t, notify.TypeOrderCancelled, nf.sent[0].Type)
}

func TestNoShowCancellationSkipsCancellationNotification(t *testing.T) {
	store := &fakeOrderStore{orders: map[string]*orders.Order{"A": pickupOrder("A", orders.StatusReady)}}
	svc, rs, nf, _, _ := newService(store)

	res, err := svc.UpdateStatusReason(context.Background(), "A", orders.StatusCancelled, orders.CancelReasonNoShow)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, []string{"A"}, rs.calls)
	assert.Empty(t, nf.sent)
}

func TestCancellationRestorationFailureIsWarningNotRollback(t *testing.T) {
	store := &fakeOrderStore{orders: map[string]*orders.Order{"A": pickupOrder("A", orders.StatusConfirmed)}}
	svc, rs, _, _, _ := newService(store)
	rs.err = errors.New("db unreachable")

	res, err := svc.UpdateStatus(context.Background(), "A", orders.StatusCancelled)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, orders.StatusCancelled, store.orders["A"].Status)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "stock restoration failed")
}

func TestCancellationAlreadyRestoredIsQuiet(t *testing.T) {
	store := &fakeOrderStore{orders: map[string]*orders.Order{"A": pickupOrder("A", orders.StatusReady)}}
	svc, rs, _, _, _ := newService(store)
	rs.result = &restock.RestoreResult{Success: false, Reason: restock.ReasonAlreadyRestored, Error: "already restored"}

	res, err := svc.UpdateStatus(context.Background(), "A", orders.StatusCancelled)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Warnings)
}

func TestBulkUpdatePartialFailure(t *testing.T) {
	store := &fakeOrderStore{orders: map[string]*orders.Order{
		"A": pickupOrder("A", orders.StatusPending),
		"B": pickupOrder("B", orders.StatusPending),
		"C": pickupOrder("C", orders.StatusCompleted),
	}}
	svc, _, _, _, _ := newService(store)

	res := svc.BulkUpdateStatus(context.Background(), []string{"A", "B", "C"}, orders.StatusConfirmed)
	assert.Equal(t, 2, res.UpdatedCount)
	assert.Equal(t, []string{"C"}, res.FailedOrders)
	assert.Contains(t, res.Errors["C"], "invalid transition")
	assert.Equal(t, orders.StatusConfirmed, store.orders["A"].Status)
	assert.Equal(t, orders.StatusConfirmed, store.orders["B"].Status)
	assert.Equal(t, orders.StatusCompleted, store.orders["C"].Status)
}
