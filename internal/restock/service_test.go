package restock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andrewkhoh/farmstand-orders/internal/orders"
)

type fakeOrderGetter struct {
	orders map[string]*orders.Order
}

func (f *fakeOrderGetter) Get(ctx context.Context, id string) (*orders.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return o, nil
}

// fakeRestockStore mimics the repository against an in-memory stock map and a
// completed-restoration set, including the exactly-once guard.
type fakeRestockStore struct {
	stock     map[string]int
	completed map[string]bool
	logCount  int
	failOn    string // product id whose restoration should blow up mid-order
}

func (f *fakeRestockStore) CompletedRestorationExists(ctx context.Context, orderID string) (bool, error) {
	return f.completed[orderID], nil
}

func (f *fakeRestockStore) RestoreItems(ctx context.Context, orderID string, items []orders.OrderItem, typ RestorationType) ([]RestoredItem, error) {
	out := make([]RestoredItem, 0, len(items))
	for _, it := range items {
		if it.ProductID == f.failOn {
			return nil, &orders.ItemRestoreError{ProductID: it.ProductID, Err: orders.ErrProductNotFound}
		}
		prev := f.stock[it.ProductID]
		f.stock[it.ProductID] = prev + it.Quantity
		f.logCount++
		out = append(out, RestoredItem{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			PreviousStock: prev,
			NewStock:      prev + it.Quantity,
		})
	}
	if f.completed == nil {
		f.completed = map[string]bool{}
	}
	f.completed[orderID] = true
	return out, nil
}

func (f *fakeRestockStore) ListByOrder(ctx context.Context, orderID string) ([]LogEntry, error) {
	return nil, nil
}

func (f *fakeRestockStore) RestoreProduct(ctx context.Context, productID string, qty int, orderID string, typ RestorationType, operatorID, reason string) (RestoredItem, error) {
	if _, ok := f.stock[productID]; !ok {
		return RestoredItem{}, orders.ErrProductNotFound
	}
	prev := f.stock[productID]
	f.stock[productID] = prev + qty
	f.logCount++
	return RestoredItem{ProductID: productID, Quantity: qty, PreviousStock: prev, NewStock: prev + qty}, nil
}

func cancelledOrder(id string) *orders.Order {
	return &orders.Order{
		ID:     id,
		UserID: "user-1",
		Status: orders.StatusCancelled,
		Items: []orders.OrderItem{
			{ProductID: "P1", Quantity: 3},
			{ProductID: "P2", Quantity: 2},
		},
	}
}

func newRestockService(o *orders.Order, stock map[string]int) (*Service, *fakeRestockStore) {
	store := &fakeRestockStore{stock: stock}
	getter := &fakeOrderGetter{orders: map[string]*orders.Order{}}
	if o != nil {
		getter.orders[o.ID] = o
	}
	return &Service{Orders: getter, Store: store, Log: zap.NewNop()}, store
}

func TestRestoreOrderStock(t *testing.T) {
	svc, store := newRestockService(cancelledOrder("ord-1"), map[string]int{"P1": 10, "P2": 5})

	res, err := svc.RestoreOrderStock(context.Background(), "ord-1")
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, 13, store.stock["P1"])
	assert.Equal(t, 7, store.stock["P2"])
	require.Len(t, res.Restored, 2)
	assert.Equal(t, 10, res.Restored[0].PreviousStock)
	assert.Equal(t, 13, res.Restored[0].NewStock)
	assert.Equal(t, 2, store.logCount)
}

func TestRestoreOrderStockIdempotent(t *testing.T) {
	svc, store := newRestockService(cancelledOrder("ord-1"), map[string]int{"P1": 10, "P2": 5})

	first, err := svc.RestoreOrderStock(context.Background(), "ord-1")
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := svc.RestoreOrderStock(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, ReasonAlreadyRestored, second.Reason)

	// no double increment
	assert.Equal(t, 13, store.stock["P1"])
	assert.Equal(t, 7, store.stock["P2"])
	assert.Equal(t, 2, store.logCount)
}

func TestRestoreOrderStockNotEligible(t *testing.T) {
	o := cancelledOrder("ord-1")
	o.Status = orders.StatusConfirmed
	svc, store := newRestockService(o, map[string]int{"P1": 10, "P2": 5})

	res, err := svc.RestoreOrderStock(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonNotEligible, res.Reason)
	assert.Equal(t, 10, store.stock["P1"])
}

func TestRestoreOrderStockNotFound(t *testing.T) {
	svc, _ := newRestockService(nil, map[string]int{})

	res, err := svc.RestoreOrderStock(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonNotFound, res.Reason)
}

func TestRestoreOrderStockItemFailure(t *testing.T) {
	svc, store := newRestockService(cancelledOrder("ord-1"), map[string]int{"P1": 10, "P2": 5})
	store.failOn = "P2"

	res, err := svc.RestoreOrderStock(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonItemFailed, res.Reason)
	assert.Equal(t, "P2", res.FailedProduct)
	assert.False(t, store.completed["ord-1"])
}

func TestRestoreProductStockInvalidQuantity(t *testing.T) {
	svc, store := newRestockService(nil, map[string]int{"P1": 10})

	res, err := svc.RestoreProductStock(context.Background(), "P1", 0, "ord-1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonInvalidInput, res.Reason)
	assert.Equal(t, 10, store.stock["P1"])
}

func TestEmergencyRestore(t *testing.T) {
	svc, store := newRestockService(nil, map[string]int{"P1": 0})

	res, err := svc.EmergencyRestore(context.Background(), "P1", 25, "admin-1", "spoilage recount")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 25, store.stock["P1"])
}

func TestEmergencyRestoreRequiresReason(t *testing.T) {
	svc, store := newRestockService(nil, map[string]int{"P1": 0})

	res, err := svc.EmergencyRestore(context.Background(), "P1", 25, "admin-1", "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonInvalidInput, res.Reason)
	assert.Equal(t, 0, store.stock["P1"])
}

func TestRestoreBatchIndependence(t *testing.T) {
	good := cancelledOrder("ord-1")
	bad := cancelledOrder("ord-2")
	bad.Status = orders.StatusReady

	store := &fakeRestockStore{stock: map[string]int{"P1": 10, "P2": 5}}
	getter := &fakeOrderGetter{orders: map[string]*orders.Order{"ord-1": good, "ord-2": bad}}
	svc := &Service{Orders: getter, Store: store, Log: zap.NewNop()}

	out := svc.RestoreBatch(context.Background(), []string{"ord-2", "ord-1", "missing"})
	require.Len(t, out, 3)

	assert.False(t, out[0].Result.Success)
	assert.Equal(t, ReasonNotEligible, out[0].Result.Reason)
	assert.True(t, out[1].Result.Success)
	assert.Equal(t, ReasonNotFound, out[2].Result.Reason)

	assert.Equal(t, 13, store.stock["P1"])
}
