package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andrewkhoh/farmstand-orders/internal/notify"
)

type fakeStore struct {
	conflicts []InventoryConflict
	submitErr error
	submitted *Order
	orders    map[string]*Order
	products  map[string]*Product
}

func (f *fakeStore) SubmitTx(ctx context.Context, o *Order) ([]InventoryConflict, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	for _, it := range o.Items {
		if p, ok := f.products[it.ProductID]; ok {
			if err := p.CheckPreOrderQty(it.Quantity); err != nil {
				return nil, err
			}
		}
	}
	if len(f.conflicts) > 0 {
		return f.conflicts, nil
	}
	o.ID = "ord-1"
	f.submitted = o
	return nil, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeStore) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	var out []*Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAll(ctx context.Context) ([]*Order, error) {
	var out []*Order
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
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
	return notify.Result{Success: true, SentChannels: n.Channels}, nil
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

func validRequest() SubmitRequest {
	return SubmitRequest{
		UserID:        "user-1",
		Customer:      Customer{Name: "Ada", Email: "ada@example.com"},
		Items:         []SubmitItem{{ProductID: "p1", ProductName: "Eggs", UnitPrice: 6.00, Quantity: 2}},
		Fulfillment:   FulfillmentPickup,
		PaymentMethod: PaymentCashOnPickup,
		PickupDate:    "2026-09-05",
		PickupTime:    "10:30",
	}
}

func TestSubmitSuccess(t *testing.T) {
	store := &fakeStore{}
	nf := &fakeNotifier{}
	bc := &fakeBroadcaster{}
	svc := &Service{Store: store, Notifier: nf, Broadcast: bc, TaxRate: 0.085, Log: zap.NewNop()}

	res, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.Order)

	assert.Equal(t, StatusPending, res.Order.Status)
	assert.Equal(t, PaymentPending, res.Order.PaymentStatus)
	assert.InDelta(t, 12.00, res.Order.Subtotal, MoneyTolerance)
	assert.InDelta(t, 1.02, res.Order.Tax, MoneyTolerance)
	assert.InDelta(t, 13.02, res.Order.Total, MoneyTolerance)
	assert.Empty(t, res.Warnings)

	assert.Equal(t, []string{EventOrderSubmitted}, bc.events)
	require.Len(t, nf.sent, 1)
	assert.Equal(t, notify.TypeOrderConfirmation, nf.sent[0].Type)
}

func TestSubmitInventoryConflict(t *testing.T) {
	store := &fakeStore{conflicts: []InventoryConflict{
		{ProductID: "p1", Requested: 5, Available: 2},
	}}
	nf := &fakeNotifier{}
	bc := &fakeBroadcaster{}
	svc := &Service{Store: store, Notifier: nf, Broadcast: bc, TaxRate: 0.085, Log: zap.NewNop()}

	req := validRequest()
	req.Items[0].Quantity = 5
	res, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Nil(t, res.Order)
	require.Len(t, res.InventoryConflicts, 1)
	assert.Equal(t, "p1", res.InventoryConflicts[0].ProductID)
	assert.Equal(t, 2, res.InventoryConflicts[0].Available)

	// conflict means nothing happened: no order, no events, no notifications
	assert.Nil(t, store.submitted)
	assert.Empty(t, bc.events)
	assert.Empty(t, nf.sent)
}

func TestSubmitValidation(t *testing.T) {
	svc := &Service{Store: &fakeStore{}, TaxRate: 0.085, Log: zap.NewNop()}

	cases := []struct {
		name   string
		mutate func(*SubmitRequest)
		want   string
	}{
		{"missing user", func(r *SubmitRequest) { r.UserID = "" }, "user_id"},
		{"missing name", func(r *SubmitRequest) { r.Customer.Name = "" }, "customer.name"},
		{"no items", func(r *SubmitRequest) { r.Items = nil }, "items"},
		{"zero quantity", func(r *SubmitRequest) { r.Items[0].Quantity = 0 }, "quantity"},
		{"negative price", func(r *SubmitRequest) { r.Items[0].UnitPrice = -1 }, "unit_price"},
		{"pickup without slot", func(r *SubmitRequest) { r.PickupTime = "" }, "pickup"},
		{"bad pickup time", func(r *SubmitRequest) { r.PickupTime = "25:99" }, "pickup"},
		{"delivery without address", func(r *SubmitRequest) {
			r.Fulfillment = FulfillmentDelivery
			r.DeliveryAddress = ""
		}, "delivery_address"},
		{"bad payment method", func(r *SubmitRequest) { r.PaymentMethod = "barter" }, "payment_method"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := validRequest()
			c.mutate(&req)
			res, err := svc.Submit(context.Background(), req)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, c.want)
		})
	}
}

func TestSubmitQuantityOutsideBounds(t *testing.T) {
	store := &fakeStore{products: map[string]*Product{
		"p1": {ID: "p1", MinPreOrderQty: 2, MaxPreOrderQty: 4},
	}}
	bc := &fakeBroadcaster{}
	svc := &Service{Store: store, Broadcast: bc, TaxRate: 0.085, Log: zap.NewNop()}

	req := validRequest()
	req.Items[0].Quantity = 5
	res, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "p1")
	assert.Contains(t, res.Error, "2-4")

	// rejection means nothing happened
	assert.Nil(t, store.submitted)
	assert.Empty(t, bc.events)
}

func TestSubmitStoreErrorPropagates(t *testing.T) {
	boom := errors.New("pool closed")
	svc := &Service{Store: &fakeStore{submitErr: boom}, TaxRate: 0.085, Log: zap.NewNop()}

	res, err := svc.Submit(context.Background(), validRequest())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
}

func TestSubmitSideEffectFailuresAreWarnings(t *testing.T) {
	store := &fakeStore{}
	svc := &Service{
		Store:     store,
		Notifier:  &fakeNotifier{err: errors.New("smtp down")},
		Broadcast: &fakeBroadcaster{err: errors.New("broker down")},
		TaxRate:   0.085,
		Log:       zap.NewNop(),
	}

	res, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotNil(t, store.submitted)
	assert.Len(t, res.Warnings, 2)
}

func TestGetOrder(t *testing.T) {
	store := &fakeStore{orders: map[string]*Order{
		"ord-1": {ID: "ord-1", UserID: "user-1", Subtotal: 10, Tax: 0.85, Total: 10.85,
			Items: []OrderItem{{UnitPrice: 5, Quantity: 2, Subtotal: 10}}},
	}}
	svc := &Service{Store: store, Log: zap.NewNop()}

	o, err := svc.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", o.ID)

	_, err = svc.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
