package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPreOrderQty(t *testing.T) {
	p := &Product{ID: "p1", MinPreOrderQty: 2, MaxPreOrderQty: 10}

	assert.NoError(t, p.CheckPreOrderQty(2))
	assert.NoError(t, p.CheckPreOrderQty(10))

	err := p.CheckPreOrderQty(1)
	require.Error(t, err)
	var qbe *QuantityBoundsError
	require.ErrorAs(t, err, &qbe)
	assert.Equal(t, "p1", qbe.ProductID)
	assert.Equal(t, 1, qbe.Quantity)

	assert.Error(t, p.CheckPreOrderQty(11))

	// zero bounds leave that side open
	open := &Product{ID: "p2"}
	assert.NoError(t, open.CheckPreOrderQty(1))
	assert.NoError(t, open.CheckPreOrderQty(500))

	minOnly := &Product{ID: "p3", MinPreOrderQty: 5}
	assert.Error(t, minOnly.CheckPreOrderQty(4))
	assert.NoError(t, minOnly.CheckPreOrderQty(5000))
}

func TestPickupAt(t *testing.T) {
	o := &Order{PickupDate: "2026-09-05", PickupTime: "10:30"}
	at, ok := o.PickupAt()
	require.True(t, ok)
	assert.Equal(t, 10, at.Hour())
	assert.Equal(t, 30, at.Minute())

	delivery := &Order{}
	_, ok = delivery.PickupAt()
	assert.False(t, ok)

	bad := &Order{PickupDate: "2026-09-05", PickupTime: "whenever"}
	_, ok = bad.PickupAt()
	assert.False(t, ok)
}
