package orders

import "time"

type FulfillmentType string

const (
	FulfillmentPickup   FulfillmentType = "pickup"
	FulfillmentDelivery FulfillmentType = "delivery"
)

type PaymentMethod string

const (
	PaymentOnline       PaymentMethod = "online"
	PaymentCashOnPickup PaymentMethod = "cash_on_pickup"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Product struct {
	ID             string
	Name           string
	Price          float64
	Stock          int
	MinPreOrderQty int
	MaxPreOrderQty int
	UpdatedAt      time.Time
}

// CheckPreOrderQty enforces the product's pre-order window. A zero bound means
// that side is open.
func (p *Product) CheckPreOrderQty(qty int) error {
	below := p.MinPreOrderQty > 0 && qty < p.MinPreOrderQty
	above := p.MaxPreOrderQty > 0 && qty > p.MaxPreOrderQty
	if below || above {
		return &QuantityBoundsError{
			ProductID: p.ID, Quantity: qty,
			Min: p.MinPreOrderQty, Max: p.MaxPreOrderQty,
		}
	}
	return nil
}

// OrderItem is immutable once the order is placed: quantity and unit price are
// locked at submission time regardless of later product changes.
type OrderItem struct {
	ID          string  `json:"id"`
	OrderID     string  `json:"order_id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
	Subtotal    float64 `json:"subtotal"`
}

type Order struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	Customer           Customer        `json:"customer"`
	Items              []OrderItem     `json:"items"`
	Subtotal           float64         `json:"subtotal"`
	Tax                float64         `json:"tax"`
	Total              float64         `json:"total"`
	Fulfillment        FulfillmentType `json:"fulfillment_type"`
	Status             Status          `json:"status"`
	PaymentMethod      PaymentMethod   `json:"payment_method"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
	PickupDate         string          `json:"pickup_date,omitempty"` // 2006-01-02
	PickupTime         string          `json:"pickup_time,omitempty"` // 15:04
	DeliveryAddress    string          `json:"delivery_address,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// PickupAt combines the pickup date and time columns. ok is false for delivery
// orders and for rows with unparseable slots.
func (o *Order) PickupAt() (time.Time, bool) {
	if o.PickupDate == "" || o.PickupTime == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", o.PickupDate+" "+o.PickupTime, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
