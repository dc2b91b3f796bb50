package orders

import "time"

const (
	EventOrderSubmitted    = "OrderSubmitted"
	EventOrderStatusChange = "OrderStatusChanged"
	EventStockRestored     = "StockRestored"
	EventPickupRescheduled = "PickupRescheduled"
	EventNoShowProcessed   = "NoShowProcessed"
)

// Event payloads carry the owning user id so realtime subscribers can filter
// to their own orders.

type OrderSubmittedEvent struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Fulfillment FulfillmentType `json:"fulfillment_type"`
	Total       float64         `json:"total"`
	ItemCount   int             `json:"item_count"`
}

type StatusChangedEvent struct {
	OrderID string    `json:"order_id"`
	UserID  string    `json:"user_id"`
	From    Status    `json:"from"`
	To      Status    `json:"to"`
	At      time.Time `json:"at"`
}

type StockRestoredEvent struct {
	OrderID   string `json:"order_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	NewStock  int    `json:"new_stock"`
}

type PickupRescheduledEvent struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	OldDate string `json:"old_date"`
	OldTime string `json:"old_time"`
	NewDate string `json:"new_date"`
	NewTime string `json:"new_time"`
}

type NoShowProcessedEvent struct {
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	Cancelled bool   `json:"cancelled"`
}
