// Package notify is the boundary to customer-facing messaging. Delivery
// providers live behind the Notifier interface; the core only cares which
// channels made it out.
package notify

import "context"

type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

type Type string

const (
	TypeOrderConfirmation Type = "order_confirmation"
	TypePickupReady       Type = "pickup_ready"
	TypeOrderCancelled    Type = "order_cancelled"
	TypePickupRescheduled Type = "pickup_rescheduled"
	TypeNoShowCancelled   Type = "noshow_cancelled"
)

type Notification struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email,omitempty"`
	Phone    string    `json:"phone,omitempty"`
	Type     Type      `json:"type"`
	Channels []Channel `json:"channels"`
	OrderID  string    `json:"order_id,omitempty"`
	Message  string    `json:"message,omitempty"`
}

type Result struct {
	Success        bool      `json:"success"`
	SentChannels   []Channel `json:"sent_channels"`
	FailedChannels []Channel `json:"failed_channels"`
}

type Notifier interface {
	Send(ctx context.Context, n Notification) (Result, error)
}
