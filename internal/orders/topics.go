package orders

// Events are keyed by order id, so everything for one order stays on one
// partition and keeps its ordering.
const (
	TopicOrderEvents   = "farmstand.order.events"
	TopicNotifications = "farmstand.notifications"
)
