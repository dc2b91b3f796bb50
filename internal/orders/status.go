package orders

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// CancelReasonNoShow marks cancellations made by the no-show sweep rather than
// a person.
const CancelReasonNoShow = "no_show"

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusPreparing: true, StatusCancelled: true},
	StatusPreparing: {StatusReady: true, StatusCancelled: true},
	StatusReady:     {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

// ordered for stable error messages
var statusOrder = []Status{
	StatusPending, StatusConfirmed, StatusPreparing,
	StatusReady, StatusCompleted, StatusCancelled,
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func NextStates(from Status) []Status {
	var out []Status
	for _, s := range statusOrder {
		if validNext[from][s] {
			out = append(out, s)
		}
	}
	return out
}

func (s Status) Terminal() bool {
	return len(validNext[s]) == 0 && (s == StatusCompleted || s == StatusCancelled)
}

// ParseStatus normalizes an inbound status string. "processing" is accepted as
// an alias kept for older clients.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	if s == "processing" {
		return StatusPreparing, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}
