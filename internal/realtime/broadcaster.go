package realtime

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/andrewkhoh/farmstand-orders/internal/kafka"
)

// Envelope is the versioned wire format for every realtime event.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Payload      json.RawMessage `json:"payload"`
}

// Publisher is what the broadcaster needs from the kafka producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

var _ Publisher = (*kafka.Producer)(nil)

// Broadcaster wraps event publication: versioned envelope, per-key partitioning,
// event-type headers. Sends are fire-and-forget; delivery errors are the
// producer loop's problem.
type Broadcaster struct {
	Producer Publisher
	Service  string
	Version  int
}

func New(p Publisher, service string) *Broadcaster {
	return &Broadcaster{Producer: p, Service: service, Version: 1}
}

func (b *Broadcaster) Broadcast(ctx context.Context, eventType, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ev := Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: b.Version,
		OccurredAt:   time.Now().UTC(),
		Producer:     b.Service,
		Payload:      raw,
	}
	b.Producer.Publish([]byte(key), kafka.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(b.Version))},
	)
	return nil
}
