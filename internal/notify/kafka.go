package notify

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/andrewkhoh/farmstand-orders/internal/kafka"
)

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// KafkaNotifier hands notifications to the delivery workers over the
// notifications topic. All requested channels count as sent once enqueued;
// per-channel delivery outcomes are the workers' concern.
type KafkaNotifier struct {
	Producer Publisher
	Log      *zap.Logger
}

func (k *KafkaNotifier) Send(ctx context.Context, n Notification) (Result, error) {
	k.Producer.Publish([]byte(n.UserID), kafka.MustMarshal(n),
		kafkago.Header{Key: "x-notification-type", Value: []byte(n.Type)},
	)
	k.Log.Debug("notification enqueued",
		zap.String("user_id", n.UserID),
		zap.String("type", string(n.Type)),
		zap.String("order_id", n.OrderID))
	return Result{Success: true, SentChannels: n.Channels}, nil
}

// LogNotifier is the development stand-in: it only logs.
type LogNotifier struct {
	Log *zap.Logger
}

func (l *LogNotifier) Send(ctx context.Context, n Notification) (Result, error) {
	l.Log.Info("notification",
		zap.String("user_id", n.UserID),
		zap.String("type", string(n.Type)),
		zap.String("order_id", n.OrderID),
		zap.String("message", n.Message))
	return Result{Success: true, SentChannels: n.Channels}, nil
}
