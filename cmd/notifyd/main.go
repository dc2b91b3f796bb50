// notifyd drains the notifications topic and hands each message to the
// configured delivery channels.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/andrewkhoh/farmstand-orders/internal/config"
	kafkax "github.com/andrewkhoh/farmstand-orders/internal/kafka"
	"github.com/andrewkhoh/farmstand-orders/internal/logging"
	"github.com/andrewkhoh/farmstand-orders/internal/notify"
	"github.com/andrewkhoh/farmstand-orders/internal/orders"
	"github.com/andrewkhoh/farmstand-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// The log notifier stands in for the real delivery providers.
	var delivery notify.Notifier = &notify.LogNotifier{Log: logger}

	group := getenv("NOTIFY_GROUP", "notify-svc")
	workers := mustAtoi(os.Getenv("NOTIFY_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicNotifications, workers, logger)

	handler := func(ctx context.Context, m kafkago.Message) error {
		var n notify.Notification
		if err := json.Unmarshal(m.Value, &n); err != nil {
			logger.Warn("dropping malformed notification", zap.Error(err))
			return nil // poison message, commit and move on
		}

		// dedup per message key+offset so redelivery does not re-send
		dkey := fmt.Sprintf(redisx.KeyDedup, "notifyd", fmt.Sprintf("%s:%d", m.Topic, m.Offset))
		if seen, _ := redisx.Exists(ctx, rdb, dkey); seen {
			return nil
		}
		_ = rdb.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

		res, err := delivery.Send(ctx, n)
		if err != nil {
			return err
		}
		if len(res.FailedChannels) > 0 {
			logger.Warn("partial notification delivery",
				zap.String("user_id", n.UserID),
				zap.Int("failed", len(res.FailedChannels)))
		}
		return nil
	}

	go func() {
		logger.Info("notification consumer started",
			zap.String("group", group),
			zap.String("topic", orders.TopicNotifications),
			zap.Int("workers", workers))
		if err := cons.Start(ctx, handler); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down consumer...")
	cancel()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
