// noshowd is the background worker that periodically sweeps overdue pickups.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/andrewkhoh/farmstand-orders/internal/config"
	kafkax "github.com/andrewkhoh/farmstand-orders/internal/kafka"
	"github.com/andrewkhoh/farmstand-orders/internal/lifecycle"
	"github.com/andrewkhoh/farmstand-orders/internal/logging"
	"github.com/andrewkhoh/farmstand-orders/internal/noshow"
	"github.com/andrewkhoh/farmstand-orders/internal/notify"
	"github.com/andrewkhoh/farmstand-orders/internal/orders"
	"github.com/andrewkhoh/farmstand-orders/internal/postgres"
	"github.com/andrewkhoh/farmstand-orders/internal/realtime"
	"github.com/andrewkhoh/farmstand-orders/internal/redisx"
	"github.com/andrewkhoh/farmstand-orders/internal/reschedule"
	"github.com/andrewkhoh/farmstand-orders/internal/restock"
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

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	events := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, logger)
	events.Start(ctx)
	notifications := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicNotifications, 1024, logger)
	notifications.Start(ctx)

	broadcaster := realtime.New(events, cfg.ServiceName+"-noshowd")
	notifier := &notify.KafkaNotifier{Producer: notifications, Log: logger}

	orderRepo := &orders.Repo{DB: db, Log: logger}
	restocker := &restock.Service{
		Orders:    orderRepo,
		Store:     &restock.Repo{DB: db},
		Broadcast: broadcaster,
		Log:       logger,
	}
	statuses := &lifecycle.Service{
		Store:     orderRepo,
		Restorer:  restocker,
		Notifier:  notifier,
		Broadcast: broadcaster,
		Cache:     &lifecycle.RedisStatusCache{RDB: rdb},
		Log:       logger,
	}
	rescheduler := &reschedule.Service{
		Orders: orderRepo,
		Logs:   &reschedule.Repo{DB: db},
		Cfg: reschedule.Config{
			BusinessOpen:   cfg.BusinessOpen,
			BusinessClose:  cfg.BusinessClose,
			SlotMinutes:    cfg.SlotMinutes,
			MaxAdvanceDays: cfg.MaxAdvanceDays,
			DailyLimit:     cfg.DailyRescheduleMax,
		},
		Log: logger,
	}
	detector := &noshow.Detector{
		Orders:    orderRepo,
		Resched:   rescheduler,
		Statuses:  statuses,
		Logs:      &noshow.Repo{DB: db},
		Notifier:  notifier,
		Broadcast: broadcaster,
		Cfg: noshow.Config{
			GracePeriod:        cfg.GracePeriod,
			RescheduleLookback: cfg.RescheduleLookback,
			AutoCancel:         cfg.AutoCancel,
			NotifyCustomer:     cfg.NotifyCustomer,
		},
		Log: logger,
	}

	monitor := &noshow.Monitor{Detector: detector, Interval: cfg.SweepInterval, Log: logger}
	monitor.Start(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down sweeper...")

	monitor.Stop()
	events.Close()
	notifications.Close()
	cancel()
	events.WaitClosed()
	notifications.WaitClosed()
}
