package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/andrewkhoh/farmstand-orders/internal/config"
	"github.com/andrewkhoh/farmstand-orders/internal/httpx"
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

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers: realtime events + outbound notifications
	events := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, logger)
	events.Start(ctx)
	notifications := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicNotifications, 1024, logger)
	notifications.Start(ctx)

	broadcaster := realtime.New(events, cfg.ServiceName)
	notifier := &notify.KafkaNotifier{Producer: notifications, Log: logger}

	// Repos
	orderRepo := &orders.Repo{DB: db, Log: logger}
	restockRepo := &restock.Repo{DB: db}
	reschedRepo := &reschedule.Repo{DB: db}
	noshowRepo := &noshow.Repo{DB: db}
	cache := &lifecycle.RedisStatusCache{RDB: rdb}

	// Services
	restocker := &restock.Service{
		Orders:    orderRepo,
		Store:     restockRepo,
		Broadcast: broadcaster,
		Log:       logger,
	}
	statuses := &lifecycle.Service{
		Store:     orderRepo,
		Restorer:  restocker,
		Notifier:  notifier,
		Broadcast: broadcaster,
		Cache:     cache,
		Log:       logger,
	}
	orderSvc := &orders.Service{
		Store:     orderRepo,
		Notifier:  notifier,
		Broadcast: broadcaster,
		TaxRate:   cfg.TaxRate,
		Log:       logger,
	}
	rescheduler := &reschedule.Service{
		Orders:    orderRepo,
		Logs:      reschedRepo,
		Notifier:  notifier,
		Broadcast: broadcaster,
		Counter:   &redisx.RescheduleCounter{RDB: rdb},
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
		Logs:      noshowRepo,
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

	// Router & handlers
	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Orders:     orderSvc,
		Statuses:   statuses,
		Reschedule: rescheduler,
		NoShow:     detector,
		Cache:      cache,
		JWTSecret:  cfg.JWTSecret,
		Log:        logger,
	}
	oh.Register(router)
	ah := &httpx.AdminHandler{
		Orders:    orderSvc,
		Statuses:  statuses,
		Restock:   restocker,
		NoShow:    detector,
		JWTSecret: cfg.JWTSecret,
		Log:       logger,
	}
	ah.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	events.Close() // close inbox -> flush & close writer
	notifications.Close()
	cancel()
	events.WaitClosed()
	notifications.WaitClosed()
}
