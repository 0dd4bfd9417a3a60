package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/OrderBox/config"
	"github.com/BearBump/OrderBox/internal/api/orderapi"
	"github.com/BearBump/OrderBox/internal/broker/kafka"
	"github.com/BearBump/OrderBox/internal/cache/rediscache"
	"github.com/BearBump/OrderBox/internal/services/orders"
	"github.com/BearBump/OrderBox/internal/services/reviews"
	"github.com/BearBump/OrderBox/internal/storage/pgorders"
)

type orderAPIApp struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opts      orderAPIOpts
	api       *orderapi.API
	ordersSvc *orders.Service
	consumer  *kafka.Consumer
	closeDB   func()
}

func mustBootstrapOrderAPI() *orderAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.OrderBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.OrderBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "order-api"
	}
	statusTopic := cfg.Kafka.StatusUpdateTopicName
	if statusTopic == "" {
		statusTopic = "shipping.status-update"
	}
	eventsTopic := cfg.Kafka.OrderEventsTopicName
	if eventsTopic == "" {
		eventsTopic = "order.events"
	}

	snapshotTTL := time.Duration(cfg.OrderBox.OrderSnapshotTTLSeconds) * time.Second
	if snapshotTTL <= 0 {
		snapshotTTL = 10 * time.Minute
	}
	reviewLimit := int64(cfg.OrderBox.ReviewRateLimitPerMinute)
	if reviewLimit <= 0 {
		reviewLimit = 10
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, statusTopic, consumerGroup)

	ordersSvc := orders.New(st, rc, producer, eventsTopic, snapshotTTL)
	reviewsSvc := reviews.New(st, rc, producer, eventsTopic)

	api := orderapi.New(ordersSvc, reviewsSvc).
		WithRateLimiter(rl, reviewLimit).
		WithCORSOrigins(cfg.OrderBox.CORSAllowedOrigins)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &orderAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: orderAPIOpts{
			httpAddr:    httpAddr,
			swaggerPath: swaggerPath,
			topic:       statusTopic,
			group:       consumerGroup,
		},
		api:       api,
		ordersSvc: ordersSvc,
		consumer:  consumer,
		closeDB:   st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgorders.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgorders.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *orderAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *orderAPIApp) Run() error {
	return runOrderAPI(a.ctx, a.opts, a.api, a.ordersSvc, a.consumer)
}
