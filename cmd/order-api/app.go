package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/OrderBox/internal/api/orderapi"
	"github.com/BearBump/OrderBox/internal/apperr"
	"github.com/BearBump/OrderBox/internal/broker/messages"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type orderAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic string
	group string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type statusUpdateApplier interface {
	ApplyStatusUpdate(ctx context.Context, in models.StatusUpdateInput) error
}

func runOrderAPI(ctx context.Context, opts orderAPIOpts, api *orderapi.API, applier statusUpdateApplier, consumer kafkaConsumer) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	// Serve swagger with no-cache + cachebuster.
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	r.Mount("/", api.Router())

	go func() {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.group)
		if err := consumer.Consume(ctx, statusUpdateHandler(ctx, applier)); err != nil && ctx.Err() == nil {
			slog.Error("kafka consumer stopped", "err", err)
		}
	}()

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}

// statusUpdateHandler применяет апдейты перевозчиков, пришедшие через брокер.
// Битые сообщения и бизнес-отказы логируются и коммитятся, чтобы не
// зациклить консьюмер; инфраструктурная ошибка останавливает цикл без коммита.
func statusUpdateHandler(ctx context.Context, applier statusUpdateApplier) func(key, value []byte) error {
	return func(_key, value []byte) error {
		var m messages.ShippingStatusUpdate
		if err := json.Unmarshal(value, &m); err != nil {
			slog.Warn("skip malformed status update", "err", err)
			return nil
		}

		err := applier.ApplyStatusUpdate(ctx, models.StatusUpdateInput{
			AWBNumber:      m.AWBNumber,
			OrderNumber:    m.OrderNumber,
			CurrentStatus:  m.CurrentStatus,
			PreviousStatus: m.PreviousStatus,
			UpdatedAt:      m.UpdatedAt,
			DeliveryDate:   m.DeliveryDate,
			Remarks:        m.Remarks,
			Location:       m.Location,
		})
		if err == nil {
			return nil
		}
		if code := apperr.CodeOf(err); code == apperr.CodeValidation || code == apperr.CodeNotFound {
			slog.Warn("skip status update", "order", m.OrderNumber, "err", err)
			return nil
		}
		return err
	}
}
