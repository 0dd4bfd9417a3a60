package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/OrderBox/internal/api/orderapi"
	"github.com/BearBump/OrderBox/internal/apperr"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeOrders struct {
	applied []models.StatusUpdateInput
	err     error
}

func (f *fakeOrders) ApplyStatusUpdate(ctx context.Context, in models.StatusUpdateInput) error {
	f.applied = append(f.applied, in)
	return f.err
}

func (f *fakeOrders) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	return nil, apperr.New(apperr.CodeNotFound, "Order not found")
}

type fakeReviews struct{}

func (f *fakeReviews) SubmitReview(ctx context.Context, in models.ReviewInput) (*models.Review, error) {
	return nil, apperr.New(apperr.CodeNotFound, "Order not found")
}

type fakeConsumer struct{}

func (c fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunOrderAPI_ServesHealthAndSwagger(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	fo := &fakeOrders{}
	api := orderapi.New(fo, &fakeReviews{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := orderAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: sw,
		topic:       "t",
		group:       "g",
		onListen:    func(httpAddr string) { addrCh <- httpAddr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runOrderAPI(ctx, opts, api, fo, fakeConsumer{})
	}()

	httpAddr := <-addrCh

	resp, err := http.Get("http://" + httpAddr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	resp2, err := http.Get("http://" + httpAddr + "/swagger.json")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, 200, resp2.StatusCode)
	body, _ := io.ReadAll(resp2.Body)
	require.Contains(t, string(body), "\"swagger\"")

	cancel()

	select {
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting server to stop")
	case err := <-errCh:
		require.Error(t, err)
	}
}

func TestRunOrderAPI_SwaggerPathRequired(t *testing.T) {
	err := runOrderAPI(context.Background(), orderAPIOpts{}, nil, nil, fakeConsumer{})
	require.Error(t, err)

	err = runOrderAPI(context.Background(), orderAPIOpts{swaggerPath: "/nope/swagger.json"}, nil, nil, fakeConsumer{})
	require.Error(t, err)
}

func TestStatusUpdateHandler(t *testing.T) {
	ctx := context.Background()

	// валидное сообщение применяется
	fo := &fakeOrders{}
	h := statusUpdateHandler(ctx, fo)
	require.NoError(t, h(nil, []byte(`{"order_number":"ORD1","current_status":"Delivered"}`)))
	require.Len(t, fo.applied, 1)
	require.Equal(t, "ORD1", fo.applied[0].OrderNumber)

	// битый JSON коммитим, а не зацикливаем
	require.NoError(t, h(nil, []byte(`{not json`)))

	// неизвестный заказ тоже коммитим
	fo = &fakeOrders{err: apperr.New(apperr.CodeNotFound, "Order not found")}
	h = statusUpdateHandler(ctx, fo)
	require.NoError(t, h(nil, []byte(`{"order_number":"NOPE","current_status":"x"}`)))

	// инфраструктурная ошибка останавливает цикл
	fo = &fakeOrders{err: apperr.New(apperr.CodeInternal, "pg down")}
	h = statusUpdateHandler(ctx, fo)
	require.Error(t, h(nil, []byte(`{"order_number":"ORD1","current_status":"x"}`)))
}
