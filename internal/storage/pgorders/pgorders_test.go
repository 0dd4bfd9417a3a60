package pgorders

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/OrderBox/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func strPtr(s string) *string { return &s }

func TestPGOrders_RepoFlow(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "orderbox_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/orderbox_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	now := time.Now().UTC()
	require.NoError(t, st.CreateOrder(ctx, &models.Order{
		OrderNumber:  "ORD123",
		Status:       "shipped",
		CustomerName: "Ivan",
		ProductName:  "Teapot",
		CreatedAt:    now,
	}))

	// неизвестный заказ
	_, err = st.GetOrder(ctx, "NOPE")
	require.ErrorIs(t, err, ErrOrderNotFound)
	err = st.ApplyStatusUpdate(ctx, StatusUpdate{OrderNumber: "NOPE", Status: "x", Now: now})
	require.ErrorIs(t, err, ErrOrderNotFound)

	// обычный апдейт статуса: событие добавляется, delivered-поля не трогаем
	err = st.ApplyStatusUpdate(ctx, StatusUpdate{
		OrderNumber:    "ORD123",
		Status:         "In Transit",
		Now:            now,
		PreviousStatus: strPtr("shipped"),
		Location:       strPtr("Moscow hub"),
	})
	require.NoError(t, err)

	o, err := st.GetOrder(ctx, "ORD123")
	require.NoError(t, err)
	require.Equal(t, "In Transit", o.Status)
	require.Nil(t, o.DeliveredAt)
	require.False(t, o.CanReview)
	require.Len(t, o.TrackingUpdates, 1)
	require.Equal(t, "In Transit", o.TrackingUpdates[0].Status)
	require.Equal(t, "shipped", *o.TrackingUpdates[0].PreviousStatus)
	require.Nil(t, o.TrackingUpdates[0].Remarks)

	// доставка: delivered_at + can_review, события продолжают накапливаться
	err = st.ApplyStatusUpdate(ctx, StatusUpdate{
		OrderNumber:  "ORD123",
		Status:       "Delivered",
		Now:          now,
		Delivered:    true,
		DeliveredAt:  "2024-01-15",
		DeliveryDate: strPtr("2024-01-15"),
	})
	require.NoError(t, err)

	o, err = st.GetOrder(ctx, "ORD123")
	require.NoError(t, err)
	require.Equal(t, "Delivered", o.Status)
	require.Equal(t, "2024-01-15", *o.DeliveredAt)
	require.True(t, o.CanReview)
	require.Len(t, o.TrackingUpdates, 2)

	// повторная доставка идемпотентна по can_review
	err = st.ApplyStatusUpdate(ctx, StatusUpdate{
		OrderNumber: "ORD123",
		Status:      "Delivered",
		Now:         now.Add(time.Minute),
		Delivered:   true,
		DeliveredAt: "2024-01-15",
	})
	require.NoError(t, err)
	o, err = st.GetOrder(ctx, "ORD123")
	require.NoError(t, err)
	require.True(t, o.CanReview)
	require.Len(t, o.TrackingUpdates, 3)

	// отзыв: вставка и флаг заказа в одной транзакции
	_, err = st.GetReviewByOrder(ctx, "ORD123")
	require.ErrorIs(t, err, ErrReviewNotFound)

	rev := &models.Review{
		ID:           "1700000000000abc123",
		OrderID:      "ORD123",
		Rating:       5,
		Comment:      "Great",
		CustomerName: "Ivan",
		ProductName:  "Teapot",
		Verified:     true,
		CreatedAt:    now,
	}
	require.NoError(t, st.CreateReview(ctx, rev))

	o, err = st.GetOrder(ctx, "ORD123")
	require.NoError(t, err)
	require.True(t, o.HasReview)
	require.Equal(t, rev.ID, *o.ReviewID)

	got, err := st.GetReviewByOrder(ctx, "ORD123")
	require.NoError(t, err)
	require.Equal(t, rev.ID, got.ID)
	require.True(t, got.Verified)

	// второй отзыв на тот же заказ блокируется уникальным индексом
	err = st.CreateReview(ctx, &models.Review{
		ID:           "1700000000001xyz789",
		OrderID:      "ORD123",
		Rating:       1,
		Comment:      "Changed my mind",
		CustomerName: "Ivan",
		ProductName:  "Teapot",
		Verified:     true,
		CreatedAt:    now,
	})
	require.ErrorIs(t, err, ErrReviewExists)
}
