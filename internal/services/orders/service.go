package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/OrderBox/internal/apperr"
	"github.com/BearBump/OrderBox/internal/broker/messages"
	"github.com/BearBump/OrderBox/internal/cache"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/BearBump/OrderBox/internal/storage/pgorders"
	"github.com/pkg/errors"
)

type Repository interface {
	GetOrder(ctx context.Context, orderNumber string) (*models.Order, error)
	ApplyStatusUpdate(ctx context.Context, upd pgorders.StatusUpdate) error
}

type Producer interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type Service struct {
	repo        Repository
	cache       cache.BytesCache
	producer    Producer
	eventsTopic string
	snapshotTTL time.Duration
}

func New(repo Repository, c cache.BytesCache, producer Producer, eventsTopic string, snapshotTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, producer: producer, eventsTopic: eventsTopic, snapshotTTL: snapshotTTL}
}

// ApplyStatusUpdate — протокол webhook-а перевозчика: перезаписать статус,
// обновить last_updated, добавить событие трекинга; статус "delivered"
// (без учёта регистра) дополнительно открывает заказ для отзыва.
func (s *Service) ApplyStatusUpdate(ctx context.Context, in models.StatusUpdateInput) error {
	if in.OrderNumber == "" || in.CurrentStatus == "" {
		return apperr.New(apperr.CodeValidation, "order_number and current_status are required")
	}

	now := time.Now().UTC()
	delivered := strings.EqualFold(in.CurrentStatus, models.OrderStatusDelivered)
	deliveredAt := in.DeliveryDate
	if deliveredAt == "" {
		deliveredAt = now.Format(time.RFC3339)
	}

	upd := pgorders.StatusUpdate{
		OrderNumber:    in.OrderNumber,
		Status:         in.CurrentStatus,
		Now:            now,
		Delivered:      delivered,
		DeliveredAt:    deliveredAt,
		PreviousStatus: optStr(in.PreviousStatus),
		UpdatedAt:      optStr(in.UpdatedAt),
		DeliveryDate:   optStr(in.DeliveryDate),
		Remarks:        optStr(in.Remarks),
		Location:       optStr(in.Location),
	}

	if err := s.repo.ApplyStatusUpdate(ctx, upd); err != nil {
		if errors.Is(err, pgorders.ErrOrderNotFound) {
			return apperr.Wrap(apperr.CodeNotFound, err, "Order not found")
		}
		return apperr.Wrap(apperr.CodeInternal, err, "apply status update")
	}

	s.refreshSnapshot(ctx, in.OrderNumber)

	if s.producer != nil && s.eventsTopic != "" {
		ev := messages.OrderStatusUpdated{
			OrderNumber:    in.OrderNumber,
			NewStatus:      in.CurrentStatus,
			PreviousStatus: in.PreviousStatus,
			Delivered:      delivered,
			UpdatedAt:      now,
		}
		if err := s.producer.PublishJSON(ctx, s.eventsTopic, in.OrderNumber, ev); err != nil {
			slog.Warn("publish order.status-updated failed", "order", in.OrderNumber, "err", err)
		}
	}

	return nil
}

// GetOrder читает заказ через снапшот-кэш; кэш не обязан быть всегда.
func (s *Service) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	if orderNumber == "" {
		return nil, apperr.New(apperr.CodeValidation, "order_number is required")
	}

	if s.cache != nil && s.snapshotTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, snapshotKey(orderNumber)); err == nil && ok {
			var o models.Order
			if json.Unmarshal(b, &o) == nil {
				return &o, nil
			}
		}
	}

	o, err := s.repo.GetOrder(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, pgorders.ErrOrderNotFound) {
			return nil, apperr.Wrap(apperr.CodeNotFound, err, "Order not found")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load order")
	}

	if s.cache != nil && s.snapshotTTL > 0 {
		if b, err := json.Marshal(o); err == nil {
			_ = s.cache.Set(ctx, snapshotKey(orderNumber), b, s.snapshotTTL)
		}
	}
	return o, nil
}

func (s *Service) refreshSnapshot(ctx context.Context, orderNumber string) {
	if s.cache == nil || s.snapshotTTL <= 0 {
		return
	}
	o, err := s.repo.GetOrder(ctx, orderNumber)
	if err != nil {
		return
	}
	if b, err := json.Marshal(o); err == nil {
		_ = s.cache.Set(ctx, snapshotKey(orderNumber), b, s.snapshotTTL)
	}
}

func snapshotKey(orderNumber string) string {
	return fmt.Sprintf("order:%s:current", orderNumber)
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
