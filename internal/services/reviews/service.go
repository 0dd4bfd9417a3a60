package reviews

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/BearBump/OrderBox/internal/apperr"
	"github.com/BearBump/OrderBox/internal/broker/messages"
	"github.com/BearBump/OrderBox/internal/cache"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/BearBump/OrderBox/internal/storage/pgorders"
	"github.com/pkg/errors"
)

const (
	defaultCustomerName = "Anonymous"
	defaultProductName  = "Product"
)

type Repository interface {
	GetOrder(ctx context.Context, orderNumber string) (*models.Order, error)
	GetReviewByOrder(ctx context.Context, orderNumber string) (*models.Review, error)
	CreateReview(ctx context.Context, r *models.Review) error
}

type Producer interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type Service struct {
	repo        Repository
	cache       cache.BytesCache
	producer    Producer
	eventsTopic string
}

func New(repo Repository, c cache.BytesCache, producer Producer, eventsTopic string) *Service {
	return &Service{repo: repo, cache: c, producer: producer, eventsTopic: eventsTopic}
}

// SubmitReview прогоняет цепочку проверок в фиксированном порядке, каждая
// отсекает запрос: обязательные поля, диапазон рейтинга, существование
// заказа, право на отзыв, отсутствие дубликата.
func (s *Service) SubmitReview(ctx context.Context, in models.ReviewInput) (*models.Review, error) {
	in.Comment = strings.TrimSpace(in.Comment)
	if in.OrderID == "" || in.Rating == 0 || in.Comment == "" {
		return nil, apperr.New(apperr.CodeValidation, "orderId, rating and comment are required")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.New(apperr.CodeValidation, "rating must be between 1 and 5")
	}

	o, err := s.repo.GetOrder(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, pgorders.ErrOrderNotFound) {
			return nil, apperr.Wrap(apperr.CodeNotFound, err, "Order not found")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load order")
	}

	if !o.CanReview && !strings.EqualFold(o.Status, models.OrderStatusDelivered) {
		return nil, apperr.New(apperr.CodeValidation, "can only review delivered orders")
	}

	if _, err := s.repo.GetReviewByOrder(ctx, in.OrderID); err == nil {
		return nil, apperr.New(apperr.CodeValidation, "review already exists")
	} else if !errors.Is(err, pgorders.ErrReviewNotFound) {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "check existing review")
	}

	rev := &models.Review{
		ID:           newReviewID(),
		OrderID:      in.OrderID,
		Rating:       in.Rating,
		Comment:      in.Comment,
		ImageURL:     in.ImageURL,
		CustomerName: fallback(in.CustomerName, o.CustomerName, defaultCustomerName),
		ProductName:  fallback(in.ProductName, o.ProductName, defaultProductName),
		Verified:     true, // сюда попадают только заказы, известные стору
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.CreateReview(ctx, rev); err != nil {
		if errors.Is(err, pgorders.ErrReviewExists) {
			return nil, apperr.Wrap(apperr.CodeValidation, err, "review already exists")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, err, "create review")
	}

	if s.cache != nil {
		// Снапшот заказа устарел (has_review/review_id), пусть перечитается из БД.
		_ = s.cache.Del(ctx, fmt.Sprintf("order:%s:current", in.OrderID))
	}

	if s.producer != nil && s.eventsTopic != "" {
		ev := messages.ReviewCreated{
			ReviewID:    rev.ID,
			OrderNumber: rev.OrderID,
			Rating:      rev.Rating,
			CreatedAt:   rev.CreatedAt,
		}
		if err := s.producer.PublishJSON(ctx, s.eventsTopic, rev.OrderID, ev); err != nil {
			slog.Warn("publish review.created failed", "order", rev.OrderID, "err", err)
		}
	}

	return rev, nil
}

const reviewIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// newReviewID: миллисекундный таймстемп плюс случайный суффикс.
// Коллизии считаем пренебрежимо маловероятными; уникальный индекс в БД
// всё равно не даст второму отзыву привязаться к заказу.
func newReviewID() string {
	suffix := make([]byte, 7)
	for i := range suffix {
		suffix[i] = reviewIDAlphabet[rand.IntN(len(reviewIDAlphabet))]
	}
	return fmt.Sprintf("%d%s", time.Now().UnixMilli(), suffix)
}

func fallback(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
