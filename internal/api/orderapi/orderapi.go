package orderapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/OrderBox/internal/apperr"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type OrdersService interface {
	ApplyStatusUpdate(ctx context.Context, in models.StatusUpdateInput) error
	GetOrder(ctx context.Context, orderNumber string) (*models.Order, error)
}

type ReviewsService interface {
	SubmitReview(ctx context.Context, in models.ReviewInput) (*models.Review, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type API struct {
	orders  OrdersService
	reviews ReviewsService

	limiter           RateLimiter
	reviewLimitPerMin int64

	corsOrigins []string
}

func New(orders OrdersService, reviews ReviewsService) *API {
	return &API{orders: orders, reviews: reviews}
}

func (a *API) WithRateLimiter(rl RateLimiter, reviewsPerMinute int64) *API {
	a.limiter = rl
	a.reviewLimitPerMin = reviewsPerMinute
	return a
}

func (a *API) WithCORSOrigins(origins []string) *API {
	a.corsOrigins = origins
	return a
}

func (a *API) Router() *chi.Mux {
	origins := a.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	// Preflight OPTIONS возвращает пустой 200 с разрешающими заголовками.
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}).Handler)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	r.Post("/webhooks/shipping", a.handleShippingWebhook)
	r.Options("/webhooks/shipping", handleOptions)
	r.Post("/reviews", a.handleSubmitReview)
	r.Options("/reviews", handleOptions)
	r.Get("/orders/{orderNumber}", a.handleGetOrder)

	return r
}

// Голый OPTIONS (не preflight) тоже отвечает пустым 200.
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type webhookRequest struct {
	AWBNumber      string `json:"awb_number"`
	OrderNumber    string `json:"order_number" validate:"required"`
	CurrentStatus  string `json:"current_status" validate:"required"`
	PreviousStatus string `json:"previous_status"`
	UpdatedAt      string `json:"updated_at"`
	DeliveryDate   string `json:"delivery_date"`
	Remarks        string `json:"remarks"`
	Location       string `json:"location"`
}

func (a *API) handleShippingWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := a.orders.ApplyStatusUpdate(r.Context(), models.StatusUpdateInput{
		AWBNumber:      req.AWBNumber,
		OrderNumber:    req.OrderNumber,
		CurrentStatus:  req.CurrentStatus,
		PreviousStatus: req.PreviousStatus,
		UpdatedAt:      req.UpdatedAt,
		DeliveryDate:   req.DeliveryDate,
		Remarks:        req.Remarks,
		Location:       req.Location,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Order status updated",
		"order_number": req.OrderNumber,
		"new_status":   req.CurrentStatus,
	})
}

type reviewRequest struct {
	OrderID      string `json:"orderId" validate:"required"`
	Rating       int    `json:"rating" validate:"required"`
	Comment      string `json:"comment" validate:"required"`
	ImageURL     string `json:"imageUrl"`
	CustomerName string `json:"customerName"`
	ProductName  string `json:"productName"`
}

func (a *API) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	if a.limiter != nil && a.reviewLimitPerMin > 0 {
		ok, _, err := a.limiter.Allow(r.Context(), "rl:reviews:"+clientIP(r), a.reviewLimitPerMin, time.Minute)
		// недоступный redis не должен ронять сабмиты
		if err == nil && !ok {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
	}

	var req reviewRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rev, err := a.reviews.SubmitReview(r.Context(), models.ReviewInput{
		OrderID:      req.OrderID,
		Rating:       req.Rating,
		Comment:      req.Comment,
		ImageURL:     req.ImageURL,
		CustomerName: req.CustomerName,
		ProductName:  req.ProductName,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"review_id": rev.ID,
		"message":   "Review submitted",
		"review":    rev,
	})
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.orders.GetOrder(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   o,
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation:
		writeError(w, http.StatusBadRequest, apperr.MessageOf(err))
	case apperr.CodeNotFound:
		writeError(w, http.StatusNotFound, apperr.MessageOf(err))
	default:
		// для 500 отдаём и текст исходного сбоя
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
