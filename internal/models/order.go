package models

import "time"

// Статус сравнивается без учёта регистра: перевозчики шлют и "Delivered", и "DELIVERED".
const OrderStatusDelivered = "delivered"

type Order struct {
	OrderNumber  string     `json:"orderNumber"`
	Status       string     `json:"status"`
	LastUpdated  time.Time  `json:"lastUpdated"`
	DeliveredAt  *string    `json:"deliveredAt,omitempty"`
	CanReview    bool       `json:"canReview"`
	HasReview    bool       `json:"hasReview"`
	ReviewID     *string    `json:"reviewId,omitempty"`
	CustomerName string     `json:"customerName,omitempty"`
	ProductName  string     `json:"productName,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`

	TrackingUpdates []*TrackingUpdate `json:"trackingUpdates"`
}

// TrackingUpdate неизменяем после вставки; порядок задаёт последовательность в БД.
type TrackingUpdate struct {
	ID             uint64    `json:"-"`
	OrderNumber    string    `json:"-"`
	Status         string    `json:"status"`
	PreviousStatus *string   `json:"previousStatus,omitempty"`
	UpdatedAt      *string   `json:"updatedAt,omitempty"`
	DeliveryDate   *string   `json:"deliveryDate,omitempty"`
	Remarks        *string   `json:"remarks,omitempty"`
	Location       *string   `json:"location,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Review struct {
	ID           string    `json:"id"`
	OrderID      string    `json:"orderId"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	CustomerName string    `json:"customerName"`
	ProductName  string    `json:"productName"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"createdAt"`
}

type StatusUpdateInput struct {
	AWBNumber      string
	OrderNumber    string
	CurrentStatus  string
	PreviousStatus string
	UpdatedAt      string
	DeliveryDate   string
	Remarks        string
	Location       string
}

type ReviewInput struct {
	OrderID      string
	Rating       int
	Comment      string
	ImageURL     string
	CustomerName string
	ProductName  string
}
