package messages

import "time"

// ShippingStatusUpdate — это тот же payload, что и у webhook-эндпоинта:
// перевозчики, интегрированные через брокер, шлют его в топик вместо HTTP.
type ShippingStatusUpdate struct {
	AWBNumber      string `json:"awb_number,omitempty"`
	OrderNumber    string `json:"order_number"`
	CurrentStatus  string `json:"current_status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
	DeliveryDate   string `json:"delivery_date,omitempty"`
	Remarks        string `json:"remarks,omitempty"`
	Location       string `json:"location,omitempty"`
}

type OrderStatusUpdated struct {
	OrderNumber    string    `json:"order_number"`
	NewStatus      string    `json:"new_status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Delivered      bool      `json:"delivered"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ReviewCreated struct {
	ReviewID    string    `json:"review_id"`
	OrderNumber string    `json:"order_number"`
	Rating      int       `json:"rating"`
	CreatedAt   time.Time `json:"created_at"`
}
