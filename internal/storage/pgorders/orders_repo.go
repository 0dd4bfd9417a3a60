package pgorders

import (
	"context"
	"time"

	"github.com/BearBump/OrderBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// StatusUpdate — одна атомарная мутация заказа: смена статуса плюс
// append события трекинга. Опциональные поля события хранятся как NULL.
type StatusUpdate struct {
	OrderNumber string
	Status      string

	Now time.Time

	Delivered   bool
	DeliveredAt string

	PreviousStatus *string
	UpdatedAt      *string
	DeliveryDate   *string
	Remarks        *string
	Location       *string
}

// CreateOrder заводит запись заказа. В проде это делает система оформления
// заказов, пишущая в ту же таблицу; здесь используется тестами и сидингом.
func (s *Storage) CreateOrder(ctx context.Context, o *models.Order) error {
	now := o.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	lastUpdated := o.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = now
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO orders (
  order_number, status, last_updated, delivered_at, can_review,
  has_review, review_id, customer_name, product_name, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (order_number) DO NOTHING
`, o.OrderNumber, o.Status, lastUpdated, o.DeliveredAt, o.CanReview,
		o.HasReview, o.ReviewID, o.CustomerName, o.ProductName, now)
	return errors.Wrap(err, "insert order")
}

func (s *Storage) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	var o models.Order
	err := s.db.QueryRow(ctx, `
SELECT
  order_number, status, last_updated,
  delivered_at, can_review, has_review, review_id,
  customer_name, product_name, created_at
FROM orders
WHERE order_number = $1
`, orderNumber).Scan(
		&o.OrderNumber, &o.Status, &o.LastUpdated,
		&o.DeliveredAt, &o.CanReview, &o.HasReview, &o.ReviewID,
		&o.CustomerName, &o.ProductName, &o.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}

	rows, err := s.db.Query(ctx, `
SELECT
  id, order_number, status, previous_status,
  updated_at, delivery_date, remarks, location, created_at
FROM tracking_updates
WHERE order_number = $1
ORDER BY id ASC
`, orderNumber)
	if err != nil {
		return nil, errors.Wrap(err, "select tracking updates")
	}
	defer rows.Close()

	for rows.Next() {
		var u models.TrackingUpdate
		if err := rows.Scan(
			&u.ID, &u.OrderNumber, &u.Status, &u.PreviousStatus,
			&u.UpdatedAt, &u.DeliveryDate, &u.Remarks, &u.Location, &u.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan tracking update")
		}
		o.TrackingUpdates = append(o.TrackingUpdates, &u)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	return &o, nil
}

func (s *Storage) ApplyStatusUpdate(ctx context.Context, upd StatusUpdate) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var tag pgconn.CommandTag
	if upd.Delivered {
		// Повторная "доставка" идемпотентна: can_review остаётся true,
		// delivered_at перезаписывается датой из события.
		tag, err = tx.Exec(ctx, `
UPDATE orders
SET
  status = $2,
  last_updated = $3,
  delivered_at = $4,
  can_review = TRUE
WHERE order_number = $1
`, upd.OrderNumber, upd.Status, upd.Now.UTC(), upd.DeliveredAt)
	} else {
		tag, err = tx.Exec(ctx, `
UPDATE orders
SET
  status = $2,
  last_updated = $3
WHERE order_number = $1
`, upd.OrderNumber, upd.Status, upd.Now.UTC())
	}
	if err != nil {
		return errors.Wrap(err, "update order")
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	_, err = tx.Exec(ctx, `
INSERT INTO tracking_updates (
  order_number, status, previous_status, updated_at,
  delivery_date, remarks, location, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, upd.OrderNumber, upd.Status, upd.PreviousStatus, upd.UpdatedAt,
		upd.DeliveryDate, upd.Remarks, upd.Location, upd.Now.UTC())
	if err != nil {
		return errors.Wrap(err, "insert tracking update")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}
