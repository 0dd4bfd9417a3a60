package pgorders

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  order_number TEXT PRIMARY KEY,
  status TEXT NOT NULL,
  last_updated TIMESTAMPTZ NOT NULL,
  delivered_at TEXT NULL,
  can_review BOOLEAN NOT NULL DEFAULT FALSE,
  has_review BOOLEAN NOT NULL DEFAULT FALSE,
  review_id TEXT NULL,
  customer_name TEXT NOT NULL DEFAULT '',
  product_name TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS tracking_updates (
  id BIGSERIAL PRIMARY KEY,
  order_number TEXT NOT NULL REFERENCES orders(order_number) ON DELETE CASCADE,
  status TEXT NOT NULL,
  previous_status TEXT NULL,
  updated_at TEXT NULL,
  delivery_date TEXT NULL,
  remarks TEXT NULL,
  location TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_updates_order_number_id ON tracking_updates(order_number, id)`,
		`
CREATE TABLE IF NOT EXISTS reviews (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL REFERENCES orders(order_number),
  rating INT NOT NULL,
  comment TEXT NOT NULL,
  image_url TEXT NOT NULL DEFAULT '',
  customer_name TEXT NOT NULL,
  product_name TEXT NOT NULL,
  verified BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL
)`,
		// Страховка инварианта "не больше одного отзыва на заказ" при гонке двух сабмитов.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_reviews_order_number ON reviews(order_number)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
