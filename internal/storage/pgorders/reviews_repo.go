package pgorders

import (
	"context"

	"github.com/BearBump/OrderBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const uniqueViolationCode = "23505"

// CreateReview пишет отзыв и выставляет флаг на заказе одной транзакцией,
// чтобы отзыв не мог сохраниться без обновления заказа.
func (s *Storage) CreateReview(ctx context.Context, r *models.Review) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO reviews (
  id, order_number, rating, comment, image_url,
  customer_name, product_name, verified, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, r.ID, r.OrderID, r.Rating, r.Comment, r.ImageURL,
		r.CustomerName, r.ProductName, r.Verified, r.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrReviewExists
		}
		return errors.Wrap(err, "insert review")
	}

	tag, err := tx.Exec(ctx, `
UPDATE orders
SET has_review = TRUE, review_id = $2
WHERE order_number = $1
`, r.OrderID, r.ID)
	if err != nil {
		return errors.Wrap(err, "flag order reviewed")
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) GetReviewByOrder(ctx context.Context, orderNumber string) (*models.Review, error) {
	var r models.Review
	err := s.db.QueryRow(ctx, `
SELECT
  id, order_number, rating, comment, image_url,
  customer_name, product_name, verified, created_at
FROM reviews
WHERE order_number = $1
`, orderNumber).Scan(
		&r.ID, &r.OrderID, &r.Rating, &r.Comment, &r.ImageURL,
		&r.CustomerName, &r.ProductName, &r.Verified, &r.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select review")
	}
	return &r, nil
}
