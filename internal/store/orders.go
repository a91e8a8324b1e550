package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/lib/pq"
)

const orderColumns = `
	id, order_date, COALESCE(customer_id, 0) AS customer_id, is_guest, session_id,
	COALESCE(idempotency_key, '') AS idempotency_key, customer_name, email, address,
	phone_number, payment_method, status, total_price, shipping_fee, grand_total`

// CreateOrder persists the order and its items and decrements product stock,
// all in one transaction. Stock that would go negative fails with ErrOutOfStock.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range order.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("product %d: quantity %d: %w", item.ProductID, item.Quantity, ErrInvalidQuantity)
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1",
			item.Quantity, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("product %d: %w", item.ProductID, ErrOutOfStock)
		}
	}

	query := `
		INSERT INTO orders (customer_id, is_guest, session_id, idempotency_key, customer_name,
			email, address, phone_number, payment_method, status, total_price, shipping_fee, grand_total)
		VALUES (NULLIF($1, 0), $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, order_date`

	err = tx.QueryRowxContext(ctx, query,
		order.CustomerID, order.IsGuest, order.SessionID, order.IdempotencyKey, order.CustomerName,
		order.Email, order.Address, order.PhoneNumber, order.PaymentMethod, order.Status,
		order.TotalPrice, order.ShippingFee, order.GrandTotal,
	).Scan(&order.ID, &order.OrderDate)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order idempotency key %q: %w", order.IdempotencyKey, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, product_id, product_name, image_url, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			item.OrderID, item.ProductID, item.Name, item.ImageURL, item.Quantity, item.UnitPrice, item.Subtotal)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.withItems(ctx, &order)
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key, nil when absent
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.withItems(ctx, &order)
}

func (s *Store) withItems(ctx context.Context, order *models.Order) (*models.Order, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, product_name, image_url, quantity, unit_price, subtotal
		FROM order_items WHERE order_id = $1 ORDER BY id`, order.ID)
	if err != nil {
		return nil, err
	}

	order.Items = items
	order.CustomerInfo = models.CustomerInfo{
		CustomerID:  order.CustomerID,
		Name:        order.CustomerName,
		Email:       order.Email,
		Address:     order.Address,
		PhoneNumber: order.PhoneNumber,
	}
	return order, nil
}

// ListOrdersByCustomer retrieves order summaries for a customer, newest first
func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]models.OrderSummary, error) {
	orders := []models.OrderSummary{}
	err := s.db.SelectContext(ctx, &orders, `
		SELECT id, order_date, grand_total, status
		FROM orders WHERE customer_id = $1
		ORDER BY order_date DESC, id DESC`, customerID)
	return orders, err
}

// CreateReconciliation records an order whose cart could not be cleared.
// Repeated event ids are ignored.
func (s *Store) CreateReconciliation(ctx context.Context, rec *models.Reconciliation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliations (event_id, order_id, session_id, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING`,
		rec.EventID, rec.OrderID, rec.SessionID, rec.Reason)
	return err
}

// ListReconciliations returns all recorded reconciliations, newest first
func (s *Store) ListReconciliations(ctx context.Context) ([]models.Reconciliation, error) {
	recs := []models.Reconciliation{}
	err := s.db.SelectContext(ctx, &recs,
		"SELECT id, event_id, order_id, session_id, reason, created_at FROM reconciliations ORDER BY id DESC")
	return recs, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
