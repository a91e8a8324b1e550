package service

import (
	"context"

	"storefront/internal/models"
)

// ProductRepository is the catalog storage used by the catalog and cart services
type ProductRepository interface {
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// OrderRepository persists orders. CreateOrder decrements stock in the same transaction.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID int64) ([]models.OrderSummary, error)
}

// CustomerRepository persists customer accounts
type CustomerRepository interface {
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, customer *models.Customer) error
}

// EventPublisher publishes checkout events
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishCartClearFailed(ctx context.Context, event *models.CartClearFailedEvent) error
}
