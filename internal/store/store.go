package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
	// ErrOutOfStock is returned when a stock decrement would go negative
	ErrOutOfStock = errors.New("out of stock")
	// ErrDuplicate is returned on unique constraint violations
	ErrDuplicate = errors.New("duplicate")
	// ErrInvalidQuantity is returned for order lines with a quantity below one
	ErrInvalidQuantity = errors.New("invalid quantity")
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const productColumns = `
	p.id, p.name, p.description, p.price, p.stock,
	p.category_id, c.name AS category_name, p.image_url`

// ListProducts retrieves products matching the filter ordered by id
func (s *Store) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query := `SELECT` + productColumns + `
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE ($1::text = '' OR c.name = $1::text)
		  AND ($2::text = '' OR strpos(lower(p.name), lower($2::text)) > 0 OR strpos(lower(p.description), lower($2::text)) > 0)
		ORDER BY p.id`

	category := filter.Category
	if strings.EqualFold(category, "all") {
		category = ""
	}

	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, query, category, filter.SearchTerm)
	return products, err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `SELECT`+productColumns+`
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In(`SELECT`+productColumns+`
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// ListCategories retrieves all categories
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.db.SelectContext(ctx, &categories, "SELECT id, name FROM categories ORDER BY id")
	return categories, err
}
