package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/models"
)

// CreateCustomer inserts a customer. A taken email fails with ErrDuplicate.
func (s *Store) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	query := `
		INSERT INTO customers (name, email, address, phone_number, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		customer.Name, customer.Email, customer.Address, customer.PhoneNumber, customer.PasswordHash,
	).Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("customer email %q: %w", customer.Email, ErrDuplicate)
	}
	return err
}

// GetCustomerByID retrieves a customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, "SELECT * FROM customers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomerByEmail retrieves a customer by email
func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, "SELECT * FROM customers WHERE lower(email) = lower($1)", email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// UpdateCustomer updates profile fields and password hash
func (s *Store) UpdateCustomer(ctx context.Context, customer *models.Customer) error {
	err := s.db.QueryRowxContext(ctx, `
		UPDATE customers
		SET name = $1, email = $2, address = $3, phone_number = $4, password_hash = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`,
		customer.Name, customer.Email, customer.Address, customer.PhoneNumber, customer.PasswordHash, customer.ID,
	).Scan(&customer.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("customer %d: %w", customer.ID, ErrNotFound)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("customer email %q: %w", customer.Email, ErrDuplicate)
	}
	return err
}
