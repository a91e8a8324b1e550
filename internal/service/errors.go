package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"storefront/internal/models"
	"storefront/internal/session"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrValidationFailed  = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid checkout transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrEmailTaken        = errors.New("email already registered")
	ErrCartClearFailed   = errors.New("order placed but cart was not cleared")

	// ErrPersistence is shared with the session package so storage failures
	// from either layer match the same sentinel.
	ErrPersistence = session.ErrPersistence
)

// ValidationError carries per-field messages keyed by JSON field name
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// CartClearError reports an order that was persisted while the session write
// that clears its cart failed. The order is not rolled back.
type CartClearError struct {
	Order *models.Order
	Err   error
}

func (e *CartClearError) Error() string {
	return fmt.Sprintf("order %d placed but cart was not cleared: %v", e.Order.ID, e.Err)
}

func (e *CartClearError) Is(target error) bool {
	return target == ErrCartClearFailed
}

func (e *CartClearError) Unwrap() error {
	return e.Err
}

func persistenceErr(op string, err error) error {
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}
