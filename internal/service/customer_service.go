package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// RegisterRequest is the input for creating an account
type RegisterRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Address     string `json:"address" validate:"required,min=5,max=500"`
	PhoneNumber string `json:"phoneNumber" validate:"required,domestic_phone"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
}

// UpdateProfileRequest changes profile fields. CurrentPassword is always
// required; NewPassword is optional.
type UpdateProfileRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=100"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Address         string `json:"address" validate:"required,min=5,max=500"`
	PhoneNumber     string `json:"phoneNumber" validate:"required,domestic_phone"`
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"omitempty,min=8,max=72"`
}

// CustomerService manages accounts and binds them to sessions
type CustomerService struct {
	customers CustomerRepository
	sessions  session.Store
	validate  *validator.Validate
	hashCost  int
	logger    *zap.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(customers CustomerRepository, sessions session.Store) *CustomerService {
	return &CustomerService{
		customers: customers,
		sessions:  sessions,
		validate:  newValidator(),
		hashCost:  bcrypt.DefaultCost,
		logger:    util.GetLogger(),
	}
}

// Register creates an account and logs the session into it
func (s *CustomerService) Register(ctx context.Context, sessionID string, req RegisterRequest) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.Register")
	defer span.End()

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Address = strings.TrimSpace(req.Address)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if err := s.validate.Struct(req); err != nil {
		return nil, fieldErrors(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	customer := &models.Customer{
		Name:         req.Name,
		Email:        req.Email,
		Address:      req.Address,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: string(hash),
	}
	if err := s.customers.CreateCustomer(ctx, customer); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%s: %w", req.Email, ErrEmailTaken)
		}
		return nil, persistenceErr("create customer", err)
	}

	if err := s.bind(ctx, sessionID, customer.ID); err != nil {
		return nil, err
	}

	s.logger.Info("Customer registered", zap.Int64("customer_id", customer.ID))
	return customer, nil
}

// Login checks credentials and binds the session to the customer. The
// session's cart is kept.
func (s *CustomerService) Login(ctx context.Context, sessionID, email, password string) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.Login")
	defer span.End()

	customer, err := s.customers.GetCustomerByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, persistenceErr("load customer", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("Login rejected", zap.Int64("customer_id", customer.ID))
		return nil, ErrUnauthorized
	}

	if err := s.bind(ctx, sessionID, customer.ID); err != nil {
		return nil, err
	}
	return customer, nil
}

// RotateSession moves the session record to a fresh id and drops the old
// one. Called after a login so a session id known before authentication
// stops being valid.
func (s *CustomerService) RotateSession(ctx context.Context, sessionID string) (string, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.RotateSession")
	defer span.End()

	data, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}

	newID := uuid.New().String()
	err = s.sessions.Update(ctx, newID, func(d *session.Data) error {
		*d = *data
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return "", err
	}
	return newID, nil
}

// Logout drops the whole session record, cart included
func (s *CustomerService) Logout(ctx context.Context, sessionID string) error {
	ctx, span := util.StartSpan(ctx, "CustomerService.Logout")
	defer span.End()

	return s.sessions.Delete(ctx, sessionID)
}

// GetProfile returns the customer logged into the session, or ErrUnauthorized
func (s *CustomerService) GetProfile(ctx context.Context, sessionID string) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.GetProfile")
	defer span.End()

	data, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, persistenceErr("load session", err)
	}
	if data.CustomerID == 0 {
		return nil, ErrUnauthorized
	}

	customer, err := s.customers.GetCustomerByID(ctx, data.CustomerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, persistenceErr("load customer", err)
	}
	return customer, nil
}

// UpdateProfile changes the logged-in customer's profile after verifying the
// current password
func (s *CustomerService) UpdateProfile(ctx context.Context, sessionID string, req UpdateProfileRequest) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.UpdateProfile")
	defer span.End()

	customer, err := s.GetProfile(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Address = strings.TrimSpace(req.Address)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if err := s.validate.Struct(req); err != nil {
		return nil, fieldErrors(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return nil, fmt.Errorf("current password: %w", ErrUnauthorized)
	}

	customer.Name = req.Name
	customer.Email = req.Email
	customer.Address = req.Address
	customer.PhoneNumber = req.PhoneNumber
	if req.NewPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.hashCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		customer.PasswordHash = string(hash)
	}

	if err := s.customers.UpdateCustomer(ctx, customer); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, fmt.Errorf("%s: %w", req.Email, ErrEmailTaken)
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrUnauthorized
		}
		return nil, persistenceErr("update customer", err)
	}

	s.logger.Info("Customer profile updated", zap.Int64("customer_id", customer.ID))
	return customer, nil
}

// CustomerID returns the id of the customer logged into the session, 0 for guests
func (s *CustomerService) CustomerID(ctx context.Context, sessionID string) (int64, error) {
	data, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return 0, persistenceErr("load session", err)
	}
	return data.CustomerID, nil
}

func (s *CustomerService) bind(ctx context.Context, sessionID string, customerID int64) error {
	return s.sessions.Update(ctx, sessionID, func(d *session.Data) error {
		d.CustomerID = customerID
		return nil
	})
}
