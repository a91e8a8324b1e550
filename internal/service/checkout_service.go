package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// errReplay aborts the session update when an idempotency key already has an order
var errReplay = errors.New("idempotent replay")

// CheckoutService drives the checkout workflow and turns a cart into an order
type CheckoutService struct {
	sessions  session.Store
	cart      *CartService
	orders    OrderRepository
	customers CustomerRepository
	publisher EventPublisher
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	sessions session.Store,
	cart *CartService,
	orders OrderRepository,
	customers CustomerRepository,
	publisher EventPublisher,
) *CheckoutService {
	return &CheckoutService{
		sessions:  sessions,
		cart:      cart,
		orders:    orders,
		customers: customers,
		publisher: publisher,
		validate:  newValidator(),
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// CheckoutView is the workflow state together with a live cart preview
type CheckoutView struct {
	State *models.CheckoutState `json:"state"`
	Cart  *models.Cart          `json:"cart"`
}

// ConfirmRequest carries the inputs of an order confirmation. A nil
// CustomerInfo means the info submitted earlier in the workflow is used.
type ConfirmRequest struct {
	CustomerInfo   *models.CustomerInfo
	PaymentMethod  models.PaymentMethod
	IdempotencyKey string
}

// Begin starts checkout for a non-empty cart. A logged-in customer's profile
// pre-fills the customer info; info entered in an unfinished attempt is kept.
func (s *CheckoutService) Begin(ctx context.Context, sessionID string) (*CheckoutView, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Begin")
	defer span.End()

	var state *models.CheckoutState
	var items map[string]models.CartItem
	err := s.sessions.Update(ctx, sessionID, func(d *session.Data) error {
		if len(d.Items) == 0 {
			return ErrEmptyCart
		}

		next := &models.CheckoutState{
			Stage:     models.StageCollectingCustomerInfo,
			UpdatedAt: s.now(),
		}

		prev := d.Checkout
		if prev != nil && prev.Stage != models.StagePlaced && prev.CustomerInfo != nil {
			next.CustomerInfo = prev.Clone().CustomerInfo
			next.PaymentMethod = prev.PaymentMethod
		} else if d.CustomerID != 0 {
			info, err := s.profileInfo(ctx, d.CustomerID)
			if err != nil {
				return err
			}
			next.CustomerInfo = info
		}

		d.Checkout = next
		state = next.Clone()
		items = d.Items
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.CheckoutTransitionsTotal.WithLabelValues(string(state.Stage)).Inc()
	return s.view(ctx, state, items)
}

// State returns the current workflow state. A session that never started
// checkout is in the BROWSING stage.
func (s *CheckoutService) State(ctx context.Context, sessionID string) (*CheckoutView, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.State")
	defer span.End()

	data, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, persistenceErr("load session", err)
	}

	state := data.Checkout
	if state == nil {
		state = &models.CheckoutState{Stage: models.StageBrowsing}
	}
	return s.view(ctx, state, data.Items)
}

// SubmitCustomerInfo validates customer info and payment method and moves the
// workflow to REVIEWING_CONFIRMATION. On validation failure the stage and the
// previously accepted info stay as they were and the field errors are recorded.
func (s *CheckoutService) SubmitCustomerInfo(ctx context.Context, sessionID string, info models.CustomerInfo, method models.PaymentMethod) (*CheckoutView, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.SubmitCustomerInfo")
	defer span.End()

	var state *models.CheckoutState
	var items map[string]models.CartItem
	var invalid error
	err := s.sessions.Update(ctx, sessionID, func(d *session.Data) error {
		st := d.Checkout
		if st == nil || (st.Stage != models.StageCollectingCustomerInfo && st.Stage != models.StageReviewingConfirmation) {
			return fmt.Errorf("submit customer info: %w", ErrInvalidTransition)
		}
		if len(d.Items) == 0 {
			return ErrEmptyCart
		}

		normalized, err := validateCheckout(s.validate, info, method)
		if err != nil {
			var ve *ValidationError
			if !errors.As(err, &ve) {
				return err
			}
			st.FieldErrors = ve.Fields
			st.UpdatedAt = s.now()
			invalid = err
			state = st.Clone()
			items = d.Items
			return nil
		}

		snapshot, _, err := s.cart.price(ctx, d.Items)
		if err != nil {
			return err
		}

		normalized.CustomerID = d.CustomerID
		st.Stage = models.StageReviewingConfirmation
		st.CustomerInfo = &normalized
		st.PaymentMethod = method
		st.CartSnapshot = snapshot
		st.FieldErrors = nil
		st.UpdatedAt = s.now()

		state = st.Clone()
		items = d.Items
		return nil
	})
	if err != nil {
		return nil, err
	}
	if invalid != nil {
		return nil, invalid
	}

	util.CheckoutTransitionsTotal.WithLabelValues(string(state.Stage)).Inc()
	return s.view(ctx, state, items)
}

// Confirm places the order. The live cart is read, the order persisted with
// its stock decrement and the cart cleared while the session lock is held.
//
// When the order is persisted but the session write fails, the returned error
// is a *CartClearError carrying the order.
func (s *CheckoutService) Confirm(ctx context.Context, sessionID string, req ConfirmRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Confirm")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderConfirmLatency.Observe(time.Since(start).Seconds())
	}()

	var placed, replay *models.Order
	err := s.sessions.Update(ctx, sessionID, func(d *session.Data) error {
		if req.IdempotencyKey != "" {
			existing, err := s.orders.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
			if err != nil {
				return persistenceErr("check idempotency", err)
			}
			if existing != nil {
				if existing.SessionID != sessionID {
					return fmt.Errorf("idempotency key already used: %w", ErrInvalidTransition)
				}
				replay = existing
				return errReplay
			}
		}

		if len(d.Items) == 0 {
			return ErrEmptyCart
		}

		info, method, err := s.resolveCustomer(d, req)
		if err != nil {
			return err
		}

		cart, live, err := s.cart.price(ctx, d.Items)
		if err != nil {
			return err
		}
		for _, item := range cart.Items {
			p, ok := live[item.ProductID]
			if !ok {
				return fmt.Errorf("product %d: %w", item.ProductID, ErrNotFound)
			}
			if item.Quantity <= 0 {
				return fmt.Errorf("product %d: quantity %d: %w", item.ProductID, item.Quantity, ErrInvalidQuantity)
			}
			if item.Quantity > p.Stock {
				return fmt.Errorf("product %d: requested %d, in stock %d: %w",
					item.ProductID, item.Quantity, p.Stock, ErrInsufficientStock)
			}
		}

		order := newOrder(sessionID, req.IdempotencyKey, d.CustomerID, info, method, cart)
		if err := s.orders.CreateOrder(ctx, order); err != nil {
			switch {
			case errors.Is(err, store.ErrOutOfStock):
				return fmt.Errorf("%v: %w", err, ErrInsufficientStock)
			case errors.Is(err, store.ErrDuplicate):
				return fmt.Errorf("idempotency key already used: %w", ErrInvalidTransition)
			case errors.Is(err, store.ErrInvalidQuantity):
				return fmt.Errorf("%v: %w", err, ErrInvalidQuantity)
			}
			return persistenceErr("create order", err)
		}
		order.CustomerInfo = info

		d.Items = make(map[string]models.CartItem)
		d.Checkout = &models.CheckoutState{
			Stage:     models.StagePlaced,
			OrderID:   order.ID,
			UpdatedAt: s.now(),
		}

		placed = order
		return nil
	})

	if errors.Is(err, errReplay) {
		s.logger.Info("Duplicate confirm request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int64("order_id", replay.ID))
		return replay, nil
	}

	if err != nil {
		if placed != nil {
			return nil, s.cartClearFailed(ctx, sessionID, placed, err)
		}
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	util.CheckoutTransitionsTotal.WithLabelValues(string(models.StagePlaced)).Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", placed.ID),
		zap.String("session_id", sessionID),
		zap.Int64("grand_total", placed.GrandTotal))

	s.publishOrderPlaced(ctx, placed)
	return placed, nil
}

// GetOrder returns an order placed by the given customer or in the given session
func (s *CheckoutService) GetOrder(ctx context.Context, sessionID string, customerID, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.GetOrder")
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, persistenceErr("get order", err)
	}

	ownedByCustomer := customerID != 0 && order.CustomerID == customerID
	if !ownedByCustomer && order.SessionID != sessionID {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	return order, nil
}

// ListCustomerOrders returns a customer's order history, newest first
func (s *CheckoutService) ListCustomerOrders(ctx context.Context, customerID int64) ([]models.OrderSummary, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.ListCustomerOrders")
	defer span.End()

	if customerID == 0 {
		return nil, ErrUnauthorized
	}

	orders, err := s.orders.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, persistenceErr("list orders", err)
	}
	return orders, nil
}

func (s *CheckoutService) resolveCustomer(d *session.Data, req ConfirmRequest) (models.CustomerInfo, models.PaymentMethod, error) {
	if req.CustomerInfo != nil {
		info, err := validateCheckout(s.validate, *req.CustomerInfo, req.PaymentMethod)
		if err != nil {
			return models.CustomerInfo{}, "", err
		}
		info.CustomerID = d.CustomerID
		return info, req.PaymentMethod, nil
	}

	st := d.Checkout
	if st == nil || st.Stage != models.StageReviewingConfirmation || st.CustomerInfo == nil {
		return models.CustomerInfo{}, "", fmt.Errorf("confirm without customer info: %w", ErrInvalidTransition)
	}

	method := req.PaymentMethod
	if method == "" {
		method = st.PaymentMethod
	}
	if !method.Valid() {
		return models.CustomerInfo{}, "", &ValidationError{Fields: map[string]string{
			"paymentMethod": fmt.Sprintf("must be one of %s, %s",
				models.PaymentMethodBankTransfer, models.PaymentMethodCashOnDelivery),
		}}
	}

	info := *st.CustomerInfo
	info.CustomerID = d.CustomerID
	return info, method, nil
}

func (s *CheckoutService) profileInfo(ctx context.Context, customerID int64) (*models.CustomerInfo, error) {
	customer, err := s.customers.GetCustomerByID(ctx, customerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr("load customer", err)
	}
	info := customer.Info()
	return &info, nil
}

func (s *CheckoutService) view(ctx context.Context, state *models.CheckoutState, items map[string]models.CartItem) (*CheckoutView, error) {
	cart, _, err := s.cart.price(ctx, items)
	if err != nil {
		return nil, err
	}
	return &CheckoutView{State: state, Cart: cart}, nil
}

func (s *CheckoutService) cartClearFailed(ctx context.Context, sessionID string, order *models.Order, cause error) error {
	util.OrdersPlacedTotal.Inc()
	util.CartClearFailuresTotal.Inc()
	s.logger.Error("Order placed but cart was not cleared",
		zap.Int64("order_id", order.ID),
		zap.String("session_id", sessionID),
		zap.Error(cause))

	event := &models.CartClearFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCartClearFailed,
			Timestamp: s.now(),
		},
		OrderID:   order.ID,
		SessionID: sessionID,
		Reason:    cause.Error(),
	}
	if err := s.publisher.PublishCartClearFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish CartClearFailed event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}

	return &CartClearError{Order: order, Err: cause}
}

func (s *CheckoutService) publishOrderPlaced(ctx context.Context, order *models.Order) {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: s.now(),
		},
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		SessionID:     order.SessionID,
		PaymentMethod: order.PaymentMethod,
		GrandTotal:    order.GrandTotal,
		Items:         items,
	}

	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

func newOrder(sessionID, key string, customerID int64, info models.CustomerInfo, method models.PaymentMethod, cart *models.Cart) *models.Order {
	items := make([]models.OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			Subtotal:  item.Subtotal,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	return &models.Order{
		CustomerID:     customerID,
		IsGuest:        customerID == 0,
		SessionID:      sessionID,
		IdempotencyKey: key,
		CustomerName:   info.Name,
		Email:          info.Email,
		Address:        info.Address,
		PhoneNumber:    info.PhoneNumber,
		PaymentMethod:  method,
		Status:         models.OrderStatusPlaced,
		TotalPrice:     cart.TotalPrice,
		ShippingFee:    cart.ShippingFee,
		GrandTotal:     cart.GrandTotal,
		Items:          items,
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrValidationFailed):
		return "validation"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "persistence"
}
