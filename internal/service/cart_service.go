package service

import (
	"context"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// ShippingPolicy computes the shipping fee for a cart. An empty cart has a
// totalQuantity of zero.
type ShippingPolicy func(totalPrice int64, totalQuantity int) int64

// FlatShipping charges fee for every non-empty cart
func FlatShipping(fee int64) ShippingPolicy {
	return func(totalPrice int64, totalQuantity int) int64 {
		if totalQuantity == 0 {
			return 0
		}
		return fee
	}
}

// FreeShippingOver charges fee below threshold and nothing at or above it
func FreeShippingOver(fee, threshold int64) ShippingPolicy {
	return func(totalPrice int64, totalQuantity int) int64 {
		if totalQuantity == 0 || totalPrice >= threshold {
			return 0
		}
		return fee
	}
}

// CartService owns the per-session cart. All mutations go through
// session.Store.Update, which serializes access per session id.
type CartService struct {
	sessions session.Store
	products ProductRepository
	shipping ShippingPolicy
	logger   *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(sessions session.Store, products ProductRepository, shipping ShippingPolicy) *CartService {
	if shipping == nil {
		shipping = FlatShipping(500)
	}
	return &CartService{
		sessions: sessions,
		products: products,
		shipping: shipping,
		logger:   util.GetLogger(),
	}
}

// GetCart returns the session cart with totals recomputed against the live catalog
func (s *CartService) GetCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCart")
	defer span.End()

	data, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, persistenceErr("load session", err)
	}

	cart, _, err := s.price(ctx, data.Items)
	return cart, err
}

// AddItem adds quantity units of a product, accumulating onto an existing line
func (s *CartService) AddItem(ctx context.Context, sessionID string, productID int64, quantity int) (cart *models.Cart, err error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()
	defer func() { util.ObserveCartOperation("add", err) }()

	if quantity <= 0 {
		return nil, fmt.Errorf("quantity %d: %w", quantity, ErrInvalidQuantity)
	}

	var items map[string]models.CartItem
	err = s.sessions.Update(ctx, sessionID, func(d *session.Data) error {
		product, err := lookupProduct(ctx, s.products, productID)
		if err != nil {
			return err
		}

		itemID := models.ItemID(productID)
		existing := d.Items[itemID]
		if quantity > product.Stock-existing.Quantity {
			return fmt.Errorf("product %d: requested %d more, in cart %d, in stock %d: %w",
				productID, quantity, existing.Quantity, product.Stock, ErrInsufficientStock)
		}

		ensureItems(d)[itemID] = itemFromProduct(product, existing.Quantity+quantity)
		items = d.Items
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Item added to cart",
		zap.String("session_id", sessionID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity))

	cart, _, err = s.price(ctx, items)
	return cart, err
}

// UpdateItemQuantity sets the quantity of an existing line. Quantities of zero
// or less are rejected; use RemoveItem to delete a line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, sessionID, itemID string, quantity int) (cart *models.Cart, err error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateItemQuantity")
	defer span.End()
	defer func() { util.ObserveCartOperation("update", err) }()

	if quantity <= 0 {
		return nil, fmt.Errorf("quantity %d: %w", quantity, ErrInvalidQuantity)
	}

	var items map[string]models.CartItem
	err = s.sessions.Update(ctx, sessionID, func(d *session.Data) error {
		item, ok := d.Items[itemID]
		if !ok {
			return fmt.Errorf("cart item %q: %w", itemID, ErrNotFound)
		}

		product, err := lookupProduct(ctx, s.products, item.ProductID)
		if err != nil {
			return err
		}
		if quantity > product.Stock {
			return fmt.Errorf("product %d: requested %d, in stock %d: %w",
				item.ProductID, quantity, product.Stock, ErrInsufficientStock)
		}

		d.Items[itemID] = itemFromProduct(product, quantity)
		items = d.Items
		return nil
	})
	if err != nil {
		return nil, err
	}

	cart, _, err = s.price(ctx, items)
	return cart, err
}

// RemoveItem deletes a line. Removing an absent line succeeds.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, itemID string) (cart *models.Cart, err error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()
	defer func() { util.ObserveCartOperation("remove", err) }()

	var items map[string]models.CartItem
	err = s.sessions.Update(ctx, sessionID, func(d *session.Data) error {
		delete(ensureItems(d), itemID)
		items = d.Items
		return nil
	})
	if err != nil {
		return nil, err
	}

	cart, _, err = s.price(ctx, items)
	return cart, err
}

// ClearCart empties the cart. Clearing an empty cart succeeds.
func (s *CartService) ClearCart(ctx context.Context, sessionID string) (cart *models.Cart, err error) {
	ctx, span := util.StartSpan(ctx, "CartService.ClearCart")
	defer span.End()
	defer func() { util.ObserveCartOperation("clear", err) }()

	err = s.sessions.Update(ctx, sessionID, func(d *session.Data) error {
		d.Items = make(map[string]models.CartItem)
		return nil
	})
	if err != nil {
		return nil, err
	}

	cart, _, err = s.price(ctx, nil)
	return cart, err
}

// price builds the cart view from stored lines. Lines whose product is still
// in the catalog take its current name, price, image and stock; the others
// keep their stored values. The returned map holds the live products by id.
func (s *CartService) price(ctx context.Context, items map[string]models.CartItem) (*models.Cart, map[int64]models.Product, error) {
	live := make(map[int64]models.Product, len(items))
	if len(items) > 0 {
		ids := make([]int64, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductID)
		}

		products, err := s.products.GetProductsByIDs(ctx, ids)
		if err != nil {
			return nil, nil, persistenceErr("load cart products", err)
		}
		for _, p := range products {
			live[p.ID] = p
		}
	}

	cart := &models.Cart{Items: make(map[string]models.CartItem, len(items))}
	for id, item := range items {
		if p, ok := live[item.ProductID]; ok {
			item.Name = p.Name
			item.Price = p.Price
			item.ImageURL = p.ImageURL
			item.Stock = p.Stock
		}
		item.ID = id
		item.Subtotal = item.Price * int64(item.Quantity)

		cart.Items[id] = item
		cart.TotalQuantity += item.Quantity
		cart.TotalPrice += item.Subtotal
	}

	cart.ShippingFee = s.shipping(cart.TotalPrice, cart.TotalQuantity)
	cart.GrandTotal = cart.TotalPrice + cart.ShippingFee
	return cart, live, nil
}

func itemFromProduct(p *models.Product, quantity int) models.CartItem {
	return models.CartItem{
		ID:        models.ItemID(p.ID),
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		Stock:     p.Stock,
		Quantity:  quantity,
		Subtotal:  p.Price * int64(quantity),
	}
}

func ensureItems(d *session.Data) map[string]models.CartItem {
	if d.Items == nil {
		d.Items = make(map[string]models.CartItem)
	}
	return d.Items
}
