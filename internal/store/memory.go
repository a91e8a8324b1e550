package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/models"
)

// Memory is an in-process store with the same behaviour as Store.
// It backs local development and tests.
type Memory struct {
	mu              sync.RWMutex
	categories      []models.Category
	products        map[int64]*models.Product
	orders          map[int64]*models.Order
	ordersByKey     map[string]int64
	customers       map[int64]*models.Customer
	reconciliations []models.Reconciliation
	nextOrderID     int64
	nextCustomerID  int64
	now             func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		products:    make(map[int64]*models.Product),
		orders:      make(map[int64]*models.Order),
		ordersByKey: make(map[string]int64),
		customers:   make(map[int64]*models.Customer),
		now:         time.Now,
	}
}

// SeedCatalog loads the sample catalog also shipped as a SQL migration
func (m *Memory) SeedCatalog() {
	m.AddCategory(models.Category{ID: 1, Name: "Kitchen"})
	m.AddCategory(models.Category{ID: 2, Name: "Stationery"})
	m.AddCategory(models.Category{ID: 3, Name: "Interior"})

	m.AddProduct(models.Product{ID: 1, Name: "Ceramic Mug", Description: "Hand-glazed mug, 350ml", Price: 1800, Stock: 12, CategoryID: 1, ImageURL: "/images/mug.png"})
	m.AddProduct(models.Product{ID: 2, Name: "Wooden Cutting Board", Description: "Walnut board with juice groove", Price: 4200, Stock: 5, CategoryID: 1, ImageURL: "/images/board.png"})
	m.AddProduct(models.Product{ID: 3, Name: "Linen Notebook", Description: "A5 dotted notebook with linen cover", Price: 1200, Stock: 30, CategoryID: 2, ImageURL: "/images/notebook.png"})
	m.AddProduct(models.Product{ID: 4, Name: "Brass Pen", Description: "Refillable brass ballpoint pen", Price: 3500, Stock: 8, CategoryID: 2, ImageURL: "/images/pen.png"})
	m.AddProduct(models.Product{ID: 5, Name: "Glass Vase", Description: "Mouth-blown glass vase, smoke tint", Price: 2800, Stock: 4, CategoryID: 3, ImageURL: "/images/vase.png"})
	m.AddProduct(models.Product{ID: 6, Name: "Cotton Cushion Cover", Description: "Indigo dyed cushion cover 45x45", Price: 2400, Stock: 10, CategoryID: 3, ImageURL: "/images/cushion.png"})
}

// AddCategory inserts or replaces a category
func (m *Memory) AddCategory(c models.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.categories {
		if m.categories[i].ID == c.ID {
			m.categories[i] = c
			return
		}
	}
	m.categories = append(m.categories, c)
	sort.Slice(m.categories, func(i, j int) bool { return m.categories[i].ID < m.categories[j].ID })
}

// AddProduct inserts or replaces a product. CategoryName is resolved from CategoryID.
func (m *Memory) AddProduct(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.categories {
		if c.ID == p.CategoryID {
			p.CategoryName = c.Name
		}
	}
	m.products[p.ID] = &p
}

// SetStock overwrites a product's stock
func (m *Memory) SetStock(productID int64, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.products[productID]; ok {
		p.Stock = stock
	}
}

// ListProducts retrieves products matching the filter ordered by id
func (m *Memory) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	category := filter.Category
	if strings.EqualFold(category, "all") {
		category = ""
	}
	term := strings.ToLower(filter.SearchTerm)

	products := []models.Product{}
	for _, p := range m.products {
		if category != "" && p.CategoryName != category {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.Description), term) {
			continue
		}
		products = append(products, *p)
	}

	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// GetProductByID retrieves a product by ID
func (m *Memory) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	out := *p
	return &out, nil
}

// GetProductsByIDs retrieves the products that exist among ids
func (m *Memory) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	products := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			products = append(products, *p)
		}
	}
	return products, nil
}

// ListCategories retrieves all categories
func (m *Memory) ListCategories(ctx context.Context) ([]models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]models.Category{}, m.categories...), nil
}

// CreateOrder stores the order and decrements stock atomically
func (m *Memory) CreateOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.IdempotencyKey != "" {
		if _, ok := m.ordersByKey[order.IdempotencyKey]; ok {
			return fmt.Errorf("order idempotency key %q: %w", order.IdempotencyKey, ErrDuplicate)
		}
	}

	for _, item := range order.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("product %d: quantity %d: %w", item.ProductID, item.Quantity, ErrInvalidQuantity)
		}
		p, ok := m.products[item.ProductID]
		if !ok || p.Stock < item.Quantity {
			return fmt.Errorf("product %d: %w", item.ProductID, ErrOutOfStock)
		}
	}
	for _, item := range order.Items {
		m.products[item.ProductID].Stock -= item.Quantity
	}

	m.nextOrderID++
	order.ID = m.nextOrderID
	order.OrderDate = m.now()
	for i := range order.Items {
		order.Items[i].ID = int64(i + 1)
		order.Items[i].OrderID = order.ID
	}

	stored := *order
	stored.Items = append([]models.OrderItem{}, order.Items...)
	m.orders[order.ID] = &stored
	if order.IdempotencyKey != "" {
		m.ordersByKey[order.IdempotencyKey] = order.ID
	}
	return nil
}

func (m *Memory) copyOrder(o *models.Order) *models.Order {
	out := *o
	out.Items = append([]models.OrderItem{}, o.Items...)
	out.CustomerInfo = models.CustomerInfo{
		CustomerID:  o.CustomerID,
		Name:        o.CustomerName,
		Email:       o.Email,
		Address:     o.Address,
		PhoneNumber: o.PhoneNumber,
	}
	return &out
}

// GetOrderByID retrieves an order with its items
func (m *Memory) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return m.copyOrder(o), nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key, nil when absent
func (m *Memory) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.ordersByKey[key]
	if !ok {
		return nil, nil
	}
	return m.copyOrder(m.orders[id]), nil
}

// ListOrdersByCustomer retrieves order summaries for a customer, newest first
func (m *Memory) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]models.OrderSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := []models.OrderSummary{}
	for _, o := range m.orders {
		if o.CustomerID != customerID {
			continue
		}
		orders = append(orders, models.OrderSummary{
			ID:         o.ID,
			OrderDate:  o.OrderDate,
			GrandTotal: o.GrandTotal,
			Status:     o.Status,
		})
	}

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].OrderDate.Equal(orders[j].OrderDate) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].OrderDate.After(orders[j].OrderDate)
	})
	return orders, nil
}

// CreateReconciliation records an order whose cart could not be cleared
func (m *Memory) CreateReconciliation(ctx context.Context, rec *models.Reconciliation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.reconciliations {
		if r.EventID == rec.EventID {
			return nil
		}
	}
	rec.ID = int64(len(m.reconciliations) + 1)
	rec.CreatedAt = m.now()
	m.reconciliations = append(m.reconciliations, *rec)
	return nil
}

// ListReconciliations returns all recorded reconciliations, newest first
func (m *Memory) ListReconciliations(ctx context.Context) ([]models.Reconciliation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := make([]models.Reconciliation, 0, len(m.reconciliations))
	for i := len(m.reconciliations) - 1; i >= 0; i-- {
		recs = append(recs, m.reconciliations[i])
	}
	return recs, nil
}

// CreateCustomer inserts a customer. A taken email fails with ErrDuplicate.
func (m *Memory) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.customers {
		if strings.EqualFold(c.Email, customer.Email) {
			return fmt.Errorf("customer email %q: %w", customer.Email, ErrDuplicate)
		}
	}

	m.nextCustomerID++
	customer.ID = m.nextCustomerID
	customer.CreatedAt = m.now()
	customer.UpdatedAt = customer.CreatedAt

	stored := *customer
	m.customers[customer.ID] = &stored
	return nil
}

// GetCustomerByID retrieves a customer by ID
func (m *Memory) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	out := *c
	return &out, nil
}

// GetCustomerByEmail retrieves a customer by email
func (m *Memory) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.customers {
		if strings.EqualFold(c.Email, email) {
			out := *c
			return &out, nil
		}
	}
	return nil, fmt.Errorf("customer %q: %w", email, ErrNotFound)
}

// UpdateCustomer updates profile fields and password hash
func (m *Memory) UpdateCustomer(ctx context.Context, customer *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.customers[customer.ID]
	if !ok {
		return fmt.Errorf("customer %d: %w", customer.ID, ErrNotFound)
	}
	for id, c := range m.customers {
		if id != customer.ID && strings.EqualFold(c.Email, customer.Email) {
			return fmt.Errorf("customer email %q: %w", customer.Email, ErrDuplicate)
		}
	}

	customer.CreatedAt = existing.CreatedAt
	customer.UpdatedAt = m.now()
	stored := *customer
	m.customers[customer.ID] = &stored
	return nil
}
