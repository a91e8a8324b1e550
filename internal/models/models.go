package models

import (
	"strconv"
	"time"
)

// Product represents a product in the catalog
type Product struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Description  string `db:"description" json:"description"`
	Price        int64  `db:"price" json:"price"`
	Stock        int    `db:"stock" json:"stock"`
	CategoryID   int64  `db:"category_id" json:"categoryId"`
	CategoryName string `db:"category_name" json:"categoryName"`
	ImageURL     string `db:"image_url" json:"imageUrl"`
}

// Category groups products
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// CartItem is a line item held in a session cart.
// Name, price, image and stock are refreshed from the catalog on every read.
type CartItem struct {
	ID        string `json:"id"`
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	ImageURL  string `json:"imageUrl"`
	Stock     int    `json:"stock"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

// ItemID returns the cart item id used for a product
func ItemID(productID int64) string {
	return strconv.FormatInt(productID, 10)
}

// Cart is the computed view of a session cart
type Cart struct {
	Items         map[string]CartItem `json:"items"`
	TotalQuantity int                 `json:"totalQuantity"`
	TotalPrice    int64               `json:"totalPrice"`
	ShippingFee   int64               `json:"shippingFee"`
	GrandTotal    int64               `json:"grandTotal"`
}

// IsEmpty reports whether the cart holds no items
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// CustomerInfo is the contact and delivery data collected at checkout
type CustomerInfo struct {
	CustomerID  int64  `json:"customerId,omitempty"`
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Address     string `json:"address" validate:"required,min=5,max=500"`
	PhoneNumber string `json:"phoneNumber" validate:"required,domestic_phone"`
}

// PaymentMethod is a label only; no gateway is involved
type PaymentMethod string

const (
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Valid reports whether m is one of the supported payment methods
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCashOnDelivery:
		return true
	}
	return false
}

// Order represents a placed order. It is never mutated after creation.
type Order struct {
	ID             int64         `db:"id" json:"orderId"`
	OrderDate      time.Time     `db:"order_date" json:"orderDate"`
	CustomerID     int64         `db:"customer_id" json:"-"`
	IsGuest        bool          `db:"is_guest" json:"isGuest"`
	SessionID      string        `db:"session_id" json:"-"`
	IdempotencyKey string        `db:"idempotency_key" json:"-"`
	CustomerName   string        `db:"customer_name" json:"-"`
	Email          string        `db:"email" json:"-"`
	Address        string        `db:"address" json:"-"`
	PhoneNumber    string        `db:"phone_number" json:"-"`
	PaymentMethod  PaymentMethod `db:"payment_method" json:"paymentMethod"`
	Status         string        `db:"status" json:"status"`
	TotalPrice     int64         `db:"total_price" json:"totalPrice"`
	ShippingFee    int64         `db:"shipping_fee" json:"shippingFee"`
	GrandTotal     int64         `db:"grand_total" json:"grandTotal"`
	CustomerInfo   CustomerInfo  `db:"-" json:"customerInfo"`
	Items          []OrderItem   `db:"-" json:"items"`
}

// OrderItem is the snapshot of a cart item at order time
type OrderItem struct {
	ID        int64  `db:"id" json:"-"`
	OrderID   int64  `db:"order_id" json:"-"`
	ProductID int64  `db:"product_id" json:"productId"`
	Name      string `db:"product_name" json:"productName"`
	ImageURL  string `db:"image_url" json:"imageUrl"`
	Quantity  int    `db:"quantity" json:"quantity"`
	UnitPrice int64  `db:"unit_price" json:"unitPrice"`
	Subtotal  int64  `db:"subtotal" json:"subtotal"`
}

// OrderSummary is one row of a customer's order history
type OrderSummary struct {
	ID         int64     `db:"id" json:"orderId"`
	OrderDate  time.Time `db:"order_date" json:"orderDate"`
	GrandTotal int64     `db:"grand_total" json:"grandTotal"`
	Status     string    `db:"status" json:"status"`
}

// Order statuses
const (
	OrderStatusPlaced = "PLACED"
)

// Customer is a registered account
type Customer struct {
	ID           int64     `db:"id" json:"customerId"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Address      string    `db:"address" json:"address"`
	PhoneNumber  string    `db:"phone_number" json:"phoneNumber"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Info returns the customer's profile as checkout customer info
func (c *Customer) Info() CustomerInfo {
	return CustomerInfo{
		CustomerID:  c.ID,
		Name:        c.Name,
		Email:       c.Email,
		Address:     c.Address,
		PhoneNumber: c.PhoneNumber,
	}
}

// Reconciliation records an order whose session cart could not be cleared
type Reconciliation struct {
	ID        int64     `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"eventId"`
	OrderID   int64     `db:"order_id" json:"orderId"`
	SessionID string    `db:"session_id" json:"sessionId"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ProductFilter narrows a product listing. Empty fields match everything.
type ProductFilter struct {
	Category   string
	SearchTerm string
}
