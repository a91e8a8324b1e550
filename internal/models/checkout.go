package models

import "time"

// CheckoutStage is a step of the checkout workflow
type CheckoutStage string

const (
	StageBrowsing               CheckoutStage = "BROWSING"
	StageCollectingCustomerInfo CheckoutStage = "COLLECTING_CUSTOMER_INFO"
	StageReviewingConfirmation  CheckoutStage = "REVIEWING_CONFIRMATION"
	StagePlaced                 CheckoutStage = "PLACED"
)

// CheckoutState is the workflow record kept per session
type CheckoutState struct {
	Stage         CheckoutStage     `json:"stage"`
	CustomerInfo  *CustomerInfo     `json:"customerInfo,omitempty"`
	PaymentMethod PaymentMethod     `json:"paymentMethod,omitempty"`
	CartSnapshot  *Cart             `json:"cartSnapshot,omitempty"`
	FieldErrors   map[string]string `json:"fieldErrors,omitempty"`
	OrderID       int64             `json:"orderId,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Clone returns a deep copy of the state
func (s *CheckoutState) Clone() *CheckoutState {
	if s == nil {
		return nil
	}
	out := *s
	if s.CustomerInfo != nil {
		info := *s.CustomerInfo
		out.CustomerInfo = &info
	}
	if s.CartSnapshot != nil {
		out.CartSnapshot = s.CartSnapshot.Clone()
	}
	if s.FieldErrors != nil {
		out.FieldErrors = make(map[string]string, len(s.FieldErrors))
		for k, v := range s.FieldErrors {
			out.FieldErrors[k] = v
		}
	}
	return &out
}

// Clone returns a deep copy of the cart
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make(map[string]CartItem, len(c.Items))
	for k, v := range c.Items {
		out.Items[k] = v
	}
	return &out
}
