// Package store defines the shop twin's state types.
package store

import (
	"slices"
	"time"
)

// Roles.
const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

// Order statuses.
const (
	OrderPending   = "PENDING"
	OrderConfirmed = "CONFIRMED"
	OrderShipped   = "SHIPPED"
	OrderDelivered = "DELIVERED"
	OrderCancelled = "CANCELLED"
)

// OrderStatuses lists every valid shipment status.
var OrderStatuses = []string{OrderPending, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled}

// Payment statuses.
const (
	PaymentPending = "PENDING"
	PaymentSuccess = "SUCCESS"
	PaymentFailed  = "FAILED"
)

// User is a shop account.
type User struct {
	ID           int64     `json:"userId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return slices.Contains(u.Roles, RoleAdmin)
}

type Category struct {
	ID          int64  `json:"categoryId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Picture     string `json:"picture,omitempty"`
}

type Product struct {
	ID          int64   `json:"productId"`
	Name        string  `json:"productName"`
	Description string  `json:"productDescription,omitempty"`
	SKU         string  `json:"sku"`
	Picture     string  `json:"picture,omitempty"`
	BasePrice   float64 `json:"basePrice"`
	StockQty    int     `json:"stockQty"`
	CategoryID  int64   `json:"categoryId"`
}

type CartItem struct {
	ProductID  int64   `json:"productId"`
	Qty        int     `json:"qty"`
	PriceAtAdd float64 `json:"priceAtAdd"`
}

// Cart belongs to one user. It is created on first add and survives
// checkout with no items.
type Cart struct {
	ID        int64      `json:"cartId"`
	UserID    int64      `json:"userId"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type OrderItem struct {
	ProductID       int64   `json:"productId"`
	ProductName     string  `json:"productName"`
	Qty             int     `json:"qty"`
	PriceAtPurchase float64 `json:"priceAtPurchase"`
	Subtotal        float64 `json:"subtotal"`
}

type Order struct {
	ID             int64       `json:"orderId"`
	UserID         int64       `json:"userId"`
	Status         string      `json:"status"`
	PaymentStatus  string      `json:"paymentStatus"`
	OrderDate      time.Time   `json:"orderDate"`
	TotalAmount    float64     `json:"totalAmount"`
	Items          []OrderItem `json:"items"`
	GatewayOrderID string      `json:"gatewayOrderId,omitempty"`
	TransactionID  int64       `json:"transactionId,omitempty"`
}

// Transaction records a completed payment.
type Transaction struct {
	ID            int64     `json:"transactionId"`
	OrderID       int64     `json:"orderId"`
	UserID        int64     `json:"userId"`
	Amount        float64   `json:"amount"`
	PaymentMode   string    `json:"paymentMode"`
	PaymentStatus string    `json:"paymentStatus"`
	GatewayRef    string    `json:"gatewayRef"`
	Date          time.Time `json:"transactionDate"`
}

type Review struct {
	ID        int64     `json:"reviewId"`
	UserID    int64     `json:"userId"`
	ProductID int64     `json:"productId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}
