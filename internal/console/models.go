package console

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Product is the canonical product shape. Decoding also accepts the
// alternate field names some backend builds emit (id, name, description,
// price, quantity, category.categoryId, imageUrl); encoding always produces
// the canonical names.
type Product struct {
	ID           int64   `json:"productId"`
	Name         string  `json:"productName"`
	Description  string  `json:"productDescription"`
	SKU          string  `json:"sku"`
	Price        float64 `json:"basePrice"`
	StockQty     int     `json:"stockQty"`
	CategoryID   int64   `json:"categoryId"`
	CategoryName string  `json:"categoryName,omitempty"`
	Picture      string  `json:"picture"`
}

type productWire struct {
	ProductID          *int64   `json:"productId"`
	ID                 *int64   `json:"id"`
	ProductName        *string  `json:"productName"`
	Name               *string  `json:"name"`
	ProductDescription *string  `json:"productDescription"`
	Description        *string  `json:"description"`
	SKU                *string  `json:"sku"`
	BasePrice          *float64 `json:"basePrice"`
	Price              *float64 `json:"price"`
	StockQty           *int     `json:"stockQty"`
	Quantity           *int     `json:"quantity"`
	CategoryID         *int64   `json:"categoryId"`
	CategoryName       *string  `json:"categoryName"`
	Category           *struct {
		CategoryID int64  `json:"categoryId"`
		Name       string `json:"name"`
	} `json:"category"`
	Picture  *string `json:"picture"`
	ImageURL *string `json:"imageUrl"`
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var w productWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Product{
		ID:           first(w.ProductID, w.ID),
		Name:         first(w.ProductName, w.Name),
		Description:  first(w.ProductDescription, w.Description),
		SKU:          first(w.SKU),
		Price:        first(w.BasePrice, w.Price),
		StockQty:     first(w.StockQty, w.Quantity),
		CategoryID:   first(w.CategoryID),
		CategoryName: first(w.CategoryName),
		Picture:      first(w.Picture, w.ImageURL),
	}
	if w.Category != nil {
		if p.CategoryID == 0 {
			p.CategoryID = w.Category.CategoryID
		}
		if p.CategoryName == "" {
			p.CategoryName = w.Category.Name
		}
	}
	return nil
}

// first returns the first non-nil value, or the zero value.
func first[T any](vals ...*T) T {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	var zero T
	return zero
}

type Category struct {
	ID          int64  `json:"categoryId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Picture     string `json:"picture"`
}

type CartItem struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	PriceAtAdd  float64 `json:"priceAtAdd"`
	Qty         int     `json:"qty"`
	Subtotal    float64 `json:"subtotal"`
}

type Cart struct {
	ID          int64      `json:"cartId"`
	Items       []CartItem `json:"items"`
	TotalAmount float64    `json:"totalAmount"`
}

// Order statuses, in lifecycle order.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusShipped   = "SHIPPED"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"
)

// OrderStatuses lists the statuses an admin may set.
var OrderStatuses = []string{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

// Payment statuses.
const (
	PaymentPending = "PENDING"
	PaymentSuccess = "SUCCESS"
	PaymentFailed  = "FAILED"
)

type Order struct {
	ID                int64      `json:"orderId"`
	Status            string     `json:"status"`
	PaymentStatus     string     `json:"paymentStatus"`
	UserID            int64      `json:"userId,omitempty"`
	UserEmail         string     `json:"userEmail,omitempty"`
	OrderDate         Timestamp  `json:"orderDate"`
	PaymentMode       string     `json:"paymentMode,omitempty"`
	TransactionID     int64      `json:"transactionId,omitempty"`
	TransactionRef    string     `json:"transactionRef,omitempty"`
	TransactionStatus string     `json:"transactionStatus,omitempty"`
	TransactionDate   Timestamp  `json:"transactionDate"`
	TotalAmount       float64    `json:"totalAmount"`
	Items             []CartItem `json:"items"`
}

type Review struct {
	ProductID int64  `json:"productId,omitempty"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	UserEmail string `json:"userEmail,omitempty"`
}

// LocalLayout is the backend's zone-less timestamp layout.
const LocalLayout = "2006-01-02T15:04:05"

// Timestamp accepts yyyy-MM-ddTHH:mm:ss (with optional fraction), RFC 3339,
// or a [year, month, day, hour, minute, second, nanos] array. It encodes as
// LocalLayout, or null when zero.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '[' {
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("timestamp array: %w", err)
		}
		if len(parts) < 3 {
			return fmt.Errorf("timestamp array needs at least 3 parts, got %d", len(parts))
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		t.Time = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.Local)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if v, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = v
		return nil
	}
	v, err := time.ParseInLocation(LocalLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("timestamp %q: unrecognized format", s)
	}
	t.Time = v
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(LocalLayout))
}

// String renders the timestamp for display.
func (t Timestamp) String() string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}
