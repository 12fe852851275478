package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopdesk/shopdesk/internal/shoptwin/store"
	"github.com/shopdesk/shopdesk/pkg/twincore"
)

// localLayout is the backend's zone-less timestamp format.
const localLayout = "2006-01-02T15:04:05"

type lineView struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	PriceAtAdd  float64 `json:"priceAtAdd"`
	Qty         int     `json:"qty"`
	Subtotal    float64 `json:"subtotal"`
}

type cartView struct {
	ID          int64      `json:"cartId"`
	Items       []lineView `json:"items"`
	TotalAmount float64    `json:"totalAmount"`
}

func (h *Handler) cartView(c store.Cart) cartView {
	v := cartView{ID: c.ID, Items: []lineView{}}
	for _, it := range c.Items {
		p, _ := h.store.Products.Get(it.ProductID)
		line := lineView{
			ProductID:   it.ProductID,
			ProductName: p.Name,
			PriceAtAdd:  it.PriceAtAdd,
			Qty:         it.Qty,
			Subtotal:    float64(it.Qty) * it.PriceAtAdd,
		}
		v.Items = append(v.Items, line)
		v.TotalAmount += line.Subtotal
	}
	return v
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.CartFor(currentUser(r).ID)
	if err != nil {
		storeError(w, err)
		return
	}
	twincore.JSON(w, http.StatusOK, h.cartView(c))
}

type addToCartRequest struct {
	ProductID int64 `json:"productId"`
	Qty       int   `json:"qty"`
}

func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if !decode(w, r, &req) {
		return
	}
	fields := map[string]string{}
	if req.ProductID <= 0 {
		fields["productId"] = "Product ID is required"
	}
	if req.Qty < 1 {
		fields["qty"] = "Quantity must be at least 1"
	}
	if len(fields) > 0 {
		twincore.FieldErrors(w, fields)
		return
	}
	c, err := h.store.AddToCart(currentUser(r).ID, req.ProductID, req.Qty)
	if err != nil {
		storeError(w, err)
		return
	}
	twincore.JSON(w, http.StatusOK, h.cartView(c))
}

func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "productId")
	if !ok {
		return
	}
	if err := h.store.RemoveFromCart(currentUser(r).ID, id); err != nil {
		storeError(w, err)
		return
	}
	twincore.Text(w, http.StatusOK, "Item removed from cart")
}

// orderView is an order joined with its owner and payment transaction.
type orderView struct {
	ID                int64      `json:"orderId"`
	Status            string     `json:"status"`
	PaymentStatus     string     `json:"paymentStatus"`
	UserID            int64      `json:"userId"`
	UserEmail         string     `json:"userEmail,omitempty"`
	OrderDate         string     `json:"orderDate"`
	TotalAmount       float64    `json:"totalAmount"`
	Items             []lineView `json:"items"`
	GatewayOrderID    string     `json:"razorpayOrderId,omitempty"`
	PaymentMode       string     `json:"paymentMode,omitempty"`
	TransactionID     int64      `json:"transactionId,omitempty"`
	TransactionRef    string     `json:"transactionRef,omitempty"`
	TransactionStatus string     `json:"transactionStatus,omitempty"`
	TransactionDate   *string    `json:"transactionDate"`
}

func localTime(t time.Time) string {
	return t.Format(localLayout)
}

func (h *Handler) orderView(o store.Order) orderView {
	u, _ := h.store.Users.Get(o.UserID)
	v := orderView{
		ID:             o.ID,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		UserID:         o.UserID,
		UserEmail:      u.Email,
		OrderDate:      localTime(o.OrderDate),
		TotalAmount:    o.TotalAmount,
		Items:          make([]lineView, len(o.Items)),
		GatewayOrderID: o.GatewayOrderID,
	}
	for i, it := range o.Items {
		v.Items[i] = lineView{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			PriceAtAdd:  it.PriceAtPurchase,
			Qty:         it.Qty,
			Subtotal:    it.Subtotal,
		}
	}
	if tx, ok := h.store.Transactions.Get(o.TransactionID); ok && o.TransactionID > 0 {
		date := localTime(tx.Date)
		v.PaymentMode = tx.PaymentMode
		v.TransactionID = tx.ID
		v.TransactionRef = tx.GatewayRef
		v.TransactionStatus = tx.PaymentStatus
		v.TransactionDate = &date
	}
	return v
}

func (h *Handler) orderViews(orders []store.Order) []orderView {
	out := make([]orderView, len(orders))
	for i, o := range orders {
		out[i] = h.orderView(o)
	}
	return out
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	o, err := h.store.Checkout(currentUser(r).ID)
	if err != nil {
		storeError(w, err)
		return
	}
	twincore.JSON(w, http.StatusOK, h.orderView(o))
}

func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.orderViews(h.store.OrdersFor(currentUser(r).ID)))
}

func (h *Handler) AllOrders(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.orderViews(h.store.AllOrders()))
}

// ownedOrder loads an order visible to the caller. Other users' orders
// read as missing.
func (h *Handler) ownedOrder(w http.ResponseWriter, r *http.Request, param string) (store.Order, bool) {
	id, ok := idParam(w, r, param)
	if !ok {
		return store.Order{}, false
	}
	o, err := h.store.Order(id)
	if err != nil {
		storeError(w, err)
		return store.Order{}, false
	}
	if u := currentUser(r); o.UserID != u.ID && !u.IsAdmin() {
		twincore.Error(w, http.StatusNotFound, fmt.Sprintf("Order not found with ID: %d", id))
		return store.Order{}, false
	}
	return o, true
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.ownedOrder(w, r, "id")
	if !ok {
		return
	}
	twincore.JSON(w, http.StatusOK, h.orderView(o))
}

// UpdateOrderStatus handles PUT /api/orders/{id}/status?status=.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	o, err := h.store.SetOrderStatus(id, status)
	if err != nil {
		storeError(w, err)
		return
	}
	twincore.JSON(w, http.StatusOK, h.orderView(o))
}
