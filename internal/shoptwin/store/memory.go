package store

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	pkgstore "github.com/shopdesk/shopdesk/pkg/store"
)

// Rule violations. Handlers answer ErrNotFound with 404 and everything else
// with 400.
var (
	ErrNotFound       = errors.New("not found")
	ErrRejected       = errors.New("rejected")
	ErrBadCredentials = errors.New("Bad credentials")
)

// RuleError carries the backend's message for a rule violation.
type RuleError struct {
	Kind error
	Msg  string
}

func (e *RuleError) Error() string { return e.Msg }
func (e *RuleError) Unwrap() error { return e.Kind }

func notFound(format string, args ...any) error {
	return &RuleError{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

func rejected(format string, args ...any) error {
	return &RuleError{Kind: ErrRejected, Msg: fmt.Sprintf(format, args...)}
}

// MemoryStore holds all shop twin state in memory. Multi-collection
// operations (checkout, payment) hold mu so they apply atomically.
type MemoryStore struct {
	mu sync.Mutex

	Users        *pkgstore.Store[User]
	Categories   *pkgstore.Store[Category]
	Products     *pkgstore.Store[Product]
	Carts        *pkgstore.Store[Cart]
	Orders       *pkgstore.Store[Order]
	Transactions *pkgstore.Store[Transaction]
	Reviews      *pkgstore.Store[Review]

	Clock *pkgstore.Clock
}

// NewEmpty creates a MemoryStore with no data.
func NewEmpty() *MemoryStore {
	return &MemoryStore{
		Users:        pkgstore.New[User](),
		Categories:   pkgstore.New[Category](),
		Products:     pkgstore.New[Product](),
		Carts:        pkgstore.New[Cart](),
		Orders:       pkgstore.New[Order](),
		Transactions: pkgstore.New[Transaction](),
		Reviews:      pkgstore.New[Review](),
		Clock:        pkgstore.NewClock(),
	}
}

// New creates a MemoryStore loaded with the seed catalog and accounts.
func New() *MemoryStore {
	s := NewEmpty()
	s.Seed()
	return s
}

// stateSnapshot is the JSON-serializable state for admin endpoints.
type stateSnapshot struct {
	Users        map[int64]User        `json:"users"`
	Categories   map[int64]Category    `json:"categories"`
	Products     map[int64]Product     `json:"products"`
	Carts        map[int64]Cart        `json:"carts"`
	Orders       map[int64]Order       `json:"orders"`
	Transactions map[int64]Transaction `json:"transactions"`
	Reviews      map[int64]Review      `json:"reviews"`
}

// Snapshot returns the full state as a JSON-serializable value.
func (s *MemoryStore) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stateSnapshot{
		Users:        s.Users.Snapshot(),
		Categories:   s.Categories.Snapshot(),
		Products:     s.Products.Snapshot(),
		Carts:        s.Carts.Snapshot(),
		Orders:       s.Orders.Snapshot(),
		Transactions: s.Transactions.Snapshot(),
		Reviews:      s.Reviews.Snapshot(),
	}
}

// LoadState replaces the full state from a JSON body. Collections missing
// from the body are emptied.
func (s *MemoryStore) LoadState(data []byte) error {
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Users.LoadSnapshot(snap.Users)
	s.Categories.LoadSnapshot(snap.Categories)
	s.Products.LoadSnapshot(snap.Products)
	s.Carts.LoadSnapshot(snap.Carts)
	s.Orders.LoadSnapshot(snap.Orders)
	s.Transactions.LoadSnapshot(snap.Transactions)
	s.Reviews.LoadSnapshot(snap.Reviews)
	return nil
}

// Reset clears all state and reloads the seed data.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	s.Users.Reset()
	s.Categories.Reset()
	s.Products.Reset()
	s.Carts.Reset()
	s.Orders.Reset()
	s.Transactions.Reset()
	s.Reviews.Reset()
	s.Clock.Reset()
	s.mu.Unlock()
	s.Seed()
}

// ----- users -----

// UserByEmail finds a user, ignoring case.
func (s *MemoryStore) UserByEmail(email string) (User, bool) {
	found := s.Users.Filter(func(_ int64, u User) bool { return strings.EqualFold(u.Email, email) })
	if len(found) == 0 {
		return User{}, false
	}
	return found[0], true
}

// Register creates a user with a single role. An empty role means
// CUSTOMER.
func (s *MemoryStore) Register(email, password, phone, address, role string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}
	return s.addUser(email, string(hash), phone, address, role)
}

func (s *MemoryStore) addUser(email, hash, phone, address, role string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.UserByEmail(email); ok {
		return User{}, rejected("Email already registered")
	}
	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" {
		role = RoleCustomer
	}
	u := User{
		ID:           s.Users.NextID(),
		Email:        email,
		PasswordHash: hash,
		Phone:        phone,
		Address:      address,
		Roles:        []string{role},
		CreatedAt:    s.Clock.Now(),
	}
	s.Users.Set(u.ID, u)
	return u, nil
}

// Authenticate checks credentials.
func (s *MemoryStore) Authenticate(email, password string) (User, error) {
	u, ok := s.UserByEmail(email)
	if !ok {
		return User{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrBadCredentials
	}
	return u, nil
}

// ----- catalog -----

func (s *MemoryStore) CreateCategory(c Category) Category {
	c.ID = s.Categories.NextID()
	s.Categories.Set(c.ID, c)
	return c
}

// CategoryName returns the name of a category, or "".
func (s *MemoryStore) CategoryName(id int64) string {
	c, _ := s.Categories.Get(id)
	return c.Name
}

// SaveProduct creates (id 0) or replaces a product.
func (s *MemoryStore) SaveProduct(id int64, p Product) (Product, error) {
	if _, ok := s.Categories.Get(p.CategoryID); !ok {
		return Product{}, rejected("Category not found")
	}
	if id == 0 {
		p.ID = s.Products.NextID()
		s.Products.Set(p.ID, p)
		return p, nil
	}
	p.ID = id
	if !s.Products.Update(id, func(cur *Product) bool { *cur = p; return true }) {
		return Product{}, notFound("Product not found with ID: %d", id)
	}
	return p, nil
}

func (s *MemoryStore) Product(id int64) (Product, error) {
	p, ok := s.Products.Get(id)
	if !ok {
		return Product{}, notFound("Product not found with ID: %d", id)
	}
	return p, nil
}

func (s *MemoryStore) DeleteProduct(id int64) error {
	if !s.Products.Delete(id) {
		return notFound("Product not found with ID: %d", id)
	}
	return nil
}

// ProductQuery filters the catalog. Nil bounds are open.
type ProductQuery struct {
	Keyword    string
	CategoryID int64
	MinPrice   *float64
	MaxPrice   *float64
	Sort       string
}

// FindProducts returns matching products in id order, or by price when
// Sort is "asc" or "desc".
func (s *MemoryStore) FindProducts(q ProductQuery) []Product {
	kw := strings.ToLower(strings.TrimSpace(q.Keyword))
	out := s.Products.Filter(func(_ int64, p Product) bool {
		switch {
		case kw != "" && !strings.Contains(strings.ToLower(p.Name), kw):
			return false
		case q.CategoryID > 0 && p.CategoryID != q.CategoryID:
			return false
		case q.MinPrice != nil && p.BasePrice < *q.MinPrice:
			return false
		case q.MaxPrice != nil && p.BasePrice > *q.MaxPrice:
			return false
		}
		return true
	})
	switch strings.ToLower(q.Sort) {
	case "asc":
		slices.SortStableFunc(out, func(a, b Product) int { return cmp.Compare(a.BasePrice, b.BasePrice) })
	case "desc":
		slices.SortStableFunc(out, func(a, b Product) int { return cmp.Compare(b.BasePrice, a.BasePrice) })
	}
	return out
}

// ----- cart -----

func (s *MemoryStore) cartOf(userID int64) (Cart, bool) {
	found := s.Carts.Filter(func(_ int64, c Cart) bool { return c.UserID == userID })
	if len(found) == 0 {
		return Cart{}, false
	}
	return found[0], true
}

// CartFor returns the user's cart. A user who never added anything has
// none.
func (s *MemoryStore) CartFor(userID int64) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cartOf(userID)
	if !ok {
		return Cart{}, notFound("Cart not found")
	}
	return c, nil
}

// AddToCart adds qty of a product, merging with an existing line. The line
// keeps the price it was first added at.
func (s *MemoryStore) AddToCart(userID, productID int64, qty int) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Products.Get(productID)
	if !ok {
		return Cart{}, rejected("Product not found")
	}
	now := s.Clock.Now()
	c, ok := s.cartOf(userID)
	if !ok {
		c = Cart{ID: s.Carts.NextID(), UserID: userID, CreatedAt: now}
	}
	if i := slices.IndexFunc(c.Items, func(it CartItem) bool { return it.ProductID == productID }); i >= 0 {
		c.Items[i].Qty += qty
	} else {
		c.Items = append(c.Items, CartItem{ProductID: productID, Qty: qty, PriceAtAdd: p.BasePrice})
	}
	c.UpdatedAt = now
	s.Carts.Set(c.ID, c)
	return c, nil
}

func (s *MemoryStore) RemoveFromCart(userID, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cartOf(userID)
	if !ok {
		return rejected("Cart not found")
	}
	i := slices.IndexFunc(c.Items, func(it CartItem) bool { return it.ProductID == productID })
	if i < 0 {
		return rejected("Item not found")
	}
	c.Items = slices.Delete(c.Items, i, i+1)
	c.UpdatedAt = s.Clock.Now()
	s.Carts.Set(c.ID, c)
	return nil
}

// ----- orders -----

// Checkout turns the cart into a PENDING order. Every line is checked for
// stock before any stock is taken; the cart is emptied on success.
func (s *MemoryStore) Checkout(userID int64) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cartOf(userID)
	if !ok {
		return Order{}, rejected("Cart not found")
	}
	if len(c.Items) == 0 {
		return Order{}, rejected("Cart is empty")
	}

	products := make([]Product, len(c.Items))
	for i, it := range c.Items {
		p, ok := s.Products.Get(it.ProductID)
		if !ok {
			return Order{}, rejected("Product not found")
		}
		if p.StockQty < it.Qty {
			return Order{}, rejected("Out of stock: %s", p.Name)
		}
		products[i] = p
	}

	order := Order{
		ID:            s.Orders.NextID(),
		UserID:        userID,
		Status:        OrderPending,
		PaymentStatus: PaymentPending,
		OrderDate:     s.Clock.Now(),
	}
	for i, it := range c.Items {
		p := products[i]
		p.StockQty -= it.Qty
		s.Products.Set(p.ID, p)
		sub := float64(it.Qty) * it.PriceAtAdd
		order.Items = append(order.Items, OrderItem{
			ProductID:       p.ID,
			ProductName:     p.Name,
			Qty:             it.Qty,
			PriceAtPurchase: it.PriceAtAdd,
			Subtotal:        sub,
		})
		order.TotalAmount += sub
	}
	s.Orders.Set(order.ID, order)

	c.Items = nil
	c.UpdatedAt = order.OrderDate
	s.Carts.Set(c.ID, c)
	return order, nil
}

func newestFirst(orders []Order) []Order {
	slices.SortFunc(orders, func(a, b Order) int { return cmp.Compare(b.ID, a.ID) })
	return orders
}

// OrdersFor lists a user's orders, newest first.
func (s *MemoryStore) OrdersFor(userID int64) []Order {
	return newestFirst(s.Orders.Filter(func(_ int64, o Order) bool { return o.UserID == userID }))
}

// AllOrders lists every order, newest first.
func (s *MemoryStore) AllOrders() []Order {
	return newestFirst(s.Orders.List())
}

func (s *MemoryStore) Order(id int64) (Order, error) {
	o, ok := s.Orders.Get(id)
	if !ok {
		return Order{}, notFound("Order not found with ID: %d", id)
	}
	return o, nil
}

func (s *MemoryStore) SetOrderStatus(id int64, status string) (Order, error) {
	if !slices.Contains(OrderStatuses, status) {
		return Order{}, rejected("Invalid order status: %s", status)
	}
	var out Order
	if !s.Orders.Update(id, func(o *Order) bool { o.Status = status; out = *o; return true }) {
		return Order{}, rejected("Order not found")
	}
	return out, nil
}

// ----- payments -----

func payable(o Order) error {
	if o.PaymentStatus != PaymentPending {
		return rejected("Order already paid or payment failed")
	}
	return nil
}

// OpenGatewayOrder records the gateway order created for a pending order.
func (s *MemoryStore) OpenGatewayOrder(orderID int64, gatewayOrderID string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.Orders.Get(orderID)
	if !ok {
		return Order{}, rejected("Order not found")
	}
	if err := payable(o); err != nil {
		return Order{}, err
	}
	o.GatewayOrderID = gatewayOrderID
	s.Orders.Set(o.ID, o)
	return o, nil
}

// OrderByGatewayID finds the order a gateway order was opened for.
func (s *MemoryStore) OrderByGatewayID(gatewayOrderID string) (Order, bool) {
	found := s.Orders.Filter(func(_ int64, o Order) bool {
		return gatewayOrderID != "" && o.GatewayOrderID == gatewayOrderID
	})
	if len(found) == 0 {
		return Order{}, false
	}
	return found[0], true
}

// settleLocked marks an order paid and records its transaction.
func (s *MemoryStore) settleLocked(o Order, mode, ref string) (Order, Transaction) {
	tx := Transaction{
		ID:            s.Transactions.NextID(),
		OrderID:       o.ID,
		UserID:        o.UserID,
		Amount:        o.TotalAmount,
		PaymentMode:   mode,
		PaymentStatus: PaymentSuccess,
		GatewayRef:    ref,
		Date:          s.Clock.Now(),
	}
	s.Transactions.Set(tx.ID, tx)
	o.PaymentStatus = PaymentSuccess
	o.Status = OrderConfirmed
	o.TransactionID = tx.ID
	s.Orders.Set(o.ID, o)
	return o, tx
}

// PayDemo settles a pending order immediately.
func (s *MemoryStore) PayDemo(orderID int64) (Order, Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.Orders.Get(orderID)
	if !ok {
		return Order{}, Transaction{}, rejected("Order not found")
	}
	if err := payable(o); err != nil {
		return Order{}, Transaction{}, err
	}
	o, tx := s.settleLocked(o, "DEMO", fmt.Sprintf("DEMO_TRANSACTION_%d", orderID))
	return o, tx, nil
}

// SettleGateway records a verified gateway payment.
func (s *MemoryStore) SettleGateway(gatewayOrderID, paymentID string) (Order, Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.OrderByGatewayID(gatewayOrderID)
	if !ok {
		return Order{}, Transaction{}, rejected("Order not found with razorpay_order_id: %s", gatewayOrderID)
	}
	if err := payable(o); err != nil {
		return Order{}, Transaction{}, err
	}
	o, tx := s.settleLocked(o, "Razorpay", paymentID)
	return o, tx, nil
}

// FailGateway marks the payment of a gateway order failed.
func (s *MemoryStore) FailGateway(gatewayOrderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.OrderByGatewayID(gatewayOrderID); ok {
		o.PaymentStatus = PaymentFailed
		s.Orders.Set(o.ID, o)
	}
}

// ----- reviews -----

// AddReview appends a review. A user may review a product once.
func (s *MemoryStore) AddReview(userID, productID int64, rating int, comment string) (Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Products.Get(productID); !ok {
		return Review{}, rejected("Product not found")
	}
	dup := s.Reviews.Filter(func(_ int64, r Review) bool { return r.UserID == userID && r.ProductID == productID })
	if len(dup) > 0 {
		return Review{}, rejected("Already reviewed")
	}
	r := Review{
		ID:        s.Reviews.NextID(),
		UserID:    userID,
		ProductID: productID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: s.Clock.Now(),
	}
	s.Reviews.Set(r.ID, r)
	return r, nil
}

func (s *MemoryStore) ReviewsFor(productID int64) []Review {
	return s.Reviews.Filter(func(_ int64, r Review) bool { return r.ProductID == productID })
}
