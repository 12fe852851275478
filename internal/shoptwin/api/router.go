// Package api implements the shop backend's HTTP API for the twin.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shopdesk/shopdesk/internal/shoptwin/store"
	"github.com/shopdesk/shopdesk/pkg/twincore"
)

// PaymentConfig selects how POST /api/payments settles orders.
type PaymentConfig struct {
	Demo   bool   // settle immediately without a gateway order
	KeyID  string // public gateway key handed to clients
	Secret string // signs gateway results
}

// Handler holds all API handler state.
type Handler struct {
	store  *store.MemoryStore
	mw     *twincore.Middleware
	jwtMgr *JWTManager
	pay    PaymentConfig
}

// NewHandler creates a new API handler.
func NewHandler(s *store.MemoryStore, mw *twincore.Middleware, jwtMgr *JWTManager, pay PaymentConfig) *Handler {
	return &Handler{store: s, mw: mw, jwtMgr: jwtMgr, pay: pay}
}

// Routes mounts the shop API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Use(h.mw.FaultInjection)
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.mw.FaultInjection)

		// Public catalog
		r.Get("/products", h.ListProducts)
		r.Get("/products/search", h.SearchProducts)
		r.Get("/products/filter", h.FilterProducts)
		r.Get("/products/category/{id}", h.ProductsByCategory)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/categories", h.ListCategories)
		r.Get("/reviews/{productId}", h.ListReviews)
		r.Get("/payments/config", h.GetPaymentConfig)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware)

			r.Get("/cart", h.GetCart)
			r.Post("/cart/add", h.AddToCart)
			r.Delete("/cart/remove/{productId}", h.RemoveFromCart)

			r.Post("/orders/checkout", h.Checkout)
			r.Get("/orders/my", h.MyOrders)
			r.Get("/orders/{id}", h.GetOrder)

			r.Post("/payments", h.CreatePayment)
			r.Post("/payments/verify", h.VerifyPayment)
			r.Get("/payments/status/{orderId}", h.PaymentStatus)

			r.Post("/reviews", h.AddReview)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)

				r.Post("/products", h.CreateProduct)
				r.Put("/products/{id}", h.UpdateProduct)
				r.Delete("/products/{id}", h.DeleteProduct)
				r.Post("/categories", h.CreateCategory)
				r.Get("/orders/all", h.AllOrders)
				r.Put("/orders/{id}/status", h.UpdateOrderStatus)
			})
		})
	})

	r.Get("/actuator/health", h.Health)

	// Simulates the customer finishing the gateway popup (not part of the
	// real backend, used by tests and shopctl).
	r.Post("/admin/gateway/complete", h.CompleteGateway)
}

// Health answers the backend's health endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

type ctxKey struct{}

func currentUser(r *http.Request) store.User {
	u, _ := r.Context().Value(ctxKey{}).(store.User)
	return u
}

// bearerUser resolves the request's bearer token to a user.
func (h *Handler) bearerUser(r *http.Request) (store.User, bool) {
	auth := r.Header.Get("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == auth || token == "" {
		return store.User{}, false
	}
	sub, err := h.jwtMgr.Subject(token)
	if err != nil {
		return store.User{}, false
	}
	return h.store.UserByEmail(sub)
}

// authMiddleware requires a valid bearer token for a known user.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := h.bearerUser(r)
		if !ok {
			twincore.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

func adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !currentUser(r).IsAdmin() {
			twincore.Error(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// storeError maps a store rule violation to the backend's error response.
func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		twincore.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrRejected):
		twincore.Error(w, http.StatusBadRequest, err.Error())
	default:
		twincore.Error(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		twincore.Error(w, http.StatusBadRequest, "Malformed JSON request")
		return false
	}
	return true
}

// idParam reads a positive integer URL parameter, answering 400 otherwise.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		twincore.Error(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}
