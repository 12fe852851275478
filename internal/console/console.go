// Package console holds the page controllers of the admin console: one per
// resource, each turning backend reads into a View and mutations into an
// Outcome. Rendering is left to the caller (CLI, shell or MCP tools).
package console

import (
	"context"
	"log/slog"

	"github.com/shopdesk/shopdesk/internal/session"
)

// API is the slice of the HTTP client the controllers use. *client.Client
// satisfies it.
type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
	PostText(ctx context.Context, path string, body any) (string, error)
}

// Session is what the auth controller needs from the session manager.
type Session interface {
	Login(ctx context.Context, token string) error
	Logout(ctx context.Context) error
	Snapshot() session.Snapshot
}

// Console wires every controller to one API and session.
type Console struct {
	Auth       *AuthPage
	Products   *ProductsPage
	Categories *CategoriesPage
	Cart       *CartPage
	Orders     *OrdersPage
	Payments   *PaymentsPage
	Reviews    *ReviewsPage
}

// New creates the controllers.
func New(api API, sess Session, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		Auth:       &AuthPage{api: api, sess: sess, logger: logger},
		Products:   &ProductsPage{api: api, logger: logger},
		Categories: &CategoriesPage{api: api},
		Cart:       &CartPage{api: api, logger: logger},
		Orders:     &OrdersPage{api: api},
		Payments:   &PaymentsPage{api: api, sess: sess, logger: logger},
		Reviews:    &ReviewsPage{api: api},
	}
}

// Unmount cancels every controller's in-flight reads.
func (c *Console) Unmount() {
	c.Products.list.Unmount()
	c.Products.detail.Unmount()
	c.Categories.list.Unmount()
	c.Cart.page.Unmount()
	c.Orders.list.Unmount()
	c.Orders.detail.Unmount()
	c.Reviews.list.Unmount()
}
