package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/shopdesk/shopdesk/internal/client"
)

// CartPage shows the signed-in user's cart and checks it out.
type CartPage struct {
	api    API
	logger *slog.Logger
	page   Page[Cart]
}

func cartView(c Cart) View[Cart] {
	return populated(c, len(c.Items) == 0)
}

// Load fetches the cart. A 404 means no cart has been created yet and
// yields an empty cart.
func (c *CartPage) Load(ctx context.Context) View[Cart] {
	return c.page.Mount(ctx, func(ctx context.Context) View[Cart] {
		var cart Cart
		if err := c.api.Get(ctx, "/api/cart", &cart); err != nil {
			if errors.Is(err, client.ErrNotFound) {
				return cartView(Cart{})
			}
			return failed[Cart](err, "Failed to fetch cart.")
		}
		return cartView(cart)
	})
}

// View returns the cart as last loaded or optimistically modified.
func (c *CartPage) View() View[Cart] { return c.page.View() }

// Add puts qty of a product in the cart. Quantities of a product already in
// the cart are merged by the backend.
func (c *CartPage) Add(ctx context.Context, productID int64, qty int) (Cart, Outcome, error) {
	errs := FieldErrors{}
	if productID <= 0 {
		errs["productId"] = "Product ID is required"
	}
	if qty < 1 {
		errs["qty"] = "Quantity must be at least 1"
	}
	if len(errs) > 0 {
		return Cart{}, Outcome{}, invalid(errs)
	}
	body := map[string]any{"productId": productID, "qty": qty}
	var cart Cart
	if err := c.api.Post(ctx, "/api/cart/add", body, &cart); err != nil {
		return Cart{}, Outcome{}, submitFailed(err, "Failed to add to cart")
	}
	c.page.replace(cartView(cart))
	return cart, Outcome{Notice: "Added to cart"}, nil
}

// Remove drops a product from the cart optimistically: the local view
// loses the item at once, is refetched on success and restored exactly on
// failure.
func (c *CartPage) Remove(ctx context.Context, productID int64) (View[Cart], error) {
	prev := c.page.update(func(cur View[Cart]) View[Cart] {
		next := cur
		next.Data.Items = slices.DeleteFunc(slices.Clone(cur.Data.Items), func(it CartItem) bool {
			return it.ProductID == productID
		})
		if next.State == Populated && len(next.Data.Items) == 0 {
			next.State = Empty
		}
		return next
	})

	if err := c.api.Delete(ctx, fmt.Sprintf("/api/cart/remove/%d", productID), nil); err != nil {
		c.logger.Debug("cart removal failed, restoring", "product_id", productID, "err", err)
		c.page.replace(prev)
		return prev, submitFailed(err, "Failed to remove item")
	}
	return c.Load(ctx), nil
}

// Checkout turns the cart into a pending order and points at the payment
// page for it.
func (c *CartPage) Checkout(ctx context.Context) (Order, Outcome, error) {
	var order Order
	if err := c.api.Post(ctx, "/api/orders/checkout", nil, &order); err != nil {
		return Order{}, Outcome{}, submitFailed(err, "Checkout failed")
	}
	c.page.replace(cartView(Cart{}))
	return order, Outcome{
		Notice: fmt.Sprintf("Order #%d placed", order.ID),
		Next:   fmt.Sprintf("payments?orderId=%d", order.ID),
	}, nil
}
