package console

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoItemCart = `{
	"cartId": 1,
	"items": [
		{"productId": 1, "productName": "Mug", "priceAtAdd": 100, "qty": 2, "subtotal": 200},
		{"productId": 2, "productName": "Pot", "priceAtAdd": 50, "qty": 1, "subtotal": 50}
	],
	"totalAmount": 250
}`

func TestCartNotFoundIsEmpty(t *testing.T) {
	c, api, _ := newTestConsole()
	api.fail("GET", "/api/cart", http.StatusNotFound, `{"error":"Cart not found"}`)

	v := c.Cart.Load(context.Background())
	assert.Equal(t, Empty, v.State)
	assert.Empty(t, v.Err)
}

func TestCartLoadFailure(t *testing.T) {
	c, api, _ := newTestConsole()
	api.fail("GET", "/api/cart", http.StatusInternalServerError, ``)
	assert.Equal(t, "Failed to fetch cart.", c.Cart.Load(context.Background()).Err)
}

func TestCartRemoveRestoresSnapshotOnFailure(t *testing.T) {
	c, api, _ := newTestConsole()
	api.on("GET", "/api/cart", twoItemCart)
	api.fail("DELETE", "/api/cart/remove/1", http.StatusInternalServerError, `{"error":"Item not found"}`)
	ctx := context.Background()

	before := c.Cart.Load(ctx)
	require.Len(t, before.Data.Items, 2)

	v, err := c.Cart.Remove(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, "Item not found", err.Error())
	assert.Equal(t, before, v)
	assert.Equal(t, before, c.Cart.View(), "pre-removal snapshot restored exactly")
	assert.Equal(t, 1, api.called("GET", "/api/cart"), "no refetch on failure")
}

func TestCartRemoveIsOptimisticThenRefetches(t *testing.T) {
	c, api, _ := newTestConsole()
	api.on("GET", "/api/cart", twoItemCart)
	api.on("DELETE", "/api/cart/remove/1", `Item removed`)
	release := api.block("DELETE", "/api/cart/remove/1")
	ctx := context.Background()
	c.Cart.Load(ctx)

	done := make(chan View[Cart])
	go func() {
		v, err := c.Cart.Remove(ctx, 1)
		assert.NoError(t, err)
		done <- v
	}()

	require.Eventually(t, func() bool { return len(c.Cart.View().Data.Items) == 1 }, timeout, tick)
	assert.Equal(t, int64(2), c.Cart.View().Data.Items[0].ProductID)

	api.on("GET", "/api/cart", `{"cartId": 1, "items": [{"productId": 2, "qty": 1, "priceAtAdd": 50, "subtotal": 50}], "totalAmount": 50}`)
	close(release)

	v := <-done
	assert.Equal(t, 50.0, v.Data.TotalAmount, "totals come from the refetch")
	assert.Equal(t, 2, api.called("GET", "/api/cart"))
}

func TestCartRemoveDropsOlderLoad(t *testing.T) {
	c, api, _ := newTestConsole()
	api.on("GET", "/api/cart", twoItemCart)
	api.fail("DELETE", "/api/cart/remove/1", http.StatusInternalServerError, `{"error":"Item not found"}`)
	ctx := context.Background()
	c.Cart.Load(ctx)

	release := api.block("GET", "/api/cart")
	loaded := make(chan View[Cart])
	go func() { loaded <- c.Cart.Load(ctx) }()
	require.Eventually(t, func() bool { return api.called("GET", "/api/cart") == 2 }, timeout, tick)

	_, err := c.Cart.Remove(ctx, 1)
	require.Error(t, err)
	close(release)
	<-loaded

	v := c.Cart.View()
	assert.Equal(t, Loading, v.State, "the failed removal restores the view it replaced")
	assert.Empty(t, v.Data.Items, "the superseded load must not land")
}

func TestCartRemoveLastItemShowsEmpty(t *testing.T) {
	c, api, _ := newTestConsole()
	api.on("GET", "/api/cart", `{"cartId": 1, "items": [{"productId": 1, "qty": 1}], "totalAmount": 10}`)
	api.fail("DELETE", "/api/cart/remove/1", http.StatusBadGateway, ``)
	release := api.block("DELETE", "/api/cart/remove/1")
	ctx := context.Background()
	c.Cart.Load(ctx)

	go func() { _, _ = c.Cart.Remove(ctx, 1) }()
	require.Eventually(t, func() bool { return c.Cart.View().State == Empty }, timeout, tick)
	close(release)
	require.Eventually(t, func() bool { return c.Cart.View().State == Populated }, timeout, tick)
}

func TestCartAdd(t *testing.T) {
	c, api, _ := newTestConsole()
	api.on("POST", "/api/cart/add", twoItemCart)

	_, _, err := c.Cart.Add(context.Background(), 1, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Quantity must be at least 1")

	cart, out, err := c.Cart.Add(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
	assert.Equal(t, "Added to cart", out.Notice)
	assert.Equal(t, map[string]any{"productId": int64(1), "qty": 2}, api.body("POST", "/api/cart/add"))
}

func TestCheckout(t *testing.T) {
	c, api, _ := newTestConsole()
	api.on("POST", "/api/orders/checkout", `{"orderId": 17, "status": "PENDING", "paymentStatus": "PENDING", "totalAmount": 250, "orderDate": [2025, 6, 1, 10, 0, 0]}`)

	order, out, err := c.Cart.Checkout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(17), order.ID)
	assert.Equal(t, "payments?orderId=17", out.Next)
	assert.Equal(t, Empty, c.Cart.View().State)

	api.fail("POST", "/api/orders/checkout", http.StatusBadRequest, `{"error":"Cart is empty"}`)
	_, _, err = c.Cart.Checkout(context.Background())
	assert.EqualError(t, err, "Cart is empty")
}
