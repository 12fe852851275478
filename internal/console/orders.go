package console

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// OrdersPage lists orders and, for admins, changes their status.
type OrdersPage struct {
	api    API
	list   Page[[]Order]
	detail Page[Order]
}

func (o *OrdersPage) fetch(ctx context.Context, path, fallback string) View[[]Order] {
	return o.list.Mount(ctx, func(ctx context.Context) View[[]Order] {
		var orders []Order
		if err := o.api.Get(ctx, path, &orders); err != nil {
			return failed[[]Order](err, fallback)
		}
		return populated(orders, len(orders) == 0)
	})
}

// Mine lists the signed-in user's orders, newest first.
func (o *OrdersPage) Mine(ctx context.Context) View[[]Order] {
	return o.fetch(ctx, "/api/orders/my", "Failed to fetch orders")
}

// All lists every order. Admin only.
func (o *OrdersPage) All(ctx context.Context) View[[]Order] {
	return o.fetch(ctx, "/api/orders/all", "Access denied or order sync failed")
}

// Show returns one order.
func (o *OrdersPage) Show(ctx context.Context, id int64) View[Order] {
	return o.detail.Mount(ctx, func(ctx context.Context) View[Order] {
		var order Order
		if err := o.api.Get(ctx, fmt.Sprintf("/api/orders/%d", id), &order); err != nil {
			return failed[Order](err, "Order not found")
		}
		return populated(order, false)
	})
}

// UpdateStatus moves an order to a new shipment status. Admin only.
func (o *OrdersPage) UpdateStatus(ctx context.Context, id int64, status string) (Order, Outcome, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if !slices.Contains(OrderStatuses, status) {
		return Order{}, Outcome{}, invalid(FieldErrors{
			"status": "Status must be one of " + strings.Join(OrderStatuses, ", "),
		})
	}
	path := fmt.Sprintf("/api/orders/%d/status?%s", id, url.Values{"status": {status}}.Encode())
	var order Order
	if err := o.api.Put(ctx, path, nil, &order); err != nil {
		return Order{}, Outcome{}, submitFailed(err, "Failed to update order status")
	}
	return order, Outcome{Notice: fmt.Sprintf("Order #%d marked %s", id, status)}, nil
}
