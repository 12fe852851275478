package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopdesk/shopdesk/internal/client"
	"github.com/shopdesk/shopdesk/internal/console"
	"github.com/shopdesk/shopdesk/internal/guard"
)

// ---------------------------------------------------------------------------
// cart / checkout
// ---------------------------------------------------------------------------

func (a *app) cmdCart(ctx context.Context, args []string) error {
	if err := a.require(ctx, guard.RequireSession); err != nil {
		return err
	}
	sub := "show"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "show":
		return a.printCart(a.console.Cart.Load(ctx))

	case "add":
		id, err := idArg(args, "cart add", "product id")
		if err != nil {
			return err
		}
		qty := 1
		if len(args) > 1 {
			if qty, err = strconv.Atoi(args[1]); err != nil {
				return usagef("cart add: invalid quantity %q", args[1])
			}
		}
		cart, out, err := a.console.Cart.Add(ctx, id, qty)
		if err != nil {
			return err
		}
		a.notice(out)
		return a.printCart(console.View[console.Cart]{State: console.Populated, Data: cart})

	case "remove":
		id, err := idArg(args, "cart remove", "product id")
		if err != nil {
			return err
		}
		a.console.Cart.Load(ctx)
		v, err := a.console.Cart.Remove(ctx, id)
		if err != nil {
			fmt.Fprintln(a.errOut, "Cart restored")
			return err
		}
		fmt.Fprintln(a.out, "Item removed from cart")
		return a.printCart(v)

	default:
		return usagef("unknown cart subcommand %q", sub)
	}
}

func (a *app) printCart(v console.View[console.Cart]) error {
	if err := viewErr(v); err != nil {
		return err
	}
	if v.State == console.Empty || len(v.Data.Items) == 0 {
		fmt.Fprintln(a.out, "Your cart is empty")
		return nil
	}
	a.printItems(v.Data.Items)
	fmt.Fprintf(a.out, "\n  %-42s %s\n", "TOTAL", console.FormatCurrency(v.Data.TotalAmount))
	return nil
}

func (a *app) printItems(items []console.CartItem) {
	fmt.Fprintf(a.out, "  %-8s %-28s %-5s %s\n", "PRODUCT", "NAME", "QTY", "SUBTOTAL")
	fmt.Fprintf(a.out, "  %-8s %-28s %-5s %s\n", "-------", "----", "---", "--------")
	for _, it := range items {
		fmt.Fprintf(a.out, "  %-8d %-28s %-5d %s\n",
			it.ProductID, it.ProductName, it.Qty, console.FormatCurrency(it.Subtotal))
	}
}

func (a *app) cmdCheckout(ctx context.Context) error {
	if err := a.require(ctx, guard.RequireSession); err != nil {
		return err
	}
	order, out, err := a.console.Cart.Checkout(ctx)
	if err != nil {
		return err
	}
	a.notice(out)
	fmt.Fprintf(a.out, "Order %d placed: %s, pay with `shopctl pay %d`\n",
		order.ID, console.FormatCurrency(order.TotalAmount), order.ID)
	return nil
}

// ---------------------------------------------------------------------------
// orders
// ---------------------------------------------------------------------------

func (a *app) cmdOrders(ctx context.Context, args []string) error {
	sub := "my"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "my", "mine":
		if err := a.require(ctx, guard.RequireSession); err != nil {
			return err
		}
		return a.printOrders(a.console.Orders.Mine(ctx), false)

	case "all":
		if err := a.require(ctx, guard.RequireAdmin); err != nil {
			return err
		}
		return a.printOrders(a.console.Orders.All(ctx), true)

	case "show":
		if err := a.require(ctx, guard.RequireSession); err != nil {
			return err
		}
		id, err := idArg(args, "orders show", "order id")
		if err != nil {
			return err
		}
		v := a.console.Orders.Show(ctx, id)
		if err := viewErr(v); err != nil {
			return err
		}
		a.printOrder(v.Data)
		return nil

	case "status":
		if err := a.require(ctx, guard.RequireAdmin); err != nil {
			return err
		}
		id, err := idArg(args, "orders status", "order id")
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return usagef("orders status requires one of %s", strings.Join(console.OrderStatuses, ", "))
		}
		order, out, err := a.console.Orders.UpdateStatus(ctx, id, args[1])
		if err != nil {
			return err
		}
		a.notice(out)
		fmt.Fprintf(a.out, "Order %d is now %s\n", order.ID, order.Status)
		return nil

	default:
		return usagef("unknown orders subcommand %q", sub)
	}
}

func (a *app) printOrders(v console.View[[]console.Order], withUser bool) error {
	if err := viewErr(v); err != nil {
		return err
	}
	if v.State == console.Empty {
		fmt.Fprintln(a.out, "No orders found")
		return nil
	}
	fmt.Fprintf(a.out, "  %-6s %-20s %-10s %-8s %-14s %s\n", "ID", "DATE", "STATUS", "PAYMENT", "TOTAL", "USER")
	fmt.Fprintf(a.out, "  %-6s %-20s %-10s %-8s %-14s %s\n", "--", "----", "------", "-------", "-----", "----")
	for _, o := range v.Data {
		user := "-"
		if withUser {
			user = orDash(o.UserEmail)
		}
		fmt.Fprintf(a.out, "  %-6d %-20s %-10s %-8s %-14s %s\n",
			o.ID, o.OrderDate, o.Status, o.PaymentStatus, console.FormatCurrency(o.TotalAmount), user)
	}
	return nil
}

func (a *app) printOrder(o console.Order) {
	fmt.Fprintf(a.out, "  %-14s %d\n", "ORDER", o.ID)
	fmt.Fprintf(a.out, "  %-14s %s\n", "DATE", o.OrderDate)
	fmt.Fprintf(a.out, "  %-14s %s\n", "STATUS", o.Status)
	fmt.Fprintf(a.out, "  %-14s %s\n", "PAYMENT", o.PaymentStatus)
	if o.TransactionRef != "" {
		fmt.Fprintf(a.out, "  %-14s %s (%s)\n", "TRANSACTION", o.TransactionRef, orDash(o.PaymentMode))
	}
	fmt.Fprintf(a.out, "  %-14s %s\n\n", "TOTAL", console.FormatCurrency(o.TotalAmount))
	a.printItems(o.Items)
}

// ---------------------------------------------------------------------------
// pay
// ---------------------------------------------------------------------------

func (a *app) cmdPay(ctx context.Context, args []string) error {
	if err := a.require(ctx, guard.RequireSession); err != nil {
		return err
	}
	if len(args) > 0 {
		switch args[0] {
		case "verify":
			return a.cmdPayVerify(ctx, args[1:])
		case "status":
			return a.cmdPayStatus(ctx, args[1:])
		case "config":
			return a.cmdPayConfig(ctx)
		}
	}

	fs := flag.NewFlagSet("pay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	viaTwin := fs.Bool("twin", false, "complete the gateway step through a twin-shop's control plane")
	pos, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	id, err := idArg(pos, "pay", "order id")
	if err != nil {
		return err
	}
	mode := ""
	if len(pos) > 1 {
		mode = pos[1]
	}

	started, err := a.console.Payments.Initiate(ctx, id, mode)
	if err != nil {
		return err
	}
	a.notice(started.Outcome)
	if started.Completed != nil {
		a.printConfirmation(*started.Completed)
		return nil
	}

	gw := started.Gateway
	fmt.Fprintf(a.out, "  %-16s %s\n", "GATEWAY ORDER", gw.GatewayOrderID)
	fmt.Fprintf(a.out, "  %-16s %s\n", "KEY", gw.KeyID)
	fmt.Fprintf(a.out, "  %-16s %d %s\n", "AMOUNT", gw.AmountMinor, gw.Currency)
	fmt.Fprintf(a.out, "  %-16s %s\n", "DESCRIPTION", gw.Description)
	fmt.Fprintf(a.out, "  %-16s %s\n", "PREFILL", gw.Prefill.Email)

	if !*viaTwin {
		fmt.Fprintf(a.out, "\nComplete the payment on the gateway, then run:\n  shopctl pay verify %d %s <paymentId> <signature>\n",
			id, gw.GatewayOrderID)
		return nil
	}

	base, err := a.client.BaseURL(ctx)
	if err != nil {
		return err
	}
	raw, err := client.NewAdmin(base).CompleteGateway(gw.GatewayOrderID)
	if err != nil {
		return err
	}
	var res console.GatewayResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return fmt.Errorf("decoding gateway result: %w", err)
	}
	return a.verify(ctx, id, res)
}

func (a *app) cmdPayVerify(ctx context.Context, args []string) error {
	id, err := idArg(args, "pay verify", "order id")
	if err != nil {
		return err
	}
	if len(args) < 4 {
		return usagef("pay verify requires <orderId> <gatewayOrderId> <paymentId> <signature>")
	}
	return a.verify(ctx, id, console.GatewayResult{
		GatewayOrderID: args[1],
		PaymentID:      args[2],
		Signature:      args[3],
	})
}

func (a *app) verify(ctx context.Context, orderID int64, res console.GatewayResult) error {
	conf, out, err := a.console.Payments.Verify(ctx, orderID, res)
	if err != nil {
		return err
	}
	a.notice(out)
	a.printConfirmation(conf)
	return nil
}

func (a *app) printConfirmation(c console.Confirmation) {
	fmt.Fprintf(a.out, "  %-14s %s\n", "STATUS", c.Status)
	if c.PaymentID != "" {
		fmt.Fprintf(a.out, "  %-14s %s\n", "PAYMENT", c.PaymentID)
	}
	fmt.Fprintf(a.out, "  %-14s %s\n", "TRANSACTION", orDash(c.TransactionID))
	if c.Amount > 0 {
		fmt.Fprintf(a.out, "  %-14s %s\n", "AMOUNT", console.FormatCurrency(c.Amount))
	}
	fmt.Fprintf(a.out, "  %-14s %s\n", "DATE", c.Date)
}

func (a *app) cmdPayStatus(ctx context.Context, args []string) error {
	id, err := idArg(args, "pay status", "order id")
	if err != nil {
		return err
	}
	st, err := a.console.Payments.Status(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "  %-16s %d\n", "ORDER", st.OrderID)
	fmt.Fprintf(a.out, "  %-16s %s\n", "ORDER STATUS", st.OrderStatus)
	fmt.Fprintf(a.out, "  %-16s %s\n", "PAYMENT", st.PaymentStatus)
	fmt.Fprintf(a.out, "  %-16s %s\n", "GATEWAY ORDER", orDash(st.GatewayOrderID))
	fmt.Fprintf(a.out, "  %-16s %s\n", "TOTAL", console.FormatCurrency(st.TotalAmount))
	return nil
}

func (a *app) cmdPayConfig(ctx context.Context) error {
	cfg, err := a.console.Payments.Config(ctx)
	if err != nil {
		return err
	}
	mode := "gateway"
	if cfg.DemoMode {
		mode = "demo"
	}
	fmt.Fprintf(a.out, "  %-12s %s\n", "MODE", mode)
	fmt.Fprintf(a.out, "  %-12s %s\n", "GATEWAY KEY", orDash(cfg.KeyID))
	return nil
}

// ---------------------------------------------------------------------------
// reviews
// ---------------------------------------------------------------------------

func (a *app) cmdReviews(ctx context.Context, args []string) error {
	if err := a.require(ctx, guard.RequireSession); err != nil {
		return err
	}
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "list":
		id, err := idArg(args, "reviews list", "product id")
		if err != nil {
			return err
		}
		v := a.console.Reviews.List(ctx, id)
		if err := viewErr(v); err != nil {
			return err
		}
		if v.State == console.Empty {
			fmt.Fprintln(a.out, "No reviews yet")
			return nil
		}
		for _, r := range v.Data {
			fmt.Fprintf(a.out, "  %s %-24s %s\n", stars(r.Rating), orDash(r.UserEmail), r.Comment)
		}
		return nil

	case "add":
		id, err := idArg(args, "reviews add", "product id")
		if err != nil {
			return err
		}
		if len(args) < 3 {
			return usagef("reviews add requires <productId> <rating> <comment>")
		}
		rating, err := strconv.Atoi(args[1])
		if err != nil {
			return usagef("reviews add: invalid rating %q", args[1])
		}
		out, err := a.console.Reviews.Add(ctx, console.ReviewForm{
			ProductID: id,
			Rating:    rating,
			Comment:   strings.Join(args[2:], " "),
		})
		if err != nil {
			return err
		}
		a.notice(out)
		return nil

	default:
		return usagef("unknown reviews subcommand %q", sub)
	}
}

func stars(n int) string {
	n = max(0, min(n, 5))
	return strings.Repeat("*", n) + strings.Repeat(".", 5-n)
}
