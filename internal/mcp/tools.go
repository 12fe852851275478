package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopdesk/shopdesk/internal/console"
	"github.com/shopdesk/shopdesk/internal/guard"
)

// Tool describes an MCP tool definition.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

// ToolResult is returned from tool invocations.
type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ToolContent holds a single piece of tool output.
type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func textResult(text string) ToolResult {
	return ToolResult{Content: []ToolContent{{Type: "text", Text: text}}}
}

func errorResult(err error) ToolResult {
	r := textResult(err.Error())
	r.IsError = true
	return r
}

func jsonResult(v any) ToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encoding result: %w", err))
	}
	return textResult(string(data))
}

type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) (any, error)

// toolEntry bundles a tool definition with its guards and handler.
type toolEntry struct {
	Tool    Tool
	Guards  []guard.Guard
	Handler toolHandler
}

var noArgs = json.RawMessage(`{"type": "object", "properties": {}, "required": []}`)

func allTools() []toolEntry {
	return []toolEntry{
		{
			Tool: Tool{
				Name:        "whoami",
				Description: "Show the signed-in account, its roles and whether it has administrator access.",
				InputSchema: noArgs,
			},
			Handler: handleWhoAmI,
		},
		{
			Tool: Tool{
				Name:        "list_products",
				Description: "List catalog products. With any filter argument the backend filter endpoint is used; sort orders by price.",
				InputSchema: json.RawMessage(`{"type": "object", "properties": {
					"keyword": {"type": "string", "description": "Case-insensitive name match"},
					"categoryId": {"type": "integer"},
					"minPrice": {"type": "number"},
					"maxPrice": {"type": "number"},
					"sort": {"type": "string", "enum": ["asc", "desc"]}
				}, "required": []}`),
			},
			Guards:  []guard.Guard{guard.RequireSession},
			Handler: handleListProducts,
		},
		{
			Tool: Tool{
				Name:        "get_product",
				Description: "Get one product by id.",
				InputSchema: json.RawMessage(`{"type": "object", "properties": {"productId": {"type": "integer"}}, "required": ["productId"]}`),
			},
			Guards:  []guard.Guard{guard.RequireSession},
			Handler: handleGetProduct,
		},
		{
			Tool: Tool{
				Name:        "list_categories",
				Description: "List product categories.",
				InputSchema: noArgs,
			},
			Guards:  []guard.Guard{guard.RequireSession},
			Handler: handleListCategories,
		},
		{
			Tool: Tool{
				Name:        "show_cart",
				Description: "Show the signed-in user's cart with line subtotals and total.",
				InputSchema: noArgs,
			},
			Guards:  []guard.Guard{guard.RequireSession},
			Handler: handleShowCart,
		},
		{
			Tool: Tool{
				Name:        "my_orders",
				Description: "List the signed-in user's orders, newest first.",
				InputSchema: noArgs,
			},
			Guards:  []guard.Guard{guard.RequireSession},
			Handler: handleMyOrders,
		},
		{
			Tool: Tool{
				Name:        "all_orders",
				Description: "List every customer's orders. Requires administrator access.",
				InputSchema: noArgs,
			},
			Guards:  []guard.Guard{guard.RequireAdmin},
			Handler: handleAllOrders,
		},
		{
			Tool: Tool{
				Name:        "list_reviews",
				Description: "List reviews for a product.",
				InputSchema: json.RawMessage(`{"type": "object", "properties": {"productId": {"type": "integer"}}, "required": ["productId"]}`),
			},
			Guards:  []guard.Guard{guard.RequireSession},
			Handler: handleListReviews,
		},
	}
}

// ---------------------------------------------------------------------------
// Tool handlers
// ---------------------------------------------------------------------------

func parseArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// viewData returns a page view's data, or its message when it failed.
func viewData[T any](v console.View[T]) (any, error) {
	if v.State == console.Failed {
		return nil, errors.New(v.Err)
	}
	return v.Data, nil
}

type productArgs struct {
	ProductID int64 `json:"productId"`
}

func handleWhoAmI(_ context.Context, s *Server, _ json.RawMessage) (any, error) {
	snap := s.console.Auth.WhoAmI()
	return map[string]any{
		"status":  snap.Status().String(),
		"email":   snap.Email,
		"roles":   snap.Roles,
		"isAdmin": snap.IsAdmin,
		"pending": snap.AdminCheckPending,
	}, nil
}

func handleListProducts(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	var f console.Filter
	if err := parseArgs(raw, &f); err != nil {
		return nil, err
	}
	if f == (console.Filter{}) {
		return viewData(s.console.Products.List(ctx))
	}
	return viewData(s.console.Products.Filter(ctx, f))
}

func handleGetProduct(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	var args productArgs
	if err := parseArgs(raw, &args); err != nil {
		return nil, err
	}
	return viewData(s.console.Products.Show(ctx, args.ProductID))
}

func handleListCategories(ctx context.Context, s *Server, _ json.RawMessage) (any, error) {
	return viewData(s.console.Categories.List(ctx))
}

func handleShowCart(ctx context.Context, s *Server, _ json.RawMessage) (any, error) {
	return viewData(s.console.Cart.Load(ctx))
}

func handleMyOrders(ctx context.Context, s *Server, _ json.RawMessage) (any, error) {
	return viewData(s.console.Orders.Mine(ctx))
}

func handleAllOrders(ctx context.Context, s *Server, _ json.RawMessage) (any, error) {
	return viewData(s.console.Orders.All(ctx))
}

func handleListReviews(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	var args productArgs
	if err := parseArgs(raw, &args); err != nil {
		return nil, err
	}
	return viewData(s.console.Reviews.List(ctx, args.ProductID))
}
