// shopctl is the shop operator console: catalog, cart, orders, payments and
// reviews against the shop backend, gated by login and role checks.
//
// Usage:
//
//	shopctl login <email> [password]      Sign in and store the token
//	shopctl products [list|show|...]      Browse and edit the catalog
//	shopctl cart [show|add|remove]        Manage the cart
//	shopctl checkout                      Turn the cart into an order
//	shopctl pay <orderId>                 Start a payment
//	shopctl twin up                       Start a local twin-shop
//	shopctl test <file|dir>               Run API scenarios
//	shopctl shell                         Interactive console on one session
//	shopctl mcp                           MCP server over stdio
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cmd, args, opts := parseArgs(os.Args[1:])

	if cmd == "" || cmd == "help" || cmd == "--help" || cmd == "-h" {
		printUsage()
		if cmd == "" {
			os.Exit(1)
		}
		return
	}
	if cmd == "version" || cmd == "--version" || cmd == "-v" {
		fmt.Printf("shopctl version %s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shopctl: %v\n", err)
		os.Exit(1)
	}
	err = a.run(ctx, cmd, args)
	a.close()

	var usage usageError
	switch {
	case errors.As(err, &usage):
		fmt.Fprintf(os.Stderr, "shopctl: %v\n\n", err)
		printUsage()
		os.Exit(1)
	case err != nil:
		fmt.Fprintf(os.Stderr, "shopctl: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are flags accepted before or after the command.
type globalOptions struct {
	configPath string
	verbose    bool
}

// parseArgs extracts the command, positional args and global flags.
func parseArgs(raw []string) (command string, args []string, opts globalOptions) {
	var filtered []string
	for i := 0; i < len(raw); i++ {
		switch {
		case raw[i] == "--config" && i+1 < len(raw):
			opts.configPath = raw[i+1]
			i++
		case raw[i] == "--verbose":
			opts.verbose = true
		default:
			filtered = append(filtered, raw[i])
		}
	}

	if len(filtered) == 0 {
		return "", nil, opts
	}
	return filtered[0], filtered[1:], opts
}

func printUsage() {
	fmt.Printf(`shopctl: shop operator console %s

Usage:
  shopctl [--config <path>] [--verbose] <command> [arguments]

Session:
  login <email> [password]           Sign in (password is read from stdin when omitted)
  register <email> <password>        Create an account (--phone, --address, --role)
  logout                             Clear the stored token
  whoami                             Show the signed-in account and admin status

Catalog:
  products [list]                    List products by name
  products show <id>                 Show one product
  products search <keyword>          Search by name
  products filter [flags]            Filter (--keyword --category --min --max --sort asc|desc)
  products category <id>             Products in a category
  products add [flags]               Add a product (admin; --name --sku --price --stock --category ...)
  products edit <id> [flags]         Edit a product (admin)
  products delete <id>               Delete a product (admin)
  categories [list]                  List categories
  categories add <name> [desc]       Add a category (admin)

Shopping:
  cart [show]                        Show the cart
  cart add <productId> [qty]         Add to the cart
  cart remove <productId>            Remove a line
  checkout                           Place an order from the cart
  orders [my]                        Your orders
  orders all                         Every order (admin)
  orders show <id>                   One order
  orders status <id> <status>        Set shipment status (admin)
  pay <orderId> [mode]               Start a payment
  pay verify <orderId> <gatewayOrderId> <paymentId> <signature>
                                     Confirm a gateway payment
  pay status <orderId>               Payment status
  pay config                         Payment mode and gateway key
  reviews list <productId>           Reviews for a product
  reviews add <productId> <rating> <comment...>

Tools:
  config show                        Show configuration and stored base URL
  config set-url <url>               Store an API base-URL override
  config clear-url                   Remove the override
  config set <key> <value>           Update a config file key
  health                             Ping the backend's /actuator/health
  request <METHOD> <path> [flags]    Send a raw request with the stored token (--query json --body json)
  history                            Recent API calls
  twin up [flags]                    Start a local twin-shop (--port --seed --role-claim --demo-payments --use)
  twin down                          Stop the local twin-shop
  twin status                        Show the tracked twin-shop
  twin health|reset|seed <file>|fault <pattern> <status>|complete <gatewayOrderId>
                                     Drive a twin-shop's /admin control plane
  test <file|dir>                    Run scripted API scenarios against the backend
  shell                              Interactive console
  mcp                                MCP server over stdio (for AI agents)
  version                            Print the shopctl version

Environment:
  SHOPDESK_CONFIG     Config file (default ~/.shopdesk/config.yaml)
  SHOPDESK_ORIGIN     Console origin
  SHOPDESK_STORAGE    State backend: file|redis|memory
  SHOPDESK_REDIS_ADDR Redis address for shared sessions
`, version)
}
