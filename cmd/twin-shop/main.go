// twin-shop is a behavioral twin of the shop backend that shopctl talks to.
// It serves the catalog, cart, order, payment and review API from memory,
// issues HS256 session tokens, and exposes the shared /admin control plane
// plus /admin/gateway/complete for finishing gateway payments without a
// browser.
//
// Default port: 12180
package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/shopdesk/shopdesk/internal/shoptwin"
	"github.com/shopdesk/shopdesk/internal/shoptwin/api"
	"github.com/shopdesk/shopdesk/internal/shoptwin/store"
	"github.com/shopdesk/shopdesk/pkg/twincore"
)

func main() {
	opts := shoptwin.DefaultOptions()
	flag.StringVar(&opts.JWTSecret, "jwt-secret", opts.JWTSecret, "HS256 signing secret")
	flag.StringVar(&opts.RoleClaim, "role-claim", opts.RoleClaim,
		"Where tokens carry roles: "+strings.Join(api.RoleClaimStyles, "|"))
	flag.BoolVar(&opts.Payments.Demo, "demo-payments", false, "Settle payments immediately instead of opening gateway orders")
	flag.StringVar(&opts.Payments.KeyID, "gateway-key", opts.Payments.KeyID, "Public gateway key id")
	flag.StringVar(&opts.Payments.Secret, "gateway-secret", opts.Payments.Secret, "Gateway signature secret")

	cfg := twincore.ParseFlags("twin-shop")
	if cfg.Port == 0 {
		cfg.Port = shoptwin.DefaultPort
	}

	twin := twincore.New(cfg)
	memStore := store.New()

	if err := shoptwin.Mount(twin, memStore, opts); err != nil {
		log.Fatalf("failed to initialize twin: %v", err)
	}

	if cfg.SeedFile != "" {
		data, err := os.ReadFile(cfg.SeedFile)
		if err != nil {
			log.Fatalf("failed to read seed file: %v", err)
		}
		if err := memStore.LoadState(data); err != nil {
			log.Fatalf("failed to load seed data: %v", err)
		}
		twin.Logger.Info("loaded seed data", "file", cfg.SeedFile)
	}

	twin.Logger.Info("twin-shop ready",
		"port", cfg.Port,
		"role_claim", opts.RoleClaim,
		"demo_payments", opts.Payments.Demo,
		"admin", store.AdminEmail,
		"customer", store.CustomerEmail,
	)

	if err := twin.Serve(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
