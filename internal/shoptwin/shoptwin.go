// Package shoptwin assembles the shop backend twin: the shop API and the
// shared /admin control plane over one in-memory store.
package shoptwin

import (
	"github.com/shopdesk/shopdesk/internal/shoptwin/api"
	"github.com/shopdesk/shopdesk/internal/shoptwin/store"
	"github.com/shopdesk/shopdesk/pkg/admin"
	"github.com/shopdesk/shopdesk/pkg/twincore"
)

// Defaults used by cmd/twin-shop and tests.
const (
	DefaultPort          = 12180
	DefaultJWTSecret     = "twin-shop-secret"
	DefaultGatewayKey    = "rzp_test_twin"
	DefaultGatewaySecret = "twin_secret"
)

// Options configures the twin's token and payment behavior.
type Options struct {
	JWTSecret string
	RoleClaim string
	Payments  api.PaymentConfig
}

// DefaultOptions returns gateway-mode payments and tokens that carry no
// role claim.
func DefaultOptions() Options {
	return Options{
		JWTSecret: DefaultJWTSecret,
		RoleClaim: api.RoleClaimNone,
		Payments:  api.PaymentConfig{KeyID: DefaultGatewayKey, Secret: DefaultGatewaySecret},
	}
}

// Mount registers the shop API and admin routes on the twin's router.
func Mount(twin *twincore.Twin, memStore *store.MemoryStore, opts Options) error {
	jwtMgr, err := api.NewJWTManager(opts.JWTSecret, opts.RoleClaim, memStore.Clock)
	if err != nil {
		return err
	}

	apiHandler := api.NewHandler(memStore, twin.Middleware(), jwtMgr, opts.Payments)
	apiHandler.Routes(twin.Router)

	adminHandler := admin.NewHandler(memStore, twin.Middleware(), memStore.Clock)
	adminHandler.SetConfigProvider(twin)
	adminHandler.Routes(twin.Router)
	return nil
}
