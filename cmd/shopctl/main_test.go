package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/shopdesk/shopdesk/internal/config"
	"github.com/shopdesk/shopdesk/internal/shoptwin"
	"github.com/shopdesk/shopdesk/internal/shoptwin/store"
	"github.com/shopdesk/shopdesk/pkg/twincore"
)

// newTestApp starts a twin-shop and an app pointed at it with in-memory
// state. Output lands in the returned buffers.
func newTestApp(t *testing.T, input string) (*app, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	twin := twincore.New(&twincore.Config{Name: "twin-shop-test"})
	if err := shoptwin.Mount(twin, store.New(), shoptwin.DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(twin.Router)
	t.Cleanup(srv.Close)

	t.Setenv(config.EnvOrigin, srv.URL)
	t.Setenv(config.EnvStorage, "memory")

	var out, errOut bytes.Buffer
	opts := globalOptions{configPath: filepath.Join(t.TempDir(), "config.yaml")}
	a, err := newApp(context.Background(), opts, strings.NewReader(input), &out, &errOut)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(a.close)
	return a, &out, &errOut
}

func mustRun(t *testing.T, a *app, cmd string, args ...string) {
	t.Helper()
	if err := a.run(context.Background(), cmd, args); err != nil {
		t.Fatalf("%s %v: %v", cmd, args, err)
	}
}

func TestParseArgs(t *testing.T) {
	cmd, args, opts := parseArgs([]string{"--verbose", "products", "show", "--config", "/tmp/c.yaml", "3"})
	if cmd != "products" {
		t.Errorf("command = %q, want products", cmd)
	}
	if !reflect.DeepEqual(args, []string{"show", "3"}) {
		t.Errorf("args = %v", args)
	}
	if !opts.verbose || opts.configPath != "/tmp/c.yaml" {
		t.Errorf("opts = %+v", opts)
	}

	if cmd, _, _ := parseArgs(nil); cmd != "" {
		t.Errorf("empty args gave command %q", cmd)
	}
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"  cart   add 1 2 ", []string{"cart", "add", "1", "2"}},
		{`reviews add 1 5 "great pan, heavy"`, []string{"reviews", "add", "1", "5", "great pan, heavy"}},
		{`categories add Garden 'it''s green'`, []string{"categories", "add", "Garden", "its green"}},
		{`login a\ b pw`, []string{"login", "a b", "pw"}},
		{`config set-url ""`, []string{"config", "set-url", ""}},
	}
	for _, tt := range tests {
		got, err := splitLine(tt.line)
		if err != nil {
			t.Errorf("splitLine(%q): %v", tt.line, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitLine(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}

	for _, bad := range []string{`say "unterminated`, `trailing\`} {
		if _, err := splitLine(bad); err == nil {
			t.Errorf("splitLine(%q) should fail", bad)
		}
	}
}

func TestGuardsBeforeLogin(t *testing.T) {
	a, _, _ := newTestApp(t, "")

	err := a.run(context.Background(), "cart", nil)
	if err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("cart before login: %v", err)
	}

	mustRun(t, a, "login", store.CustomerEmail, store.CustomerPassword)
	err = a.run(context.Background(), "orders", []string{"all"})
	if err == nil || err.Error() != "administrator access required" {
		t.Fatalf("orders all as customer: %v", err)
	}
}

func TestAdminCommands(t *testing.T) {
	a, out, _ := newTestApp(t, "")
	mustRun(t, a, "login", store.AdminEmail, store.AdminPassword)
	if !strings.Contains(out.String(), "Administrator access granted") {
		t.Fatalf("admin login output: %s", out)
	}

	mustRun(t, a, "categories", "add", "Garden", "Outdoor", "things")
	mustRun(t, a, "products", "add", "--name", "Hose", "--price", "499", "--stock", "7", "--category", "4")
	if !strings.Contains(out.String(), "(PROD-005)") {
		t.Errorf("suggested SKU not used: %s", out)
	}

	out.Reset()
	mustRun(t, a, "products", "edit", "5", "--price", "450")
	mustRun(t, a, "products", "show", "5")
	if !strings.Contains(out.String(), "INR 450.00") || !strings.Contains(out.String(), "Garden") {
		t.Errorf("edited product: %s", out)
	}

	out.Reset()
	mustRun(t, a, "products", "filter", "--category", "4")
	if !strings.Contains(out.String(), "Hose") || strings.Contains(out.String(), "Cast Iron Pan") {
		t.Errorf("filter output: %s", out)
	}

	err := a.run(context.Background(), "products", []string{"add", "--name", "Nothing", "--price", "0", "--category", "1"})
	if err == nil || !strings.Contains(err.Error(), "Price must be greater than 0") {
		t.Errorf("invalid product: %v", err)
	}
}

func TestPurchaseViaTwin(t *testing.T) {
	a, out, _ := newTestApp(t, "")
	mustRun(t, a, "login", store.CustomerEmail, store.CustomerPassword)
	mustRun(t, a, "cart", "add", "3", "2")
	mustRun(t, a, "checkout")
	if !strings.Contains(out.String(), "INR 1598.00") {
		t.Fatalf("checkout output: %s", out)
	}

	out.Reset()
	mustRun(t, a, "pay", "1", "--twin")
	if !strings.Contains(out.String(), "Status: verified") {
		t.Fatalf("pay output: %s", out)
	}

	out.Reset()
	mustRun(t, a, "pay", "config")
	if !strings.Contains(out.String(), "gateway") || !strings.Contains(out.String(), shoptwin.DefaultGatewayKey) {
		t.Errorf("payment config: %s", out)
	}

	out.Reset()
	mustRun(t, a, "pay", "status", "1")
	if !strings.Contains(out.String(), "SUCCESS") || !strings.Contains(out.String(), "CONFIRMED") {
		t.Errorf("payment status: %s", out)
	}

	out.Reset()
	mustRun(t, a, "history")
	if !strings.Contains(out.String(), "/api/payments/status/1") {
		t.Errorf("history: %s", out)
	}
}

func TestShellKeepsSession(t *testing.T) {
	script := strings.Join([]string{
		"login " + store.CustomerEmail + " " + store.CustomerPassword,
		"whoami",
		`reviews add 1 4 "solid battery life"`,
		"reviews list 1",
		"bogus",
		"exit",
		"whoami",
	}, "\n") + "\n"
	a, out, errOut := newTestApp(t, script)

	if err := a.cmdShell(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{"Signed in as " + store.CustomerEmail, "solid battery life", "****."} {
		if !strings.Contains(got, want) {
			t.Errorf("shell output missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "EMAIL") != 1 {
		t.Errorf("commands after exit ran:\n%s", got)
	}
	if !strings.Contains(errOut.String(), `unknown command "bogus"`) {
		t.Errorf("stderr: %s", errOut)
	}
}

func TestConfigURLOverride(t *testing.T) {
	a, out, _ := newTestApp(t, "")
	mustRun(t, a, "config", "set-url", "http://shop.example:9000/")
	mustRun(t, a, "config", "show")
	if !strings.Contains(out.String(), "http://shop.example:9000") {
		t.Errorf("override not shown: %s", out)
	}

	out.Reset()
	mustRun(t, a, "config", "clear-url")
	mustRun(t, a, "config", "show")
	if strings.Contains(out.String(), "shop.example") {
		t.Errorf("override not cleared: %s", out)
	}
}

func TestScenarioCommand(t *testing.T) {
	a, out, _ := newTestApp(t, "")
	mustRun(t, a, "test", filepath.Join("..", "..", "internal", "scenario", "testdata"))

	got := out.String()
	for _, want := range []string{"--- Gateway checkout ---", "--- Access rules ---", "Results: 2 passed, 0 failed, 2 total"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	if err := a.run(context.Background(), "test", []string{filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("expected an error for a missing scenario file")
	}
}

func TestTwinStatusUntracked(t *testing.T) {
	a, out, _ := newTestApp(t, "")
	mustRun(t, a, "twin", "status")
	mustRun(t, a, "twin", "down")
	if got := strings.Count(out.String(), "No twin-shop is tracked"); got != 2 {
		t.Errorf("output = %q", out.String())
	}
}

func TestHealthCommand(t *testing.T) {
	a, out, _ := newTestApp(t, "")
	mustRun(t, a, "health")
	if !strings.Contains(out.String(), "is healthy") || !strings.Contains(out.String(), `"UP"`) {
		t.Errorf("health output: %s", out)
	}
}

func TestRawRequest(t *testing.T) {
	a, out, _ := newTestApp(t, "")

	mustRun(t, a, "request", "get", "/api/products/filter", "--query", `{"categoryId": 3, "sort": "asc"}`)
	if got := out.String(); !strings.HasPrefix(got, "Status: 200\n") || !strings.Contains(got, "Cast Iron Pan") || strings.Contains(got, "Go in Practice") {
		t.Errorf("filtered request: %s", got)
	}

	out.Reset()
	mustRun(t, a, "request", "GET", "api/cart")
	if !strings.HasPrefix(out.String(), "Status: 401") {
		t.Errorf("anonymous cart request: %s", out)
	}

	mustRun(t, a, "login", store.CustomerEmail, store.CustomerPassword)
	out.Reset()
	mustRun(t, a, "request", "POST", "/api/cart/add", "--body", `{"productId": 1, "qty": 1}`)
	if !strings.HasPrefix(out.String(), "Status: 200") || !strings.Contains(out.String(), "Wireless Earbuds") {
		t.Errorf("cart add request: %s", out)
	}

	out.Reset()
	mustRun(t, a, "history")
	if !strings.Contains(out.String(), "/api/cart/add") || !strings.Contains(out.String(), "/api/products/filter?categoryId=3&sort=asc") {
		t.Errorf("history: %s", out)
	}

	for _, args := range [][]string{
		{"GET"},
		{"TRACE", "/api/products"},
		{"POST", "/api/cart/add", "--body", "{not json"},
		{"GET", "/api/products", "--query", "[1]"},
	} {
		var usage usageError
		if err := a.run(context.Background(), "request", args); !errors.As(err, &usage) {
			t.Errorf("request %v: err = %v, want a usage error", args, err)
		}
	}
}
