package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{{"productId": 1}, {"productId": 2}})
	})

	mux.HandleFunc("PUT /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		body["productId"] = r.PathValue("id")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	})

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("  header.payload.sig\n"))
	})

	mux.HandleFunc("GET /whoami", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"authorization": r.Header.Get("Authorization")})
	})

	mux.HandleFunc("POST /admin/faults", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	})

	mux.HandleFunc("DELETE /admin/faults", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"pattern": r.URL.Query().Get("pattern")})
	})

	mux.HandleFunc("GET /admin/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	return httptest.NewServer(mux)
}

func TestNewTwinClientURL(t *testing.T) {
	tc := NewTwinClientURL(t, "http://localhost:8080/")
	if tc.BaseURL != "http://localhost:8080" {
		t.Errorf("expected trailing slash trimmed, got %s", tc.BaseURL)
	}
}

func TestTwinClientGet(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := NewTwinClient(t, srv).Get("/api/products")
	resp.AssertStatus(http.StatusOK)

	var items []map[string]any
	resp.JSON(&items)
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}
}

func TestTwinClientPut(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := NewTwinClient(t, srv).Put("/api/products/42", map[string]string{"productName": "Mug"})
	resp.AssertStatus(http.StatusOK)

	m := resp.JSONMap()
	if m["productId"] != "42" || m["productName"] != "Mug" {
		t.Errorf("unexpected body: %+v", m)
	}
}

func TestTwinClientLoginAndToken(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	tc := NewTwinClient(t, srv)
	token := tc.Login("a@b.test", "secret")
	if token != "header.payload.sig" {
		t.Fatalf("expected trimmed token, got %q", token)
	}

	m := tc.WithToken(token).Get("/whoami").JSONMap()
	if m["authorization"] != "Bearer header.payload.sig" {
		t.Errorf("expected bearer header, got %v", m["authorization"])
	}
	if tc.Token != "" {
		t.Error("WithToken must not mutate the original client")
	}
}

func TestResponseAssertChaining(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := NewTwinClient(t, srv).Get("/api/products")
	if resp.AssertStatus(http.StatusOK) != resp {
		t.Error("expected AssertStatus to return the same Response for chaining")
	}
	if resp.AssertBodyContains(`"productId"`) != resp {
		t.Error("expected AssertBodyContains to return the same Response for chaining")
	}
}

func TestAdminClientFaults(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	ac := NewAdminClient(NewTwinClient(t, srv))

	m := ac.InjectFault("/api/cart/remove/*", 500, "").AssertStatus(http.StatusOK).JSONMap()
	if m["pattern"] != "/api/cart/remove/*" || m["status_code"] != float64(500) {
		t.Errorf("unexpected inject payload: %+v", m)
	}

	m = ac.RemoveFault("/api/cart/remove/*").AssertStatus(http.StatusOK).JSONMap()
	if m["pattern"] != "/api/cart/remove/*" {
		t.Errorf("expected pattern to survive query escaping, got %v", m["pattern"])
	}
}

func TestAdminClientHealth(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	m := NewAdminClient(NewTwinClient(t, srv)).Health().AssertStatus(http.StatusOK).JSONMap()
	if m["status"] != "ok" {
		t.Errorf("expected status=ok, got %v", m["status"])
	}
}
