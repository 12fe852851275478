package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopdesk/shopdesk/internal/storage"
)

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		override string
		origin   string
		want     string
	}{
		{"no override uses origin", "", "http://console.local", "http://console.local"},
		{"default override uses origin", DefaultBaseURL, "http://console.local", "http://console.local"},
		{"default override with slash uses origin", DefaultBaseURL + "/", "http://console.local/", "http://console.local"},
		{"custom override wins", "https://api.shop.test/", "http://console.local", "https://api.shop.test"},
		{"blank override uses origin", "   ", "http://console.local", "http://console.local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveBaseURL(tt.override, tt.origin))
		})
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *storage.Memory, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	st := storage.NewMemory()
	return New(st, srv.URL), st, srv
}

func TestClientAttachesStoredTokenPerRequest(t *testing.T) {
	var seen []string
	c, st, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	require.NoError(t, c.Get(ctx, "/api/products", nil))
	require.NoError(t, st.Set(ctx, storage.KeyToken, "tok-1"))
	require.NoError(t, c.Get(ctx, "/api/products", nil))

	assert.Equal(t, []string{"", "Bearer tok-1"}, seen)
}

func TestClientUsesStoredOverride(t *testing.T) {
	hit := false
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.Write([]byte(`[]`))
	}))
	defer other.Close()

	c, st, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("origin should not be called when an override is stored")
	})
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, storage.KeyBaseURL, other.URL))

	var out []any
	require.NoError(t, c.Get(ctx, "/api/categories", &out))
	assert.True(t, hit)
}

func TestClientDecodesJSONAndText(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "a@b.test", body["email"])
			w.Write([]byte("  raw.jwt.token \n"))
		case "/api/products/1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"productId":1}`))
		}
	})
	ctx := context.Background()

	token, err := c.PostText(ctx, "/auth/login", map[string]string{"email": "a@b.test"})
	require.NoError(t, err)
	assert.Equal(t, "raw.jwt.token", token)

	var p map[string]any
	require.NoError(t, c.Get(ctx, "/api/products/1", &p))
	assert.Equal(t, float64(1), p["productId"])
}

func TestClientErrorClasses(t *testing.T) {
	tests := []struct {
		status int
		class  error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadRequest, ErrValidation},
		{http.StatusUnprocessableEntity, ErrValidation},
		{http.StatusInternalServerError, ErrServer},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message":"nope"}`))
			})
			err := c.Get(context.Background(), "/api/cart", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.class)
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Equal(t, "nope", Message(err, "fallback"))
		})
	}
}

func TestClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(storage.NewMemory(), url, WithTimeout(time.Second))
	err := c.Get(context.Background(), "/api/products", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 0, StatusCode(err))
	assert.Equal(t, "Failed to fetch products", Message(err, "Failed to fetch products"))

	calls := c.History()
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].Err)
}

func TestWithTimeoutOrdering(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	before := New(storage.NewMemory(), "http://x", WithTimeout(2*time.Second), WithHTTPClient(shared))
	after := New(storage.NewMemory(), "http://x", WithHTTPClient(shared), WithTimeout(3*time.Second))
	plain := New(storage.NewMemory(), "http://x", WithTimeout(4*time.Second))

	assert.Equal(t, 2*time.Second, before.http.Timeout)
	assert.Equal(t, 3*time.Second, after.http.Timeout)
	assert.Equal(t, 4*time.Second, plain.http.Timeout)
	assert.Equal(t, time.Minute, shared.Timeout, "caller's client must not change")

	assert.Same(t, shared, New(storage.NewMemory(), "http://x", WithHTTPClient(shared)).http)
}

func TestProbeAdminUsesGivenToken(t *testing.T) {
	c, st, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, AdminProbePath, r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer admin-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`[]`))
	})
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, storage.KeyToken, "stored-token"))

	assert.NoError(t, c.ProbeAdmin(ctx, "admin-token"))
	assert.ErrorIs(t, c.ProbeAdmin(ctx, "customer-token"), ErrForbidden)
}

func TestClientHistoryIsBounded(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()
	for i := 0; i < HistorySize+3; i++ {
		require.NoError(t, c.Get(ctx, "/api/products", nil))
	}
	require.NoError(t, c.Delete(ctx, "/api/cart/remove/1", nil))

	calls := c.History()
	require.Len(t, calls, HistorySize)
	assert.Equal(t, http.MethodDelete, calls[0].Method, "newest first")
	assert.Equal(t, http.StatusOK, calls[0].Status)
}

func TestClientContextCancel(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Get(ctx, "/api/orders/all", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
