package twincore

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestJSONNilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusNoContent, nil)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
}

func TestErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusBadRequest, "Cart is empty")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if body["error"] != "Cart is empty" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestFieldErrorsBody(t *testing.T) {
	rec := httptest.NewRecorder()
	FieldErrors(rec, map[string]string{"sku": "SKU is required"})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if body["sku"] != "SKU is required" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestText(t *testing.T) {
	rec := httptest.NewRecorder()
	Text(rec, http.StatusOK, "eyJ.token.sig")

	if rec.Body.String() != "eyJ.token.sig" {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestTwinServeHTTP(t *testing.T) {
	twin := New(&Config{Name: "test-twin"})

	twin.Router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"pong": "true"})
	})

	rec := httptest.NewRecorder()
	twin.ServeHTTP(rec, httptest.NewRequest("GET", "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if len(twin.Middleware().ReqLog.Entries()) != 1 {
		t.Error("expected request to be logged")
	}
}

func TestUpdateConfigIsAtomic(t *testing.T) {
	twin := New(&Config{Name: "shop"})

	err := twin.UpdateConfig(map[string]any{
		"latency":   "20ms",
		"fail_rate": 2.0,
	})
	if err == nil {
		t.Fatal("expected invalid fail_rate to be rejected")
	}
	if twin.Config.Latency != 0 {
		t.Error("latency must not be applied when another field is invalid")
	}

	if err := twin.UpdateConfig(map[string]any{"latency": "20ms", "verbose": true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if twin.Config.Latency != 20*time.Millisecond || !twin.Config.Verbose {
		t.Errorf("unexpected config: %+v", twin.Config)
	}

	if err := twin.UpdateConfig(map[string]any{"port": 1}); err == nil {
		t.Error("expected port change to be rejected")
	}
	if got := twin.GetConfig()["latency"]; got != "20ms" {
		t.Errorf("expected latency 20ms in GetConfig, got %v", got)
	}
}
