package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// AdminClient talks to the shop twin's /admin/* control plane.
type AdminClient struct {
	http    *http.Client
	baseURL string
}

// NewAdmin creates an AdminClient with a 5-second timeout.
func NewAdmin(baseURL string) *AdminClient {
	return &AdminClient{
		http:    &http.Client{Timeout: 5 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Health checks GET /admin/health. Returns (ok, response body or error message).
func (c *AdminClient) Health() (bool, string) {
	resp, err := c.http.Get(c.baseURL + "/admin/health")
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusOK {
		return true, strings.TrimSpace(string(body))
	}
	return false, fmt.Sprintf("status %d: %s", resp.StatusCode, body)
}

// Reset calls POST /admin/reset, which restores the seed catalog.
func (c *AdminClient) Reset() (string, error) {
	return c.post("/admin/reset", nil, "reset")
}

// Seed POSTs the contents of a JSON file to POST /admin/state.
func (c *AdminClient) Seed(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading seed file: %w", err)
	}
	return c.post("/admin/state", data, "seed")
}

// InjectFault registers a fault for a path pattern such as "/api/cart/remove/*".
func (c *AdminClient) InjectFault(pattern string, status int) (string, error) {
	data, err := json.Marshal(map[string]any{"pattern": pattern, "status_code": status})
	if err != nil {
		return "", err
	}
	return c.post("/admin/faults", data, "fault")
}

// CompleteGateway asks the twin to simulate the payment popup for a gateway
// order and returns the signed result as JSON.
func (c *AdminClient) CompleteGateway(gatewayOrderID string) (string, error) {
	data, err := json.Marshal(map[string]string{"razorpay_order_id": gatewayOrderID})
	if err != nil {
		return "", err
	}
	return c.post("/admin/gateway/complete", data, "gateway completion")
}

func (c *AdminClient) post(path string, data []byte, what string) (string, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s failed (status %d): %s", what, resp.StatusCode, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
