package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrGatewayKeyMissing is returned when the backend opens a gateway order
// but does not say which key to pay with.
var ErrGatewayKeyMissing = errors.New("gateway key id missing from backend response")

// PaymentsPage runs the two-phase payment protocol: Initiate either
// completes the payment (demo mode) or opens a gateway session, and Verify
// confirms a gateway result with the backend.
type PaymentsPage struct {
	api    API
	sess   Session
	logger *slog.Logger
}

// DefaultPaymentMode is sent when the caller names none.
const DefaultPaymentMode = "Razorpay"

// Ref is an identifier the backend sends either as a string or a number.
type Ref string

func (r *Ref) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = Ref(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("ref: %w", err)
	}
	*r = Ref(n.String())
	return nil
}

// Confirmation is a completed payment.
type Confirmation struct {
	Status        string
	Message       string
	PaymentID     string
	TransactionID string
	Amount        float64
	Date          Timestamp
}

// Prefill is the customer detail handed to the gateway checkout.
type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// GatewaySession is everything needed to complete payment on the gateway.
type GatewaySession struct {
	OrderID        int64   `json:"orderId"`
	GatewayOrderID string  `json:"gatewayOrderId"`
	KeyID          string  `json:"keyId"`
	AmountMinor    int64   `json:"amountMinor"`
	Currency       string  `json:"currency"`
	Description    string  `json:"description"`
	Prefill        Prefill `json:"prefill"`
}

// GatewayResult is what the gateway hands back after a successful payment.
type GatewayResult struct {
	GatewayOrderID string `json:"razorpay_order_id"`
	PaymentID      string `json:"razorpay_payment_id"`
	Signature      string `json:"razorpay_signature"`
}

// Initiation is the result of Initiate: exactly one of Completed and
// Gateway is set.
type Initiation struct {
	Completed *Confirmation
	Gateway   *GatewaySession
	Outcome   Outcome
}

type paymentResponse struct {
	Status          string    `json:"status"`
	Message         string    `json:"message"`
	PaymentStatus   string    `json:"paymentStatus"`
	PaymentID       Ref       `json:"paymentId"`
	TransactionID   Ref       `json:"transactionId"`
	TransactionDate Timestamp `json:"transactionDate"`
	Amount          float64   `json:"amount"`
	TotalAmount     float64   `json:"totalAmount"`
	GatewayOrderID  string    `json:"razorpayOrderId"`
	GatewayKeyID    string    `json:"razorpayKeyId"`
	Key             string    `json:"key"`
}

func (r paymentResponse) confirmation() *Confirmation {
	return &Confirmation{
		Status:        r.Status,
		Message:       r.Message,
		PaymentID:     string(r.PaymentID),
		TransactionID: string(r.TransactionID),
		Amount:        r.Amount,
		Date:          r.TransactionDate,
	}
}

// Initiate starts payment for a pending order.
func (p *PaymentsPage) Initiate(ctx context.Context, orderID int64, mode string) (Initiation, error) {
	if orderID <= 0 {
		return Initiation{}, invalid(FieldErrors{"orderId": "Order ID is required"})
	}
	if mode = strings.TrimSpace(mode); mode == "" {
		mode = DefaultPaymentMode
	}
	var resp paymentResponse
	body := map[string]any{"orderId": orderID, "paymentMode": mode}
	if err := p.api.Post(ctx, "/api/payments", body, &resp); err != nil {
		return Initiation{}, submitFailed(err, "Payment initialization failed.")
	}

	if resp.Status == PaymentSuccess || resp.TransactionID != "" {
		return Initiation{
			Completed: resp.confirmation(),
			Outcome:   Outcome{Notice: "Payment completed", Next: "orders", Delay: 1800 * time.Millisecond},
		}, nil
	}

	if resp.GatewayOrderID == "" {
		msg := resp.Message
		if msg == "" {
			msg = "unexpected payment response"
		}
		return Initiation{}, &SubmitError{Message: msg}
	}

	keyID := resp.GatewayKeyID
	if keyID == "" {
		keyID = resp.Key
	}
	if keyID == "" {
		return Initiation{}, &SubmitError{Message: ErrGatewayKeyMissing.Error(), Err: ErrGatewayKeyMissing}
	}

	amountMinor, err := p.amountMinor(ctx, orderID, resp)
	if err != nil {
		return Initiation{}, err
	}

	snap := p.sess.Snapshot()
	contact, _ := snap.Claims["phone"].(string)
	return Initiation{
		Gateway: &GatewaySession{
			OrderID:        orderID,
			GatewayOrderID: resp.GatewayOrderID,
			KeyID:          keyID,
			AmountMinor:    amountMinor,
			Currency:       "INR",
			Description:    fmt.Sprintf("ORDER_ID: %d", orderID),
			Prefill:        Prefill{Name: snap.Email, Email: snap.Email, Contact: contact},
		},
		Outcome: Outcome{Notice: "Complete payment on the gateway, then verify"},
	}, nil
}

// amountMinor prefers the amount the backend quoted in minor units, then its
// total, then the order's own total.
func (p *PaymentsPage) amountMinor(ctx context.Context, orderID int64, resp paymentResponse) (int64, error) {
	if resp.Amount > 0 {
		return int64(math.Round(resp.Amount)), nil
	}
	total := resp.TotalAmount
	if total <= 0 {
		var order Order
		if err := p.api.Get(ctx, fmt.Sprintf("/api/orders/%d", orderID), &order); err != nil {
			return 0, submitFailed(err, "Could not fetch order details")
		}
		total = order.TotalAmount
	}
	return int64(math.Round(total * 100)), nil
}

// Verify confirms a gateway payment with the backend.
func (p *PaymentsPage) Verify(ctx context.Context, orderID int64, res GatewayResult) (Confirmation, Outcome, error) {
	errs := FieldErrors{}
	if strings.TrimSpace(res.GatewayOrderID) == "" {
		errs["gatewayOrderId"] = "Gateway order ID is required"
	}
	if strings.TrimSpace(res.PaymentID) == "" {
		errs["paymentId"] = "Payment ID is required"
	}
	if strings.TrimSpace(res.Signature) == "" {
		errs["signature"] = "Signature is required"
	}
	if len(errs) > 0 {
		return Confirmation{}, Outcome{}, invalid(errs)
	}

	body := map[string]any{
		"razorpay_order_id":   strings.TrimSpace(res.GatewayOrderID),
		"razorpay_payment_id": strings.TrimSpace(res.PaymentID),
		"razorpay_signature":  strings.TrimSpace(res.Signature),
	}
	if orderID > 0 {
		body["orderId"] = orderID
	}
	var resp paymentResponse
	if err := p.api.Post(ctx, "/api/payments/verify", body, &resp); err != nil {
		return Confirmation{}, Outcome{}, submitFailed(err, "Payment verification failed")
	}

	conf := *resp.confirmation()
	if resp.Status == PaymentSuccess || resp.PaymentStatus == PaymentSuccess {
		return conf, Outcome{Notice: "Payment verified", Next: "orders", Delay: 2200 * time.Millisecond}, nil
	}
	return conf, Outcome{Notice: "Status: verified", Next: "orders", Delay: time.Second}, nil
}

// PaymentStatus is the payment state of one order.
type PaymentStatus struct {
	OrderID        int64   `json:"orderId"`
	PaymentStatus  string  `json:"paymentStatus"`
	OrderStatus    string  `json:"orderStatus"`
	GatewayOrderID string  `json:"razorpayOrderId"`
	TotalAmount    float64 `json:"totalAmount"`
}

// Status reports an order's payment state.
func (p *PaymentsPage) Status(ctx context.Context, orderID int64) (PaymentStatus, error) {
	var st PaymentStatus
	if err := p.api.Get(ctx, "/api/payments/status/"+strconv.FormatInt(orderID, 10), &st); err != nil {
		return PaymentStatus{}, &SubmitError{Message: readError(err, "Failed to fetch payment status"), Err: err}
	}
	return st, nil
}

// PaymentConfig is the backend's payment setup.
type PaymentConfig struct {
	KeyID    string `json:"razorpayKeyId"`
	DemoMode bool   `json:"demoMode"`
}

// Config reports whether the backend settles payments in demo mode and
// which public gateway key it pays with.
func (p *PaymentsPage) Config(ctx context.Context) (PaymentConfig, error) {
	var cfg PaymentConfig
	if err := p.api.Get(ctx, "/api/payments/config", &cfg); err != nil {
		return PaymentConfig{}, &SubmitError{Message: readError(err, "Failed to fetch payment config"), Err: err}
	}
	return cfg, nil
}
