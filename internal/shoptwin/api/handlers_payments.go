package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/shopdesk/shopdesk/internal/shoptwin/store"
	"github.com/shopdesk/shopdesk/pkg/twincore"
)

// Payment response statuses beyond the store's payment statuses.
const (
	statusGatewayOrderCreated = "RAZORPAY_ORDER_CREATED"
	statusError               = "ERROR"
)

// gatewayRef returns a gateway-style identifier such as "order_3f2a9c0d1b7e4a".
func gatewayRef(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

// signGateway is the gateway's result signature: hex HMAC-SHA256 of
// "orderId|paymentId".
func signGateway(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func paymentError(w http.ResponseWriter, status int, payStatus, msg string) {
	twincore.JSON(w, status, map[string]any{"status": payStatus, "message": msg})
}

type paymentRequest struct {
	OrderID     int64  `json:"orderId"`
	PaymentMode string `json:"paymentMode"`
}

// CreatePayment handles POST /api/payments. In demo mode the order is paid
// at once; otherwise a gateway order is opened for the client to complete.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.store.Order(req.OrderID)
	if u := currentUser(r); err != nil || (o.UserID != u.ID && !u.IsAdmin()) {
		paymentError(w, http.StatusNotFound, statusError, "Order not found")
		return
	}

	if h.pay.Demo {
		paid, tx, err := h.store.PayDemo(o.ID)
		if err != nil {
			paymentError(w, http.StatusBadRequest, statusError, err.Error())
			return
		}
		twincore.JSON(w, http.StatusOK, map[string]any{
			"status":          store.PaymentSuccess,
			"message":         "Demo payment completed successfully",
			"orderId":         paid.ID,
			"paymentStatus":   paid.PaymentStatus,
			"transactionId":   tx.ID,
			"transactionDate": localTime(tx.Date),
			"amount":          tx.Amount,
		})
		return
	}

	opened, err := h.store.OpenGatewayOrder(o.ID, gatewayRef("order_"))
	if err != nil {
		paymentError(w, http.StatusBadRequest, statusError, err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{
		"status":          statusGatewayOrderCreated,
		"orderId":         opened.ID,
		"razorpayOrderId": opened.GatewayOrderID,
		"razorpayKeyId":   h.pay.KeyID,
		"amount":          int64(math.Round(opened.TotalAmount * 100)),
		"currency":        "INR",
	})
}

type verifyRequest struct {
	GatewayOrderID string `json:"razorpay_order_id"`
	PaymentID      string `json:"razorpay_payment_id"`
	Signature      string `json:"razorpay_signature"`
	OrderID        int64  `json:"orderId"`
}

// VerifyPayment handles POST /api/payments/verify.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.GatewayOrderID == "" || req.PaymentID == "" || req.Signature == "" {
		paymentError(w, http.StatusBadRequest, statusError, "Missing payment details")
		return
	}
	o, ok := h.store.OrderByGatewayID(req.GatewayOrderID)
	if u := currentUser(r); !ok || (o.UserID != u.ID && !u.IsAdmin()) {
		paymentError(w, http.StatusNotFound, statusError, "Order not found with razorpay_order_id: "+req.GatewayOrderID)
		return
	}
	if req.OrderID > 0 && req.OrderID != o.ID {
		paymentError(w, http.StatusBadRequest, statusError, "Order ID does not match the gateway order")
		return
	}
	want := signGateway(h.pay.Secret, req.GatewayOrderID, req.PaymentID)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(req.Signature))) {
		paymentError(w, http.StatusBadRequest, store.PaymentFailed, "Payment verification failed: Invalid signature")
		return
	}

	_, tx, err := h.store.SettleGateway(req.GatewayOrderID, req.PaymentID)
	if err != nil {
		paymentError(w, http.StatusBadRequest, statusError, err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{
		"status":          store.PaymentSuccess,
		"message":         "Payment verified and confirmed successfully",
		"orderId":         req.GatewayOrderID,
		"paymentId":       req.PaymentID,
		"transactionId":   strconv.FormatInt(tx.ID, 10),
		"transactionDate": localTime(tx.Date),
		"amount":          tx.Amount,
	})
}

// PaymentStatus handles GET /api/payments/status/{orderId}.
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	o, ok := h.ownedOrder(w, r, "orderId")
	if !ok {
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{
		"orderId":         o.ID,
		"paymentStatus":   o.PaymentStatus,
		"orderStatus":     o.Status,
		"razorpayOrderId": o.GatewayOrderID,
		"totalAmount":     o.TotalAmount,
	})
}

func (h *Handler) GetPaymentConfig(w http.ResponseWriter, r *http.Request) {
	key := h.pay.KeyID
	if h.pay.Demo {
		key = ""
	}
	twincore.JSON(w, http.StatusOK, map[string]any{"razorpayKeyId": key, "demoMode": h.pay.Demo})
}

type completeRequest struct {
	GatewayOrderID string `json:"razorpay_order_id"`
	Fail           bool   `json:"fail"`
}

// CompleteGateway handles POST /admin/gateway/complete. It plays the
// customer finishing the gateway popup and returns the signed result the
// popup would hand back, or marks the payment failed when fail is set.
func (h *Handler) CompleteGateway(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decode(w, r, &req) {
		return
	}
	if _, ok := h.store.OrderByGatewayID(req.GatewayOrderID); !ok {
		twincore.Error(w, http.StatusNotFound, "unknown gateway order "+req.GatewayOrderID)
		return
	}
	if req.Fail {
		h.store.FailGateway(req.GatewayOrderID)
		twincore.JSON(w, http.StatusOK, map[string]string{"status": store.PaymentFailed, "razorpay_order_id": req.GatewayOrderID})
		return
	}
	paymentID := gatewayRef("pay_")
	twincore.JSON(w, http.StatusOK, map[string]string{
		"razorpay_order_id":   req.GatewayOrderID,
		"razorpay_payment_id": paymentID,
		"razorpay_signature":  signGateway(h.pay.Secret, req.GatewayOrderID, paymentID),
	})
}
