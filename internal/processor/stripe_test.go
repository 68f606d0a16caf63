package processor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewStripeGateway(StripeConfig{Timeout: 5 * time.Second, BaseURL: server.URL})
}

var testCreds = Credentials{APIKey: "sk_test_123", AccountID: "acct_42"}

func TestStripeGateway_CreatePaymentIntent(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "20000", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "2000", r.PostForm.Get("application_fee_amount"))
		assert.Equal(t, "acct_42", r.PostForm.Get("transfer_data[destination]"))
		assert.Equal(t, "manual", r.PostForm.Get("capture_method"))
		assert.Equal(t, "tenant-1", r.PostForm.Get("metadata[tenant_id]"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_dep","object":"payment_intent","client_secret":"pi_dep_secret","status":"requires_payment_method"}`))
	})

	handle, err := gateway.CreatePaymentIntent(context.Background(), ChargeRequest{
		Credentials:   testCreds,
		AmountMinor:   20000,
		FeeMinor:      2000,
		Currency:      "USD",
		Description:   "Security deposit",
		Metadata:      map[string]string{"tenant_id": "tenant-1"},
		ManualCapture: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_dep", handle.ChargeIntentID)
	assert.Equal(t, "pi_dep_secret", handle.ClientSecret)
}

func TestStripeGateway_CreateCheckoutSession(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "5000", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "acct_42", r.PostForm.Get("payment_intent_data[transfer_data][destination]"))
		assert.Equal(t, "500", r.PostForm.Get("payment_intent_data[application_fee_amount]"))
		assert.Equal(t, "order-1", r.PostForm.Get("payment_intent_data[metadata][order_id]"))
		assert.Equal(t, "order-1", r.PostForm.Get("metadata[order_id]"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_1","object":"checkout.session","url":"https://checkout.example/cs_1","payment_intent":null}`))
	})

	handle, err := gateway.CreateCheckoutSession(context.Background(), ChargeRequest{
		Credentials: testCreds,
		AmountMinor: 5000,
		FeeMinor:    500,
		Currency:    "usd",
		Description: "Order 1001",
		SuccessURL:  "https://app.example/success",
		CancelURL:   "https://app.example/cancel",
		Metadata:    map[string]string{"order_id": "order-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", handle.SessionID)
	assert.Equal(t, "cs_1", handle.ChargeIntentID)
	assert.Equal(t, "https://checkout.example/cs_1", handle.RedirectURL)
}

func TestStripeGateway_CreateCheckoutSession_EagerIntent(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_2","object":"checkout.session","url":"https://checkout.example/cs_2","payment_intent":"pi_2"}`))
	})

	handle, err := gateway.CreateCheckoutSession(context.Background(), ChargeRequest{
		Credentials: testCreds,
		AmountMinor: 5000,
		Currency:    "usd",
		Description: "Order 1002",
		SuccessURL:  "https://app.example/success",
		CancelURL:   "https://app.example/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_2", handle.SessionID)
	assert.Equal(t, "pi_2", handle.ChargeIntentID)
}

func TestStripeGateway_Capture(t *testing.T) {
	t.Run("partial capture", func(t *testing.T) {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/payment_intents/pi_dep/capture", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "15000", r.PostForm.Get("amount_to_capture"))
			assert.Equal(t, "capture:pi_dep:15000", r.Header.Get("Idempotency-Key"))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"pi_dep","object":"payment_intent","status":"succeeded","amount_received":15000,"currency":"usd","latest_charge":"ch_9"}`))
		})

		result, err := gateway.CapturePaymentIntent(context.Background(), testCreds, "pi_dep", 15000)
		require.NoError(t, err)
		assert.Equal(t, int64(15000), result.AmountReceived)
		assert.Equal(t, "ch_9", result.ChargeID)
	})

	t.Run("idempotency key tracks the amount", func(t *testing.T) {
		var keys []string
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			keys = append(keys, r.Header.Get("Idempotency-Key"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"pi_dep","object":"payment_intent","status":"succeeded","amount_received":0,"currency":"usd"}`))
		})

		for _, amount := range []int64{15000, 9000, 0} {
			_, err := gateway.CapturePaymentIntent(context.Background(), testCreds, "pi_dep", amount)
			require.NoError(t, err)
		}
		assert.Equal(t, []string{"capture:pi_dep:15000", "capture:pi_dep:9000", "capture:pi_dep:0"}, keys)
	})

	t.Run("card error is not retryable", func(t *testing.T) {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"payment_intent_unexpected_state","message":"This PaymentIntent could not be captured."}}`))
		})

		_, err := gateway.CapturePaymentIntent(context.Background(), testCreds, "pi_dep", 15000)
		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "This PaymentIntent could not be captured.", perr.Message)
		assert.False(t, perr.Retryable)
		assert.Equal(t, http.StatusPaymentRequired, perr.StatusCode)
	})

	t.Run("server error is retryable", func(t *testing.T) {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"type":"api_error","message":"Something went wrong"}}`))
		})

		_, err := gateway.CancelPaymentIntent(context.Background(), testCreds, "pi_dep")
		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.True(t, perr.Retryable)
	})
}

func TestWrapStripeError_Timeout(t *testing.T) {
	err := wrapStripeError("capture payment intent", fmt.Errorf("post: %w", context.DeadlineExceeded))

	assert.True(t, IsTimeout(err))
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.Retryable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
