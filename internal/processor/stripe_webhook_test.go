package processor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentdesk/payments/internal/models"
)

const testWebhookSecret = "whsec_test_secret"

func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func stripeEvent(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"created":1700000000,"account":"acct_42","data":{"object":%s}}`, eventType, object))
}

func TestStripeEventDecoder_Verification(t *testing.T) {
	payload := stripeEvent("payment_intent.succeeded", `{"id":"pi_1"}`)

	t.Run("unconfigured secret", func(t *testing.T) {
		_, err := NewStripeEventDecoder("  ").ParseEvent(payload, signPayload(payload, testWebhookSecret))
		assert.ErrorIs(t, err, ErrMisconfiguredWebhook)
	})

	t.Run("missing signature", func(t *testing.T) {
		_, err := NewStripeEventDecoder(testWebhookSecret).ParseEvent(payload, "")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewStripeEventDecoder(testWebhookSecret).ParseEvent(payload, signPayload(payload, "whsec_other"))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered body", func(t *testing.T) {
		header := signPayload(payload, testWebhookSecret)
		tampered := stripeEvent("payment_intent.succeeded", `{"id":"pi_2"}`)
		_, err := NewStripeEventDecoder(testWebhookSecret).ParseEvent(tampered, header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("garbage header", func(t *testing.T) {
		_, err := NewStripeEventDecoder(testWebhookSecret).ParseEvent(payload, "not-a-signature")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("signed but not json", func(t *testing.T) {
		body := []byte("not json")
		_, err := NewStripeEventDecoder(testWebhookSecret).ParseEvent(body, signPayload(body, testWebhookSecret))
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})
}

func TestStripeEventDecoder_PaymentIntent(t *testing.T) {
	decoder := NewStripeEventDecoder(testWebhookSecret)

	t.Run("succeeded with charge id string", func(t *testing.T) {
		payload := stripeEvent("payment_intent.succeeded", `{
			"id":"pi_1","object":"payment_intent","amount":5000,"amount_received":5000,
			"currency":"usd","latest_charge":"ch_1",
			"metadata":{"tenant_id":"t1","customer_id":"c1","order_id":"o1"}}`)

		event, err := decoder.ParseEvent(payload, signPayload(payload, testWebhookSecret))
		require.NoError(t, err)

		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, models.EventChargeSucceeded, event.Kind)
		assert.Equal(t, "acct_42", event.AccountID)
		require.NotNil(t, event.Intent)
		assert.Equal(t, "pi_1", event.Intent.ID)
		assert.Equal(t, "ch_1", event.Intent.ChargeID)
		assert.Equal(t, "USD", event.Intent.Currency)
		assert.Equal(t, int64(5000), event.Intent.AmountReceived)
		assert.Equal(t, "o1", event.Intent.Meta(models.MetaOrderID))
	})

	t.Run("expanded latest charge and failure reason", func(t *testing.T) {
		payload := stripeEvent("payment_intent.payment_failed", `{
			"id":"pi_2","amount":100,"currency":"eur","latest_charge":{"id":"ch_2","object":"charge"},
			"last_payment_error":{"code":"card_declined","message":"Your card was declined."}}`)

		event, err := decoder.ParseEvent(payload, signPayload(payload, testWebhookSecret))
		require.NoError(t, err)

		assert.Equal(t, models.EventChargeFailed, event.Kind)
		assert.Equal(t, "ch_2", event.Intent.ChargeID)
		assert.Equal(t, "Your card was declined.", event.Intent.FailureReason)
	})

	t.Run("intent without id", func(t *testing.T) {
		payload := stripeEvent("payment_intent.canceled", `{"amount":100}`)
		_, err := decoder.ParseEvent(payload, signPayload(payload, testWebhookSecret))
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})
}

func TestStripeEventDecoder_OtherKinds(t *testing.T) {
	decoder := NewStripeEventDecoder(testWebhookSecret)

	t.Run("unknown type", func(t *testing.T) {
		payload := stripeEvent("invoice.finalized", `{"id":"in_1"}`)
		event, err := decoder.ParseEvent(payload, signPayload(payload, testWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, models.EventUnknown, event.Kind)
		assert.Equal(t, "invoice.finalized", event.RawType)
	})

	t.Run("account updated", func(t *testing.T) {
		payload := stripeEvent("account.updated", `{"id":"acct_42","charges_enabled":true,"payouts_enabled":false,
			"details_submitted":true,"requirements":{"currently_due":["external_account"]}}`)
		event, err := decoder.ParseEvent(payload, signPayload(payload, testWebhookSecret))
		require.NoError(t, err)
		require.NotNil(t, event.Merchant)
		assert.True(t, event.Merchant.ChargesEnabled)
		assert.False(t, event.Merchant.PayoutsEnabled)
		assert.Equal(t, []string{"external_account"}, event.Merchant.Requirements)
	})

	t.Run("payout failed", func(t *testing.T) {
		payload := stripeEvent("payout.failed", `{"id":"po_1","amount":12000,"currency":"usd","status":"failed",
			"failure_code":"account_closed","failure_message":"The bank account has been closed","arrival_date":1700086400}`)
		event, err := decoder.ParseEvent(payload, signPayload(payload, testWebhookSecret))
		require.NoError(t, err)
		require.NotNil(t, event.Payout)
		assert.Equal(t, "account_closed", event.Payout.FailureCode)
		assert.Equal(t, int64(1700086400), event.Payout.ArrivalDate.Unix())
	})

	t.Run("charge refunded", func(t *testing.T) {
		payload := stripeEvent("charge.refunded", `{"id":"ch_1","payment_intent":"pi_1","currency":"usd",
			"refunds":{"data":[{"id":"re_1","amount":1500,"status":"succeeded"}]}}`)
		event, err := decoder.ParseEvent(payload, signPayload(payload, testWebhookSecret))
		require.NoError(t, err)
		require.NotNil(t, event.Refund)
		assert.Equal(t, "pi_1", event.Refund.ChargeIntentID)
		require.Len(t, event.Refund.Refunds, 1)
		assert.Equal(t, int64(1500), event.Refund.Refunds[0].Amount)
	})

	t.Run("payment method attached", func(t *testing.T) {
		payload := stripeEvent("payment_method.attached", `{"id":"pm_1","customer":{"id":"cus_1"},
			"card":{"brand":"visa","last4":"4242","exp_month":12,"exp_year":2030}}`)
		event, err := decoder.ParseEvent(payload, signPayload(payload, testWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, "cus_1", event.PaymentMethod.Customer)
		assert.Equal(t, "4242", event.PaymentMethod.Last4)
	})

	t.Run("transfer paid", func(t *testing.T) {
		payload := stripeEvent("transfer.paid", `{"id":"tr_1","amount":4500,"currency":"usd","destination":"acct_42","created":1700000000}`)
		event, err := decoder.ParseEvent(payload, signPayload(payload, testWebhookSecret))
		require.NoError(t, err)
		assert.Equal(t, models.EventTransferPaid, event.Kind)
		assert.Equal(t, "acct_42", event.Transfer.Destination)
	})
}
