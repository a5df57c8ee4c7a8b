package billing

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signPayload(payload []byte, secret string) string {
	ts := time.Now()
	sig := webhook.ComputeSignature(ts, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))
}

func eventJSON(id, eventType, object string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"object":"event","api_version":"2025-03-31.basil","created":%d,"type":%q,"data":{"object":%s}}`,
		id, time.Now().Unix(), eventType, object,
	))
}

func TestStripeVerifier_ValidCheckoutEvent(t *testing.T) {
	payload := eventJSON("evt_1", "checkout.session.completed",
		`{"id":"cs_1","mode":"subscription","metadata":{"correlation_id":"u1"},"customer":"cus_1","subscription":"sub_1"}`)
	v := NewStripeVerifier(testWebhookSecret)

	ev, err := v.Verify(payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	require.NotNil(t, ev.Checkout)
	assert.Equal(t, "subscription", ev.Checkout.Mode)
	assert.Equal(t, "u1", ev.Checkout.Metadata[CorrelationMetadataKey])
	assert.Equal(t, "cus_1", string(ev.Checkout.Customer))
	assert.Equal(t, "sub_1", string(ev.Checkout.Subscription))
}

func TestStripeVerifier_MissingSignature(t *testing.T) {
	payload := eventJSON("evt_2", "checkout.session.completed", `{}`)
	v := NewStripeVerifier(testWebhookSecret)

	_, err := v.Verify(payload, "")
	assert.ErrorIs(t, err, ErrMissingSignature)

	_, err = v.Verify(payload, "   ")
	assert.ErrorIs(t, err, ErrMissingSignature)
}

func TestStripeVerifier_TamperedPayload(t *testing.T) {
	payload := eventJSON("evt_3", "invoice.payment_failed", `{"subscription":"sub_42"}`)
	header := signPayload(payload, testWebhookSecret)

	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-2] = 'x'

	v := NewStripeVerifier(testWebhookSecret)
	_, err := v.Verify(tampered, header)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestStripeVerifier_WrongSecret(t *testing.T) {
	payload := eventJSON("evt_4", "invoice.payment_failed", `{"subscription":"sub_42"}`)
	header := signPayload(payload, "whsec_other_secret")

	v := NewStripeVerifier(testWebhookSecret)
	_, err := v.Verify(payload, header)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestStripeVerifier_ExpiredTimestamp(t *testing.T) {
	payload := eventJSON("evt_5", "invoice.payment_failed", `{"subscription":"sub_42"}`)
	ts := time.Now().Add(-time.Hour)
	sig := webhook.ComputeSignature(ts, payload, testWebhookSecret)
	header := fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))

	v := NewStripeVerifier(testWebhookSecret)
	_, err := v.Verify(payload, header)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestStripeVerifier_MalformedBody(t *testing.T) {
	payload := []byte(`{not json`)
	header := signPayload(payload, testWebhookSecret)

	v := NewStripeVerifier(testWebhookSecret)
	_, err := v.Verify(payload, header)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestStripeVerifier_MissingEventID(t *testing.T) {
	payload := []byte(fmt.Sprintf(
		`{"object":"event","created":%d,"type":"invoice.payment_failed","data":{"object":{}}}`,
		time.Now().Unix(),
	))
	header := signPayload(payload, testWebhookSecret)

	v := NewStripeVerifier(testWebhookSecret)
	_, err := v.Verify(payload, header)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestStripeVerifier_UnknownTypeIsNotAnError(t *testing.T) {
	payload := eventJSON("evt_6", "charge.refunded", `{"id":"ch_1"}`)
	v := NewStripeVerifier(testWebhookSecret)

	ev, err := v.Verify(payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, EventOther, ev.Type)
	assert.Equal(t, "charge.refunded", ev.RawType)
	assert.Nil(t, ev.Checkout)
	assert.Nil(t, ev.Subscription)
	assert.Nil(t, ev.Invoice)
}
