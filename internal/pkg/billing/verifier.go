package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

// Rejection reasons for inbound webhook requests. All three are terminal for
// the request and surface as 4xx; the processor's redelivery policy governs
// any retry.
var (
	ErrMissingSignature = errors.New("missing webhook signature header")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// IsVerificationError reports whether err is one of the verifier rejections.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrMissingSignature) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrMalformedPayload)
}

// Verifier authenticates a raw payload + signature header pair and produces a
// typed event. Implementations must be side-effect free.
type Verifier interface {
	Verify(payload []byte, signatureHeader string) (*InboundEvent, error)
}

// StripeVerifier verifies Stripe-Signature headers through the processor's
// own client library, which checks the HMAC and the timestamp tolerance.
type StripeVerifier struct {
	secret string
}

func NewStripeVerifier(secret string) *StripeVerifier {
	return &StripeVerifier{secret: secret}
}

func (v *StripeVerifier) Verify(payload []byte, signatureHeader string) (*InboundEvent, error) {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" {
		return nil, ErrMissingSignature
	}

	// Events keep the API version the endpoint was created with; version skew
	// against the SDK is not a reason to reject an authentic event.
	event, err := webhook.ConstructEventWithOptions(payload, sig, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNotSigned):
			return nil, ErrMissingSignature
		case errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrTooOld):
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, fmt.Errorf("%w: event id is empty", ErrMalformedPayload)
	}

	inbound := &InboundEvent{
		ID:         event.ID,
		Type:       ClassifyEventType(string(event.Type)),
		RawType:    string(event.Type),
		RawPayload: append([]byte(nil), event.Data.Raw...),
		ReceivedAt: time.Now().UTC(),
	}
	if err := narrowPayload(inbound); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return inbound, nil
}

// narrowPayload resolves the variant for the event's type tag. Unknown types
// stay untyped; they are valid, just unhandled.
func narrowPayload(ev *InboundEvent) error {
	switch ev.Type {
	case EventCheckoutCompleted:
		ev.Checkout = &CheckoutPayload{}
		return json.Unmarshal(ev.RawPayload, ev.Checkout)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		ev.Subscription = &SubscriptionPayload{}
		return json.Unmarshal(ev.RawPayload, ev.Subscription)
	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		ev.Invoice = &InvoicePayload{}
		return json.Unmarshal(ev.RawPayload, ev.Invoice)
	default:
		return nil
	}
}
