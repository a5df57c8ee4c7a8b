package billing

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dweber/subsync/app/models"
)

// EventType is the closed set of webhook event types this service reconciles.
// Everything else maps to EventOther and is acknowledged without side effects.
type EventType string

const (
	EventCheckoutCompleted       EventType = "checkout.session.completed"
	EventSubscriptionUpdated     EventType = "customer.subscription.updated"
	EventSubscriptionDeleted     EventType = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded EventType = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    EventType = "invoice.payment_failed"
	EventOther                   EventType = "other"
)

// ClassifyEventType maps a raw Stripe event type tag to the closed enum.
func ClassifyEventType(raw string) EventType {
	switch EventType(strings.TrimSpace(raw)) {
	case EventCheckoutCompleted:
		return EventCheckoutCompleted
	case EventSubscriptionUpdated:
		return EventSubscriptionUpdated
	case EventSubscriptionDeleted:
		return EventSubscriptionDeleted
	case EventInvoicePaymentSucceeded:
		return EventInvoicePaymentSucceeded
	case EventInvoicePaymentFailed:
		return EventInvoicePaymentFailed
	default:
		return EventOther
	}
}

// InboundEvent is an authenticated, typed notification. The variant matching
// Type is populated by the verifier; the others stay nil. Immutable once
// verified.
type InboundEvent struct {
	ID           string
	Type         EventType
	RawType      string
	RawPayload   []byte
	ReceivedAt   time.Time
	Checkout     *CheckoutPayload
	Subscription *SubscriptionPayload
	Invoice      *InvoicePayload
}

// stripeID tolerates both the unexpanded form ("sub_123") and the expanded
// object form ({"id":"sub_123", ...}) Stripe uses for reference fields.
type stripeID string

func (s *stripeID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = stripeID(v)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = stripeID(obj.ID)
	return nil
}

// CheckoutPayload carries the checkout.session.completed fields reconciliation
// needs.
type CheckoutPayload struct {
	ID           string            `json:"id"`
	Mode         string            `json:"mode"`
	Metadata     map[string]string `json:"metadata"`
	Customer     stripeID          `json:"customer"`
	Subscription stripeID          `json:"subscription"`
}

// SubscriptionPayload carries customer.subscription.* fields. Newer API
// versions report the billing period on the subscription items instead of the
// subscription itself, so both locations are read.
type SubscriptionPayload struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// PeriodEnd returns the subscription period end, or the zero time when the
// payload carries none.
func (p *SubscriptionPayload) PeriodEnd() time.Time {
	ts := p.CurrentPeriodEnd
	if ts == 0 && len(p.Items.Data) > 0 {
		ts = p.Items.Data[0].CurrentPeriodEnd
	}
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

// InvoicePayload carries invoice.payment_* fields. The subscription reference
// moved under parent.subscription_details in newer API versions.
type InvoicePayload struct {
	ID           string   `json:"id"`
	Subscription stripeID `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription stripeID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// SubscriptionID returns the referenced subscription id, or "" for one-off
// invoices that carry none.
func (p *InvoicePayload) SubscriptionID() string {
	if id := string(p.Parent.SubscriptionDetails.Subscription); id != "" {
		return id
	}
	return string(p.Subscription)
}

// NormalizeSubscriptionStatus folds Stripe's subscription statuses into the
// account store's closed set. Unrecognized statuses are stored lowercased as
// reported, matching the processor-state-wins write policy.
func NormalizeSubscriptionStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return models.SubscriptionActive
	case "past_due", "unpaid":
		return models.SubscriptionPastDue
	case "canceled", "cancelled", "incomplete_expired":
		return models.SubscriptionCancelled
	case "":
		return models.SubscriptionNone
	default:
		return strings.ToLower(strings.TrimSpace(status))
	}
}
