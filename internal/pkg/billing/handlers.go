package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dweber/subsync/app/models"
	"github.com/sirupsen/logrus"
)

// ErrMissingCorrelation rejects checkout events whose metadata lacks the
// correlation id. Such an event cannot be reconciled to an account, so the
// claim is released and the processor's redelivery will surface the problem
// again rather than silently dropping a paid checkout.
var ErrMissingCorrelation = errors.New("checkout metadata is missing correlation_id")

// CorrelationMetadataKey is the checkout metadata key that carries the
// application-supplied account id.
const CorrelationMetadataKey = "correlation_id"

// Handlers holds the per-event-type reconciliation logic. Each handler
// performs at most one write to the account store and writes status
// unconditionally from the event's own data.
//
// Delivery order is not guaranteed, so a sufficiently out-of-order delivery
// can transiently overwrite a newer status with an older one. That is a
// documented accepted limitation of the last-writer-wins policy.
type Handlers struct {
	repo Repository
	log  *logrus.Logger
}

func NewHandlers(repo Repository, log *logrus.Logger) *Handlers {
	return &Handlers{repo: repo, log: log}
}

// HandleCheckoutCompleted activates the account named by the checkout's
// correlation metadata and records the new Stripe identifiers.
func (h *Handlers) HandleCheckoutCompleted(ctx context.Context, ev *InboundEvent) (string, error) {
	_ = ctx
	co := ev.Checkout
	if co == nil {
		return "", fmt.Errorf("checkout payload missing on event %s", ev.ID)
	}

	userID := strings.TrimSpace(co.Metadata[CorrelationMetadataKey])
	if userID == "" {
		return "", ErrMissingCorrelation
	}

	period := models.PeriodAnnual
	if strings.EqualFold(co.Mode, "subscription") {
		period = models.PeriodMonthly
	}

	now := time.Now().UTC()
	rows, err := h.repo.UpdateUserSubscription(userID, map[string]interface{}{
		"subscription_status":     models.SubscriptionActive,
		"subscription_period":     period,
		"stripe_subscription_id":  string(co.Subscription),
		"stripe_customer_id":      string(co.Customer),
		"subscription_start_date": &now,
	})
	if err != nil {
		return "", err
	}
	if rows == 0 {
		h.logNoMatch(ev, "no account matches checkout correlation id")
		return models.OutcomeIgnored, nil
	}
	return models.OutcomeApplied, nil
}

// HandleSubscriptionUpdated writes the processor-reported status and period
// end onto the matched account.
func (h *Handlers) HandleSubscriptionUpdated(ctx context.Context, ev *InboundEvent) (string, error) {
	_ = ctx
	sub := ev.Subscription
	if sub == nil {
		return "", fmt.Errorf("subscription payload missing on event %s", ev.ID)
	}

	user, outcome, err := h.matchBySubscriptionID(ev, sub.ID)
	if user == nil {
		return outcome, err
	}

	updates := map[string]interface{}{
		"subscription_status": NormalizeSubscriptionStatus(sub.Status),
	}
	if end := sub.PeriodEnd(); !end.IsZero() {
		updates["subscription_end_date"] = &end
	}
	if _, err := h.repo.UpdateUserSubscription(user.ID, updates); err != nil {
		return "", err
	}
	return models.OutcomeApplied, nil
}

// HandleSubscriptionDeleted cancels the matched account's subscription.
func (h *Handlers) HandleSubscriptionDeleted(ctx context.Context, ev *InboundEvent) (string, error) {
	_ = ctx
	sub := ev.Subscription
	if sub == nil {
		return "", fmt.Errorf("subscription payload missing on event %s", ev.ID)
	}

	user, outcome, err := h.matchBySubscriptionID(ev, sub.ID)
	if user == nil {
		return outcome, err
	}

	now := time.Now().UTC()
	if _, err := h.repo.UpdateUserSubscription(user.ID, map[string]interface{}{
		"subscription_status":   models.SubscriptionCancelled,
		"subscription_end_date": &now,
	}); err != nil {
		return "", err
	}
	return models.OutcomeApplied, nil
}

// HandleInvoicePaymentSucceeded marks the matched account active. Invoices
// without a subscription reference are one-off payments and a no-op.
func (h *Handlers) HandleInvoicePaymentSucceeded(ctx context.Context, ev *InboundEvent) (string, error) {
	return h.applyInvoiceStatus(ctx, ev, models.SubscriptionActive)
}

// HandleInvoicePaymentFailed marks the matched account past due.
func (h *Handlers) HandleInvoicePaymentFailed(ctx context.Context, ev *InboundEvent) (string, error) {
	return h.applyInvoiceStatus(ctx, ev, models.SubscriptionPastDue)
}

func (h *Handlers) applyInvoiceStatus(ctx context.Context, ev *InboundEvent, status string) (string, error) {
	_ = ctx
	inv := ev.Invoice
	if inv == nil {
		return "", fmt.Errorf("invoice payload missing on event %s", ev.ID)
	}

	subID := inv.SubscriptionID()
	if subID == "" {
		h.logNoMatch(ev, "invoice carries no subscription reference")
		return models.OutcomeIgnored, nil
	}

	user, outcome, err := h.matchBySubscriptionID(ev, subID)
	if user == nil {
		return outcome, err
	}

	if _, err := h.repo.UpdateUserSubscription(user.ID, map[string]interface{}{
		"subscription_status": status,
	}); err != nil {
		return "", err
	}
	return models.OutcomeApplied, nil
}

// matchBySubscriptionID resolves a subscription id to exactly one account.
// A missing account is a no-op, not an error; the account may not have synced
// yet or the event may be stale. Multiple matches should not occur given the
// key's uniqueness, so only the first match (deterministic order) is updated
// and the anomaly is logged.
func (h *Handlers) matchBySubscriptionID(ev *InboundEvent, subscriptionID string) (*models.User, string, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		h.logNoMatch(ev, "event carries no subscription id")
		return nil, models.OutcomeIgnored, nil
	}

	users, err := h.repo.FindUsersBySubscriptionID(subscriptionID)
	if err != nil {
		return nil, "", err
	}
	if len(users) == 0 {
		h.logNoMatch(ev, "no account matches subscription id")
		return nil, models.OutcomeIgnored, nil
	}
	if len(users) > 1 {
		h.log.WithFields(logrus.Fields{
			"event_id":   ev.ID,
			"event_type": ev.RawType,
			"matches":    len(users),
		}).Warn("multiple accounts match one subscription id, updating first match only")
	}
	return &users[0], "", nil
}

func (h *Handlers) logNoMatch(ev *InboundEvent, msg string) {
	h.log.WithFields(logrus.Fields{
		"event_id":   ev.ID,
		"event_type": ev.RawType,
	}).Info(msg)
}
