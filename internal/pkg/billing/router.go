package billing

import "context"

// HandlerFunc applies one idempotent state transition for a typed event and
// reports the outcome (applied or ignored).
type HandlerFunc func(ctx context.Context, ev *InboundEvent) (string, error)

// EventRouter maps an event's type tag to its reconciliation handler. Routing
// is total and side-effect free: unknown types resolve to nil and the
// delivery still succeeds upstream, so the processor stops redelivering.
type EventRouter struct {
	routes map[EventType]HandlerFunc
}

func NewEventRouter(h *Handlers) *EventRouter {
	return &EventRouter{routes: map[EventType]HandlerFunc{
		EventCheckoutCompleted:       h.HandleCheckoutCompleted,
		EventSubscriptionUpdated:     h.HandleSubscriptionUpdated,
		EventSubscriptionDeleted:     h.HandleSubscriptionDeleted,
		EventInvoicePaymentSucceeded: h.HandleInvoicePaymentSucceeded,
		EventInvoicePaymentFailed:    h.HandleInvoicePaymentFailed,
	}}
}

// Route returns the handler for t, or nil when the type is intentionally
// unhandled.
func (r *EventRouter) Route(t EventType) HandlerFunc {
	return r.routes[t]
}
