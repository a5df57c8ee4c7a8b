package billing

import (
	"context"

	"github.com/dweber/subsync/app/models"
)

// SeenCache is an optional fast path in front of the durable dedup store. It
// is best-effort only: a miss falls through to the durable claim, and cache
// failures must never fail a request.
type SeenCache interface {
	Seen(ctx context.Context, eventID string) bool
	MarkSeen(ctx context.Context, eventID string)
}

// Deduplicator is the idempotency gate. It has no knowledge of event types;
// it only claims, commits, and releases processing of event ids.
type Deduplicator struct {
	repo  Repository
	cache SeenCache
}

// NewDeduplicator creates the gate. cache may be nil.
func NewDeduplicator(repo Repository, cache SeenCache) *Deduplicator {
	return &Deduplicator{repo: repo, cache: cache}
}

// Claim records intent to process the event. claimed=false means the event id
// was already claimed or processed and the caller must skip side effects. The
// claim is an atomic insert-if-absent on the store's unique event-id index,
// so at most one concurrent delivery of the same id can proceed.
func (d *Deduplicator) Claim(ctx context.Context, ev *InboundEvent) (bool, *models.WebhookEvent, error) {
	if d.cache != nil && d.cache.Seen(ctx, ev.ID) {
		return false, nil, nil
	}

	record := &models.WebhookEvent{
		EventID:     ev.ID,
		EventType:   ev.RawType,
		PayloadJSON: string(ev.RawPayload),
	}
	return d.repo.CreateWebhookEventIfNotExists(record)
}

// MarkProcessed commits the claim with its outcome. Called only after the
// handler's side effect has completed.
func (d *Deduplicator) MarkProcessed(ctx context.Context, recordID uint, eventID, outcome string) error {
	if err := d.repo.MarkWebhookProcessed(recordID, outcome); err != nil {
		return err
	}
	if d.cache != nil {
		d.cache.MarkSeen(ctx, eventID)
	}
	return nil
}

// Release drops an uncommitted claim after a handler failure so the
// processor's redelivery can retry the event.
func (d *Deduplicator) Release(ctx context.Context, recordID uint) error {
	_ = ctx
	return d.repo.DeleteWebhookEvent(recordID)
}
