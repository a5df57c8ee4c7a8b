package cache

import (
	"context"
	"log"
	"time"
)

const seenTTL = 24 * time.Hour

// EventSeenCache is a redis-backed fast path in front of the durable webhook
// dedup store. It is never authoritative: any cache error reads as "not
// seen" and the durable insert-if-absent claim decides.
type EventSeenCache struct {
	ttl time.Duration
}

func NewEventSeenCache() *EventSeenCache {
	return &EventSeenCache{ttl: seenTTL}
}

func (e *EventSeenCache) Seen(ctx context.Context, eventID string) bool {
	n, err := GetClient().Exists(ctx, seenKey(eventID)).Result()
	return err == nil && n > 0
}

func (e *EventSeenCache) MarkSeen(ctx context.Context, eventID string) {
	if err := GetClient().Set(ctx, seenKey(eventID), 1, e.ttl).Err(); err != nil {
		log.Printf("Warning: could not cache processed webhook event %s: %v", eventID, err)
	}
}

func seenKey(eventID string) string {
	return "webhook:seen:" + eventID
}
