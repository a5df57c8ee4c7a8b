package billing

import (
	"context"
	"fmt"

	"github.com/dweber/subsync/app/models"
	"github.com/sirupsen/logrus"
)

// Result describes a successfully acknowledged delivery.
type Result struct {
	EventID   string
	EventType EventType
	// Duplicate means the event id was already claimed or processed and no
	// side effect ran.
	Duplicate bool
	// Outcome is applied or ignored for first deliveries.
	Outcome string
}

// Service wires the webhook pipeline: verify, claim, route, handle, commit.
// Every stage is safe to re-enter with the same event.
type Service struct {
	verifier Verifier
	dedup    *Deduplicator
	router   *EventRouter
	log      *logrus.Logger
}

// NewService builds the pipeline from injected collaborators. cache may be
// nil to run without the duplicate fast path.
func NewService(verifier Verifier, repo Repository, cache SeenCache, log *logrus.Logger) *Service {
	return &Service{
		verifier: verifier,
		dedup:    NewDeduplicator(repo, cache),
		router:   NewEventRouter(NewHandlers(repo, log)),
		log:      log,
	}
}

// ProcessWebhook runs one delivery through the pipeline.
//
// Verification failures return ErrMissingSignature / ErrInvalidSignature /
// ErrMalformedPayload (surfaced as 4xx). Any other error is a store or
// handler failure: the dedup claim has been released, the event is NOT marked
// processed, and the processor's redelivery will retry (surfaced as 5xx).
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, signatureHeader string) (*Result, error) {
	ev, err := s.verifier.Verify(payload, signatureHeader)
	if err != nil {
		s.log.WithError(err).Warn("webhook verification failed")
		return nil, err
	}

	claimed, record, err := s.dedup.Claim(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("claim webhook event %s: %w", ev.ID, err)
	}
	if !claimed {
		s.log.WithFields(logrus.Fields{
			"event_id":   ev.ID,
			"event_type": ev.RawType,
		}).Info("duplicate delivery, skipping")
		return &Result{EventID: ev.ID, EventType: ev.Type, Duplicate: true}, nil
	}

	handler := s.router.Route(ev.Type)
	if handler == nil {
		s.markProcessed(ctx, record.ID, ev, models.OutcomeIgnored)
		s.log.WithFields(logrus.Fields{
			"event_id":   ev.ID,
			"event_type": ev.RawType,
		}).Info("unhandled event type, acknowledged without side effects")
		return &Result{EventID: ev.ID, EventType: ev.Type, Outcome: models.OutcomeIgnored}, nil
	}

	outcome, err := handler(ctx, ev)
	if err != nil {
		// Release the claim so a redelivery can retry; the side effect did
		// not commit.
		if relErr := s.dedup.Release(ctx, record.ID); relErr != nil {
			s.log.WithFields(logrus.Fields{
				"event_id":   ev.ID,
				"event_type": ev.RawType,
			}).WithError(relErr).Error("failed to release webhook claim")
		}
		s.log.WithFields(logrus.Fields{
			"event_id":   ev.ID,
			"event_type": ev.RawType,
		}).WithError(err).Error("webhook handler failed")
		return nil, err
	}

	s.markProcessed(ctx, record.ID, ev, outcome)
	return &Result{EventID: ev.ID, EventType: ev.Type, Outcome: outcome}, nil
}

// markProcessed commits the claim. The side effect has already been applied,
// so a commit failure is logged but does not fail the request: the surviving
// claim row keeps deduplicating redeliveries.
func (s *Service) markProcessed(ctx context.Context, recordID uint, ev *InboundEvent, outcome string) {
	if err := s.dedup.MarkProcessed(ctx, recordID, ev.ID, outcome); err != nil {
		s.log.WithFields(logrus.Fields{
			"event_id":   ev.ID,
			"event_type": ev.RawType,
		}).WithError(err).Warn("failed to mark webhook event processed")
	}
}
