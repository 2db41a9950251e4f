package service

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Broadcaster fans a mutation out to the acting account and its partner.
type Broadcaster struct {
	partners  PartnerResolver
	publisher Publisher
}

func NewBroadcaster(partners PartnerResolver, publisher Publisher) *Broadcaster {
	return &Broadcaster{
		partners:  partners,
		publisher: publisher,
	}
}

// BroadcastToOwnerAndPartner never fails. If the partner cannot be resolved the
// event still reaches the owner's connections.
func (b *Broadcaster) BroadcastToOwnerAndPartner(ctx context.Context, actingID, eventType string, data any) int {
	targets := []string{actingID}

	partnerID, paired, err := b.partners.GetPartner(ctx, actingID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("accountId", actingID).
			Str("event", eventType).
			Msg("partner lookup failed, delivering to owner only")
	} else if paired {
		targets = append(targets, partnerID)
	}

	delivered := b.publisher.Publish(eventType, data, targets...)

	log.Debug().
		Str("accountId", actingID).
		Str("event", eventType).
		Int("connections", delivered).
		Msg("event broadcast")

	return delivered
}
