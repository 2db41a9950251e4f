package service

import "context"

// Event types delivered over the gateway.
const (
	EventCoupleCoupled   = "couple:coupled"
	EventCoupleUncoupled = "couple:uncoupled"
	EventProfileUpdated  = "profile:updated"
)

// Publisher delivers an event to every live connection of the target accounts
// and returns the number of connections it was enqueued on.
type Publisher interface {
	Publish(eventType string, data any, targets ...string) int
}

type PartnerResolver interface {
	GetPartner(ctx context.Context, accountID string) (string, bool, error)
}
