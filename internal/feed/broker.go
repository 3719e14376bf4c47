// Package feed fans bookmark change events out to every open session of
// the owning user.
package feed

import (
	"context"

	"folios/internal/models"
)

// Broker delivers change events keyed by owner ID. Delivery is best effort:
// consumers must merge idempotently.
type Broker interface {
	Publish(ctx context.Context, ownerID string, ev models.ChangeEvent) error
	// Subscribe returns a channel of events for ownerID and a subscription
	// ID. The subscription is released when ctx is done or on Unsubscribe.
	Subscribe(ctx context.Context, ownerID string) (<-chan models.ChangeEvent, string)
	Unsubscribe(ownerID, subID string)
	Close() error
}
