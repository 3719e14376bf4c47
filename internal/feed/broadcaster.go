package feed

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"folios/internal/metrics"
	"folios/internal/models"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Broadcaster is the in-process Broker.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan models.ChangeEvent // ownerID -> subID -> ch
	closed      bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan models.ChangeEvent),
	}
}

func (b *Broadcaster) Subscribe(ctx context.Context, ownerID string) (<-chan models.ChangeEvent, string) {
	subID := uuid.New().String()
	ch := make(chan models.ChangeEvent, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := b.subscribers[ownerID]; !ok {
		b.subscribers[ownerID] = make(map[string]chan models.ChangeEvent)
	}
	b.subscribers[ownerID][subID] = ch
	b.mu.Unlock()

	metrics.FeedSubscribers.Inc()
	log.Debug().Str("userID", ownerID).Str("subID", subID).Msg("Feed subscriber added")

	go func() {
		<-ctx.Done()
		b.Unsubscribe(ownerID, subID)
	}()

	return ch, subID
}

// Publish never blocks: events are dropped for subscribers whose channels
// are full.
func (b *Broadcaster) Publish(_ context.Context, ownerID string, ev models.ChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subID, ch := range b.subscribers[ownerID] {
		select {
		case ch <- ev:
		default:
			metrics.FeedEventsDroppedTotal.Inc()
			log.Warn().Str("userID", ownerID).Str("subID", subID).Str("kind", string(ev.Kind)).Msg("Dropped feed event for slow subscriber")
		}
	}
	return nil
}

func (b *Broadcaster) Unsubscribe(ownerID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[ownerID]
	if !ok {
		return
	}
	ch, ok := subs[subID]
	if !ok {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, ownerID)
	}

	metrics.FeedSubscribers.Dec()
	log.Debug().Str("userID", ownerID).Str("subID", subID).Msg("Feed subscriber removed")
}

// Close closes every subscriber channel. Later subscriptions receive an
// already closed channel.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ownerID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
			metrics.FeedSubscribers.Dec()
		}
		delete(b.subscribers, ownerID)
	}
	b.closed = true
	return nil
}

// SubscriberCount reports the open subscriptions for ownerID.
func (b *Broadcaster) SubscriberCount(ownerID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[ownerID])
}
