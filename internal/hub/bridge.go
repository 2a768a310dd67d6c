package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const channelPattern = "chamberlink:thread:*"

func threadChannel(event Event) string {
	return fmt.Sprintf("chamberlink:thread:%s", event.ThreadID)
}

// Bridge connects the process-local Hub to the other server instances over
// redis pub/sub, so a message appended on instance A reaches a viewer whose
// websocket is held by instance B. There is no replay buffer: events
// published while an instance is disconnected are reconciled by clients
// through the list endpoints.
type Bridge struct {
	hub    *Hub
	client *redis.Client
	logger zerolog.Logger
}

// NewBridge wires the hub's relay to redis. Run must be started for inbound
// events to flow.
func NewBridge(h *Hub, client *redis.Client, logger zerolog.Logger) *Bridge {
	b := &Bridge{hub: h, client: client, logger: logger}
	h.SetRelay(b.forward)
	return b
}

// forward publishes a locally produced event to the shared channel.
// Failures are logged, not surfaced: local delivery already happened and
// remote viewers reconcile by refetching.
func (b *Bridge) forward(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error().Err(err).Msg("bridge: marshal event")
		return
	}
	if err := b.client.Publish(context.Background(), threadChannel(event), payload).Err(); err != nil {
		b.logger.Warn().Err(err).Msg("bridge: publish event")
	}
}

// Run consumes events from the other instances until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn().Err(err).Msg("bridge: malformed event payload")
				continue
			}
			// Skip events this instance already fanned out itself.
			if event.Origin == b.hub.Origin() {
				continue
			}
			b.hub.Deliver(event)
		}
	}
}
