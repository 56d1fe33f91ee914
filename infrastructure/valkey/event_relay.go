package valkey

import (
	"context"
	"encoding/json"

	"github.com/AzielCF/wa-gateway/domains/event"
	"github.com/sirupsen/logrus"
)

const relayQueueSize = 256

type relayEnvelope struct {
	SenderID string      `json:"sender_id"`
	Event    event.Event `json:"event"`
}

// EventRelay fans events out to other gateway instances over Valkey pub/sub.
// Local subscribers are always served first and directly.
type EventRelay struct {
	client   *Client
	local    event.Publisher
	channel  string
	serverID string
	pending  chan event.Event
}

func NewEventRelay(client *Client, local event.Publisher, serverID string) *EventRelay {
	return &EventRelay{
		client:   client,
		local:    local,
		channel:  client.Key("events"),
		serverID: serverID,
		pending:  make(chan event.Event, relayQueueSize),
	}
}

// Broadcast delivers locally and queues the event for other instances.
// Heartbeats stay local.
func (r *EventRelay) Broadcast(evt event.Event) {
	r.local.Broadcast(evt)
	if evt.Type == event.TypeHeartbeat {
		return
	}
	select {
	case r.pending <- evt:
	default:
		logrus.WithField("type", evt.Type).Warn("[VALKEY] Event relay queue full, event not shared")
	}
}

// Run publishes queued events and re-broadcasts remote ones until ctx ends.
func (r *EventRelay) Run(ctx context.Context) {
	go r.publishLoop(ctx)

	logrus.WithField("channel", r.channel).Info("[VALKEY] Starting event relay subscriber")
	err := r.client.Subscribe(ctx, r.channel, r.handle)
	if err != nil && ctx.Err() == nil {
		logrus.WithError(err).Error("[VALKEY] Event relay subscriber stopped")
	}
}

func (r *EventRelay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-r.pending:
			data, err := r.encode(evt)
			if err != nil {
				logrus.WithError(err).Error("[VALKEY] Failed to encode event")
				continue
			}
			if err := r.client.Publish(ctx, r.channel, data); err != nil {
				logrus.WithError(err).Warn("[VALKEY] Failed to publish event")
			}
		}
	}
}

func (r *EventRelay) encode(evt event.Event) ([]byte, error) {
	return json.Marshal(relayEnvelope{SenderID: r.serverID, Event: evt})
}

// handle re-broadcasts a remote event. Our own echoes are ignored.
func (r *EventRelay) handle(payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		logrus.WithError(err).Debug("[VALKEY] Ignoring malformed relay message")
		return
	}
	if env.SenderID == r.serverID || env.Event.Type == "" {
		return
	}
	r.local.Broadcast(env.Event)
}
