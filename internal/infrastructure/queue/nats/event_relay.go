package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
	"github.com/kirillkom/meeting-notes/internal/core/ports"
)

type relayEnvelope struct {
	Origin string           `json:"origin"`
	Event  domain.LiveEvent `json:"event"`
}

// EventRelay mirrors live events between API instances. Local subscribers
// are always served from the wrapped in-process bus.
type EventRelay struct {
	conn   *nats.Conn
	prefix string
	origin string
	local  ports.EventBus

	mu  sync.Mutex
	sub *nats.Subscription
}

func NewEventRelay(conn *nats.Conn, prefix string, local ports.EventBus) *EventRelay {
	return &EventRelay{
		conn:   conn,
		prefix: prefix,
		origin: uuid.NewString(),
		local:  local,
	}
}

func (r *EventRelay) Publish(meetingID string, event domain.LiveEvent) {
	r.local.Publish(meetingID, event)

	payload, err := json.Marshal(relayEnvelope{Origin: r.origin, Event: event})
	if err != nil {
		slog.Warn("live_event_encode_failed", "meeting_id", meetingID, "error", err)
		return
	}
	if err := r.conn.Publish(r.subject(meetingID), payload); err != nil {
		slog.Warn("live_event_relay_failed", "meeting_id", meetingID, "error", err)
	}
}

func (r *EventRelay) Subscribe(meetingID string, handler func(domain.LiveEvent)) func() {
	return r.local.Subscribe(meetingID, handler)
}

// Start listens for events published by other instances.
func (r *EventRelay) Start(ctx context.Context) error {
	sub, err := r.conn.Subscribe(r.prefix+".*", func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		if err := r.deliver(msg.Data); err != nil {
			slog.Warn("live_event_decode_failed", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe live events: %w", err)
	}
	if err := r.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("nats flush: %w", err)
	}

	r.mu.Lock()
	r.sub = sub
	r.mu.Unlock()
	return nil
}

// deliver republishes a remote event locally. Echoes of our own events are skipped.
func (r *EventRelay) deliver(data []byte) error {
	var env relayEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.Origin == r.origin || env.Event.MeetingID == "" {
		return nil
	}
	r.local.Publish(env.Event.MeetingID, env.Event)
	return nil
}

func (r *EventRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil {
		return nil
	}
	err := r.sub.Unsubscribe()
	r.sub = nil
	return err
}

func (r *EventRelay) subject(meetingID string) string {
	return r.prefix + "." + meetingID
}
