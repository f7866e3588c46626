package nats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

type recordingBus struct {
	published []domain.LiveEvent
}

func (b *recordingBus) Publish(_ string, event domain.LiveEvent) {
	b.published = append(b.published, event)
}

func (b *recordingBus) Subscribe(string, func(domain.LiveEvent)) func() { return func() {} }

func TestRelayDeliversRemoteEventsOnly(t *testing.T) {
	local := &recordingBus{}
	relay := NewEventRelay(nil, "meetings.events", local)
	event := domain.LiveEvent{Type: domain.EventStatus, MeetingID: "m-1", Status: domain.MeetingStatusProcessing, At: time.Now()}

	own, _ := json.Marshal(relayEnvelope{Origin: relay.origin, Event: event})
	remote, _ := json.Marshal(relayEnvelope{Origin: "other-instance", Event: event})
	anonymous, _ := json.Marshal(relayEnvelope{Origin: "other-instance", Event: domain.LiveEvent{Type: domain.EventHeartbeat}})

	for _, payload := range [][]byte{own, remote, anonymous} {
		if err := relay.deliver(payload); err != nil {
			t.Fatalf("deliver() error = %v", err)
		}
	}
	if len(local.published) != 1 || local.published[0].Status != domain.MeetingStatusProcessing {
		t.Fatalf("expected only the remote event to be republished, got %+v", local.published)
	}

	if err := relay.deliver([]byte("{")); err == nil {
		t.Fatalf("expected decode error for malformed payload")
	}
}

func TestRelaySubjectPerMeeting(t *testing.T) {
	relay := NewEventRelay(nil, "meetings.events", &recordingBus{})
	if got := relay.subject("m-7"); got != "meetings.events.m-7" {
		t.Fatalf("unexpected subject %q", got)
	}
	if err := relay.Close(); err != nil {
		t.Fatalf("Close() before Start should be a no-op, got %v", err)
	}
}
