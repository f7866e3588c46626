package domain

import "time"

type EventType string

const (
	EventSegment   EventType = "segment"
	EventStatus    EventType = "status"
	EventHeartbeat EventType = "heartbeat"
)

// LiveEvent is fanned out to live subscribers of a meeting.
type LiveEvent struct {
	Type      EventType          `json:"type"`
	MeetingID string             `json:"meeting_id"`
	Segment   *TranscriptSegment `json:"segment,omitempty"`
	Status    MeetingStatus      `json:"status,omitempty"`
	Message   string             `json:"message,omitempty"`
	At        time.Time          `json:"at"`
}

func SegmentEvent(segment TranscriptSegment, at time.Time) LiveEvent {
	return LiveEvent{Type: EventSegment, MeetingID: segment.MeetingID, Segment: &segment, At: at}
}

func StatusEvent(meetingID string, status MeetingStatus, message string, at time.Time) LiveEvent {
	return LiveEvent{Type: EventStatus, MeetingID: meetingID, Status: status, Message: message, At: at}
}

func HeartbeatEvent(meetingID string, at time.Time) LiveEvent {
	return LiveEvent{Type: EventHeartbeat, MeetingID: meetingID, At: at}
}

// ExportJob is the payload of an asynchronous export request.
type ExportJob struct {
	MeetingID   string    `json:"meeting_id"`
	RequestedAt time.Time `json:"requested_at"`
}
