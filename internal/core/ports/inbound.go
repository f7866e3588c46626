package ports

import (
	"context"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

// ParticipantRegistry is the inbound contract for participant registration.
type ParticipantRegistry interface {
	Register(ctx context.Context, input domain.CreateParticipantInput) (*domain.Participant, error)
	List(ctx context.Context) ([]domain.Participant, error)
	UpdateVoiceProfile(ctx context.Context, participantID string, profile domain.VoiceProfile) (*domain.Participant, error)
}

// MeetingLifecycle is the inbound contract of the meeting orchestrator.
type MeetingLifecycle interface {
	CreateMeeting(ctx context.Context, input domain.CreateMeetingInput) (*domain.Meeting, error)
	ListMeetings(ctx context.Context, query domain.MeetingQuery) ([]domain.Meeting, error)
	GetMeetingDetails(ctx context.Context, meetingID string) (*domain.MeetingDetails, error)
	IngestChunk(ctx context.Context, meetingID string, chunk domain.ChunkInput) (*domain.IngestResult, error)
	FinalizeMeeting(ctx context.Context, meetingID string) (*domain.FinalizeResult, error)
	ExportToDocument(ctx context.Context, meetingID string) (*domain.ExportRecord, error)
}

// MeetingExporter is the inbound contract used by export workers.
type MeetingExporter interface {
	ExportToDocument(ctx context.Context, meetingID string) (*domain.ExportRecord, error)
}
