package ports

import (
	"context"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

// ParticipantRepository persists registered participants.
type ParticipantRepository interface {
	CreateParticipant(ctx context.Context, participant *domain.Participant) error
	GetParticipant(ctx context.Context, id string) (*domain.Participant, error)
	ListParticipants(ctx context.Context) ([]domain.Participant, error)
	UpdateVoiceProfile(ctx context.Context, id string, profile domain.VoiceProfile) (*domain.Participant, error)
}

// MeetingRepository persists meetings and everything derived from them.
// UpdateMeetingStatus must apply the status change and its patch atomically and
// report ErrInvalidState when the expected status does not hold.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting *domain.Meeting) error
	GetMeeting(ctx context.Context, id string) (*domain.Meeting, error)
	ListMeetings(ctx context.Context, query domain.MeetingQuery) ([]domain.Meeting, error)
	UpdateMeetingStatus(ctx context.Context, update domain.MeetingStatusUpdate) (*domain.Meeting, error)
	AddSegment(ctx context.Context, segment *domain.TranscriptSegment) error
	ListSegments(ctx context.Context, meetingID string) ([]domain.TranscriptSegment, error)
	UpsertArtifacts(ctx context.Context, artifacts *domain.MeetingArtifacts) error
	CreateExportRecord(ctx context.Context, record *domain.ExportRecord) error
	UpdateExportRecord(ctx context.Context, record *domain.ExportRecord) error
	GetMeetingDetails(ctx context.Context, id string) (*domain.MeetingDetails, error)
}

// MeetingStore is the full repository surface used by the orchestrator.
type MeetingStore interface {
	ParticipantRepository
	MeetingRepository
}

// Transcriber resolves chunk text. Backend trouble degrades to a placeholder
// result; only programming errors are returned.
type Transcriber interface {
	Transcribe(ctx context.Context, req domain.TranscriptionRequest) (domain.TranscriptionResult, error)
}

// HealthChecker probes an external backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// DocumentExporter pushes finalized notes to a document backend.
type DocumentExporter interface {
	Provider() string
	Export(ctx context.Context, input domain.ExportInput) (domain.ExportResult, error)
}

// DocumentRenderer renders the plain-text body handed to exporters.
type DocumentRenderer interface {
	RenderDocument(input domain.ExportInput) string
}

// EventBus fans out live events per meeting. Publish never blocks on subscribers.
type EventBus interface {
	Publish(meetingID string, event domain.LiveEvent)
	Subscribe(meetingID string, handler func(domain.LiveEvent)) (unsubscribe func())
}

// ExportQueue hands export jobs to background workers.
type ExportQueue interface {
	PublishExportRequested(ctx context.Context, job domain.ExportJob) error
	SubscribeExportRequested(ctx context.Context, handler func(context.Context, domain.ExportJob) error) error
}

// SpeakerMemory stores diarization label bindings per meeting.
type SpeakerMemory interface {
	Recall(ctx context.Context, meetingID, label string) (participantID string, ok bool, err error)
	Remember(ctx context.Context, meetingID, label, participantID string) error
	Forget(ctx context.Context, meetingID string) error
}

// SpeakerAttributor maps an utterance to a participant. It never fails.
type SpeakerAttributor interface {
	Attribute(ctx context.Context, req domain.AttributionRequest) domain.Attribution
	Forget(ctx context.Context, meetingID string)
}

// ArtifactGenerator derives notes from a finished transcript without I/O.
type ArtifactGenerator interface {
	Generate(meeting domain.Meeting, participants []domain.Participant, segments []domain.TranscriptSegment) domain.ArtifactDraft
}

// MessageCatalog returns localized status texts for a meeting language.
type MessageCatalog interface {
	Messages(language string) domain.MeetingMessages
}
