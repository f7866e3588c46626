package domain

import "time"

type MeetingStatus string

const (
	MeetingStatusLive       MeetingStatus = "live"
	MeetingStatusProcessing MeetingStatus = "processing"
	MeetingStatusCompleted  MeetingStatus = "completed"
	MeetingStatusFailed     MeetingStatus = "failed"
)

const MaxMeetingParticipants = 5

type VoiceProfile struct {
	Embedding []float64 `json:"embedding,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

type Participant struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	VoiceProfile *VoiceProfile `json:"voice_profile,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

type Meeting struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Language       string        `json:"language"`
	Status         MeetingStatus `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`
	DocURL         string        `json:"doc_url,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	ParticipantIDs []string      `json:"participant_ids"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// TranscriptSegment is immutable once stored. Segments are ordered by arrival.
type TranscriptSegment struct {
	ID               string    `json:"id"`
	MeetingID        string    `json:"meeting_id"`
	ParticipantID    string    `json:"participant_id,omitempty"`
	SpeakerLabel     string    `json:"speaker_label"`
	DiarizationLabel string    `json:"diarization_label,omitempty"`
	Text             string    `json:"text"`
	Confidence       float64   `json:"confidence"`
	TimestampMs      int64     `json:"timestamp_ms"`
	IsOverlapping    bool      `json:"is_overlapping"`
	CreatedAt        time.Time `json:"created_at"`
}

type ExportStatus string

const (
	ExportStatusPending ExportStatus = "pending"
	ExportStatusSuccess ExportStatus = "success"
	ExportStatusFailed  ExportStatus = "failed"
)

// ExportRecord tracks one export operation. Retries mutate the same record.
type ExportRecord struct {
	ID           string       `json:"id"`
	MeetingID    string       `json:"meeting_id"`
	Provider     string       `json:"provider"`
	Status       ExportStatus `json:"status"`
	ExternalID   string       `json:"external_id,omitempty"`
	URL          string       `json:"url,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Retries      int          `json:"retries"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type MeetingDetails struct {
	Meeting      Meeting             `json:"meeting"`
	Participants []Participant       `json:"participants"`
	Segments     []TranscriptSegment `json:"segments"`
	Artifacts    *MeetingArtifacts   `json:"artifacts,omitempty"`
	Exports      []ExportRecord      `json:"exports"`
}

// MeetingPatch carries auxiliary fields written together with a status change.
// Nil fields are left untouched.
type MeetingPatch struct {
	EndedAt      *time.Time
	DocURL       *string
	ErrorMessage *string
}

// MeetingStatusUpdate is applied only when the stored status equals From.
// An empty From skips the check and an empty To keeps the current status.
type MeetingStatusUpdate struct {
	MeetingID string
	From      MeetingStatus
	To        MeetingStatus
	Patch     MeetingPatch
	UpdatedAt time.Time
}
