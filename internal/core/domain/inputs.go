package domain

import "time"

const (
	MaxParticipantNameLen = 80
	MaxVoiceNotesLen      = 2000
	MaxEmbeddingLen       = 4096
	MaxMeetingTitleLen    = 160
	MaxChunkTextLen       = 10000
	MaxDiarizationLen     = 80
)

type CreateParticipantInput struct {
	Name         string        `json:"name"`
	VoiceProfile *VoiceProfile `json:"voice_profile,omitempty"`
}

type CreateMeetingInput struct {
	Title          string   `json:"title"`
	Language       string   `json:"language"`
	ParticipantIDs []string `json:"participant_ids"`
}

type MeetingQuery struct {
	Search string
}

// ChunkInput is one utterance pushed while a meeting is live. Either Text or
// AudioBase64 must be present.
type ChunkInput struct {
	Text             string    `json:"text,omitempty"`
	AudioBase64      string    `json:"audio_base64,omitempty"`
	MimeType         string    `json:"mime_type,omitempty"`
	SpeakerHintID    string    `json:"speaker_hint_id,omitempty"`
	DiarizationLabel string    `json:"diarization_label,omitempty"`
	VoiceEmbedding   []float64 `json:"voice_embedding,omitempty"`
	Confidence       *float64  `json:"confidence,omitempty"`
	IsOverlapping    bool      `json:"is_overlapping,omitempty"`
}

type IngestResult struct {
	Segment     TranscriptSegment `json:"segment"`
	Attribution AttributionSource `json:"attribution"`
}

type FinalizeResult struct {
	Meeting   Meeting          `json:"meeting"`
	Artifacts MeetingArtifacts `json:"artifacts"`
	Export    *ExportRecord    `json:"export,omitempty"`
}

type TranscriptionRequest struct {
	Text     string
	Audio    []byte
	MimeType string
	Language string
}

type TranscriptionResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Provider   string  `json:"provider"`
}

// MeetingMessages are the user-facing status texts for one locale.
type MeetingMessages struct {
	DefaultTitle            string
	UnknownSpeaker          string
	Processing              string
	CompletedExported       string
	CompletedNeedsAttention string
	LowAudioQuality         string
	LiveConnected           string
	ExportFailed            string
	LifecycleFailed         string
}

// DefaultMeetingTitle renders the title used when none is supplied.
func DefaultMeetingTitle(prefix string, at time.Time) string {
	return prefix + " " + at.Format("2006-01-02")
}
