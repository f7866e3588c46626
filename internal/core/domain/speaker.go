package domain

// AttributionSource names the rule that resolved a speaker.
type AttributionSource string

const (
	AttributionHint       AttributionSource = "hint"
	AttributionMemory     AttributionSource = "memory"
	AttributionNamePrefix AttributionSource = "name_prefix"
	AttributionEmbedding  AttributionSource = "embedding"
	AttributionFallback   AttributionSource = "fallback"
)

type AttributionRequest struct {
	MeetingID        string
	Participants     []Participant
	Text             string
	SpeakerHintID    string
	DiarizationLabel string
	VoiceEmbedding   []float64
	// FallbackLabel is used as the speaker label when no rule matches.
	FallbackLabel string
}

type Attribution struct {
	ParticipantID string
	SpeakerLabel  string
	Source        AttributionSource
	Score         float64
}
