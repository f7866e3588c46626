package domain

import "time"

type Item struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	References []string `json:"references"`
}

type ActionItem struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Owner      string   `json:"owner,omitempty"`
	DueDate    string   `json:"due_date,omitempty"`
	References []string `json:"references"`
}

// ArtifactDraft is the derived payload produced from a finished transcript.
type ArtifactDraft struct {
	Summary       string       `json:"summary"`
	ProtocolDraft string       `json:"protocol_draft"`
	KeyTopics     []string     `json:"key_topics"`
	Decisions     []Item       `json:"decisions"`
	ActionItems   []ActionItem `json:"action_items"`
	OpenQuestions []Item       `json:"open_questions"`
	Risks         []Item       `json:"risks"`
}

type MeetingArtifacts struct {
	ID        string `json:"id"`
	MeetingID string `json:"meeting_id"`
	ArtifactDraft
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ExportInput struct {
	Meeting      Meeting
	Participants []Participant
	Artifacts    MeetingArtifacts
	Segments     []TranscriptSegment
}

type ExportResult struct {
	ExternalID string `json:"external_id"`
	URL        string `json:"url"`
	Mode       string `json:"mode"`
}
