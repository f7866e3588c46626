package speaker

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

func testParticipants() []domain.Participant {
	return []domain.Participant{
		{ID: "p-anna", Name: "Anna"},
		{ID: "p-bjorn", Name: "Björn Svensson"},
		{ID: "p-cecilia", Name: "Cecilia", VoiceProfile: &domain.VoiceProfile{Embedding: []float64{1, 0}}},
	}
}

type failingMemory struct {
	recallCalls   int
	rememberCalls int
}

func (m *failingMemory) Recall(context.Context, string, string) (string, bool, error) {
	m.recallCalls++
	return "", false, errors.New("kv unavailable")
}

func (m *failingMemory) Remember(context.Context, string, string, string) error {
	m.rememberCalls++
	return errors.New("kv unavailable")
}

func (m *failingMemory) Forget(context.Context, string) error {
	return errors.New("kv unavailable")
}

func TestAttributeHintBeatsNamePrefix(t *testing.T) {
	mapper := NewMapper(NewInMemoryStore(), 0)

	got := mapper.Attribute(context.Background(), domain.AttributionRequest{
		MeetingID:     "m-1",
		Participants:  testParticipants(),
		Text:          "Anna: jag tar den punkten",
		SpeakerHintID: "p-bjorn",
	})
	if got.ParticipantID != "p-bjorn" {
		t.Fatalf("expected hint participant p-bjorn, got %q", got.ParticipantID)
	}
	if got.Source != domain.AttributionHint {
		t.Fatalf("expected hint source, got %q", got.Source)
	}
	if got.SpeakerLabel != "Björn Svensson" {
		t.Fatalf("expected participant name as label, got %q", got.SpeakerLabel)
	}
}

func TestAttributeUnknownHintFallsThrough(t *testing.T) {
	mapper := NewMapper(NewInMemoryStore(), 0)

	got := mapper.Attribute(context.Background(), domain.AttributionRequest{
		MeetingID:     "m-1",
		Participants:  testParticipants(),
		Text:          "Anna: hej",
		SpeakerHintID: "p-missing",
	})
	if got.Source != domain.AttributionNamePrefix || got.ParticipantID != "p-anna" {
		t.Fatalf("expected name prefix match for anna, got %+v", got)
	}
}

func TestAttributeRemembersDiarizationLabel(t *testing.T) {
	ctx := context.Background()
	mapper := NewMapper(NewInMemoryStore(), 0)

	first := mapper.Attribute(ctx, domain.AttributionRequest{
		MeetingID:        "m-1",
		Participants:     testParticipants(),
		Text:             "Anna: vi börjar",
		DiarizationLabel: "spk_0",
	})
	if first.ParticipantID != "p-anna" {
		t.Fatalf("expected first chunk to resolve anna, got %+v", first)
	}

	second := mapper.Attribute(ctx, domain.AttributionRequest{
		MeetingID:        "m-1",
		Participants:     testParticipants(),
		Text:             "och sedan fortsätter vi",
		DiarizationLabel: "spk_0",
	})
	if second.ParticipantID != "p-anna" || second.Source != domain.AttributionMemory {
		t.Fatalf("expected memory attribution to anna, got %+v", second)
	}

	other := mapper.Attribute(ctx, domain.AttributionRequest{
		MeetingID:        "m-2",
		Participants:     testParticipants(),
		Text:             "och sedan fortsätter vi",
		DiarizationLabel: "spk_0",
	})
	if other.Source != domain.AttributionFallback {
		t.Fatalf("expected memory to be scoped per meeting, got %+v", other)
	}
}

func TestAttributeMemoryBeatsLaterNamePrefix(t *testing.T) {
	ctx := context.Background()
	mapper := NewMapper(NewInMemoryStore(), 0)

	mapper.Attribute(ctx, domain.AttributionRequest{
		MeetingID:        "m-1",
		Participants:     testParticipants(),
		SpeakerHintID:    "p-cecilia",
		DiarizationLabel: "spk_1",
	})
	got := mapper.Attribute(ctx, domain.AttributionRequest{
		MeetingID:        "m-1",
		Participants:     testParticipants(),
		Text:             "Anna: citerar Anna här",
		DiarizationLabel: "spk_1",
	})
	if got.ParticipantID != "p-cecilia" {
		t.Fatalf("expected remembered binding to win, got %+v", got)
	}
}

func TestAttributeNamePrefixPrefersExactMatch(t *testing.T) {
	participants := []domain.Participant{
		{ID: "p-annalena", Name: "Annalena"},
		{ID: "p-anna", Name: "Anna"},
	}
	mapper := NewMapper(nil, 0)

	exact := mapper.Attribute(context.Background(), domain.AttributionRequest{
		MeetingID:    "m-1",
		Participants: participants,
		Text:         "anna: exakt",
	})
	if exact.ParticipantID != "p-anna" {
		t.Fatalf("expected exact name match, got %+v", exact)
	}

	prefix := mapper.Attribute(context.Background(), domain.AttributionRequest{
		MeetingID:    "m-1",
		Participants: []domain.Participant{{ID: "p-bjorn", Name: "Björn Svensson"}},
		Text:         "Björn: prefix",
	})
	if prefix.ParticipantID != "p-bjorn" {
		t.Fatalf("expected prefix name match, got %+v", prefix)
	}
}

func TestAttributeEmbeddingThreshold(t *testing.T) {
	at := func(similarity float64) []float64 {
		return []float64{similarity, math.Sqrt(1 - similarity*similarity)}
	}
	mapper := NewMapper(nil, 0)

	below := mapper.Attribute(context.Background(), domain.AttributionRequest{
		MeetingID:      "m-1",
		Participants:   testParticipants(),
		VoiceEmbedding: at(0.81),
		FallbackLabel:  "Okänd talare",
	})
	if below.ParticipantID != "" || below.Source != domain.AttributionFallback {
		t.Fatalf("expected 0.81 similarity to be rejected, got %+v", below)
	}
	if below.SpeakerLabel != "Okänd talare" {
		t.Fatalf("expected localized fallback label, got %q", below.SpeakerLabel)
	}

	onThreshold := mapper.Attribute(context.Background(), domain.AttributionRequest{
		MeetingID:      "m-1",
		Participants:   testParticipants(),
		VoiceEmbedding: at(0.82),
	})
	if onThreshold.ParticipantID != "p-cecilia" || onThreshold.Source != domain.AttributionEmbedding {
		t.Fatalf("expected 0.82 similarity to select cecilia, got %+v", onThreshold)
	}
}

func TestAttributeEmbeddingIgnoresMismatchedDimensions(t *testing.T) {
	mapper := NewMapper(nil, 0)

	got := mapper.Attribute(context.Background(), domain.AttributionRequest{
		MeetingID:      "m-1",
		Participants:   testParticipants(),
		VoiceEmbedding: []float64{1, 0, 0},
	})
	if got.Source != domain.AttributionFallback {
		t.Fatalf("expected fallback for mismatched embedding, got %+v", got)
	}
	if got.SpeakerLabel != DefaultUnknownSpeaker {
		t.Fatalf("expected default unknown label, got %q", got.SpeakerLabel)
	}
}

func TestAttributeDegradesWhenMemoryFails(t *testing.T) {
	memory := &failingMemory{}
	mapper := NewMapper(memory, 0)

	got := mapper.Attribute(context.Background(), domain.AttributionRequest{
		MeetingID:        "m-1",
		Participants:     testParticipants(),
		Text:             "Anna: hej",
		DiarizationLabel: "spk_0",
	})
	if got.ParticipantID != "p-anna" {
		t.Fatalf("expected attribution despite memory failure, got %+v", got)
	}
	if memory.recallCalls != 1 || memory.rememberCalls != 1 {
		t.Fatalf("expected one recall and one remember, got %d/%d", memory.recallCalls, memory.rememberCalls)
	}

	mapper.Forget(context.Background(), "m-1")
}

func TestCosineSimilarityEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{name: "empty", a: nil, b: nil, want: -1},
		{name: "mismatched", a: []float64{1}, b: []float64{1, 0}, want: -1},
		{name: "zero norm", a: []float64{0, 0}, b: []float64{1, 0}, want: -1},
		{name: "identical", a: []float64{3, 4}, b: []float64{3, 4}, want: 1},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}
