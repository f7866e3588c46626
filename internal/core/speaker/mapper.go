package speaker

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
	"github.com/kirillkom/meeting-notes/internal/core/ports"
)

const (
	DefaultSimilarityThreshold = 0.82
	DefaultUnknownSpeaker      = "unknown speaker"

	// absorbs float rounding when a score lands exactly on the threshold
	similarityEpsilon = 1e-9
)

var namePrefixPattern = regexp.MustCompile(`^([\p{L} '-]{2,40}):`)

type candidate struct {
	participant domain.Participant
	score       float64
}

// rule is one attribution predicate. Rules are evaluated in order and the first
// match wins.
type rule struct {
	source   domain.AttributionSource
	remember bool
	resolve  func(ctx context.Context, req domain.AttributionRequest) (candidate, bool)
}

// Mapper attributes utterances to meeting participants.
type Mapper struct {
	memory    ports.SpeakerMemory
	threshold float64
	rules     []rule
}

// NewMapper builds a mapper backed by memory. A nil memory disables the
// diarization memory rule. A non-positive threshold selects the default.
func NewMapper(memory ports.SpeakerMemory, threshold float64) *Mapper {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	m := &Mapper{
		memory:    memory,
		threshold: threshold,
	}
	m.rules = []rule{
		{source: domain.AttributionHint, remember: true, resolve: m.byHint},
		{source: domain.AttributionMemory, resolve: m.byMemory},
		{source: domain.AttributionNamePrefix, remember: true, resolve: m.byNamePrefix},
		{source: domain.AttributionEmbedding, remember: true, resolve: m.byEmbedding},
	}
	return m
}

func (m *Mapper) Attribute(ctx context.Context, req domain.AttributionRequest) domain.Attribution {
	label := strings.TrimSpace(req.DiarizationLabel)
	req.DiarizationLabel = label

	for _, r := range m.rules {
		found, ok := r.resolve(ctx, req)
		if !ok {
			continue
		}
		if r.remember && label != "" && m.memory != nil {
			if err := m.memory.Remember(ctx, req.MeetingID, label, found.participant.ID); err != nil {
				slog.Warn("speaker_memory_unavailable",
					"operation", "remember",
					"meeting_id", req.MeetingID,
					"error", err,
				)
			}
		}
		return domain.Attribution{
			ParticipantID: found.participant.ID,
			SpeakerLabel:  found.participant.Name,
			Source:        r.source,
			Score:         found.score,
		}
	}

	fallback := strings.TrimSpace(req.FallbackLabel)
	if fallback == "" {
		fallback = DefaultUnknownSpeaker
	}
	return domain.Attribution{
		SpeakerLabel: fallback,
		Source:       domain.AttributionFallback,
	}
}

// Forget drops all bindings of a meeting.
func (m *Mapper) Forget(ctx context.Context, meetingID string) {
	if m.memory == nil {
		return
	}
	if err := m.memory.Forget(ctx, meetingID); err != nil {
		slog.Warn("speaker_memory_unavailable",
			"operation", "forget",
			"meeting_id", meetingID,
			"error", err,
		)
	}
}

func (m *Mapper) byHint(_ context.Context, req domain.AttributionRequest) (candidate, bool) {
	hint := strings.TrimSpace(req.SpeakerHintID)
	if hint == "" {
		return candidate{}, false
	}
	p, ok := findParticipant(req.Participants, hint)
	if !ok {
		return candidate{}, false
	}
	return candidate{participant: p, score: 1}, true
}

func (m *Mapper) byMemory(ctx context.Context, req domain.AttributionRequest) (candidate, bool) {
	if m.memory == nil || req.DiarizationLabel == "" {
		return candidate{}, false
	}
	participantID, ok, err := m.memory.Recall(ctx, req.MeetingID, req.DiarizationLabel)
	if err != nil {
		slog.Warn("speaker_memory_unavailable",
			"operation", "recall",
			"meeting_id", req.MeetingID,
			"error", err,
		)
		return candidate{}, false
	}
	if !ok {
		return candidate{}, false
	}
	p, found := findParticipant(req.Participants, participantID)
	if !found {
		return candidate{}, false
	}
	return candidate{participant: p, score: 1}, true
}

func (m *Mapper) byNamePrefix(_ context.Context, req domain.AttributionRequest) (candidate, bool) {
	match := namePrefixPattern.FindStringSubmatch(strings.TrimSpace(req.Text))
	if match == nil {
		return candidate{}, false
	}
	prefix := strings.ToLower(strings.TrimSpace(match[1]))
	if prefix == "" {
		return candidate{}, false
	}

	for _, p := range req.Participants {
		if strings.ToLower(strings.TrimSpace(p.Name)) == prefix {
			return candidate{participant: p, score: 1}, true
		}
	}
	for _, p := range req.Participants {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(p.Name)), prefix) {
			return candidate{participant: p, score: 1}, true
		}
	}
	return candidate{}, false
}

func (m *Mapper) byEmbedding(_ context.Context, req domain.AttributionRequest) (candidate, bool) {
	if len(req.VoiceEmbedding) == 0 {
		return candidate{}, false
	}

	var (
		best      domain.Participant
		bestScore = -1.0
		found     bool
	)
	for _, p := range req.Participants {
		if p.VoiceProfile == nil || len(p.VoiceProfile.Embedding) != len(req.VoiceEmbedding) {
			continue
		}
		score := CosineSimilarity(req.VoiceEmbedding, p.VoiceProfile.Embedding)
		if score > bestScore {
			best = p
			bestScore = score
			found = true
		}
	}
	if !found || bestScore+similarityEpsilon < m.threshold {
		return candidate{}, false
	}
	return candidate{participant: best, score: bestScore}, true
}

func findParticipant(participants []domain.Participant, id string) (domain.Participant, bool) {
	for _, p := range participants {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Participant{}, false
}
