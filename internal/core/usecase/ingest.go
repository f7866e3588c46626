package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

const minAudioBase64Len = 10

// IngestChunk transcribes, attributes and stores one utterance of a live meeting.
// Chunks for meetings that already left live return domain.ErrMeetingNotLive.
func (uc *MeetingUseCase) IngestChunk(ctx context.Context, meetingID string, chunk domain.ChunkInput) (*domain.IngestResult, error) {
	const op = "ingest chunk"

	audio, err := validateChunk(chunk)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, err)
	}

	meeting, err := uc.repo.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if meeting.Status != domain.MeetingStatusLive {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrMeetingNotLive)
	}

	transcript, err := uc.transcriber.Transcribe(ctx, domain.TranscriptionRequest{
		Text:     strings.TrimSpace(chunk.Text),
		Audio:    audio,
		MimeType: chunk.MimeType,
		Language: meeting.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: transcribe: %w", op, err)
	}
	text := strings.TrimSpace(transcript.Text)
	if text == "" {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrNoSpeech)
	}

	confidence := transcript.Confidence
	if chunk.Confidence != nil && !math.IsNaN(*chunk.Confidence) {
		confidence = *chunk.Confidence
	}
	confidence = clampConfidence(confidence)

	participants, err := uc.meetingParticipants(ctx, *meeting)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	messages := uc.catalog.Messages(meeting.Language)

	segment, source, err := uc.appendSegment(ctx, meetingID, func(current *domain.Meeting) (domain.TranscriptSegment, domain.AttributionSource) {
		attribution := uc.speakers.Attribute(ctx, domain.AttributionRequest{
			MeetingID:        meetingID,
			Participants:     participants,
			Text:             text,
			SpeakerHintID:    chunk.SpeakerHintID,
			DiarizationLabel: chunk.DiarizationLabel,
			VoiceEmbedding:   chunk.VoiceEmbedding,
			FallbackLabel:    messages.UnknownSpeaker,
		})

		now := uc.now()
		offset := now.Sub(current.StartedAt).Milliseconds()
		if offset < 0 {
			offset = 0
		}
		return domain.TranscriptSegment{
			ID:               uuid.NewString(),
			MeetingID:        meetingID,
			ParticipantID:    attribution.ParticipantID,
			SpeakerLabel:     attribution.SpeakerLabel,
			DiarizationLabel: strings.TrimSpace(chunk.DiarizationLabel),
			Text:             text,
			Confidence:       confidence,
			TimestampMs:      offset,
			IsOverlapping:    chunk.IsOverlapping,
			CreatedAt:        now,
		}, attribution.Source
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	uc.bus.Publish(meetingID, domain.SegmentEvent(segment, uc.now()))
	if confidence < uc.settings.LowConfidenceThreshold {
		uc.publishStatus(meetingID, domain.MeetingStatusLive, messages.LowAudioQuality)
	}

	return &domain.IngestResult{Segment: segment, Attribution: source}, nil
}

// appendSegment re-checks the live status and stores the segment while holding
// the meeting's state read lock, so a finalize transition cannot slip in between.
func (uc *MeetingUseCase) appendSegment(
	ctx context.Context,
	meetingID string,
	build func(current *domain.Meeting) (domain.TranscriptSegment, domain.AttributionSource),
) (domain.TranscriptSegment, domain.AttributionSource, error) {
	entry := uc.locks.acquire(meetingID)
	defer uc.locks.release(meetingID, entry)

	entry.state.RLock()
	defer entry.state.RUnlock()

	current, err := uc.repo.GetMeeting(ctx, meetingID)
	if err != nil {
		return domain.TranscriptSegment{}, "", err
	}
	if current.Status != domain.MeetingStatusLive {
		return domain.TranscriptSegment{}, "", domain.ErrMeetingNotLive
	}

	segment, source := build(current)
	if err := uc.repo.AddSegment(ctx, &segment); err != nil {
		return domain.TranscriptSegment{}, "", fmt.Errorf("add segment: %w", err)
	}
	return segment, source, nil
}

func validateChunk(chunk domain.ChunkInput) ([]byte, error) {
	text := strings.TrimSpace(chunk.Text)
	encoded := strings.TrimSpace(chunk.AudioBase64)
	if text == "" && encoded == "" {
		return nil, fmt.Errorf("text or audio_base64 is required")
	}
	if utf8.RuneCountInString(text) > domain.MaxChunkTextLen {
		return nil, fmt.Errorf("text must be at most %d characters", domain.MaxChunkTextLen)
	}
	if utf8.RuneCountInString(chunk.DiarizationLabel) > domain.MaxDiarizationLen {
		return nil, fmt.Errorf("diarization_label must be at most %d characters", domain.MaxDiarizationLen)
	}
	if len(chunk.VoiceEmbedding) > domain.MaxEmbeddingLen {
		return nil, fmt.Errorf("voice_embedding must have at most %d values", domain.MaxEmbeddingLen)
	}
	if text != "" {
		return nil, nil
	}

	if strings.HasPrefix(encoded, "data:") {
		if i := strings.Index(encoded, ","); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	if len(encoded) < minAudioBase64Len {
		return nil, fmt.Errorf("audio_base64 is too short")
	}
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		audio, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("audio_base64 is not valid base64")
		}
	}
	return audio, nil
}

func clampConfidence(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
