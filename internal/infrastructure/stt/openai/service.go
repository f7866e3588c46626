package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

const (
	textConfidence    = 0.99
	mockConfidence    = 0.35
	successConfidence = 0.9
	errorConfidence   = 0.2

	providerText  = "text"
	providerMock  = "mock_stt"
	providerError = "stt_error"
)

// Phrasebook supplies the localized notices stored for audio that was not transcribed.
type Phrasebook interface {
	AudioPlaceholder(language string) string
	TranscriptionError(language string) string
}

// Service resolves chunk text. Backend failures degrade into a placeholder
// segment instead of failing ingestion.
type Service struct {
	client   *Client
	models   []string
	mockMode bool
	phrases  Phrasebook
}

func NewService(client *Client, models []string, mockMode bool, phrases Phrasebook) *Service {
	return &Service{
		client:   client,
		models:   dedupeModels(models),
		mockMode: mockMode,
		phrases:  phrases,
	}
}

func (s *Service) Transcribe(ctx context.Context, req domain.TranscriptionRequest) (domain.TranscriptionResult, error) {
	if text := strings.TrimSpace(req.Text); text != "" {
		return domain.TranscriptionResult{Text: text, Confidence: textConfidence, Provider: providerText}, nil
	}
	if len(req.Audio) == 0 {
		return domain.TranscriptionResult{}, nil
	}

	placeholder := s.phrases.AudioPlaceholder(req.Language)
	if s.mockMode || !s.client.Configured() || len(s.models) == 0 {
		return domain.TranscriptionResult{Text: placeholder, Confidence: mockConfidence, Provider: providerMock}, nil
	}

	var lastErr error
	for _, model := range s.models {
		text, err := s.client.Transcribe(ctx, model, req.Audio, req.MimeType, req.Language)
		if err == nil {
			return domain.TranscriptionResult{
				Text:       text,
				Confidence: successConfidence,
				Provider:   "openai:" + model,
			}, nil
		}
		if ctx.Err() != nil {
			return domain.TranscriptionResult{}, fmt.Errorf("transcribe: %w", ctx.Err())
		}
		lastErr = err
		slog.Warn("stt_model_failed", "model", model, "error", err)
	}

	return domain.TranscriptionResult{
		Text:       strings.TrimSpace(placeholder + " " + s.phrases.TranscriptionError(req.Language) + " " + lastErr.Error()),
		Confidence: errorConfidence,
		Provider:   providerError,
	}, nil
}

// HealthCheck reports whether the transcription backend is usable.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.mockMode {
		return nil
	}
	if !s.client.Configured() {
		return domain.NewError(domain.ErrInvalidState, "stt health", "OPENAI_API_KEY is not configured")
	}
	return s.client.Ping(ctx)
}

// Mode describes how audio is handled: "mock" or "openai".
func (s *Service) Mode() string {
	if s.mockMode || !s.client.Configured() {
		return "mock"
	}
	return "openai"
}

func (s *Service) Models() []string {
	return append([]string(nil), s.models...)
}

func dedupeModels(models []string) []string {
	seen := make(map[string]struct{}, len(models))
	out := make([]string, 0, len(models))
	for _, m := range models {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
