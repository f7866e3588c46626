package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
	"github.com/kirillkom/meeting-notes/internal/core/ports"
)

// ParticipantUseCase registers people who can be attributed in meetings.
type ParticipantUseCase struct {
	repo ports.ParticipantRepository
	now  func() time.Time
}

func NewParticipantUseCase(repo ports.ParticipantRepository) *ParticipantUseCase {
	return &ParticipantUseCase{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ParticipantUseCase) Register(ctx context.Context, input domain.CreateParticipantInput) (*domain.Participant, error) {
	const op = "register participant"

	name := strings.TrimSpace(input.Name)
	if n := utf8.RuneCountInString(name); n < 2 || n > domain.MaxParticipantNameLen {
		return nil, domain.NewError(domain.ErrInvalidInput, op, fmt.Sprintf("name must be 2-%d characters", domain.MaxParticipantNameLen))
	}

	var profile *domain.VoiceProfile
	if input.VoiceProfile != nil {
		normalized, err := normalizeVoiceProfile(*input.VoiceProfile, false)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, op, err)
		}
		profile = &normalized
	}

	participant := &domain.Participant{
		ID:           uuid.NewString(),
		Name:         name,
		VoiceProfile: profile,
		CreatedAt:    uc.now(),
	}
	if err := uc.repo.CreateParticipant(ctx, participant); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return participant, nil
}

func (uc *ParticipantUseCase) List(ctx context.Context) ([]domain.Participant, error) {
	participants, err := uc.repo.ListParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}

// UpdateVoiceProfile replaces the stored voice profile of a participant.
func (uc *ParticipantUseCase) UpdateVoiceProfile(ctx context.Context, participantID string, profile domain.VoiceProfile) (*domain.Participant, error) {
	const op = "update voice profile"

	normalized, err := normalizeVoiceProfile(profile, true)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	participant, err := uc.repo.UpdateVoiceProfile(ctx, strings.TrimSpace(participantID), normalized)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return participant, nil
}

func normalizeVoiceProfile(profile domain.VoiceProfile, requireEmbedding bool) (domain.VoiceProfile, error) {
	profile.Notes = strings.TrimSpace(profile.Notes)
	if utf8.RuneCountInString(profile.Notes) > domain.MaxVoiceNotesLen {
		return profile, fmt.Errorf("notes must be at most %d characters", domain.MaxVoiceNotesLen)
	}
	if requireEmbedding && len(profile.Embedding) == 0 {
		return profile, fmt.Errorf("embedding is required")
	}
	if len(profile.Embedding) > domain.MaxEmbeddingLen {
		return profile, fmt.Errorf("embedding must have at most %d values", domain.MaxEmbeddingLen)
	}
	for i, v := range profile.Embedding {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return profile, fmt.Errorf("embedding[%d] is not a finite number", i)
		}
	}
	return profile, nil
}
