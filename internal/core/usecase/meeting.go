package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
	"github.com/kirillkom/meeting-notes/internal/core/ports"
)

const (
	defaultExportMaxAttempts = 3
	defaultExportBackoff     = 300 * time.Millisecond
	defaultLowConfidence     = 0.5
)

// MeetingSettings tunes the orchestrator.
type MeetingSettings struct {
	DefaultLanguage        string
	ExportMaxAttempts      int
	ExportBackoff          time.Duration
	LowConfidenceThreshold float64
	// FinalizeTimeout bounds the work after the live -> processing transition.
	// Zero leaves it unbounded.
	FinalizeTimeout time.Duration
	// ExportAttemptTimeout bounds a single exporter call. Zero leaves it unbounded.
	ExportAttemptTimeout time.Duration
}

func (s MeetingSettings) normalize() MeetingSettings {
	out := s
	if strings.TrimSpace(out.DefaultLanguage) == "" {
		out.DefaultLanguage = "sv"
	}
	if out.ExportMaxAttempts <= 0 {
		out.ExportMaxAttempts = defaultExportMaxAttempts
	}
	if out.ExportBackoff <= 0 {
		out.ExportBackoff = defaultExportBackoff
	}
	if out.LowConfidenceThreshold <= 0 {
		out.LowConfidenceThreshold = defaultLowConfidence
	}
	return out
}

// MeetingUseCase owns the meeting state machine and sequences ingestion,
// finalize and export.
type MeetingUseCase struct {
	repo        ports.MeetingStore
	transcriber ports.Transcriber
	speakers    ports.SpeakerAttributor
	generator   ports.ArtifactGenerator
	catalog     ports.MessageCatalog
	exporter    ports.DocumentExporter
	bus         ports.EventBus
	settings    MeetingSettings

	locks *meetingLocks
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewMeetingUseCase(
	repo ports.MeetingStore,
	transcriber ports.Transcriber,
	speakers ports.SpeakerAttributor,
	generator ports.ArtifactGenerator,
	catalog ports.MessageCatalog,
	exporter ports.DocumentExporter,
	bus ports.EventBus,
	settings MeetingSettings,
) *MeetingUseCase {
	return &MeetingUseCase{
		repo:        repo,
		transcriber: transcriber,
		speakers:    speakers,
		generator:   generator,
		catalog:     catalog,
		exporter:    exporter,
		bus:         bus,
		settings:    settings.normalize(),
		locks:       newMeetingLocks(),
		now:         func() time.Time { return time.Now().UTC() },
		sleep:       sleepContext,
	}
}

func (uc *MeetingUseCase) CreateMeeting(ctx context.Context, input domain.CreateMeetingInput) (*domain.Meeting, error) {
	const op = "create meeting"

	ids := uniqueTrimmed(input.ParticipantIDs)
	if len(ids) == 0 {
		return nil, domain.NewError(domain.ErrInvalidInput, op, "at least one participant is required")
	}
	if len(ids) > domain.MaxMeetingParticipants {
		return nil, domain.NewError(domain.ErrInvalidInput, op, fmt.Sprintf("at most %d participants are allowed", domain.MaxMeetingParticipants))
	}

	title := strings.TrimSpace(input.Title)
	if utf8.RuneCountInString(title) > domain.MaxMeetingTitleLen {
		return nil, domain.NewError(domain.ErrInvalidInput, op, fmt.Sprintf("title must be at most %d characters", domain.MaxMeetingTitleLen))
	}
	language := strings.TrimSpace(input.Language)
	if language == "" {
		language = uc.settings.DefaultLanguage
	}
	if n := utf8.RuneCountInString(language); n < 2 || n > 10 {
		return nil, domain.NewError(domain.ErrInvalidInput, op, "language must be 2-10 characters")
	}

	known, err := uc.repo.ListParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: list participants: %w", op, err)
	}
	existing := make(map[string]struct{}, len(known))
	for _, p := range known {
		existing[p.ID] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, domain.NewError(domain.ErrInvalidInput, op, "unknown participant ids: "+strings.Join(missing, ", "))
	}

	now := uc.now()
	if title == "" {
		title = domain.DefaultMeetingTitle(uc.catalog.Messages(language).DefaultTitle, now)
	}
	meeting := &domain.Meeting{
		ID:             uuid.NewString(),
		Title:          title,
		Language:       language,
		Status:         domain.MeetingStatusLive,
		StartedAt:      now,
		ParticipantIDs: ids,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.repo.CreateMeeting(ctx, meeting); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return meeting, nil
}

func (uc *MeetingUseCase) ListMeetings(ctx context.Context, query domain.MeetingQuery) ([]domain.Meeting, error) {
	query.Search = strings.TrimSpace(query.Search)
	meetings, err := uc.repo.ListMeetings(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return meetings, nil
}

func (uc *MeetingUseCase) GetMeetingDetails(ctx context.Context, meetingID string) (*domain.MeetingDetails, error) {
	details, err := uc.repo.GetMeetingDetails(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("get meeting details: %w", err)
	}
	return details, nil
}

// meetingParticipants returns the meeting's participants in meeting order.
func (uc *MeetingUseCase) meetingParticipants(ctx context.Context, meeting domain.Meeting) ([]domain.Participant, error) {
	all, err := uc.repo.ListParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	byID := make(map[string]domain.Participant, len(all))
	for _, p := range all {
		byID[p.ID] = p
	}
	out := make([]domain.Participant, 0, len(meeting.ParticipantIDs))
	for _, id := range meeting.ParticipantIDs {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (uc *MeetingUseCase) publishStatus(meetingID string, status domain.MeetingStatus, message string) {
	uc.bus.Publish(meetingID, domain.StatusEvent(meetingID, status, message, uc.now()))
}

func uniqueTrimmed(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
