package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

// FinalizeMeeting moves a live meeting through processing to completed,
// derives its artifacts and exports them. Export failure does not fail finalize.
func (uc *MeetingUseCase) FinalizeMeeting(ctx context.Context, meetingID string) (*domain.FinalizeResult, error) {
	entry := uc.locks.acquire(meetingID)
	defer uc.locks.release(meetingID, entry)

	entry.work.Lock()
	defer entry.work.Unlock()

	meeting, err := uc.repo.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("finalize meeting: %w", err)
	}
	messages := uc.catalog.Messages(meeting.Language)

	processing, err := uc.startProcessing(ctx, entry, meetingID)
	if err != nil {
		return nil, fmt.Errorf("finalize meeting: %w", err)
	}

	// Past the transition the meeting must reach completed or failed even if
	// the caller goes away.
	ctx, cancel := uc.detach(ctx, uc.settings.FinalizeTimeout)
	defer cancel()

	defer uc.speakers.Forget(ctx, meetingID)
	uc.publishStatus(meetingID, domain.MeetingStatusProcessing, messages.Processing)

	input, err := uc.completePipeline(ctx, processing)
	if err != nil {
		return nil, uc.markFailed(ctx, meetingID, messages.LifecycleFailed, fmt.Errorf("finalize meeting: %w", err))
	}

	record, err := uc.exportNotes(ctx, input, messages)
	if err != nil {
		return nil, fmt.Errorf("finalize meeting: export bookkeeping: %w", err)
	}

	final := input.Meeting
	if refreshed, err := uc.repo.GetMeeting(ctx, meetingID); err == nil {
		final = *refreshed
	} else {
		slog.Warn("meeting_refresh_failed", "meeting_id", meetingID, "error", err)
	}

	message := messages.CompletedNeedsAttention
	if record.Status == domain.ExportStatusSuccess {
		message = messages.CompletedExported
	}
	uc.publishStatus(meetingID, domain.MeetingStatusCompleted, message)

	return &domain.FinalizeResult{
		Meeting:   final,
		Artifacts: input.Artifacts,
		Export:    record,
	}, nil
}

// startProcessing performs the live -> processing transition under the state
// write lock; in-flight ingests holding the read lock complete first.
func (uc *MeetingUseCase) startProcessing(ctx context.Context, entry *meetingLock, meetingID string) (*domain.Meeting, error) {
	entry.state.Lock()
	defer entry.state.Unlock()

	processing, err := uc.repo.UpdateMeetingStatus(ctx, domain.MeetingStatusUpdate{
		MeetingID: meetingID,
		From:      domain.MeetingStatusLive,
		To:        domain.MeetingStatusProcessing,
		UpdatedAt: uc.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("set status=processing: %w", err)
	}
	return processing, nil
}

func (uc *MeetingUseCase) completePipeline(ctx context.Context, meeting *domain.Meeting) (domain.ExportInput, error) {
	participants, err := uc.meetingParticipants(ctx, *meeting)
	if err != nil {
		return domain.ExportInput{}, err
	}
	segments, err := uc.repo.ListSegments(ctx, meeting.ID)
	if err != nil {
		return domain.ExportInput{}, fmt.Errorf("read transcript: %w", err)
	}

	draft := uc.generator.Generate(*meeting, participants, segments)
	now := uc.now()
	artifacts := &domain.MeetingArtifacts{
		ID:            uuid.NewString(),
		MeetingID:     meeting.ID,
		ArtifactDraft: draft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.repo.UpsertArtifacts(ctx, artifacts); err != nil {
		return domain.ExportInput{}, fmt.Errorf("save artifacts: %w", err)
	}

	endedAt := uc.now()
	completed, err := uc.repo.UpdateMeetingStatus(ctx, domain.MeetingStatusUpdate{
		MeetingID: meeting.ID,
		From:      domain.MeetingStatusProcessing,
		To:        domain.MeetingStatusCompleted,
		Patch:     domain.MeetingPatch{EndedAt: &endedAt},
		UpdatedAt: endedAt,
	})
	if err != nil {
		return domain.ExportInput{}, fmt.Errorf("set status=completed: %w", err)
	}

	return domain.ExportInput{
		Meeting:      *completed,
		Participants: participants,
		Artifacts:    *artifacts,
		Segments:     segments,
	}, nil
}

// markFailed records a lifecycle failure under a localized notice; the cause
// goes to the log only. The cause is always returned.
func (uc *MeetingUseCase) markFailed(ctx context.Context, meetingID, message string, cause error) error {
	slog.Error("finalize_failed", "meeting_id", meetingID, "error", cause)
	_, err := uc.repo.UpdateMeetingStatus(context.WithoutCancel(ctx), domain.MeetingStatusUpdate{
		MeetingID: meetingID,
		To:        domain.MeetingStatusFailed,
		Patch:     domain.MeetingPatch{ErrorMessage: &message},
		UpdatedAt: uc.now(),
	})
	uc.publishStatus(meetingID, domain.MeetingStatusFailed, message)
	if err != nil {
		return fmt.Errorf("%w; mark failed status: %v", cause, err)
	}
	return cause
}

// detach returns a context that survives cancellation of ctx, bounded by
// timeout when it is positive.
func (uc *MeetingUseCase) detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if timeout <= 0 {
		return detached, func() {}
	}
	return context.WithTimeout(detached, timeout)
}
