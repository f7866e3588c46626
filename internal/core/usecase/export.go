package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

// ExportToDocument re-exports the notes of a finalized meeting.
func (uc *MeetingUseCase) ExportToDocument(ctx context.Context, meetingID string) (*domain.ExportRecord, error) {
	const op = "export meeting"

	entry := uc.locks.acquire(meetingID)
	defer uc.locks.release(meetingID, entry)

	entry.work.Lock()
	defer entry.work.Unlock()

	details, err := uc.repo.GetMeetingDetails(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if details.Artifacts == nil {
		return nil, domain.NewError(domain.ErrInvalidInput, op, "meeting has no artifacts yet; finalize it first")
	}

	messages := uc.catalog.Messages(details.Meeting.Language)
	record, err := uc.exportNotes(ctx, domain.ExportInput{
		Meeting:      details.Meeting,
		Participants: details.Participants,
		Artifacts:    *details.Artifacts,
		Segments:     details.Segments,
	}, messages)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	message := messages.CompletedNeedsAttention
	if record.Status == domain.ExportStatusSuccess {
		message = messages.CompletedExported
	}
	uc.publishStatus(meetingID, details.Meeting.Status, message)
	return record, nil
}

// exportNotes runs one export operation: a single record, up to
// ExportMaxAttempts attempts and linear backoff between them. Only bookkeeping
// errors are returned; exporter failures end up in the record. Once started,
// the attempts run to completion regardless of the caller's context.
func (uc *MeetingUseCase) exportNotes(ctx context.Context, input domain.ExportInput, messages domain.MeetingMessages) (*domain.ExportRecord, error) {
	ctx = context.WithoutCancel(ctx)
	meetingID := input.Meeting.ID

	now := uc.now()
	record := &domain.ExportRecord{
		ID:        uuid.NewString(),
		MeetingID: meetingID,
		Provider:  uc.exporter.Provider(),
		Status:    domain.ExportStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.CreateExportRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("create export record: %w", err)
	}

	maxAttempts := uc.settings.ExportMaxAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := uc.exportAttempt(ctx, input)
		if err == nil {
			return record, uc.recordExportSuccess(ctx, record, attempt, result)
		}

		record.Retries = attempt
		record.ErrorMessage = err.Error()
		record.Status = domain.ExportStatusPending
		if attempt == maxAttempts {
			record.Status = domain.ExportStatusFailed
		}
		record.UpdatedAt = uc.now()

		slog.Warn("export_attempt_failed",
			"meeting_id", meetingID,
			"provider", record.Provider,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err,
		)

		if attempt < maxAttempts {
			if waitErr := uc.sleep(ctx, time.Duration(attempt)*uc.settings.ExportBackoff); waitErr != nil {
				record.Status = domain.ExportStatusFailed
			}
		}
		if err := uc.repo.UpdateExportRecord(ctx, record); err != nil {
			return record, fmt.Errorf("update export record: %w", err)
		}
		if record.Status == domain.ExportStatusFailed {
			break
		}
	}

	notice := messages.ExportFailed
	if _, err := uc.repo.UpdateMeetingStatus(ctx, domain.MeetingStatusUpdate{
		MeetingID: meetingID,
		Patch:     domain.MeetingPatch{ErrorMessage: &notice},
		UpdatedAt: uc.now(),
	}); err != nil {
		return record, fmt.Errorf("record export failure on meeting: %w", err)
	}
	return record, nil
}

func (uc *MeetingUseCase) exportAttempt(ctx context.Context, input domain.ExportInput) (domain.ExportResult, error) {
	ctx, cancel := uc.detach(ctx, uc.settings.ExportAttemptTimeout)
	defer cancel()
	return uc.exporter.Export(ctx, input)
}

func (uc *MeetingUseCase) recordExportSuccess(
	ctx context.Context,
	record *domain.ExportRecord,
	attempt int,
	result domain.ExportResult,
) error {
	record.Status = domain.ExportStatusSuccess
	record.Retries = attempt - 1
	record.ExternalID = result.ExternalID
	record.URL = result.URL
	record.ErrorMessage = ""
	record.UpdatedAt = uc.now()
	if err := uc.repo.UpdateExportRecord(ctx, record); err != nil {
		return fmt.Errorf("update export record: %w", err)
	}

	cleared := ""
	url := result.URL
	if _, err := uc.repo.UpdateMeetingStatus(ctx, domain.MeetingStatusUpdate{
		MeetingID: record.MeetingID,
		Patch:     domain.MeetingPatch{DocURL: &url, ErrorMessage: &cleared},
		UpdatedAt: record.UpdatedAt,
	}); err != nil {
		return fmt.Errorf("record document url on meeting: %w", err)
	}
	return nil
}
