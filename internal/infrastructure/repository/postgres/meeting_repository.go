package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

const meetingColumns = `
m.id, m.title, m.language, m.status, m.started_at, m.ended_at, m.doc_url, m.error_message, m.created_at, m.updated_at,
COALESCE((
	SELECT json_agg(mp.participant_id ORDER BY mp.position)
	FROM meeting_participants mp
	WHERE mp.meeting_id = m.id
), '[]'::json)`

func (s *Store) CreateMeeting(ctx context.Context, meeting *domain.Meeting) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin meeting tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO meetings (id, title, language, status, started_at, ended_at, doc_url, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, meeting.ID, meeting.Title, meeting.Language, string(meeting.Status), meeting.StartedAt, meeting.EndedAt,
		meeting.DocURL, meeting.ErrorMessage, meeting.CreatedAt, meeting.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}

	for i, participantID := range meeting.ParticipantIDs {
		_, err := tx.ExecContext(ctx, `
INSERT INTO meeting_participants (meeting_id, participant_id, position)
VALUES ($1,$2,$3)
`, meeting.ID, participantID, i)
		if err != nil {
			return fmt.Errorf("insert meeting participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit meeting tx: %w", err)
	}
	return nil
}

func (s *Store) GetMeeting(ctx context.Context, id string) (*domain.Meeting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+meetingColumns+`
FROM meetings m
WHERE m.id = $1
`, id)
	meeting, err := scanMeeting(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(domain.ErrNotFound, "get meeting", "meeting "+id+" not found")
		}
		return nil, err
	}
	return meeting, nil
}

func (s *Store) ListMeetings(ctx context.Context, query domain.MeetingQuery) ([]domain.Meeting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+meetingColumns+`
FROM meetings m
WHERE $1 = '' OR strpos(lower(m.title), lower($1)) > 0
ORDER BY m.started_at DESC, m.id ASC
`, query.Search)
	if err != nil {
		return nil, fmt.Errorf("query meetings: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Meeting, 0)
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *meeting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meetings: %w", err)
	}
	return out, nil
}

// UpdateMeetingStatus applies the transition and its patch in one conditional
// UPDATE. Zero affected rows are resolved into not-found or invalid-state.
func (s *Store) UpdateMeetingStatus(ctx context.Context, update domain.MeetingStatusUpdate) (*domain.Meeting, error) {
	const op = "update meeting status"

	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
UPDATE meetings
SET status = COALESCE(NULLIF($2::text, ''), status),
	ended_at = COALESCE($3, ended_at),
	doc_url = COALESCE($4, doc_url),
	error_message = COALESCE($5, error_message),
	updated_at = $6
WHERE id = $1 AND ($7::text = '' OR status = $7::text)
`, update.MeetingID, string(update.To), nullTime(update.Patch.EndedAt), nullString(update.Patch.DocURL),
		nullString(update.Patch.ErrorMessage), updatedAt, string(update.From))
	if err != nil {
		return nil, fmt.Errorf("update meeting status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update meeting status rows affected: %w", err)
	}
	if rows == 0 {
		var current string
		err := s.db.QueryRowContext(ctx, `SELECT status FROM meetings WHERE id = $1`, update.MeetingID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(domain.ErrNotFound, op, "meeting "+update.MeetingID+" not found")
		}
		if err != nil {
			return nil, fmt.Errorf("read meeting status: %w", err)
		}
		return nil, domain.NewError(domain.ErrInvalidState, op,
			fmt.Sprintf("meeting %s is %s, expected %s", update.MeetingID, current, update.From))
	}
	return s.GetMeeting(ctx, update.MeetingID)
}

func (s *Store) AddSegment(ctx context.Context, segment *domain.TranscriptSegment) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO transcript_segments (
	id, meeting_id, participant_id, speaker_label, diarization_label, text, confidence, timestamp_ms, is_overlapping, created_at
) VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10)
`, segment.ID, segment.MeetingID, segment.ParticipantID, segment.SpeakerLabel, segment.DiarizationLabel,
		segment.Text, segment.Confidence, segment.TimestampMs, segment.IsOverlapping, segment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transcript segment: %w", err)
	}
	return nil
}

func (s *Store) ListSegments(ctx context.Context, meetingID string) ([]domain.TranscriptSegment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, meeting_id, COALESCE(participant_id, ''), speaker_label, diarization_label, text, confidence, timestamp_ms, is_overlapping, created_at
FROM transcript_segments
WHERE meeting_id = $1
ORDER BY seq ASC
`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("query transcript segments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TranscriptSegment, 0)
	for rows.Next() {
		var seg domain.TranscriptSegment
		if err := rows.Scan(
			&seg.ID, &seg.MeetingID, &seg.ParticipantID, &seg.SpeakerLabel, &seg.DiarizationLabel,
			&seg.Text, &seg.Confidence, &seg.TimestampMs, &seg.IsOverlapping, &seg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transcript segment: %w", err)
		}
		out = append(out, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript segments: %w", err)
	}
	return out, nil
}

func (s *Store) GetMeetingDetails(ctx context.Context, id string) (*domain.MeetingDetails, error) {
	meeting, err := s.GetMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	participants, err := s.meetingParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	segments, err := s.ListSegments(ctx, id)
	if err != nil {
		return nil, err
	}
	artifacts, err := s.getArtifacts(ctx, id)
	if err != nil {
		return nil, err
	}
	exports, err := s.listExportRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.MeetingDetails{
		Meeting:      *meeting,
		Participants: participants,
		Segments:     segments,
		Artifacts:    artifacts,
		Exports:      exports,
	}, nil
}

func scanMeeting(row rowScanner) (*domain.Meeting, error) {
	var (
		m              domain.Meeting
		status         string
		endedAt        sql.NullTime
		participantIDs []byte
	)
	err := row.Scan(
		&m.ID, &m.Title, &m.Language, &status, &m.StartedAt, &endedAt, &m.DocURL, &m.ErrorMessage,
		&m.CreatedAt, &m.UpdatedAt, &participantIDs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan meeting: %w", err)
	}
	m.Status = domain.MeetingStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		m.EndedAt = &t
	}
	if err := json.Unmarshal(participantIDs, &m.ParticipantIDs); err != nil {
		return nil, fmt.Errorf("unmarshal participant ids: %w", err)
	}
	return &m, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
