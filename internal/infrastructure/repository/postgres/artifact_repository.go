package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

// UpsertArtifacts keeps one artifacts row per meeting. The stored id and
// created_at are written back into artifacts.
func (s *Store) UpsertArtifacts(ctx context.Context, artifacts *domain.MeetingArtifacts) error {
	encoded, err := encodeArtifactLists(artifacts.ArtifactDraft)
	if err != nil {
		return err
	}
	row := s.db.QueryRowContext(ctx, `
INSERT INTO meeting_artifacts (
	id, meeting_id, summary, protocol_draft, key_topics, decisions, action_items, open_questions, risks, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (meeting_id) DO UPDATE SET
	summary = EXCLUDED.summary,
	protocol_draft = EXCLUDED.protocol_draft,
	key_topics = EXCLUDED.key_topics,
	decisions = EXCLUDED.decisions,
	action_items = EXCLUDED.action_items,
	open_questions = EXCLUDED.open_questions,
	risks = EXCLUDED.risks,
	updated_at = EXCLUDED.updated_at
RETURNING id, created_at
`, artifacts.ID, artifacts.MeetingID, artifacts.Summary, artifacts.ProtocolDraft,
		encoded[0], encoded[1], encoded[2], encoded[3], encoded[4], artifacts.CreatedAt, artifacts.UpdatedAt)
	if err := row.Scan(&artifacts.ID, &artifacts.CreatedAt); err != nil {
		return fmt.Errorf("upsert meeting artifacts: %w", err)
	}
	return nil
}

func (s *Store) getArtifacts(ctx context.Context, meetingID string) (*domain.MeetingArtifacts, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, meeting_id, summary, protocol_draft, key_topics, decisions, action_items, open_questions, risks, created_at, updated_at
FROM meeting_artifacts
WHERE meeting_id = $1
`, meetingID)

	var (
		a                                            domain.MeetingArtifacts
		topics, decisions, actions, questions, risks []byte
	)
	err := row.Scan(&a.ID, &a.MeetingID, &a.Summary, &a.ProtocolDraft, &topics, &decisions, &actions,
		&questions, &risks, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan meeting artifacts: %w", err)
	}

	targets := []struct {
		raw  []byte
		dest any
	}{
		{topics, &a.KeyTopics},
		{decisions, &a.Decisions},
		{actions, &a.ActionItems},
		{questions, &a.OpenQuestions},
		{risks, &a.Risks},
	}
	for _, target := range targets {
		if err := json.Unmarshal(target.raw, target.dest); err != nil {
			return nil, fmt.Errorf("unmarshal meeting artifacts: %w", err)
		}
	}
	return &a, nil
}

func encodeArtifactLists(draft domain.ArtifactDraft) ([5][]byte, error) {
	var out [5][]byte
	values := []any{
		nonNil(draft.KeyTopics),
		nonNil(draft.Decisions),
		nonNil(draft.ActionItems),
		nonNil(draft.OpenQuestions),
		nonNil(draft.Risks),
	}
	for i, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return out, fmt.Errorf("marshal meeting artifacts: %w", err)
		}
		out[i] = raw
	}
	return out, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Store) CreateExportRecord(ctx context.Context, record *domain.ExportRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO export_records (id, meeting_id, provider, status, external_id, url, error_message, retries, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, record.ID, record.MeetingID, record.Provider, string(record.Status), record.ExternalID, record.URL,
		record.ErrorMessage, record.Retries, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert export record: %w", err)
	}
	return nil
}

func (s *Store) UpdateExportRecord(ctx context.Context, record *domain.ExportRecord) error {
	result, err := s.db.ExecContext(ctx, `
UPDATE export_records
SET status = $2, external_id = $3, url = $4, error_message = $5, retries = $6, updated_at = $7
WHERE id = $1
`, record.ID, string(record.Status), record.ExternalID, record.URL, record.ErrorMessage, record.Retries, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update export record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update export record rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NewError(domain.ErrNotFound, "update export record", "export record "+record.ID+" not found")
	}
	return nil
}

func (s *Store) listExportRecords(ctx context.Context, meetingID string) ([]domain.ExportRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, meeting_id, provider, status, external_id, url, error_message, retries, created_at, updated_at
FROM export_records
WHERE meeting_id = $1
ORDER BY created_at DESC, id DESC
`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("query export records: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ExportRecord, 0)
	for rows.Next() {
		var (
			r      domain.ExportRecord
			status string
		)
		if err := rows.Scan(&r.ID, &r.MeetingID, &r.Provider, &status, &r.ExternalID, &r.URL,
			&r.ErrorMessage, &r.Retries, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan export record: %w", err)
		}
		r.Status = domain.ExportStatus(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate export records: %w", err)
	}
	return out, nil
}
