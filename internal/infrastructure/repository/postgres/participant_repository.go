package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

func (s *Store) CreateParticipant(ctx context.Context, participant *domain.Participant) error {
	profile, err := marshalVoiceProfile(participant.VoiceProfile)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO participants (id, name, voice_profile, created_at)
VALUES ($1,$2,$3,$4)
`, participant.ID, participant.Name, profile, participant.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *Store) GetParticipant(ctx context.Context, id string) (*domain.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, voice_profile, created_at
FROM participants
WHERE id = $1
`, id)
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(domain.ErrNotFound, "get participant", "participant "+id+" not found")
		}
		return nil, err
	}
	return p, nil
}

func (s *Store) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, voice_profile, created_at
FROM participants
ORDER BY name ASC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateVoiceProfile(ctx context.Context, id string, profile domain.VoiceProfile) (*domain.Participant, error) {
	raw, err := marshalVoiceProfile(&profile)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
UPDATE participants
SET voice_profile = $2
WHERE id = $1
RETURNING id, name, voice_profile, created_at
`, id, raw)
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(domain.ErrNotFound, "update voice profile", "participant "+id+" not found")
		}
		return nil, err
	}
	return p, nil
}

func (s *Store) meetingParticipants(ctx context.Context, meetingID string) ([]domain.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT p.id, p.name, p.voice_profile, p.created_at
FROM meeting_participants mp
JOIN participants p ON p.id = mp.participant_id
WHERE mp.meeting_id = $1
ORDER BY mp.position ASC
`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("query meeting participants: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meeting participants: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (*domain.Participant, error) {
	var (
		p       domain.Participant
		profile []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &profile, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan participant: %w", err)
	}
	if len(profile) > 0 && string(profile) != "null" {
		var vp domain.VoiceProfile
		if err := json.Unmarshal(profile, &vp); err != nil {
			return nil, fmt.Errorf("unmarshal voice profile: %w", err)
		}
		p.VoiceProfile = &vp
	}
	return &p, nil
}

func marshalVoiceProfile(profile *domain.VoiceProfile) ([]byte, error) {
	if profile == nil {
		return nil, nil
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("marshal voice profile: %w", err)
	}
	return raw, nil
}
