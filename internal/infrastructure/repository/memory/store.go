// Package memory is a process-local MeetingStore used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

type Store struct {
	mu           sync.RWMutex
	participants map[string]domain.Participant
	meetings     map[string]domain.Meeting
	segments     map[string][]domain.TranscriptSegment
	artifacts    map[string]domain.MeetingArtifacts
	exports      map[string][]domain.ExportRecord
}

func New() *Store {
	return &Store{
		participants: make(map[string]domain.Participant),
		meetings:     make(map[string]domain.Meeting),
		segments:     make(map[string][]domain.TranscriptSegment),
		artifacts:    make(map[string]domain.MeetingArtifacts),
		exports:      make(map[string][]domain.ExportRecord),
	}
}

func (s *Store) CreateParticipant(_ context.Context, participant *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[participant.ID]; ok {
		return domain.NewError(domain.ErrInvalidInput, "create participant", "participant already exists")
	}
	s.participants[participant.ID] = copyParticipant(*participant)
	return nil
}

func (s *Store) GetParticipant(_ context.Context, id string) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[id]
	if !ok {
		return nil, notFound("get participant", "participant", id)
	}
	out := copyParticipant(p)
	return &out, nil
}

func (s *Store) ListParticipants(_ context.Context) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, copyParticipant(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) UpdateVoiceProfile(_ context.Context, id string, profile domain.VoiceProfile) (*domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[id]
	if !ok {
		return nil, notFound("update voice profile", "participant", id)
	}
	p.VoiceProfile = &domain.VoiceProfile{
		Embedding: append([]float64(nil), profile.Embedding...),
		Notes:     profile.Notes,
	}
	s.participants[id] = p
	out := copyParticipant(p)
	return &out, nil
}

func (s *Store) CreateMeeting(_ context.Context, meeting *domain.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[meeting.ID]; ok {
		return domain.NewError(domain.ErrInvalidInput, "create meeting", "meeting already exists")
	}
	s.meetings[meeting.ID] = copyMeeting(*meeting)
	return nil
}

func (s *Store) GetMeeting(_ context.Context, id string) (*domain.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.meetings[id]
	if !ok {
		return nil, notFound("get meeting", "meeting", id)
	}
	out := copyMeeting(m)
	return &out, nil
}

func (s *Store) ListMeetings(_ context.Context, query domain.MeetingQuery) ([]domain.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(query.Search))
	out := make([]domain.Meeting, 0, len(s.meetings))
	for _, m := range s.meetings {
		if search != "" && !strings.Contains(strings.ToLower(m.Title), search) {
			continue
		}
		out = append(out, copyMeeting(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func (s *Store) UpdateMeetingStatus(_ context.Context, update domain.MeetingStatusUpdate) (*domain.Meeting, error) {
	const op = "update meeting status"

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[update.MeetingID]
	if !ok {
		return nil, notFound(op, "meeting", update.MeetingID)
	}
	if update.From != "" && m.Status != update.From {
		return nil, domain.NewError(domain.ErrInvalidState, op,
			fmt.Sprintf("meeting %s is %s, expected %s", m.ID, m.Status, update.From))
	}
	if update.To != "" {
		m.Status = update.To
	}
	if update.Patch.EndedAt != nil {
		endedAt := *update.Patch.EndedAt
		m.EndedAt = &endedAt
	}
	if update.Patch.DocURL != nil {
		m.DocURL = *update.Patch.DocURL
	}
	if update.Patch.ErrorMessage != nil {
		m.ErrorMessage = *update.Patch.ErrorMessage
	}
	if !update.UpdatedAt.IsZero() {
		m.UpdatedAt = update.UpdatedAt
	}
	s.meetings[m.ID] = m
	out := copyMeeting(m)
	return &out, nil
}

func (s *Store) AddSegment(_ context.Context, segment *domain.TranscriptSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[segment.MeetingID]; !ok {
		return notFound("add segment", "meeting", segment.MeetingID)
	}
	s.segments[segment.MeetingID] = append(s.segments[segment.MeetingID], *segment)
	return nil
}

func (s *Store) ListSegments(_ context.Context, meetingID string) ([]domain.TranscriptSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.TranscriptSegment{}, s.segments[meetingID]...), nil
}

func (s *Store) UpsertArtifacts(_ context.Context, artifacts *domain.MeetingArtifacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[artifacts.MeetingID]; !ok {
		return notFound("upsert artifacts", "meeting", artifacts.MeetingID)
	}
	if existing, ok := s.artifacts[artifacts.MeetingID]; ok {
		artifacts.ID = existing.ID
		artifacts.CreatedAt = existing.CreatedAt
	}
	s.artifacts[artifacts.MeetingID] = copyArtifacts(*artifacts)
	return nil
}

func (s *Store) CreateExportRecord(_ context.Context, record *domain.ExportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[record.MeetingID]; !ok {
		return notFound("create export record", "meeting", record.MeetingID)
	}
	s.exports[record.MeetingID] = append(s.exports[record.MeetingID], *record)
	return nil
}

func (s *Store) UpdateExportRecord(_ context.Context, record *domain.ExportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.exports[record.MeetingID]
	for i := range records {
		if records[i].ID == record.ID {
			records[i] = *record
			return nil
		}
	}
	return notFound("update export record", "export record", record.ID)
}

func (s *Store) GetMeetingDetails(_ context.Context, id string) (*domain.MeetingDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.meetings[id]
	if !ok {
		return nil, notFound("get meeting details", "meeting", id)
	}

	details := &domain.MeetingDetails{
		Meeting:      copyMeeting(m),
		Participants: make([]domain.Participant, 0, len(m.ParticipantIDs)),
		Segments:     append([]domain.TranscriptSegment{}, s.segments[id]...),
		Exports:      make([]domain.ExportRecord, 0, len(s.exports[id])),
	}
	for _, pid := range m.ParticipantIDs {
		if p, ok := s.participants[pid]; ok {
			details.Participants = append(details.Participants, copyParticipant(p))
		}
	}
	if a, ok := s.artifacts[id]; ok {
		artifacts := copyArtifacts(a)
		details.Artifacts = &artifacts
	}
	records := s.exports[id]
	for i := len(records) - 1; i >= 0; i-- {
		details.Exports = append(details.Exports, records[i])
	}
	return details, nil
}

func notFound(op, kind, id string) error {
	return domain.NewError(domain.ErrNotFound, op, fmt.Sprintf("%s %s not found", kind, id))
}

func copyParticipant(p domain.Participant) domain.Participant {
	if p.VoiceProfile != nil {
		profile := *p.VoiceProfile
		profile.Embedding = append([]float64(nil), profile.Embedding...)
		p.VoiceProfile = &profile
	}
	return p
}

func copyMeeting(m domain.Meeting) domain.Meeting {
	m.ParticipantIDs = append([]string(nil), m.ParticipantIDs...)
	if m.EndedAt != nil {
		endedAt := *m.EndedAt
		m.EndedAt = &endedAt
	}
	return m
}

func copyArtifacts(a domain.MeetingArtifacts) domain.MeetingArtifacts {
	a.KeyTopics = append([]string(nil), a.KeyTopics...)
	a.Decisions = append([]domain.Item(nil), a.Decisions...)
	a.ActionItems = append([]domain.ActionItem(nil), a.ActionItems...)
	a.OpenQuestions = append([]domain.Item(nil), a.OpenQuestions...)
	a.Risks = append([]domain.Item(nil), a.Risks...)
	return a
}
