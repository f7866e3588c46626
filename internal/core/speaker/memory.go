package speaker

import (
	"context"
	"sync"
	"time"
)

type meetingBindings struct {
	labels  map[string]string
	touched time.Time
}

// InMemoryStore keeps diarization bindings in process memory. It is suitable
// for single-instance deployments; abandoned meetings are released by Sweep.
type InMemoryStore struct {
	mu       sync.Mutex
	meetings map[string]*meetingBindings
	now      func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		meetings: make(map[string]*meetingBindings),
		now:      time.Now,
	}
}

func (s *InMemoryStore) Recall(_ context.Context, meetingID, label string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bindings, ok := s.meetings[meetingID]
	if !ok {
		return "", false, nil
	}
	bindings.touched = s.now()
	participantID, ok := bindings.labels[label]
	return participantID, ok, nil
}

func (s *InMemoryStore) Remember(_ context.Context, meetingID, label, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bindings, ok := s.meetings[meetingID]
	if !ok {
		bindings = &meetingBindings{labels: make(map[string]string)}
		s.meetings[meetingID] = bindings
	}
	bindings.labels[label] = participantID
	bindings.touched = s.now()
	return nil
}

func (s *InMemoryStore) Forget(_ context.Context, meetingID string) error {
	s.mu.Lock()
	delete(s.meetings, meetingID)
	s.mu.Unlock()
	return nil
}

// Sweep drops meetings untouched for longer than idle and returns how many were removed.
func (s *InMemoryStore) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	removed := 0
	for meetingID, bindings := range s.meetings {
		if bindings.touched.Before(cutoff) {
			delete(s.meetings, meetingID)
			removed++
		}
	}
	return removed
}

// Len reports the number of meetings with at least one binding.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.meetings)
}
