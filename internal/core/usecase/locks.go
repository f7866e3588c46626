package usecase

import "sync"

// meetingLock serializes work on one meeting.
//
// state guards the live check plus write of an ingest (read side) against the
// live -> processing transition (write side). work serializes finalize and
// export sequences.
type meetingLock struct {
	state sync.RWMutex
	work  sync.Mutex
	refs  int
}

type meetingLocks struct {
	mu      sync.Mutex
	entries map[string]*meetingLock
}

func newMeetingLocks() *meetingLocks {
	return &meetingLocks{entries: make(map[string]*meetingLock)}
}

func (l *meetingLocks) acquire(meetingID string) *meetingLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[meetingID]
	if !ok {
		entry = &meetingLock{}
		l.entries[meetingID] = entry
	}
	entry.refs++
	return entry
}

func (l *meetingLocks) release(meetingID string, entry *meetingLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs <= 0 {
		delete(l.entries, meetingID)
	}
}

func (l *meetingLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
