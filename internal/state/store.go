package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/platesolve/internal/cache"
	"github.com/five82/platesolve/internal/monitor"
)

// historyLimit bounds the transitions kept per solve.
const historyLimit = 32

// Transition records one state change of the solve.
type Transition struct {
	State monitor.State
	At    time.Time
}

// Snapshot represents the latest solve progress available to the UI.
type Snapshot struct {
	Path         string
	Key          cache.ContentKey
	State        monitor.State
	SubmissionID int64
	JobID        int64
	Polls        int
	Cached       bool
	StartedAt    time.Time
	LastUpdated  time.Time
	LastError    error
	PollFailures int // Number of consecutive failed status polls
	History      []Transition
}

// IsStalled returns true when nova has been unreachable for multiple polls.
func (s Snapshot) IsStalled() bool {
	return s.PollFailures >= 2
}

// Done reports whether the solve reached a terminal state.
func (s Snapshot) Done() bool {
	return s.State.Terminal()
}

// Elapsed is the time between the first event and the latest one.
func (s Snapshot) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return s.LastUpdated.Sub(s.StartedAt)
}

// Store coordinates concurrent updates to the snapshot. It implements
// monitor.Observer.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

var _ monitor.Observer = (*Store)(nil)

// Observe folds a monitor event into the snapshot. An event for a different
// path starts a fresh snapshot.
func (s *Store) Observe(ev monitor.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	if s.snapshot.Path != ev.Path || (s.snapshot.State.Terminal() && !ev.State.Terminal()) {
		s.snapshot = Snapshot{Path: ev.Path, StartedAt: at}
	}
	if s.snapshot.StartedAt.IsZero() {
		s.snapshot.StartedAt = at
	}

	if ev.State != s.snapshot.State || len(s.snapshot.History) == 0 {
		s.snapshot.History = append(s.snapshot.History, Transition{State: ev.State, At: at})
		if n := len(s.snapshot.History); n > historyLimit {
			s.snapshot.History = append([]Transition(nil), s.snapshot.History[n-historyLimit:]...)
		}
	}

	s.snapshot.State = ev.State
	s.snapshot.Key = ev.Key
	s.snapshot.SubmissionID = ev.SubmissionID
	s.snapshot.JobID = ev.JobID
	s.snapshot.Polls = ev.Polls
	s.snapshot.Cached = ev.Cached
	s.snapshot.LastUpdated = at

	switch {
	case ev.Err != nil && ev.State == monitor.Polling:
		s.snapshot.LastError = ev.Err
		s.snapshot.PollFailures++
	case ev.Err != nil:
		s.snapshot.LastError = ev.Err
	case ev.State == monitor.Polling:
		s.snapshot.LastError = nil
		s.snapshot.PollFailures = 0
	}
}

// Reset clears the snapshot.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = Snapshot{}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.History = cloneHistory(s.snapshot.History)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneHistory(items []Transition) []Transition {
	if len(items) == 0 {
		return nil
	}
	dup := make([]Transition, len(items))
	copy(dup, items)
	return dup
}
