package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/five82/platesolve/internal/monitor"
)

var t0 = time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)

func event(state monitor.State, offset time.Duration) monitor.Event {
	return monitor.Event{State: state, Path: "m104.fits", Key: "abc", SubmissionID: 42, At: t0.Add(offset)}
}

func TestStore_ObserveAndSnapshotClone(t *testing.T) {
	var s Store

	s.Observe(event(monitor.Submitting, 0))
	s.Observe(event(monitor.Polling, time.Second))
	done := event(monitor.Completed, 7*time.Second)
	done.JobID = 7
	done.Polls = 3
	s.Observe(done)

	snap := s.Snapshot()
	if snap.State != monitor.Completed || snap.JobID != 7 || snap.SubmissionID != 42 {
		t.Fatalf("snapshot = %#v, want completed job 7 of submission 42", snap)
	}
	if !snap.Done() {
		t.Fatal("Done() = false, want true")
	}
	if snap.Elapsed() != 7*time.Second {
		t.Fatalf("Elapsed() = %v, want 7s", snap.Elapsed())
	}
	if len(snap.History) != 3 || snap.History[1].State != monitor.Polling {
		t.Fatalf("history = %#v, want submitting, polling, completed", snap.History)
	}

	// Returned snapshot should be independent of the stored one.
	snap.History[0].State = monitor.Failed
	snap2 := s.Snapshot()
	if snap2.History[0].State != monitor.Submitting {
		t.Fatalf("Snapshot should clone history; got %v", snap2.History[0].State)
	}
}

func TestStore_RepeatedPollsDoNotGrowHistory(t *testing.T) {
	var s Store

	s.Observe(event(monitor.Polling, 0))
	for i := 1; i <= 5; i++ {
		ev := event(monitor.Polling, time.Duration(i)*3*time.Second)
		ev.Polls = i
		s.Observe(ev)
	}

	snap := s.Snapshot()
	if len(snap.History) != 1 {
		t.Fatalf("history len = %d, want 1", len(snap.History))
	}
	if snap.Polls != 5 {
		t.Fatalf("Polls = %d, want 5", snap.Polls)
	}
}

func TestStore_PollFailures(t *testing.T) {
	var s Store
	fail := func(msg string) monitor.Event {
		ev := event(monitor.Polling, time.Second)
		ev.Err = errors.New(msg)
		return ev
	}

	s.Observe(event(monitor.Polling, 0))
	if s.Snapshot().IsStalled() {
		t.Fatal("IsStalled() = true, want false with 0 failures")
	}

	// First failure
	s.Observe(fail("timeout 1"))
	snap := s.Snapshot()
	if snap.PollFailures != 1 || snap.IsStalled() {
		t.Fatalf("PollFailures = %d stalled = %v, want 1 false", snap.PollFailures, snap.IsStalled())
	}

	// Second failure - now stalled
	origErr := errors.New("timeout 2")
	ev := event(monitor.Polling, 2*time.Second)
	ev.Err = origErr
	s.Observe(ev)
	snap = s.Snapshot()
	if !snap.IsStalled() {
		t.Fatal("IsStalled() = false, want true with 2 failures")
	}
	if snap.LastError == nil || snap.LastError.Error() != "timeout 2" {
		t.Fatalf("LastError = %v, want timeout 2", snap.LastError)
	}
	if reflect.ValueOf(snap.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatal("Snapshot should clone error instance")
	}

	// Successful poll resets counter
	s.Observe(event(monitor.Polling, 3*time.Second))
	snap = s.Snapshot()
	if snap.PollFailures != 0 || snap.LastError != nil {
		t.Fatalf("after success PollFailures = %d LastError = %v, want 0 nil", snap.PollFailures, snap.LastError)
	}
}

func TestStore_NewSolveStartsFreshSnapshot(t *testing.T) {
	var s Store

	s.Observe(event(monitor.Completed, 0))
	next := event(monitor.Submitting, time.Minute)
	next.Path = "ngc891.fits"
	next.SubmissionID = 0
	s.Observe(next)

	snap := s.Snapshot()
	if snap.Path != "ngc891.fits" || len(snap.History) != 1 {
		t.Fatalf("snapshot = %#v, want fresh snapshot for ngc891.fits", snap)
	}
	if !snap.StartedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("StartedAt = %v, want %v", snap.StartedAt, t0.Add(time.Minute))
	}

	s.Reset()
	if snap := s.Snapshot(); snap.Path != "" || snap.History != nil {
		t.Fatalf("after Reset snapshot = %#v, want zero", snap)
	}
}

func TestStore_FailureKeepsError(t *testing.T) {
	var s Store

	s.Observe(event(monitor.Submitting, 0))
	ev := event(monitor.Failed, time.Second)
	ev.Err = errors.New("upload rejected")
	s.Observe(ev)

	snap := s.Snapshot()
	if snap.State != monitor.Failed || snap.LastError == nil {
		t.Fatalf("snapshot = %#v, want failed with error", snap)
	}
	if snap.PollFailures != 0 {
		t.Fatalf("PollFailures = %d, want 0", snap.PollFailures)
	}
}
