package notify

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Solved describes a finished solve for SolvedMessage.
type Solved struct {
	Path         string
	JobID        int64
	SubmissionID int64
	Cached       bool
	MachineTags  []string
	Elapsed      time.Duration
}

// SolvedMessage builds the completion notification.
func SolvedMessage(s Solved) Message {
	name := filepath.Base(s.Path)
	var b strings.Builder
	fmt.Fprintf(&b, "Job %d", s.JobID)
	if s.SubmissionID != 0 {
		fmt.Fprintf(&b, " (submission %d)", s.SubmissionID)
	}
	if s.Cached {
		b.WriteString(" from cache")
	} else if s.Elapsed > 0 {
		fmt.Fprintf(&b, ", solved in %s", humanize.RelTime(time.Time{}, time.Time{}.Add(s.Elapsed), "", ""))
	}
	if len(s.MachineTags) > 0 {
		fmt.Fprintf(&b, "\nObjects: %s", strings.Join(s.MachineTags, ", "))
	}
	return Message{
		Subject: fmt.Sprintf("Solved %s", name),
		Body:    strings.TrimSpace(b.String()),
		Level:   LevelInfo,
	}
}

// FailedMessage builds the failure notification.
func FailedMessage(path string, err error) Message {
	body := "unknown error"
	if err != nil {
		body = err.Error()
	}
	return Message{
		Subject: fmt.Sprintf("Solve failed for %s", filepath.Base(path)),
		Body:    body,
		Level:   LevelError,
	}
}
