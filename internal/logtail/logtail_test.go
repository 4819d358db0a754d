package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeLog(t *testing.T, n int) (string, []string) {
	t.Helper()
	var polls []string
	for i := 1; i <= n; i++ {
		polls = append(polls, fmt.Sprintf(`{"level":"debug","msg":"not calibrated yet","poll":%d}`, i))
	}
	path := filepath.Join(t.TempDir(), "platesolve.log")
	if err := os.WriteFile(path, []byte(strings.Join(polls, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path, polls
}

func TestRead_KeepsTail(t *testing.T) {
	path, polls := writeLog(t, 25)

	cases := map[int][]string{
		-1: polls,
		0:  polls,
		1:  polls[24:],
		7:  polls[18:],
		25: polls,
		40: polls,
	}
	for maxLines, want := range cases {
		got, err := Read(path, maxLines)
		if err != nil {
			t.Fatalf("Read(%d) error = %v", maxLines, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Read(%d) returned %d lines, want %d", maxLines, len(got), len(want))
		}
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil || got != nil {
		t.Fatalf("Read() = %v, %v; want nil, nil", got, err)
	}
}

func TestParse(t *testing.T) {
	line := `{"level":"info","timestamp":"2025-06-01T22:00:03.250Z","logger":"monitor","msg":"submission accepted","operation":"solve","run_id":"r-1","path":"m104.jpg","submission_id":42}`

	entry := Parse(line)
	if entry.Level != "info" || entry.Logger != "monitor" || entry.Message != "submission accepted" {
		t.Fatalf("Parse() = %#v", entry)
	}
	if entry.Operation != "solve" || entry.RunID != "r-1" {
		t.Fatalf("operation/run_id = %q/%q, want solve/r-1", entry.Operation, entry.RunID)
	}
	want := time.Date(2025, 6, 1, 22, 0, 3, 250_000_000, time.UTC)
	if !entry.Time.Equal(want) {
		t.Fatalf("Time = %v, want %v", entry.Time, want)
	}
	if got := entry.FieldKeys(); !reflect.DeepEqual(got, []string{"path", "submission_id"}) {
		t.Fatalf("FieldKeys() = %v", got)
	}
	if entry.Raw != line {
		t.Fatal("Raw should hold the original line")
	}
}

func TestParse_PlainLine(t *testing.T) {
	entry := Parse("  panic: boom  ")
	if entry.Structured() {
		t.Fatal("plain line reported as structured")
	}
	if entry.Message != "panic: boom" {
		t.Fatalf("Message = %q", entry.Message)
	}
	if entry.Format() != "  panic: boom  " {
		t.Fatalf("Format() = %q, want raw line", entry.Format())
	}
}

func TestEntryFormat(t *testing.T) {
	entry := Entry{
		Level:   "warn",
		Logger:  "monitor",
		Message: "status poll failed",
		Fields:  map[string]any{"poll": float64(3), "error": "timeout"},
	}
	want := "WARN  [monitor] status poll failed error=timeout poll=3"
	if got := entry.Format(); got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestReadEntries(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "platesolve.log")
	content := `{"level":"info","msg":"one"}` + "\n\n" + `{"level":"error","msg":"two"}` + "\n"
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := ReadEntries(logPath, 0)
	if err != nil {
		t.Fatalf("ReadEntries() error = %v", err)
	}
	if len(entries) != 2 || entries[1].Message != "two" || entries[1].Level != "error" {
		t.Fatalf("ReadEntries() = %#v", entries)
	}
}
