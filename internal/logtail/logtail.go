package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

// maxLineBytes caps one log line; longer lines fail the scan.
const maxLineBytes = 1 << 20

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file is not an error.
func Read(path string, maxLines int) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var tail []string
	for sc.Scan() {
		tail = append(tail, sc.Text())
		// Compact once the window has doubled, keeping appends amortized.
		if maxLines > 0 && len(tail) >= 2*maxLines {
			tail = append(tail[:0], tail[len(tail)-maxLines:]...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan log: %w", err)
	}
	if maxLines > 0 && len(tail) > maxLines {
		tail = tail[len(tail)-maxLines:]
	}
	return tail, nil
}

// ReadEntries is Read followed by Parse on every line.
func ReadEntries(path string, maxLines int) ([]Entry, error) {
	lines, err := Read(path, maxLines)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		entries = append(entries, Parse(line))
	}
	return entries, nil
}
