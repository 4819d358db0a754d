package logtail

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Entry is one parsed line of the JSON log written by internal/logging.
type Entry struct {
	Time      time.Time
	Level     string
	Logger    string
	Message   string
	Operation string
	RunID     string
	Fields    map[string]any
	Raw       string
}

// Keys written by the zap production encoder, plus the operation fields.
var reservedKeys = map[string]bool{
	"timestamp":  true,
	"level":      true,
	"logger":     true,
	"caller":     true,
	"msg":        true,
	"stacktrace": true,
	"operation":  true,
	"run_id":     true,
}

// Parse decodes a JSON log line. Lines that are not JSON objects come back
// with only Raw and Message set.
func Parse(line string) Entry {
	entry := Entry{Raw: line}
	var obj map[string]any
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		entry.Message = strings.TrimSpace(line)
		return entry
	}

	entry.Level = stringField(obj, "level")
	entry.Logger = stringField(obj, "logger")
	entry.Message = stringField(obj, "msg")
	entry.Operation = stringField(obj, "operation")
	entry.RunID = stringField(obj, "run_id")
	if ts := stringField(obj, "timestamp"); ts != "" {
		entry.Time = parseTimestamp(ts)
	}
	for key, value := range obj {
		if reservedKeys[key] {
			continue
		}
		if entry.Fields == nil {
			entry.Fields = make(map[string]any)
		}
		entry.Fields[key] = value
	}
	return entry
}

// Structured reports whether the line was JSON.
func (e Entry) Structured() bool {
	return e.Level != "" || !e.Time.IsZero()
}

// Format renders the entry as a single plain line:
//
//	15:04:05 INFO  [monitor] submission accepted submission_id=42
func (e Entry) Format() string {
	if !e.Structured() {
		return e.Raw
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s ", strings.ToUpper(e.Level))
	if e.Logger != "" {
		fmt.Fprintf(&b, "[%s] ", e.Logger)
	}
	b.WriteString(e.Message)
	for _, key := range e.FieldKeys() {
		fmt.Fprintf(&b, " %s=%v", key, e.Fields[key])
	}
	return b.String()
}

// FieldKeys returns the extra field names in sorted order.
func (e Entry) FieldKeys() []string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func stringField(obj map[string]any, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}

func parseTimestamp(value string) time.Time {
	layouts := []string{
		"2006-01-02T15:04:05.000Z0700",
		time.RFC3339Nano,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
