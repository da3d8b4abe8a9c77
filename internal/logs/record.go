package logs

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"jimaku/internal/logging"
)

// Record is one decoded JSON log line.
type Record struct {
	Time      time.Time
	Level     string
	Message   string
	Component string
	RunID     string
	Fields    map[string]any
}

// ParseRecord decodes a JSON log line. Lines that are not JSON objects
// report false.
func ParseRecord(line string) (Record, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return Record{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Record{}, false
	}
	rec := Record{Fields: make(map[string]any)}
	for key, value := range raw {
		text, _ := value.(string)
		switch key {
		case "ts":
			rec.Time, _ = time.Parse(time.RFC3339Nano, text)
		case "level":
			rec.Level = strings.ToLower(text)
		case "msg":
			rec.Message = text
		case logging.FieldComponent:
			rec.Component = text
		case logging.FieldRunID:
			rec.RunID = text
		default:
			rec.Fields[key] = value
		}
	}
	return rec, true
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Filter selects records for display. Zero values match everything.
type Filter struct {
	// RunID matches records whose run ID starts with the value.
	RunID string
	// MinLevel drops records below debug, info, warn or error.
	MinLevel string
}

// Match reports whether line passes the filter. Non-JSON lines pass only an
// empty filter.
func (f Filter) Match(line string) bool {
	if f.RunID == "" && f.MinLevel == "" {
		return true
	}
	rec, ok := ParseRecord(line)
	if !ok {
		return false
	}
	if f.RunID != "" && !strings.HasPrefix(rec.RunID, f.RunID) {
		return false
	}
	if f.MinLevel != "" {
		want, known := levelRank[strings.ToLower(f.MinLevel)]
		if known && levelRank[rec.Level] < want {
			return false
		}
	}
	return true
}

// Format renders the record on one line: time, level, component, message,
// then the remaining fields sorted by key.
func (r Record) Format() string {
	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(r.Time.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s", strings.ToUpper(r.Level))
	if r.Component != "" {
		b.WriteString(" [" + r.Component + "]")
	}
	b.WriteString(" " + r.Message)
	keys := make([]string, 0, len(r.Fields))
	for key := range r.Fields {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, r.Fields[key])
	}
	if r.RunID != "" {
		fmt.Fprintf(&b, " run=%s", shortRunID(r.RunID))
	}
	return b.String()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
