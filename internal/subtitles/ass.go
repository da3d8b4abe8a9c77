package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"jimaku/internal/timecode"
)

var defaultEventFormat = []string{"layer", "start", "end", "style", "name", "marginl", "marginr", "marginv", "effect", "text"}

// ParseASS reads the [Events] section of an ASS/SSA script and returns the
// dialogue lines that survive the context filters, in file order.
func ParseASS(r io.Reader) ([]Event, FilterStats, error) {
	var (
		stats    FilterStats
		events   []Event
		inEvents bool
		format   = defaultEventFormat
		lineNo   int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			inEvents = strings.EqualFold(trimmed, "[Events]")
			continue
		}
		if !inEvents {
			continue
		}
		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "format":
			format = parseFormat(value)
		case "dialogue":
			fields := strings.SplitN(strings.TrimLeft(value, " "), ",", len(format))
			if len(fields) != len(format) {
				return nil, stats, fmt.Errorf("ass line %d: expected %d fields, got %d", lineNo, len(format), len(fields))
			}
			ev, style, raw, err := buildEvent(format, fields)
			if err != nil {
				return nil, stats, fmt.Errorf("ass line %d: %w", lineNo, err)
			}
			text := filterDialogue(style, raw, &stats)
			if text == "" {
				continue
			}
			ev.Text = text
			events = append(events, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("read ass: %w", err)
	}
	return events, stats, nil
}

// ParseASSFile opens path and parses it with ParseASS.
func ParseASSFile(path string) ([]Event, FilterStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, FilterStats{}, fmt.Errorf("open ass: %w", err)
	}
	defer file.Close()
	return ParseASS(file)
}

func parseFormat(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	if len(out) == 0 || out[len(out)-1] != "text" {
		return defaultEventFormat
	}
	return out
}

func buildEvent(format, fields []string) (Event, string, string, error) {
	var (
		ev         Event
		style, raw string
		err        error
	)
	for i, name := range format {
		value := fields[i]
		switch name {
		case "start":
			if ev.Start, err = timecode.Parse(value); err != nil {
				return Event{}, "", "", fmt.Errorf("start: %w", err)
			}
		case "end":
			if ev.End, err = timecode.Parse(value); err != nil {
				return Event{}, "", "", fmt.Errorf("end: %w", err)
			}
		case "style":
			style = strings.TrimSpace(value)
		case "text":
			raw = value
		}
	}
	return ev, style, raw, nil
}
