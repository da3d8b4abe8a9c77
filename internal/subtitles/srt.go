package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"jimaku/internal/timecode"
)

// WriteSRT renders events as a SubRip document numbered from 1. Events are
// written in the given order; blank events are skipped.
func WriteSRT(w io.Writer, events []Event) error {
	bw := bufio.NewWriter(w)
	n := 0
	for _, ev := range events {
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			continue
		}
		n++
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", n, timecode.FormatSRT(ev.Start), timecode.FormatSRT(ev.End), text); err != nil {
			return fmt.Errorf("write srt: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

// ParseSRT reads a SubRip document. Multi-line cue text is joined with a
// single space. Blocks without a valid timing line are skipped.
func ParseSRT(r io.Reader) ([]Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	content := strings.TrimPrefix(string(data), "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var events []Event
	for _, block := range splitBlocks(content) {
		lines := strings.Split(block, "\n")
		timingIdx := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timingIdx = i
				break
			}
		}
		if timingIdx < 0 {
			continue
		}
		startText, endText, _ := strings.Cut(lines[timingIdx], "-->")
		start, err := timecode.Parse(startText)
		if err != nil {
			continue
		}
		// Position hints such as "X1:..." may trail the end timestamp.
		endFields := strings.Fields(endText)
		if len(endFields) == 0 {
			continue
		}
		end, err := timecode.Parse(endFields[0])
		if err != nil {
			continue
		}
		text := strings.Join(subtitleTextLines(lines[timingIdx+1:]), " ")
		events = append(events, Event{Start: start, End: end, Text: text})
	}
	return events, nil
}

func splitBlocks(content string) []string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n\n")
}

func subtitleTextLines(lines []string) []string {
	text := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			text = append(text, trimmed)
		}
	}
	return text
}
