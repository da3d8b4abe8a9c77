package subtitles

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var markupTagPattern = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// LoadContext reads an extracted subtitle track and returns normalized
// English dialogue events. ASS/SSA scripts go through the full style and
// typesetting filters; SubRip and WebVTT-like text only has markup stripped
// and the language filter applied.
func LoadContext(path string) ([]Event, FilterStats, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ass", ".ssa":
		events, stats, err := ParseASSFile(path)
		if err != nil {
			return nil, stats, err
		}
		return Normalize(events), stats, nil
	case ".srt":
		file, err := os.Open(path)
		if err != nil {
			return nil, FilterStats{}, fmt.Errorf("open srt: %w", err)
		}
		defer file.Close()
		raw, err := ParseSRT(file)
		if err != nil {
			return nil, FilterStats{}, err
		}
		var stats FilterStats
		kept := make([]Event, 0, len(raw))
		for _, ev := range raw {
			text := filterDialogue("", markupTagPattern.ReplaceAllString(ev.Text, ""), &stats)
			if text == "" {
				continue
			}
			ev.Text = text
			kept = append(kept, ev)
		}
		return Normalize(kept), stats, nil
	default:
		return nil, FilterStats{}, fmt.Errorf("unsupported subtitle format %q", filepath.Ext(path))
	}
}
