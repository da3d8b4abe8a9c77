package subtitles

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"jimaku/internal/timecode"
)

// Event is a single timed line of dialogue. Events are treated as immutable
// once extracted.
type Event struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Span returns the event's time range.
func (e Event) Span() timecode.Span {
	return timecode.Span{Start: e.Start, End: e.End}
}

// Duration returns the event length, or zero for inverted events.
func (e Event) Duration() time.Duration {
	return e.Span().Duration()
}

// Normalize sorts events by start time, drops empty or inverted events, and
// resolves overlaps. Heavily overlapping events (or repeats of the same text)
// are merged into one; slight overlaps are trimmed so the earlier event ends
// where the next one starts. The input slice is not modified.
func Normalize(events []Event) []Event {
	sorted := make([]Event, 0, len(events))
	for _, ev := range events {
		ev.Text = strings.TrimSpace(ev.Text)
		if ev.Text == "" || ev.End <= ev.Start || ev.Start < 0 {
			continue
		}
		sorted = append(sorted, ev)
	}
	slices.SortStableFunc(sorted, func(a, b Event) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.End, b.End)
	})

	out := make([]Event, 0, len(sorted))
	for _, ev := range sorted {
		if len(out) == 0 {
			out = append(out, ev)
			continue
		}
		cur := &out[len(out)-1]
		if ev.Start >= cur.End {
			out = append(out, ev)
			continue
		}
		overlap := min(cur.End, ev.End) - ev.Start
		shorter := min(cur.Duration(), ev.Duration())
		if ev.Text == cur.Text || overlap*2 >= shorter {
			cur.End = max(cur.End, ev.End)
			if ev.Text != cur.Text && !strings.Contains(cur.Text, ev.Text) {
				cur.Text = cur.Text + " " + ev.Text
			}
			continue
		}
		cur.End = ev.Start
		out = append(out, ev)
	}
	return out
}

// SpeechDuration returns the total time covered by start-ordered events,
// counting overlapping stretches once.
func SpeechDuration(events []Event) time.Duration {
	var total time.Duration
	var coveredUntil time.Duration
	started := false
	for _, ev := range events {
		if ev.End <= ev.Start {
			continue
		}
		start := ev.Start
		if started && start < coveredUntil {
			start = coveredUntil
		}
		if ev.End > start {
			total += ev.End - start
		}
		if !started || ev.End > coveredUntil {
			coveredUntil = ev.End
		}
		started = true
	}
	return total
}
