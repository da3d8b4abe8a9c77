package timecode

import (
	"fmt"
	"time"
)

// Span is a half-open interval [Start, End).
type Span struct {
	Start time.Duration
	End   time.Duration
}

// Duration returns End-Start, or zero for inverted spans.
func (s Span) Duration() time.Duration {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Empty reports whether the span covers no time.
func (s Span) Empty() bool {
	return s.End <= s.Start
}

// Shift moves the span by d.
func (s Span) Shift(d time.Duration) Span {
	return Span{Start: s.Start + d, End: s.End + d}
}

// Clamp restricts the span to bounds. The result may be empty.
func (s Span) Clamp(bounds Span) Span {
	out := Span{Start: max(s.Start, bounds.Start), End: min(s.End, bounds.End)}
	if out.End < out.Start {
		out.End = out.Start
	}
	return out
}

func (s Span) String() string {
	return fmt.Sprintf("[%s - %s)", FormatSRT(s.Start), FormatSRT(s.End))
}
