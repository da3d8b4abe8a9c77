package validate

import (
	"fmt"
	"time"

	"jimaku/internal/config"
	"jimaku/internal/services"
	"jimaku/internal/subtitles"
	"jimaku/internal/textutil"
	"jimaku/internal/timecode"
)

// Rejection reasons.
const (
	ReasonInvalidTimestamp = "invalid_timestamp"
	ReasonOutOfBounds      = "out_of_bounds"
	ReasonNonMonotonic     = "non_monotonic"
	ReasonOverlap          = "overlap"
	ReasonReadingSpeedHigh = "reading_speed_high"
	ReasonReadingSpeedLow  = "reading_speed_low"
	ReasonLineTooLong      = "line_too_long"
	ReasonEmptyResult      = "empty_result"
	ReasonCoverageHigh     = "coverage_high"
	ReasonCoverageLow      = "coverage_low"
	ReasonRepeatedText     = "repeated_text"
)

// similarRepeat is the cosine similarity at which two consecutive lines count
// as the same utterance.
const similarRepeat = 0.9

// Line is one transcribed line relative to the chunk start.
type Line struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Thresholds bound what counts as a plausible transcription.
type Thresholds struct {
	MaxCPS            float64
	MinCPS            float64
	MaxLine           time.Duration
	BoundaryTolerance time.Duration
	OverlapTolerance  time.Duration
	MinCoverageRatio  float64
	MaxCoverageRatio  float64
	MaxRepeats        int
}

// FromConfig converts the [validation] config section.
func FromConfig(v config.Validation) Thresholds {
	return Thresholds{
		MaxCPS:            v.MaxCPS,
		MinCPS:            v.MinCPS,
		MaxLine:           timecode.Seconds(v.MaxLineSeconds),
		BoundaryTolerance: time.Duration(v.BoundaryToleranceMS) * time.Millisecond,
		OverlapTolerance:  time.Duration(v.OverlapToleranceMS) * time.Millisecond,
		MinCoverageRatio:  v.MinCoverageRatio,
		MaxCoverageRatio:  v.MaxCoverageRatio,
		MaxRepeats:        v.MaxRepeats,
	}
}

// DefaultThresholds returns the thresholds of the default configuration.
func DefaultThresholds() Thresholds {
	return FromConfig(config.Default().Validation)
}

// Input is one chunk's transcription together with what is known about the
// chunk.
type Input struct {
	ChunkDuration time.Duration
	// HasContext is true when the chunk carried dialogue events.
	HasContext bool
	// ContextSpeech is the total duration covered by the context events.
	ContextSpeech time.Duration
	Lines         []Line
}

// Result is the verdict on one Input. Line is the offending line index, or -1
// when the rejection concerns the chunk as a whole.
type Result struct {
	Accepted bool
	Reason   string
	Detail   string
	Line     int
}

// Err converts a rejection into an ErrValidation error. Accepted results
// return nil.
func (r Result) Err() error {
	if r.Accepted {
		return nil
	}
	return services.Wrap(services.ErrValidation, "validate", r.Reason, r.Detail, nil)
}

func accept() Result {
	return Result{Accepted: true, Line: -1}
}

func reject(reason string, line int, format string, args ...any) Result {
	return Result{Reason: reason, Line: line, Detail: fmt.Sprintf(format, args...)}
}

// Validate runs the checks in order and returns the first rejection.
func Validate(in Input, th Thresholds) Result {
	checks := []func(Input, Thresholds) Result{
		checkTimestamps,
		checkOrdering,
		checkReadingSpeed,
		checkEmpty,
		checkCoverage,
		checkRepetition,
	}
	for _, check := range checks {
		if res := check(in, th); !res.Accepted {
			return res
		}
	}
	return accept()
}

func checkTimestamps(in Input, th Thresholds) Result {
	limit := in.ChunkDuration + th.BoundaryTolerance
	for i, l := range in.Lines {
		if l.Start < 0 || l.Start >= l.End {
			return reject(ReasonInvalidTimestamp, i, "line %d spans %s to %s",
				i, timecode.FormatClock(l.Start), timecode.FormatClock(l.End))
		}
		if l.End > limit {
			return reject(ReasonOutOfBounds, i, "line %d ends at %s but the audio is %s long",
				i, timecode.FormatClock(l.End), timecode.FormatClock(in.ChunkDuration))
		}
	}
	return accept()
}

func checkOrdering(in Input, th Thresholds) Result {
	for i := 1; i < len(in.Lines); i++ {
		prev, cur := in.Lines[i-1], in.Lines[i]
		if cur.Start < prev.Start {
			return reject(ReasonNonMonotonic, i, "line %d starts at %s before line %d at %s",
				i, timecode.FormatClock(cur.Start), i-1, timecode.FormatClock(prev.Start))
		}
		if prev.End-cur.Start > th.OverlapTolerance {
			return reject(ReasonOverlap, i, "line %d overlaps line %d by %s",
				i, i-1, prev.End-cur.Start)
		}
	}
	return accept()
}

func checkReadingSpeed(in Input, th Thresholds) Result {
	for i, l := range in.Lines {
		dur := l.End - l.Start
		chars := textutil.SpokenLength(l.Text)
		cps := float64(chars) / dur.Seconds()
		switch {
		case th.MaxCPS > 0 && cps > th.MaxCPS:
			return reject(ReasonReadingSpeedHigh, i, "line %d has %d characters in %.2fs (%.1f cps, max %.1f)",
				i, chars, dur.Seconds(), cps, th.MaxCPS)
		case cps < th.MinCPS:
			return reject(ReasonReadingSpeedLow, i, "line %d has %d characters in %.2fs (%.2f cps, min %.2f)",
				i, chars, dur.Seconds(), cps, th.MinCPS)
		case th.MaxLine > 0 && dur > th.MaxLine:
			return reject(ReasonLineTooLong, i, "line %d lasts %.2fs (max %.2fs)",
				i, dur.Seconds(), th.MaxLine.Seconds())
		}
	}
	return accept()
}

func checkEmpty(in Input, _ Thresholds) Result {
	if in.HasContext && len(in.Lines) == 0 {
		return reject(ReasonEmptyResult, -1, "no lines returned for a chunk with dialogue")
	}
	return accept()
}

func checkCoverage(in Input, th Thresholds) Result {
	if len(in.Lines) == 0 {
		return accept()
	}
	spoken := SpokenDuration(in.Lines)
	if th.MaxCoverageRatio > 0 && in.ChunkDuration > 0 {
		ceiling := time.Duration(float64(in.ChunkDuration) * th.MaxCoverageRatio)
		if spoken > ceiling {
			return reject(ReasonCoverageHigh, -1, "lines cover %.1fs of a %.1fs chunk",
				spoken.Seconds(), in.ChunkDuration.Seconds())
		}
	}
	if in.HasContext && in.ContextSpeech > 0 && th.MinCoverageRatio > 0 {
		floor := time.Duration(float64(in.ContextSpeech) * th.MinCoverageRatio)
		if spoken < floor {
			return reject(ReasonCoverageLow, -1, "lines cover %.1fs but the reference dialogue covers %.1fs",
				spoken.Seconds(), in.ContextSpeech.Seconds())
		}
	}
	return accept()
}

func checkRepetition(in Input, th Thresholds) Result {
	if th.MaxRepeats <= 0 || len(in.Lines) == 0 {
		return accept()
	}
	run := 1
	prevKey := textutil.ComparisonKey(in.Lines[0].Text)
	prevFP := textutil.NewFingerprint(in.Lines[0].Text)
	for i := 1; i < len(in.Lines); i++ {
		key := textutil.ComparisonKey(in.Lines[i].Text)
		fp := textutil.NewFingerprint(in.Lines[i].Text)
		same := key != "" && (key == prevKey || textutil.CosineSimilarity(prevFP, fp) >= similarRepeat)
		if same {
			run++
		} else {
			run = 1
		}
		if run > th.MaxRepeats {
			return reject(ReasonRepeatedText, i, "%q repeated %d times in a row", in.Lines[i].Text, run)
		}
		prevKey, prevFP = key, fp
	}
	return accept()
}

// SpokenDuration returns the length of the union of the line intervals.
func SpokenDuration(lines []Line) time.Duration {
	events := make([]subtitles.Event, 0, len(lines))
	for _, l := range lines {
		events = append(events, subtitles.Event{Start: l.Start, End: l.End, Text: l.Text})
	}
	return subtitles.SpeechDuration(events)
}
