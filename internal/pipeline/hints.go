package pipeline

import (
	"errors"
	"fmt"
	"time"

	"jimaku/internal/services"
	"jimaku/internal/timecode"
	"jimaku/internal/validate"
)

const (
	reasonInvalidResponse = "invalid_response"
	reasonTransient       = "backend_unavailable"
	reasonError           = "error"
)

func failureReason(err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidResponse):
		return reasonInvalidResponse
	case errors.Is(err, services.ErrTransientBackend):
		return reasonTransient
	default:
		return reasonError
	}
}

// hintForError returns the correction sent after a failed attempt. Transient
// failures carry no hint since the model never answered.
func hintForError(err error) string {
	if errors.Is(err, services.ErrInvalidResponse) {
		return "the reply could not be used. Reply with only a JSON array of objects " +
			"with start_offset, end_offset and text, and nothing else."
	}
	return ""
}

// hintForRejection turns a validation verdict into a correction for the next
// prompt.
func hintForRejection(v validate.Result, chunk time.Duration, th validate.Thresholds) string {
	var hint string
	switch v.Reason {
	case validate.ReasonInvalidTimestamp:
		hint = "every line needs a start_offset before its end_offset, both written as MM:SS.mmm."
	case validate.ReasonOutOfBounds:
		hint = fmt.Sprintf("all timestamps must lie between 00:00.000 and %s, the length of this clip.", timecode.FormatClock(chunk))
	case validate.ReasonNonMonotonic:
		hint = "list the lines in the order they are spoken."
	case validate.ReasonOverlap:
		hint = "lines must not overlap; end each line before the next one starts."
	case validate.ReasonReadingSpeedHigh:
		hint = "a line holds more text than can be spoken in its time span. Give each line its real duration and do not add words that are not spoken."
	case validate.ReasonReadingSpeedLow:
		hint = "a line lasts far longer than its speech. End each line when the speaker stops."
	case validate.ReasonLineTooLong:
		hint = fmt.Sprintf("split long utterances so no line lasts more than %s.", th.MaxLine)
	case validate.ReasonEmptyResult:
		hint = "the clip contains dialogue (see the English reference). Transcribe every spoken line."
	case validate.ReasonCoverageHigh:
		hint = "the lines cover far more time than anyone speaks. Only transcribe audible speech."
	case validate.ReasonCoverageLow:
		hint = "dialogue is missing. Transcribe every spoken line in the clip, not only part of it."
	case validate.ReasonRepeatedText:
		hint = "the same line was repeated many times. Transcribe each utterance once, exactly as spoken."
	default:
		hint = "the previous answer failed validation."
	}
	if v.Detail != "" {
		hint += " (" + v.Detail + ")"
	}
	return hint
}
