package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")

	// ErrExtraction marks failures to read streams or subtitle tracks from the
	// source video. The run cannot proceed without them.
	ErrExtraction = errors.New("extraction failed")
	// ErrNoSuitableTrack is returned when no subtitle track qualifies as
	// dialogue context.
	ErrNoSuitableTrack = fmt.Errorf("%w: no suitable subtitle track", ErrExtraction)

	ErrTransientBackend = errors.New("transient backend failure")
	ErrInvalidResponse  = errors.New("invalid backend response")
	ErrFatalBackend     = errors.New("fatal backend failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// AbortsRun reports whether err must stop the whole run rather than only the
// chunk that produced it.
func AbortsRun(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrFatalBackend),
		errors.Is(err, ErrExtraction),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, context.Canceled):
		return true
	default:
		return false
	}
}

// Retryable reports whether another attempt at the same chunk may succeed.
func Retryable(err error) bool {
	if err == nil || AbortsRun(err) {
		return false
	}
	return errors.Is(err, ErrTransientBackend) ||
		errors.Is(err, ErrInvalidResponse) ||
		errors.Is(err, ErrValidation)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
