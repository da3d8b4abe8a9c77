// Package validate decides whether a chunk transcription is plausible enough
// to keep. Rejections carry a machine-readable reason that the pipeline turns
// into a stricter prompt on the next attempt.
package validate
