// Package gemini is a thin REST client for the Gemini generateContent API.
//
// Transcribe submits one audio chunk with its reference dialogue and decodes
// the schema-constrained JSON reply into chunk-relative segments.
// GenerateText issues a plain text request, used to build series context.
//
// Every failure is classified with the services sentinels: transient errors
// (rate limits, 5xx, timeouts) are retried here with exponential backoff and
// jitter; invalid responses and fatal errors are returned immediately so the
// caller can re-prompt or abort.
package gemini
