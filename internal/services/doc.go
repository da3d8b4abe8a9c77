// Package services defines shared utilities consumed by the pipeline stages
// and the backend integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and chunk indexes for
//     logging.
//   - Structured error markers plus the Wrap helper. AbortsRun and Retryable
//     classify a failure as run-fatal, chunk-retryable, or chunk-terminal.
//
// Backend clients live in subpackages (see services/gemini).
package services
