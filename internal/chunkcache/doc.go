// Package chunkcache persists validated chunk transcriptions in SQLite so an
// interrupted run resumes where it stopped.
//
// Entries are keyed by a fingerprint over everything that influences the
// transcription of a chunk: the video, the chunk span, the model, the context
// text and the prompt version. Entries are never mutated. A changed input
// produces a new fingerprint and the old row is simply never read again until
// the cache is cleared.
//
// A single process writes to a cache directory at a time; AcquireLock guards
// that with an advisory file lock.
package chunkcache
