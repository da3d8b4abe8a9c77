// Package pipeline turns one video into a Japanese SRT.
//
// A run probes the container, picks the English context track and the
// Japanese audio track, extracts both, plans chunks along the silence gaps of
// the context dialogue, and resolves each chunk in order: cache hit, skipped
// silence, or transcription with bounded validate-and-retry. Accepted lines
// are re-based to video time and written as SubRip.
//
// Collaborators are reached through the MediaSource, Transcriber and Cache
// interfaces so tests can drive the state machine with fakes.
package pipeline
