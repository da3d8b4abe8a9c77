// Package main hosts the jimaku CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once per invocation, builds
// the ffmpeg, Gemini and chunk-cache collaborators, and hands them to the
// pipeline runner. Inspection commands (tracks, cache, status) and the series
// context generator share the same wiring so every subcommand sees the same
// paths and logging setup.
//
// Keep this package lean: behaviour belongs in the internal packages and is
// only surfaced here through commands and flags.
package main
