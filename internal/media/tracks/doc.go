// Package tracks chooses the subtitle stream that carries the reference
// dialogue and the audio stream that carries the Japanese speech.
//
// Both choices are pure functions over ffprobe streams so they can be shown
// to the user (jimaku tracks) exactly as the pipeline would make them.
package tracks
