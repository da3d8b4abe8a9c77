// Package segment splits a media timeline into transcription chunks.
//
// Chunks tile [0, duration) with no gaps or overlaps and are cut only between
// dialogue events, preferring the widest silence near the target length. Long
// silences become their own dialogue-free chunks so each chunk's audio stays
// aligned with its context.
package segment
