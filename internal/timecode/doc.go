// Package timecode converts between subtitle timestamp strings and
// time.Duration and provides the half-open Span type shared by the segmenter,
// validator, and assembler.
package timecode
