// Package textutil holds text helpers for Japanese subtitle output: space
// cleanup, width folding, comparison keys, and character-bigram fingerprints
// used to spot repeated lines.
package textutil
