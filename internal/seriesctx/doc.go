// Package seriesctx builds and loads the series reference text that is
// prepended to every transcription prompt.
//
// A reference is either supplied by the user (inline text or a file) or
// generated from a Japanese Wikipedia article that Gemini condenses into a
// short markdown sheet of character names with readings, terms and a
// synopsis.
package seriesctx
