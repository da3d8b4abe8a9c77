// Package language normalizes the language codes found in container tags
// (ISO 639-1, ISO 639-2/T and /B, BCP 47 tags, English names) so tracks can
// be compared and displayed consistently.
package language
