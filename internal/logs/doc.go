// Package logs reads back the JSON log file written under log_dir.
//
// Tail returns the last N lines or resumes from a byte offset, optionally
// polling for new lines, with bounded memory. ParseRecord decodes one JSON
// line into the standard fields so `jimaku logs` can filter by run or level
// and render records the way the console handler does.
package logs
