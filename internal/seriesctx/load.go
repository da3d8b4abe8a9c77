package seriesctx

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// maxReferenceBytes caps a reference file so a stray binary path is not
// pasted into every prompt.
const maxReferenceBytes = 256 << 10

// Resolve interprets value as a path when it names an existing file and as
// inline text otherwise.
func Resolve(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if strings.ContainsRune(value, '\n') {
		return value, nil
	}
	info, err := os.Stat(value)
	if err != nil {
		return value, nil
	}
	if info.IsDir() {
		return "", fmt.Errorf("context %q is a directory", value)
	}
	if info.Size() > maxReferenceBytes {
		return "", fmt.Errorf("context file %q is %d bytes (limit %d)", value, info.Size(), maxReferenceBytes)
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return "", fmt.Errorf("read context %q: %w", value, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("context file %q is not UTF-8 text", value)
	}
	return strings.TrimSpace(string(data)), nil
}
