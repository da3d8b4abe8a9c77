package subtitles

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	overrideBlockPattern = regexp.MustCompile(`\{[^}]*\}`)
	drawingPattern       = regexp.MustCompile(`\\p[1-9]`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
)

// Styles whose names start with one of these words carry songs, signs, or
// credits rather than dialogue.
var nonDialogueStyles = []string{"op", "ed", "song", "sign", "title", "credit", "note"}

// Override tags that only appear on positioned typesetting.
var typesettingTags = []string{`\pos`, `\move`, `\fad`}

// FilterStats reports why context lines were dropped.
type FilterStats struct {
	Total       int
	Style       int
	Typesetting int
	Drawing     int
	Empty       int
	NonEnglish  int
	Kept        int
}

// CleanASSText strips override blocks and line-break escapes from an ASS text
// field. Lines in drawing mode clean to the empty string.
func CleanASSText(text string) string {
	if drawingPattern.MatchString(text) {
		return ""
	}
	text = overrideBlockPattern.ReplaceAllString(text, "")
	text = strings.NewReplacer(`\N`, " ", `\n`, " ", `\h`, " ").Replace(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// IsMostlyEnglish reports whether more than 80% of the letters in text are ASCII.
func IsMostlyEnglish(text string) bool {
	var letters, ascii int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if r < 128 {
			ascii++
		}
	}
	if letters == 0 {
		return false
	}
	return float64(ascii)/float64(letters) > 0.8
}

func isNonDialogueStyle(style string) bool {
	tokens := strings.FieldsFunc(strings.ToLower(style), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, token := range tokens {
		for _, prefix := range nonDialogueStyles {
			if strings.HasPrefix(token, prefix) {
				return true
			}
		}
	}
	return false
}

func hasTypesetting(raw string) bool {
	for _, tag := range typesettingTags {
		if strings.Contains(raw, tag) {
			return true
		}
	}
	return false
}

// filterDialogue applies the context filters to one raw event and returns the
// cleaned text, or "" with the stats bucket incremented when the line is dropped.
func filterDialogue(style, raw string, stats *FilterStats) string {
	stats.Total++
	switch {
	case isNonDialogueStyle(style):
		stats.Style++
		return ""
	case hasTypesetting(raw):
		stats.Typesetting++
		return ""
	case drawingPattern.MatchString(raw):
		stats.Drawing++
		return ""
	}
	clean := CleanASSText(raw)
	if clean == "" {
		stats.Empty++
		return ""
	}
	if !IsMostlyEnglish(clean) {
		stats.NonEnglish++
		return ""
	}
	stats.Kept++
	return clean
}
