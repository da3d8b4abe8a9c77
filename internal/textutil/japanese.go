package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// IsJapanese reports whether r is kana, a CJK ideograph, CJK punctuation, or a
// full-width form.
func IsJapanese(r rune) bool {
	switch {
	case r >= 0x3000 && r <= 0x303f: // CJK symbols and punctuation
	case r >= 0x3040 && r <= 0x309f: // hiragana
	case r >= 0x30a0 && r <= 0x30ff: // katakana
	case r >= 0x4e00 && r <= 0x9fff: // CJK unified ideographs
	case r >= 0xff00 && r <= 0xffef: // half/full-width forms
	default:
		return false
	}
	return true
}

func isASCIIPunct(r rune) bool {
	return strings.ContainsRune("!?.,:;", r)
}

// RemoveJapaneseSpaces drops whitespace runs between two Japanese characters
// and between a Japanese character and adjacent ASCII punctuation. Spaces
// around Latin words are kept.
func RemoveJapaneseSpaces(text string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(runes); {
		r := runes[i]
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
			i++
			continue
		}
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if i > 0 && j < len(runes) && joinable(runes[i-1], runes[j]) {
			i = j
			continue
		}
		b.WriteString(string(runes[i:j]))
		i = j
	}
	return b.String()
}

func joinable(prev, next rune) bool {
	prevJP, nextJP := IsJapanese(prev), IsJapanese(next)
	return (prevJP && nextJP) || (prevJP && isASCIIPunct(next)) || (isASCIIPunct(prev) && nextJP)
}

// NormalizeJapanese prepares model output for display: half-width katakana
// is widened, spaces between Japanese characters are removed, and
// surrounding whitespace is trimmed. Full-width punctuation is kept as the
// model wrote it.
func NormalizeJapanese(text string) string {
	text = widenHalfwidthKana(text)
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(RemoveJapaneseSpaces(text))
}

// widenHalfwidthKana rewrites runs of half-width katakana (U+FF61-U+FF9F)
// with NFKC, which also joins voiced marks (ｶﾞ becomes ガ).
func widenHalfwidthKana(text string) string {
	if !strings.ContainsFunc(text, isHalfwidthKana) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for text != "" {
		i := strings.IndexFunc(text, isHalfwidthKana)
		if i < 0 {
			b.WriteString(text)
			break
		}
		b.WriteString(text[:i])
		text = text[i:]
		j := strings.IndexFunc(text, func(r rune) bool { return !isHalfwidthKana(r) })
		if j < 0 {
			j = len(text)
		}
		b.WriteString(norm.NFKC.String(text[:j]))
		text = text[j:]
	}
	return b.String()
}

func isHalfwidthKana(r rune) bool {
	return r >= 0xff61 && r <= 0xff9f
}

// SpokenLength counts the characters that take time to read aloud: every rune
// except whitespace.
func SpokenLength(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
