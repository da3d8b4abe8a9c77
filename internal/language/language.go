package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// aliases covers English names and the ISO 639-2/B codes that show up in
// Matroska tags.
var aliases = map[string]string{
	"english":  "en",
	"japanese": "ja",
	"spanish":  "es",
	"french":   "fr",
	"german":   "de",
	"italian":  "it",
	"korean":   "ko",
	"chinese":  "zh",
	"fre":      "fr",
	"ger":      "de",
	"chi":      "zh",
	"dut":      "nl",
}

func clean(code string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(code, "\u0000", "")))
}

func base(code string) (xlang.Base, bool) {
	code = clean(code)
	if code == "" || code == "und" {
		return xlang.Base{}, false
	}
	if alias, ok := aliases[code]; ok {
		code = alias
	}
	tag, err := xlang.Parse(code)
	if err != nil {
		return xlang.Base{}, false
	}
	b, confidence := tag.Base()
	if confidence == xlang.No {
		return xlang.Base{}, false
	}
	return b, true
}

// ToISO2 returns the two-letter code for any recognized language code, or
// "" when the code is unknown.
func ToISO2(code string) string {
	b, ok := base(code)
	if !ok {
		return ""
	}
	return b.String()
}

// ToISO3 returns the three-letter ISO 639-2/T code, or "und" when unknown.
func ToISO3(code string) string {
	b, ok := base(code)
	if !ok {
		return "und"
	}
	return b.ISO3()
}

// Matches reports whether code names the same language as want.
func Matches(code, want string) bool {
	a, ok := base(code)
	if !ok {
		return false
	}
	b, ok := base(want)
	return ok && a == b
}

// DisplayName returns an English name for code. Returns "Unknown" for empty
// input and the uppercased code for unrecognized input.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	b, ok := base(code)
	if !ok {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	if name := display.English.Languages().Name(b); name != "" {
		return name
	}
	return b.String()
}

// ExtractFromTags extracts the language from stream metadata tags.
// Checks common tag keys: language, LANGUAGE, Language, language_ietf, lang, LANG.
func ExtractFromTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"}
	for _, key := range keys {
		if value, ok := tags[key]; ok {
			if value = clean(value); value != "" {
				return value
			}
		}
	}
	return ""
}
