package subtitles

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleASS = "\ufeff[Script Info]\r\n" +
	"Title: Sample\r\n" +
	"\r\n" +
	"[V4+ Styles]\r\n" +
	"Format: Name, Fontname, Fontsize\r\n" +
	"Style: Default,Arial,20\r\n" +
	"\r\n" +
	"[Events]\r\n" +
	"Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\r\n" +
	"Dialogue: 0,0:00:01.00,0:00:03.50,Default,,0,0,0,,{\\i1}Where are you going?{\\i0}\r\n" +
	"Dialogue: 0,0:00:04.00,0:00:06.00,Default,,0,0,0,,I'll be back,\\NI promise.\r\n" +
	"Dialogue: 0,0:00:05.00,0:00:07.00,OP_Romaji,,0,0,0,,Kimi no koe ga\r\n" +
	"Dialogue: 0,0:00:08.00,0:00:09.00,Default,,0,0,0,,{\\pos(320,50)}Tokyo Station\r\n" +
	"Dialogue: 0,0:00:10.00,0:00:11.00,Default,,0,0,0,,{\\p1}m 0 0 l 100 0 100 100{\\p0}\r\n" +
	"Dialogue: 0,0:00:12.00,0:00:13.00,Default,,0,0,0,,{\\an8}\r\n" +
	"Dialogue: 0,0:00:14.00,0:00:15.00,Default,,0,0,0,,ありがとう\r\n" +
	"Comment: 0,0:00:16.00,0:00:17.00,Default,,0,0,0,,translator note\r\n" +
	"Dialogue: 0,0:00:18.00,0:00:19.00,Signs,,0,0,0,,Keep out\r\n" +
	"Dialogue: 0,0:00:20.00,0:00:22.25,Default,,0,0,0,,Wait, what, really?\r\n"

func TestParseASSFiltersNonDialogue(t *testing.T) {
	events, stats, err := ParseASS(strings.NewReader(sampleASS))
	if err != nil {
		t.Fatalf("ParseASS: %v", err)
	}

	want := []Event{
		{Start: time.Second, End: 3500 * time.Millisecond, Text: "Where are you going?"},
		{Start: 4 * time.Second, End: 6 * time.Second, Text: "I'll be back, I promise."},
		{Start: 20 * time.Second, End: 22250 * time.Millisecond, Text: "Wait, what, really?"},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}

	wantStats := FilterStats{Total: 9, Style: 2, Typesetting: 1, Drawing: 1, Empty: 1, NonEnglish: 1, Kept: 3}
	if stats != wantStats {
		t.Fatalf("stats = %+v, want %+v", stats, wantStats)
	}
}

func TestParseASSReportsMalformedTimes(t *testing.T) {
	doc := "[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\nDialogue: 0,bogus,0:00:02.00,Default,,0,0,0,,Hi\n"
	if _, _, err := ParseASS(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for malformed start time")
	}
}

func TestNonDialogueStyleMatchesWordPrefixes(t *testing.T) {
	tests := map[string]bool{
		"Default":       false,
		"Main-Top":      false,
		"OP":            true,
		"ED_English":    true,
		"Signs":         true,
		"Song Kanji":    true,
		"Episode Title": true,
		"Credits":       true,
		"TL Note":       true,
		"Opening":       true,
		"Flashback":     false,
	}
	for style, want := range tests {
		if got := isNonDialogueStyle(style); got != want {
			t.Fatalf("isNonDialogueStyle(%q) = %v, want %v", style, got, want)
		}
	}
}

func TestIsMostlyEnglish(t *testing.T) {
	if !IsMostlyEnglish("Hello there, 123!") {
		t.Fatal("expected plain English to pass")
	}
	if IsMostlyEnglish("こんにちは Hi") {
		t.Fatal("expected mostly Japanese to fail")
	}
	if IsMostlyEnglish("123 ... !!") {
		t.Fatal("expected letterless text to fail")
	}
	if !IsMostlyEnglish("Sensei! Naruto-kun") {
		t.Fatal("expected romanized names to pass")
	}
}

func TestLoadContextNormalizesSRT(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "context.srt")
	doc := "1\n00:00:05,000 --> 00:00:07,000\n<i>Second line</i>\n\n" +
		"2\n00:00:01,000 --> 00:00:03,000\nFirst line\nwraps here\n\n" +
		"3\n00:00:08,000 --> 00:00:09,000\n日本語の台詞\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	events, stats, err := LoadContext(path)
	if err != nil {
		t.Fatalf("LoadContext: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %+v", events)
	}
	if events[0].Text != "First line wraps here" || events[1].Text != "Second line" {
		t.Fatalf("unexpected ordering or cleanup: %+v", events)
	}
	if stats.NonEnglish != 1 {
		t.Fatalf("expected one non-English drop, got %+v", stats)
	}

	if _, _, err := LoadContext(filepath.Join(dir, "track.sup")); err == nil {
		t.Fatal("expected bitmap subtitles to be rejected")
	}
}
