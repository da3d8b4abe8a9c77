package tracks

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"jimaku/internal/language"
	"jimaku/internal/media/ffprobe"
	"jimaku/internal/services"
)

// textSubtitleCodecs can be converted to ASS/SRT text. Bitmap formats
// (PGS, VobSub, DVB) cannot serve as context.
var textSubtitleCodecs = map[string]bool{
	"ass":      true,
	"ssa":      true,
	"subrip":   true,
	"srt":      true,
	"webvtt":   true,
	"mov_text": true,
	"text":     true,
}

// Track is a scored stream candidate.
type Track struct {
	Stream   ffprobe.Stream
	Index    int
	Language string
	Title    string
	Codec    string
	Frames   int
	Score    float64
	// Usable is false for subtitle streams that cannot be read as text.
	Usable bool
}

// Label returns a short human-readable description.
func (t Track) Label() string {
	parts := []string{"#" + strconv.Itoa(t.Index)}
	if t.Language != "" {
		parts = append(parts, t.Language)
	}
	if t.Codec != "" {
		parts = append(parts, t.Codec)
	}
	if t.Title != "" {
		parts = append(parts, "\""+t.Title+"\"")
	}
	return strings.Join(parts, " ")
}

func newTrack(stream ffprobe.Stream) Track {
	return Track{
		Stream:   stream,
		Index:    stream.Index,
		Language: language.ExtractFromTags(stream.Tags),
		Title:    stream.Title(),
		Codec:    strings.ToLower(strings.TrimSpace(stream.CodecName)),
		Frames:   stream.FrameCount(),
	}
}

// ScoreSubtitle rates a subtitle stream as dialogue context: English scores
// +10, Japanese +5, a "dialogue"/"full" title +5, a "sign"/"song" title -10,
// and every 20 events add one point.
func ScoreSubtitle(stream ffprobe.Stream) Track {
	t := newTrack(stream)
	t.Usable = textSubtitleCodecs[t.Codec]
	switch {
	case language.Matches(t.Language, "en"):
		t.Score += 10
	case language.Matches(t.Language, "ja"):
		t.Score += 5
	}
	title := strings.ToLower(t.Title)
	if strings.Contains(title, "dialogue") || strings.Contains(title, "full") {
		t.Score += 5
	}
	if strings.Contains(title, "sign") || strings.Contains(title, "song") {
		t.Score -= 10
	}
	t.Score += float64(t.Frames) / 20
	return t
}

// ScoreAudio rates an audio stream as the speech source: Japanese scores
// +10, otherwise a "japanese" title scores +5.
func ScoreAudio(stream ffprobe.Stream) Track {
	t := newTrack(stream)
	t.Usable = true
	switch {
	case language.Matches(t.Language, "ja"):
		t.Score += 10
	case strings.Contains(strings.ToLower(t.Title), "japanese"):
		t.Score += 5
	}
	return t
}

// RankSubtitles scores every subtitle stream, best first. Unusable streams
// sort last.
func RankSubtitles(streams []ffprobe.Stream) []Track {
	var ranked []Track
	for _, s := range streams {
		if strings.EqualFold(s.CodecType, "subtitle") {
			ranked = append(ranked, ScoreSubtitle(s))
		}
	}
	sortRanked(ranked)
	return ranked
}

// RankAudio scores every audio stream, best first.
func RankAudio(streams []ffprobe.Stream) []Track {
	var ranked []Track
	for _, s := range streams {
		if strings.EqualFold(s.CodecType, "audio") {
			ranked = append(ranked, ScoreAudio(s))
		}
	}
	sortRanked(ranked)
	return ranked
}

// sortRanked orders usable before unusable, then by score, then by the
// lower stream index.
func sortRanked(ranked []Track) {
	slices.SortStableFunc(ranked, func(a, b Track) int {
		if a.Usable != b.Usable {
			if a.Usable {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
}

// SelectContextTrack picks the subtitle stream to use as dialogue context.
// It fails with ErrNoSuitableTrack when there are no text subtitles.
func SelectContextTrack(streams []ffprobe.Stream) (Track, error) {
	ranked := RankSubtitles(streams)
	if len(ranked) == 0 {
		return Track{}, services.Wrap(services.ErrNoSuitableTrack, "tracks", "select subtitle", "video has no subtitle streams", nil)
	}
	if !ranked[0].Usable {
		return Track{}, services.Wrap(services.ErrNoSuitableTrack, "tracks", "select subtitle",
			"only image-based subtitles ("+ranked[0].Codec+") are present", nil)
	}
	return ranked[0], nil
}

// SelectAudioTrack picks the audio stream to transcribe.
func SelectAudioTrack(streams []ffprobe.Stream) (Track, error) {
	ranked := RankAudio(streams)
	if len(ranked) == 0 {
		return Track{}, services.Wrap(services.ErrExtraction, "tracks", "select audio", "video has no audio streams", nil)
	}
	return ranked[0], nil
}
