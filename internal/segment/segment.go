package segment

import (
	"errors"
	"fmt"
	"math"
	"time"

	"jimaku/internal/subtitles"
	"jimaku/internal/timecode"
)

// Cut reasons recorded on each chunk.
const (
	CutPreferred = "preferred" // silence gap inside the target window
	CutExtended  = "extended"  // silence gap past the target, within the hard limit
	CutForced    = "forced"    // largest available gap, below the silence threshold
	CutOversized = "oversized" // a single line longer than the hard limit
	CutFinal     = "final"     // last dialogue chunk, runs to the end of the media
	CutSilence   = "silence"   // no dialogue
)

// Options tunes chunk sizing and cut-point selection.
type Options struct {
	// Target is the preferred chunk length.
	Target time.Duration
	// MaxFactor bounds chunks at Target*MaxFactor except for oversized lines.
	MaxFactor float64
	// MinGap is the shortest silence that qualifies as a preferred cut.
	MinGap time.Duration
	// Padding is how far past the last included line a cut may land.
	Padding time.Duration
	// MinChunkFraction is the shortest preferred chunk as a fraction of Target.
	MinChunkFraction float64
	// PreferLaterGap breaks ties between equal gaps toward the later gap.
	PreferLaterGap bool
}

// DefaultOptions returns the stock chunking parameters.
func DefaultOptions() Options {
	return Options{
		Target:           60 * time.Second,
		MaxFactor:        1.5,
		MinGap:           2 * time.Second,
		Padding:          500 * time.Millisecond,
		MinChunkFraction: 0.5,
		PreferLaterGap:   true,
	}
}

func (o Options) validate() error {
	switch {
	case o.Target <= 0:
		return errors.New("target must be positive")
	case o.MaxFactor < 1:
		return errors.New("max factor must be at least 1")
	case o.MinGap < 0 || o.Padding < 0:
		return errors.New("gap and padding must not be negative")
	case o.MinChunkFraction <= 0 || o.MinChunkFraction > 1:
		return errors.New("min chunk fraction must be in (0, 1]")
	}
	return nil
}

func (o Options) hardLimit() time.Duration {
	return time.Duration(math.Round(float64(o.Target) * o.MaxFactor))
}

func (o Options) minPreferred() time.Duration {
	return time.Duration(math.Round(float64(o.Target) * o.MinChunkFraction))
}

// Chunk is one contiguous slice of the media timeline together with the
// dialogue that falls inside it.
type Chunk struct {
	Index  int
	Span   timecode.Span
	Events []subtitles.Event
	Cut    string
}

// Silent reports whether the chunk carries no dialogue context.
func (c Chunk) Silent() bool {
	return len(c.Events) == 0
}

// Duration returns the chunk length.
func (c Chunk) Duration() time.Duration {
	return c.Span.Duration()
}

// Plan splits the timeline [0, duration) into ordered, non-overlapping chunks
// whose boundaries fall between dialogue events. Events are normalized first.
// When duration is unknown (<= 0) or shorter than the dialogue, the end of the
// last event is used instead.
func Plan(events []subtitles.Event, duration time.Duration, opts Options) ([]Chunk, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("segment options: %w", err)
	}
	events = subtitles.Normalize(events)
	if n := len(events); n > 0 && events[n-1].End > duration {
		duration = events[n-1].End
	}
	if duration <= 0 {
		return nil, errors.New("segment: nothing to split (no dialogue and unknown duration)")
	}

	p := planner{opts: opts, events: events, end: duration}
	p.run()
	for i := range p.chunks {
		p.chunks[i].Index = i
	}
	return p.chunks, nil
}

type planner struct {
	opts   Options
	events []subtitles.Event
	end    time.Duration
	cursor time.Duration
	chunks []Chunk
}

func (p *planner) run() {
	longSilence := p.opts.Target / 2
	i := 0
	for i < len(p.events) {
		if gap := p.events[i].Start - p.cursor; gap > longSilence {
			lead := min(p.opts.Padding, gap/2)
			p.emitSilence(p.events[i].Start - lead)
		}

		fit := i
		for fit < len(p.events) && p.events[fit].End-p.cursor <= p.opts.Target {
			fit++
		}
		if fit == len(p.events) || i == len(p.events)-1 {
			p.finish(i)
			return
		}

		j, reason := p.chooseCut(i)
		cutAt := p.events[j].End
		if j+1 < len(p.events) {
			gap := p.events[j+1].Start - p.events[j].End
			cutAt += min(gap/2, p.opts.Padding)
		}
		p.emit(cutAt, p.events[i:j+1], reason)
		i = j + 1
	}
	if len(p.events) == 0 {
		p.emitSilence(p.end)
	}
}

// chooseCut returns the index of the last event to include in the chunk that
// starts at the cursor with event i. At least one event after i exists.
func (p *planner) chooseCut(i int) (int, string) {
	hard := p.opts.hardLimit()
	minPreferred := p.opts.minPreferred()
	last := len(p.events) - 1

	type candidate struct {
		idx    int
		length time.Duration
		gap    time.Duration
	}
	var candidates []candidate
	for j := i; j < last; j++ {
		length := p.events[j].End - p.cursor
		if length > hard {
			break
		}
		candidates = append(candidates, candidate{idx: j, length: length, gap: p.events[j+1].Start - p.events[j].End})
	}

	pick := func(accept func(candidate) bool, preferLater bool) (int, bool) {
		best := -1
		var bestGap time.Duration
		for _, c := range candidates {
			if !accept(c) {
				continue
			}
			if best < 0 || c.gap > bestGap || (c.gap == bestGap && preferLater) {
				best, bestGap = c.idx, c.gap
			}
		}
		return best, best >= 0
	}

	if j, ok := pick(func(c candidate) bool {
		return c.length >= minPreferred && c.length <= p.opts.Target && c.gap >= p.opts.MinGap
	}, p.opts.PreferLaterGap); ok {
		return j, CutPreferred
	}
	if j, ok := pick(func(c candidate) bool {
		return c.length > p.opts.Target && c.gap >= p.opts.MinGap
	}, false); ok {
		return j, CutExtended
	}
	if j, ok := pick(func(candidate) bool { return true }, p.opts.PreferLaterGap); ok {
		return j, CutForced
	}
	return i, CutOversized
}

// finish emits the last dialogue chunk starting at event i and any trailing
// silence.
func (p *planner) finish(i int) {
	lastEnd := p.events[len(p.events)-1].End
	trailing := p.end - lastEnd
	if trailing <= p.opts.Target/2 {
		p.emit(p.end, p.events[i:], CutFinal)
		return
	}
	p.emit(lastEnd+min(p.opts.Padding, trailing/2), p.events[i:], CutFinal)
	p.emitSilence(p.end)
}

func (p *planner) emit(end time.Duration, events []subtitles.Event, reason string) {
	if end <= p.cursor {
		return
	}
	p.chunks = append(p.chunks, Chunk{
		Span:   timecode.Span{Start: p.cursor, End: end},
		Events: append([]subtitles.Event(nil), events...),
		Cut:    reason,
	})
	p.cursor = end
}

// emitSilence covers [cursor, end) with dialogue-free chunks of at most
// Target each, split evenly.
func (p *planner) emitSilence(end time.Duration) {
	total := end - p.cursor
	if total <= 0 {
		return
	}
	pieces := int((total + p.opts.Target - 1) / p.opts.Target)
	start := p.cursor
	for k := 1; k <= pieces; k++ {
		stop := end
		if k < pieces {
			stop = (start + time.Duration(int64(total)*int64(k)/int64(pieces))).Round(time.Millisecond)
		}
		p.emit(stop, nil, CutSilence)
	}
}
