package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Seconds converts fractional seconds into a Duration rounded to the millisecond.
func Seconds(value float64) time.Duration {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return time.Duration(math.Round(value*1000)) * time.Millisecond
}

// ToSeconds converts a Duration to fractional seconds.
func ToSeconds(d time.Duration) float64 {
	return d.Seconds()
}

// Parse reads a clock-style timestamp. It accepts "HH:MM:SS,mmm", "H:MM:SS.cc",
// "MM:SS.mmm", "SS.mmm" and bare seconds; comma and period are both accepted as
// the fractional separator. Components after the first must be below 60.
func Parse(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	if strings.HasPrefix(value, "-") {
		return 0, fmt.Errorf("negative timestamp %q", value)
	}
	value = strings.ReplaceAll(value, ",", ".")
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}

	last := parts[len(parts)-1]
	whole, frac, _ := strings.Cut(last, ".")
	seconds, err := strconv.Atoi(whole)
	if err != nil || whole == "" {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	fraction, err := parseFraction(frac)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if len(parts) > 1 && seconds >= 60 {
		return 0, fmt.Errorf("invalid timestamp %q: seconds out of range", value)
	}

	total := time.Duration(seconds)*time.Second + fraction
	multiplier := time.Minute
	for i := len(parts) - 2; i >= 0; i-- {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		if i > 0 && n >= 60 {
			return 0, fmt.Errorf("invalid timestamp %q: minutes out of range", value)
		}
		total += time.Duration(n) * multiplier
		multiplier *= 60
	}
	return total, nil
}

func parseFraction(frac string) (time.Duration, error) {
	if frac == "" {
		return 0, nil
	}
	if len(frac) > 9 {
		frac = frac[:9]
	}
	n, err := strconv.Atoi(frac)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid fraction %q", frac)
	}
	for i := len(frac); i < 9; i++ {
		n *= 10
	}
	return (time.Duration(n) * time.Nanosecond).Round(time.Millisecond), nil
}

// FormatSRT renders d as an SRT timestamp (HH:MM:SS,mmm). Negative values clamp to zero.
func FormatSRT(d time.Duration) string {
	h, m, s, ms := split(d)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// FormatClock renders d as MM:SS.mmm with minutes allowed to exceed 59. This is
// the form used for chunk-relative offsets exchanged with the backend.
func FormatClock(d time.Duration) string {
	h, m, s, ms := split(d)
	return fmt.Sprintf("%02d:%02d.%03d", h*60+m, s, ms)
}

func split(d time.Duration) (h, m, s, ms int64) {
	if d < 0 {
		d = 0
	}
	total := d.Round(time.Millisecond).Milliseconds()
	ms = total % 1000
	total /= 1000
	s = total % 60
	total /= 60
	m = total % 60
	h = total / 60
	return h, m, s, ms
}
