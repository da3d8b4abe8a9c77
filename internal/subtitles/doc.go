// Package subtitles reads dialogue context from extracted subtitle tracks and
// writes the generated Japanese subtitles.
//
// ASS scripts are filtered down to spoken English dialogue: song, sign, and
// credit styles are dropped along with positioned typesetting, drawing-mode
// vectors, and lines that are not mostly English. Events are then sorted and
// their overlaps resolved so the segmenter sees a clean timeline. Output is
// SubRip.
package subtitles
