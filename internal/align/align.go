// Package align merges word-level timing output with speaker-turn intervals
// from diarization into speaker-grouped transcript segments. Pure functions,
// no I/O.
package align

import (
	"fmt"
	"strings"
)

// UnknownSpeaker is assigned to words whose midpoint falls outside every
// speaker turn.
const UnknownSpeaker = "Unknown"

// Word is one timed token from the transcription provider. Start times are
// monotonic non-decreasing across a word list.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Turn is one diarization interval. Turn lists are non-overlapping and
// sorted by Start.
type Turn struct {
	Start   float64
	End     float64
	Speaker string
}

// Segment is a maximal run of consecutive words attributed to one speaker.
type Segment struct {
	Speaker    string
	Start      float64
	End        float64
	StartLabel string
	Text       string
	Words      []Word
}

// Attribute assigns each word to the speaker of the turn containing its
// midpoint and merges consecutive same-speaker words into segments. Turns
// are consumed with a moving index, so each turn is visited at most once
// regardless of word count. An empty word list yields no segments; an empty
// turn list attributes every word to UnknownSpeaker.
func Attribute(words []Word, turns []Turn) []Segment {
	if len(words) == 0 {
		return nil
	}

	var segments []Segment
	turnIdx := 0

	for _, word := range words {
		mid := (word.Start + word.End) / 2

		// Word starts are non-decreasing, so turns entirely behind the
		// midpoint will never match again.
		for turnIdx < len(turns) && turns[turnIdx].End < mid {
			turnIdx++
		}

		speaker := UnknownSpeaker
		if turnIdx < len(turns) && turns[turnIdx].Start <= mid && mid <= turns[turnIdx].End {
			speaker = turns[turnIdx].Speaker
		}

		if n := len(segments); n > 0 && segments[n-1].Speaker == speaker {
			seg := &segments[n-1]
			seg.End = word.End
			seg.Text += " " + word.Text
			seg.Words = append(seg.Words, word)
			continue
		}

		segments = append(segments, Segment{
			Speaker:    speaker,
			Start:      word.Start,
			End:        word.End,
			StartLabel: FormatTimestamp(word.Start),
			Text:       word.Text,
			Words:      []Word{word},
		})
	}

	return segments
}

// RenameSpeakers returns segments with labels remapped through names.
// Labels absent from the map are kept unchanged, so a partial or empty
// mapping never loses attribution.
func RenameSpeakers(segments []Segment, names map[string]string) []Segment {
	if len(names) == 0 {
		return segments
	}
	out := make([]Segment, len(segments))
	for i, seg := range segments {
		if name, ok := names[seg.Speaker]; ok && strings.TrimSpace(name) != "" {
			seg.Speaker = name
		}
		out[i] = seg
	}
	return out
}

// FormatTimestamp renders seconds as MM:SS, with minutes growing past 59
// for long recordings.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
