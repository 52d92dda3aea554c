// Package search matches reminders against a free-text query and splits text
// into highlighted runs for display.
package search

import (
	"strings"
	"unicode/utf8"

	"github.com/benvon/smart-reminders/internal/models"
)

// Segment is a run of text that either matched the query or did not
type Segment struct {
	Text  string `json:"text"`
	Match bool   `json:"match"`
}

// Normalize trims and lower-cases a query
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Matches reports whether the query occurs in the reminder's title,
// description or any slot description. An empty query matches everything.
func Matches(r *models.Reminder, query string) bool {
	q := Normalize(query)
	if q == "" {
		return true
	}
	if r == nil {
		return false
	}
	if contains(r.Title, q) || contains(r.Description, q) {
		return true
	}
	for _, s := range r.TimeSlots {
		if s.Description != nil && contains(*s.Description, q) {
			return true
		}
	}
	return false
}

// Filter returns the reminders matching query, preserving order
func Filter(reminders []*models.Reminder, query string) []*models.Reminder {
	if Normalize(query) == "" {
		return reminders
	}
	out := make([]*models.Reminder, 0, len(reminders))
	for _, r := range reminders {
		if Matches(r, query) {
			out = append(out, r)
		}
	}
	return out
}

// contains uses the same folding as Highlight so every filtered row has a match to mark
func contains(text, q string) bool {
	return indexFold([]rune(text), []rune(q)) >= 0
}

// Highlight splits text into alternating unmatched and matched segments for
// every non-overlapping, case-insensitive occurrence of query. Matched
// segments keep the original casing. An empty query yields one unmatched
// segment; empty text yields none.
func Highlight(text, query string) []Segment {
	if text == "" {
		return nil
	}
	q := []rune(Normalize(query))
	if len(q) == 0 {
		return []Segment{{Text: text}}
	}

	runes := []rune(text)
	var segments []Segment
	start := 0
	for i := 0; i+len(q) <= len(runes); {
		if !equalFold(runes[i:i+len(q)], q) {
			i++
			continue
		}
		if i > start {
			segments = append(segments, Segment{Text: string(runes[start:i])})
		}
		segments = append(segments, Segment{Text: string(runes[i : i+len(q)]), Match: true})
		i += len(q)
		start = i
	}
	if start < len(runes) {
		segments = append(segments, Segment{Text: string(runes[start:])})
	}
	return segments
}

func equalFold(a, b []rune) bool {
	return strings.EqualFold(string(a), string(b))
}

// MatchCount returns the number of highlighted runs in text
func MatchCount(text, query string) int {
	n := 0
	for _, s := range Highlight(text, query) {
		if s.Match {
			n++
		}
	}
	return n
}

// Excerpt shortens text to at most maxRunes runes centred on the first match.
func Excerpt(text, query string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	q := []rune(Normalize(query))
	first := indexFold(runes, q)
	if first < 0 {
		return string(runes[:maxRunes]) + "…"
	}
	start := first - (maxRunes-len(q))/2
	if start < 0 {
		start = 0
	}
	end := start + maxRunes
	if end > len(runes) {
		end = len(runes)
		start = end - maxRunes
	}
	out := string(runes[start:end])
	if start > 0 {
		out = "…" + out
	}
	if end < len(runes) {
		out += "…"
	}
	return out
}

func indexFold(haystack, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if equalFold(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}
