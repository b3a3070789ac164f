package pipeline

import (
	"math"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// UnknownDaysApart stands in for the distance between articles whose dates
// could not be parsed. It pushes the composite score far below zero without
// dropping the pair.
const UnknownDaysApart = 999

var articleDateLayouts = []string{
	"2 January 2006",
	"02 January 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"2006-01-02",
	time.RFC3339,
}

// ParseArticleDate reads labels such as "13 February 2025". The result is
// truncated to a UTC calendar day.
func ParseArticleDate(raw string) (time.Time, bool) {
	trimmed := strings.Join(strings.Fields(raw), " ")
	if trimmed == "" {
		return time.Time{}, false
	}

	for _, layout := range articleDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return calendarDay(parsed), true
		}
	}

	parsed, err := dateparse.ParseAny(trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return calendarDay(parsed), true
}

// DaysApart returns the whole-day distance between two publication days, or
// UnknownDaysApart when either is missing.
func DaysApart(left, right *time.Time) int {
	if left == nil || right == nil || left.IsZero() || right.IsZero() {
		return UnknownDaysApart
	}
	hours := math.Abs(left.Sub(*right).Hours())
	return int(math.Round(hours / 24))
}

func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
