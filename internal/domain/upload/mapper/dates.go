package mapper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Spreadsheet serial day zero. Day 25569 is 1970-01-01.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var (
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}($|T)`)
	dmyPattern     = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
)

// Fallback layouts for free-form date text. Tried in order.
var genericLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006/01/02",
	"2006/1/2",
}

// NormalizeDate converts a raw cell value to a calendar date. It accepts, in
// order: ISO dates (time part truncated), spreadsheet serial day numbers,
// explicit DD/MM/YYYY or DD-MM-YYYY, and finally free-form date text. The
// DD/MM pattern must run before the generic fallback so that ambiguous
// slash dates are read day-first. Unparseable values become nil.
func NormalizeDate(value string) *time.Time {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil
	}

	if isoDatePattern.MatchString(s) {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return &t
		}
		return nil
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if n <= 0 {
			return nil
		}
		t := serialEpoch.Add(time.Duration(n * float64(24*time.Hour))).Truncate(24 * time.Hour)
		return &t
	}

	if m := dmyPattern.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return nil
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Day() != day || t.Month() != time.Month(month) {
			// Rolled over, e.g. 31/02
			return nil
		}
		return &t
	}

	for _, layout := range genericLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	return nil
}
