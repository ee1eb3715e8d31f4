// Package expiry normalizes the expiration strings banks attach to offers
// into plain YYYY-MM-DD dates.
package expiry

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Layouts the banks have been observed to use, tried in order. Slash dates
// are deliberately absent; those go through the regex fallback so that
// 2-digit years land in the 2000s.
var nativeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dateLayout,
	"January 2, 2006",
	"Jan 2, 2006",
	"02 Jan 2006",
}

var slashDate = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{2,4})`)

// Normalize converts a raw expiry string to YYYY-MM-DD. It strips a leading
// "Expires " prefix (any case), tries the known date layouts, and falls back
// to interpreting M/D/Y slash dates with 2-digit years assumed to be 20YY.
// Unparseable input yields "", which stores as a null expiry.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if len(s) >= 8 && strings.EqualFold(s[:8], "expires ") {
		s = strings.TrimSpace(s[8:])
	}

	for _, layout := range nativeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.In(time.Local).Format(dateLayout)
		}
	}

	m := slashDate.FindStringSubmatch(s)
	if m == nil {
		return ""
	}

	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return ""
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local).Format(dateLayout)
}

// Cutoff returns now's calendar date in the stored format. Rows whose
// expiry sorts before this string are expired; today's date itself still
// counts.
func Cutoff(now time.Time) string {
	return now.Format(dateLayout)
}

// expired reports whether a normalized expiry date is strictly before now's
// calendar date. Empty (null) expiries never expire.
func expired(normalized string, now time.Time) bool {
	if normalized == "" {
		return false
	}
	return normalized < Cutoff(now)
}
