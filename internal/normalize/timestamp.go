package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kunalmkv/ringbav2-sub000/internal/model"
)

// The ledgers emit several date shapes. Every layout is tried against the
// input after zone tokens and fractional seconds are stripped; the wall-clock
// numbers are preserved exactly as received.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"01/02/2006 03:04:05 PM",
	"01/02/2006 3:04:05 PM",
	"01/02/2006 03:04 PM",
	"01/02/2006 3:04 PM",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"2006-01-02",
	"01/02/2006",
}

var (
	// Trailing numeric zone designators: "Z", "+05:00", "-0800". Recognized
	// for shape matching only; never applied.
	trailingOffsetRe = regexp.MustCompile(`(?:Z|[+-]\d{2}:?\d{2})$`)
	// Trailing zone abbreviation like "EST" or "EDT". AM/PM is excluded so
	// 12-hour shapes survive the strip.
	trailingAbbrevRe = regexp.MustCompile(`\s+(?i:(?:[A-Za-z]{3,4}))$`)
	meridiemRe       = regexp.MustCompile(`(?i:\s(?:AM|PM))$`)
	fracSecondsRe    = regexp.MustCompile(`\.\d+`)
	twoDigitYearRe   = regexp.MustCompile(`^(\d{1,2}/\d{1,2}/)(\d{2})($|[^\d])`)
)

// Timestamp parses one of the known ledger date shapes and returns the
// canonical zone-less wall-clock string, or "" when the input is
// unparseable. Callers must exclude ""-timestamp records from matching
// rather than defaulting them.
func Timestamp(raw string) string {
	s := trailingOffsetRe.ReplaceAllString(strings.TrimSpace(raw), "")
	if !meridiemRe.MatchString(s) {
		s = trailingAbbrevRe.ReplaceAllString(s, "")
	}
	s = fracSecondsRe.ReplaceAllString(s, "")
	if s == "" {
		return ""
	}

	// Two-digit years resolve to 2000+Y for Y <= 50, else 1900+Y.
	if m := twoDigitYearRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[2])
		if y <= 50 {
			y += 2000
		} else {
			y += 1900
		}
		s = m[1] + strconv.Itoa(y) + s[len(m[1])+2:]
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(model.CanonicalTimeLayout)
		}
	}
	return ""
}

// EasternFromUTC converts a UTC instant into the shared local (US Eastern)
// wall-clock convention using the rule-based DST window: second Sunday of
// March through first Sunday of November, transitioning at 2 AM local.
// The result is zone-less like every other timestamp in the pipeline.
func EasternFromUTC(t time.Time) time.Time {
	t = t.UTC()
	year := t.Year()

	// 2 AM EST = 07:00 UTC on the spring-forward day; 2 AM EDT = 06:00 UTC
	// on the fall-back day.
	dstStart := time.Date(year, time.March, nthSundayOfMonth(year, time.March, 2), 7, 0, 0, 0, time.UTC)
	dstEnd := time.Date(year, time.November, nthSundayOfMonth(year, time.November, 1), 6, 0, 0, 0, time.UTC)

	offset := -5 * time.Hour
	if !t.Before(dstStart) && t.Before(dstEnd) {
		offset = -4 * time.Hour
	}
	return t.Add(offset)
}

// nthSundayOfMonth returns the day-of-month of the nth Sunday.
func nthSundayOfMonth(year int, month time.Month, n int) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysUntilSunday := (7 - int(first.Weekday())) % 7
	return 1 + daysUntilSunday + (n-1)*7
}
