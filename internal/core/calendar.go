package core

import (
	"fmt"
	"time"
)

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Advance returns the occurrence that follows next for a rule with the given
// frequency and interval. Month and year steps land on the anchor's
// day-of-month, clamped to the length of the target month, so a rule started
// on Jan 31 runs on Feb 28 (or 29) and then again on Mar 31. The clock time
// and location of next are kept.
func Advance(next, anchor time.Time, freq Frequency, interval int) (time.Time, error) {
	if interval < 1 {
		return time.Time{}, Invalidf("interval must be at least 1")
	}
	switch freq {
	case Daily:
		return next.AddDate(0, 0, interval), nil
	case Weekly:
		return next.AddDate(0, 0, 7*interval), nil
	case Monthly:
		return addMonths(next, anchor.Day(), interval), nil
	case Yearly:
		return addMonths(next, anchor.Day(), 12*interval), nil
	}
	return time.Time{}, fmt.Errorf("%w: unknown frequency %q", ErrValidation, freq)
}

func addMonths(t time.Time, day, months int) time.Time {
	// zero-based month index avoids normalization surprises in time.Date
	idx := int(t.Month()) - 1 + months
	year := t.Year() + idx/12
	idx %= 12
	if idx < 0 {
		idx += 12
		year--
	}
	month := time.Month(idx + 1)
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// CountDue returns how many occurrences starting at next fall on or before
// now, stopping once limit+1 have been counted.
func CountDue(next, anchor, now time.Time, freq Frequency, interval, limit int) (int, error) {
	n := 0
	for !next.After(now) {
		n++
		if n > limit {
			break
		}
		var err error
		if next, err = Advance(next, anchor, freq, interval); err != nil {
			return n, err
		}
	}
	return n, nil
}

// MonthBounds returns the first and last instant of a calendar month in UTC.
func MonthBounds(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}

// EndOfDay returns the last second of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
