package types

import (
	"fmt"
	"time"
)

// Day truncates t to the start of its UTC calendar day.
func Day(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall in the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// DaysIn returns the number of days of the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Window is a half-open time interval (Begin, End]. Observations carry the
// end of their archive interval as timestamp, so a sample stamped exactly at
// Begin belongs to the previous window.
type Window struct {
	Begin time.Time
	End   time.Time
}

// Contains reports whether t lies in (Begin, End].
func (w Window) Contains(t time.Time) bool {
	return t.After(w.Begin) && !t.After(w.End)
}

// WindowKind names one of the three meteorological days.
type WindowKind int

const (
	// Midnight is the 0h→0h UTC window.
	Midnight WindowKind = iota
	// Morning is the 6h→6h UTC window, used for maxima and rainfall.
	Morning
	// Evening is the 18h→18h UTC window ending on the day, used for minima.
	Evening
)

func (k WindowKind) String() string {
	switch k {
	case Morning:
		return "6h-6h"
	case Evening:
		return "18h-18h"
	default:
		return "0h-0h"
	}
}

// MeteoWindow returns the window of kind k attached to calendar day day.
func MeteoWindow(day time.Time, k WindowKind) Window {
	d := Day(day)
	switch k {
	case Morning:
		return Window{Begin: d.Add(6 * time.Hour), End: d.Add(30 * time.Hour)}
	case Evening:
		return Window{Begin: d.Add(-6 * time.Hour), End: d.Add(18 * time.Hour)}
	default:
		return Window{Begin: d, End: d.Add(24 * time.Hour)}
	}
}

// AggregationSpan covers all three windows of day: [D-06:00, D+30:00].
func AggregationSpan(day time.Time) Window {
	d := Day(day)
	return Window{Begin: d.Add(-6 * time.Hour), End: d.Add(30 * time.Hour)}
}

// TimestampResolution is the precision of stored observation timestamps.
const TimestampResolution = time.Millisecond

// PartitionBounds returns the (start, end] range holding exactly the
// observations stored under day, whose partition covers [00:00, next 00:00).
func PartitionBounds(day time.Time) (time.Time, time.Time) {
	d := Day(day)
	return d.Add(-TimestampResolution), d.AddDate(0, 0, 1).Add(-TimestampResolution)
}

// ValidateDeleteRange checks that (start, end] is non-empty and inside the
// partition of day. An end at the next midnight is rejected: that sample
// belongs to the next day.
func ValidateDeleteRange(day, start, end time.Time) error {
	lo, hi := PartitionBounds(day)
	if start.Before(lo) || end.After(hi) || !start.Before(end) {
		return fmt.Errorf("%w: (%s, %s] is not inside %s", ErrRangeSpansDays,
			start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano), Day(day).Format(time.DateOnly))
	}
	return nil
}

// DayRange is the part of a deletion range falling in one day's partition.
type DayRange struct {
	Day   time.Time
	Start time.Time
	End   time.Time
}

// SplitByDay chops (start, end] into per-day ranges that each pass
// ValidateDeleteRange and together cover the whole range.
func SplitByDay(start, end time.Time) []DayRange {
	if !start.Before(end) {
		return nil
	}
	var out []DayRange
	last := Day(end)
	for d := Day(start.Add(TimestampResolution)); !d.After(last); d = d.AddDate(0, 0, 1) {
		lo, hi := PartitionBounds(d)
		r := DayRange{Day: d, Start: start, End: end}
		if r.Start.Before(lo) {
			r.Start = lo
		}
		if r.End.After(hi) {
			r.End = hi
		}
		if r.Start.Before(r.End) {
			out = append(out, r)
		}
	}
	return out
}
