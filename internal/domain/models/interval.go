package models

import (
	"fmt"
	"strings"
	"time"
)

// TimeInterval represents a candle granularity.
type TimeInterval int

const (
	IntervalUnspecified TimeInterval = iota
	IntervalSec
	IntervalMinute
	IntervalMin5
	IntervalMin15
	IntervalMin30
	IntervalHour
	IntervalHour4
	IntervalHour6
	IntervalHour12
	IntervalDay
	IntervalWeek
	IntervalMonth
)

// StoredIntervals is the subset of granularities that are physically cached
// and persisted. Every other granularity is synthesized by aggregating its
// nearest stored interval.
var StoredIntervals = []TimeInterval{
	IntervalSec,
	IntervalMinute,
	IntervalMin30,
	IntervalHour,
	IntervalDay,
	IntervalWeek,
	IntervalMonth,
}

var intervalNames = map[TimeInterval]string{
	IntervalUnspecified: "Unspecified",
	IntervalSec:         "Sec",
	IntervalMinute:      "Minute",
	IntervalMin5:        "Min5",
	IntervalMin15:       "Min15",
	IntervalMin30:       "Min30",
	IntervalHour:        "Hour",
	IntervalHour4:       "Hour4",
	IntervalHour6:       "Hour6",
	IntervalHour12:      "Hour12",
	IntervalDay:         "Day",
	IntervalWeek:        "Week",
	IntervalMonth:       "Month",
}

func (i TimeInterval) String() string {
	if name, ok := intervalNames[i]; ok {
		return name
	}
	return fmt.Sprintf("TimeInterval(%d)", int(i))
}

// ParseTimeInterval converts a name like "Minute" or "Hour4" to its
// interval. Matching is case-insensitive; unknown names map to
// IntervalUnspecified.
func ParseTimeInterval(s string) TimeInterval {
	for iv, name := range intervalNames {
		if strings.EqualFold(name, s) {
			return iv
		}
	}
	return IntervalUnspecified
}

// MarshalText implements encoding.TextMarshaler.
func (i TimeInterval) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *TimeInterval) UnmarshalText(b []byte) error {
	*i = ParseTimeInterval(string(b))
	return nil
}

// IsStored reports whether the interval is one of the stored intervals.
func (i TimeInterval) IsStored() bool {
	for _, s := range StoredIntervals {
		if s == i {
			return true
		}
	}
	return false
}

// NearestStoredInterval maps any interval to the largest stored interval
// whose duration does not exceed it. Stored intervals map to themselves.
// The mapping is total over valid intervals; Unspecified maps to itself.
func NearestStoredInterval(i TimeInterval) TimeInterval {
	switch i {
	case IntervalSec:
		return IntervalSec
	case IntervalMinute, IntervalMin5, IntervalMin15:
		return IntervalMinute
	case IntervalMin30:
		return IntervalMin30
	case IntervalHour, IntervalHour4, IntervalHour6, IntervalHour12:
		return IntervalHour
	case IntervalDay:
		return IntervalDay
	case IntervalWeek:
		return IntervalWeek
	case IntervalMonth:
		return IntervalMonth
	default:
		return IntervalUnspecified
	}
}

// Fixed-duration intervals expressed in seconds. Month is calendar-based and
// handled separately everywhere this table is consulted.
var intervalSeconds = map[TimeInterval]int64{
	IntervalSec:    1,
	IntervalMinute: 60,
	IntervalMin5:   5 * 60,
	IntervalMin15:  15 * 60,
	IntervalMin30:  30 * 60,
	IntervalHour:   3600,
	IntervalHour4:  4 * 3600,
	IntervalHour6:  6 * 3600,
	IntervalHour12: 12 * 3600,
	IntervalDay:    24 * 3600,
	IntervalWeek:   7 * 24 * 3600,
}

// 1969-12-29 is the Monday of the ISO week containing the Unix epoch.
// Week indexes are counted from it so that week boundaries land on Mondays.
const weekEpochOffset int64 = 3 * 24 * 3600

func intervalEpochOffset(i TimeInterval) int64 {
	if i == IntervalWeek {
		return weekEpochOffset
	}
	return 0
}

// AlignDown truncates t to the start of the bucket containing it for the
// given interval. All arithmetic is in UTC.
func AlignDown(t time.Time, i TimeInterval) time.Time {
	t = t.UTC()
	switch i {
	case IntervalDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case IntervalWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		back := (int(day.Weekday()) + 6) % 7 // Monday start
		return day.AddDate(0, 0, -back)
	case IntervalMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		secs, ok := intervalSeconds[i]
		if !ok {
			return t
		}
		u := t.Unix() + intervalEpochOffset(i)
		u -= floorMod(u, secs)
		return time.Unix(u-intervalEpochOffset(i), 0).UTC()
	}
}

// IntervalIndex returns the number of whole interval units between the Unix
// epoch (Monday-aligned for weeks, calendar months for Month) and t. It
// fails with ErrInvalidAlignment when t is not exactly on an interval
// boundary.
func IntervalIndex(t time.Time, i TimeInterval) (int64, error) {
	t = t.UTC()
	if i == IntervalMonth {
		if !t.Equal(AlignDown(t, IntervalMonth)) {
			return 0, fmt.Errorf("%v is not aligned to %s: %w", t, i, ErrInvalidAlignment)
		}
		return int64(t.Year()-1970)*12 + int64(t.Month()-1), nil
	}
	secs, ok := intervalSeconds[i]
	if !ok {
		return 0, fmt.Errorf("interval %s has no unit duration: %w", i, ErrInvalidAlignment)
	}
	u := t.Unix() + intervalEpochOffset(i)
	if floorMod(u, secs) != 0 || t.Nanosecond() != 0 {
		return 0, fmt.Errorf("%v is not aligned to %s: %w", t, i, ErrInvalidAlignment)
	}
	return floorDiv(u, secs), nil
}

// IndexToTime is the inverse of IntervalIndex.
func IndexToTime(index int64, i TimeInterval) time.Time {
	if i == IntervalMonth {
		year := 1970 + floorDiv(index, 12)
		month := floorMod(index, 12) + 1
		return time.Date(int(year), time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	}
	secs := intervalSeconds[i]
	return time.Unix(index*secs-intervalEpochOffset(i), 0).UTC()
}

// TickOffset returns the integer number of whole interval units between
// bucketStart and t. Both instants must be aligned to the interval.
func TickOffset(t, bucketStart time.Time, i TimeInterval) (int, error) {
	ti, err := IntervalIndex(t, i)
	if err != nil {
		return 0, err
	}
	bi, err := IntervalIndex(bucketStart, i)
	if err != nil {
		return 0, err
	}
	return int(ti - bi), nil
}

// AddTicks returns bucketStart advanced by tick interval units.
func AddTicks(bucketStart time.Time, tick int, i TimeInterval) (time.Time, error) {
	bi, err := IntervalIndex(bucketStart, i)
	if err != nil {
		return time.Time{}, err
	}
	return IndexToTime(bi+int64(tick), i), nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}
