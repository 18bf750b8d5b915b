package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeIntervalCaseInsensitive(t *testing.T) {
	cases := map[string]TimeInterval{
		"Sec":    IntervalSec,
		"minute": IntervalMinute,
		"MIN30":  IntervalMin30,
		"hour4":  IntervalHour4,
		"Month":  IntervalMonth,
		"bogus":  IntervalUnspecified,
		"":       IntervalUnspecified,
	}
	for s, want := range cases {
		if got := ParseTimeInterval(s); got != want {
			t.Fatalf("ParseTimeInterval(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestNearestStoredInterval(t *testing.T) {
	cases := map[TimeInterval]TimeInterval{
		IntervalSec:    IntervalSec,
		IntervalMinute: IntervalMinute,
		IntervalMin5:   IntervalMinute,
		IntervalMin15:  IntervalMinute,
		IntervalMin30:  IntervalMin30,
		IntervalHour:   IntervalHour,
		IntervalHour4:  IntervalHour,
		IntervalHour6:  IntervalHour,
		IntervalHour12: IntervalHour,
		IntervalDay:    IntervalDay,
		IntervalWeek:   IntervalWeek,
		IntervalMonth:  IntervalMonth,
	}
	for in, want := range cases {
		if got := NearestStoredInterval(in); got != want {
			t.Fatalf("NearestStoredInterval(%s) = %s, want %s", in, got, want)
		}
	}
	for _, s := range StoredIntervals {
		if NearestStoredInterval(s) != s {
			t.Fatalf("stored interval %s must map to itself", s)
		}
	}
}

func TestAlignDownFixedIntervals(t *testing.T) {
	ts := time.Date(2024, 3, 15, 17, 43, 27, 0, time.UTC)
	cases := map[TimeInterval]time.Time{
		IntervalSec:    time.Date(2024, 3, 15, 17, 43, 27, 0, time.UTC),
		IntervalMinute: time.Date(2024, 3, 15, 17, 43, 0, 0, time.UTC),
		IntervalMin5:   time.Date(2024, 3, 15, 17, 40, 0, 0, time.UTC),
		IntervalMin15:  time.Date(2024, 3, 15, 17, 30, 0, 0, time.UTC),
		IntervalMin30:  time.Date(2024, 3, 15, 17, 30, 0, 0, time.UTC),
		IntervalHour:   time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC),
		IntervalHour4:  time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC),
		IntervalHour6:  time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
		IntervalHour12: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
		IntervalDay:    time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}
	for iv, want := range cases {
		if got := AlignDown(ts, iv); !got.Equal(want) {
			t.Fatalf("AlignDown(%v, %s) = %v, want %v", ts, iv, got, want)
		}
	}
}

func TestAlignDownWeekStartsMonday(t *testing.T) {
	// 2024-03-15 is a Friday; its week starts Monday 2024-03-11.
	ts := time.Date(2024, 3, 15, 17, 43, 27, 0, time.UTC)
	want := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	if got := AlignDown(ts, IntervalWeek); !got.Equal(want) {
		t.Fatalf("AlignDown week = %v, want %v", got, want)
	}
	// A Monday must align to itself.
	mon := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	if got := AlignDown(mon, IntervalWeek); !got.Equal(mon) {
		t.Fatalf("Monday aligned to %v, want itself", got)
	}
	// A Sunday belongs to the week of the previous Monday.
	sun := time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)
	wantSun := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if got := AlignDown(sun, IntervalWeek); !got.Equal(wantSun) {
		t.Fatalf("Sunday aligned to %v, want %v", got, wantSun)
	}
}

func TestAlignDownMonth(t *testing.T) {
	ts := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)
	want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if got := AlignDown(ts, IntervalMonth); !got.Equal(want) {
		t.Fatalf("AlignDown month = %v, want %v", got, want)
	}
}

func TestAlignDownIdempotent(t *testing.T) {
	ts := time.Date(2023, 11, 7, 9, 18, 44, 0, time.UTC)
	for _, iv := range StoredIntervals {
		once := AlignDown(ts, iv)
		if twice := AlignDown(once, iv); !twice.Equal(once) {
			t.Fatalf("AlignDown(%s) is not idempotent: %v -> %v", iv, once, twice)
		}
	}
}

func TestIntervalIndexRoundTrip(t *testing.T) {
	ts := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC) // a Monday
	for _, iv := range StoredIntervals {
		aligned := AlignDown(ts, iv)
		idx, err := IntervalIndex(aligned, iv)
		if err != nil {
			t.Fatalf("IntervalIndex(%v, %s): %v", aligned, iv, err)
		}
		if got := IndexToTime(idx, iv); !got.Equal(aligned) {
			t.Fatalf("IndexToTime(IntervalIndex) for %s: %v, want %v", iv, got, aligned)
		}
	}
}

func TestIntervalIndexMisaligned(t *testing.T) {
	ts := time.Date(2024, 6, 3, 10, 15, 30, 0, time.UTC)
	for _, iv := range []TimeInterval{IntervalMinute, IntervalHour, IntervalDay, IntervalWeek, IntervalMonth} {
		if _, err := IntervalIndex(ts, iv); !errors.Is(err, ErrInvalidAlignment) {
			t.Fatalf("IntervalIndex(%v, %s) err = %v, want ErrInvalidAlignment", ts, iv, err)
		}
	}
}

func TestIntervalIndexMonth(t *testing.T) {
	jan1970 := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	idx, err := IntervalIndex(jan1970, IntervalMonth)
	if err != nil {
		t.Fatalf("IntervalIndex: %v", err)
	}
	if idx != 0 {
		t.Fatalf("index of 1970-01 = %d, want 0", idx)
	}
	mar2024 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	idx, err = IntervalIndex(mar2024, IntervalMonth)
	if err != nil {
		t.Fatalf("IntervalIndex: %v", err)
	}
	want := int64(2024-1970)*12 + 2
	if idx != want {
		t.Fatalf("index of 2024-03 = %d, want %d", idx, want)
	}
	if got := IndexToTime(idx, IntervalMonth); !got.Equal(mar2024) {
		t.Fatalf("IndexToTime(%d) = %v, want %v", idx, got, mar2024)
	}
}

func TestIntervalIndexWeekPreEpoch(t *testing.T) {
	// The Monday before the epoch week must get index -1, not 0.
	mon := time.Date(1969, 12, 22, 0, 0, 0, 0, time.UTC)
	idx, err := IntervalIndex(mon, IntervalWeek)
	if err != nil {
		t.Fatalf("IntervalIndex: %v", err)
	}
	if idx != -1 {
		t.Fatalf("index = %d, want -1", idx)
	}
}

func TestTickOffsetAndAddTicks(t *testing.T) {
	bucket := time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC)
	ts := time.Date(2024, 3, 15, 17, 42, 0, 0, time.UTC)
	off, err := TickOffset(ts, bucket, IntervalMinute)
	if err != nil {
		t.Fatalf("TickOffset: %v", err)
	}
	if off != 42 {
		t.Fatalf("offset = %d, want 42", off)
	}
	back, err := AddTicks(bucket, off, IntervalMinute)
	if err != nil {
		t.Fatalf("AddTicks: %v", err)
	}
	if !back.Equal(ts) {
		t.Fatalf("AddTicks = %v, want %v", back, ts)
	}
}

func TestAddTicksMonth(t *testing.T) {
	bucket := time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)
	got, err := AddTicks(bucket, 3, IntervalMonth)
	if err != nil {
		t.Fatalf("AddTicks: %v", err)
	}
	want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("AddTicks month = %v, want %v", got, want)
	}
}
