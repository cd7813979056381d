package schedule

import (
	"testing"
	"time"
)

func TestExpandDayQuarterHourSteps(t *testing.T) {
	d := Date{Year: 2025, Month: time.June, Day: 10}

	got := ExpandDay(d, mustTime(t, "09:00"), mustTime(t, "10:00"), 30, nil)

	want := []string{"09:00-09:30", "09:15-09:45", "09:30-10:00"}
	if len(got) != len(want) {
		t.Fatalf("got %d windows, want %d: %v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].String() != w {
			t.Errorf("window[%d] = %s, want %s", i, got[i], w)
		}
	}
}

func TestExpandDayRoundsUpUnalignedStart(t *testing.T) {
	d := Date{Year: 2025, Month: time.June, Day: 10}

	got := ExpandDay(d, mustTime(t, "09:05"), mustTime(t, "10:00"), 30, nil)

	if len(got) == 0 {
		t.Fatal("expected windows")
	}
	if got[0].Start.String() != "09:15" {
		t.Errorf("first start = %s, want 09:15", got[0].Start)
	}
}

func TestExpandDayNoRoomForDuration(t *testing.T) {
	d := Date{Year: 2025, Month: time.June, Day: 10}

	if got := ExpandDay(d, mustTime(t, "09:00"), mustTime(t, "09:20"), 30, nil); got != nil {
		t.Errorf("expected no windows, got %v", got)
	}
}

func TestExpandDaySkipsBusyWindows(t *testing.T) {
	d := Date{Year: 2025, Month: time.June, Day: 10}
	booked := iv(t, "09:00", "09:30")

	got := ExpandDay(d, mustTime(t, "09:00"), mustTime(t, "10:00"), 30, func(_ Date, w Interval) bool {
		return Overlaps(w, booked)
	})

	// 09:00-09:30 and 09:15-09:45 collide with the booking; 09:30-10:00
	// only touches it.
	if len(got) != 1 {
		t.Fatalf("got %d windows, want 1: %v", len(got), got)
	}
	if got[0].String() != "09:30-10:00" {
		t.Errorf("window = %s, want 09:30-10:00", got[0])
	}
}

func TestExpandDayIdempotentCount(t *testing.T) {
	d := Date{Year: 2025, Month: time.June, Day: 10}

	first := ExpandDay(d, mustTime(t, "08:00"), mustTime(t, "12:00"), 45, nil)
	second := ExpandDay(d, mustTime(t, "08:00"), mustTime(t, "12:00"), 45, nil)

	if len(first) != len(second) {
		t.Errorf("expansion not stable: %d vs %d", len(first), len(second))
	}
}

func TestMonthDates(t *testing.T) {
	// Tuesdays of June 2025: 3, 10, 17, 24.
	from := Date{Year: 2025, Month: time.January, Day: 1}

	got := MonthDates(2025, time.June, time.Tuesday, from)

	wantDays := []int{3, 10, 17, 24}
	if len(got) != len(wantDays) {
		t.Fatalf("got %d dates, want %d: %v", len(got), len(wantDays), got)
	}
	for i, day := range wantDays {
		if got[i].Day != day || got[i].Month != time.June {
			t.Errorf("date[%d] = %s, want 2025-06-%02d", i, got[i], day)
		}
	}
}

func TestMonthDatesExcludesPast(t *testing.T) {
	from := Date{Year: 2025, Month: time.June, Day: 11}

	got := MonthDates(2025, time.June, time.Tuesday, from)

	wantDays := []int{17, 24}
	if len(got) != len(wantDays) {
		t.Fatalf("got %d dates, want %d: %v", len(got), len(wantDays), got)
	}
	for i, day := range wantDays {
		if got[i].Day != day {
			t.Errorf("date[%d] = %s, want day %d", i, got[i], day)
		}
	}
}

func TestDateHelpers(t *testing.T) {
	d, err := ParseDate("2025-06-10")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Weekday() != time.Tuesday {
		t.Errorf("Weekday() = %s, want Tuesday", d.Weekday())
	}
	if d.AddDays(7).Day != 17 {
		t.Errorf("AddDays(7) = %s, want day 17", d.AddDays(7))
	}
	if !d.Before(Date{Year: 2025, Month: time.June, Day: 11}) {
		t.Error("Before reported false for earlier date")
	}

	loc := time.FixedZone("CET", 3600)
	at := d.At(mustTime(t, "09:30"), loc)
	if at.Hour() != 9 || at.Minute() != 30 || at.Location() != loc {
		t.Errorf("At() = %v, want 09:30 in CET", at)
	}
}
