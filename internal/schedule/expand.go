package schedule

import "time"

// SubGranularityMinutes is the step between generated slot starts. A
// template produces a slot at every aligned start that still fits the
// full duration, so a visitor can pick any quarter-hour start inside
// the declared window, not just back-to-back blocks.
const SubGranularityMinutes = 15

// BusyFunc reports whether the staff member already has an appointment
// overlapping the given window on the given date.
type BusyFunc func(d Date, iv Interval) bool

// ExpandDay generates the bookable windows for one day. The cursor
// starts at start rounded up to the next quarter hour and advances by
// SubGranularityMinutes while a full duration still fits before end.
// Windows colliding with an existing appointment are skipped.
func ExpandDay(d Date, start, end TimeOfDay, durationMinutes int, busy BusyFunc) []Interval {
	cur := alignUp(start)

	var out []Interval
	for cur.Add(durationMinutes) <= end {
		iv := NewInterval(cur, durationMinutes)
		if busy == nil || !busy(d, iv) {
			out = append(out, iv)
		}
		cur = cur.Add(SubGranularityMinutes)
	}

	return out
}

// MonthDates enumerates every date in (year, month) falling on the
// given weekday, skipping dates before from. The walk mirrors a
// month-calendar grid: first matching day, then week steps.
func MonthDates(year int, month time.Month, weekday time.Weekday, from Date) []Date {
	first := Date{Year: year, Month: month, Day: 1}

	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	d := first.AddDays(offset)

	var out []Date
	for d.Month == month {
		if !d.Before(from) {
			out = append(out, d)
		}
		d = d.AddDays(7)
	}

	return out
}

func alignUp(t TimeOfDay) TimeOfDay {
	if rem := int(t) % SubGranularityMinutes; rem != 0 {
		return t.Add(SubGranularityMinutes - rem)
	}
	return t
}
