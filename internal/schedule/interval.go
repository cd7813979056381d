package schedule

import "fmt"

// Interval is a half-open time range [Start, End) within a single day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

func NewInterval(start TimeOfDay, durationMinutes int) Interval {
	return Interval{Start: start, End: start.Add(durationMinutes)}
}

func (iv Interval) Minutes() int {
	return int(iv.End - iv.Start)
}

func (iv Interval) String() string {
	return fmt.Sprintf("%s-%s", iv.Start, iv.End)
}

// Overlaps reports whether two half-open intervals share any interior
// point. Intervals that only touch at a boundary (a.End == b.Start or
// b.End == a.Start) do not overlap, so back-to-back bookings are
// allowed. Every slot and appointment overlap check in the service
// goes through this function.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && a.End > b.Start
}

// Contains reports whether the instant t falls inside iv.
func (iv Interval) Contains(t TimeOfDay) bool {
	return t >= iv.Start && t < iv.End
}
