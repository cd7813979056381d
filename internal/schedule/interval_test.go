package schedule

import "testing"

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q): %v", s, err)
	}
	return tod
}

func iv(t *testing.T, start, end string) Interval {
	t.Helper()
	return Interval{Start: mustTime(t, start), End: mustTime(t, end)}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"identical", iv(t, "09:00", "09:30"), iv(t, "09:00", "09:30"), true},
		{"interior intersection", iv(t, "09:00", "09:30"), iv(t, "09:15", "09:45"), true},
		{"containment", iv(t, "09:00", "10:00"), iv(t, "09:15", "09:30"), true},
		{"touching at end", iv(t, "09:00", "09:30"), iv(t, "09:30", "10:00"), false},
		{"touching at start", iv(t, "09:30", "10:00"), iv(t, "09:00", "09:30"), false},
		{"disjoint", iv(t, "08:00", "08:30"), iv(t, "12:00", "12:30"), false},
		{"one minute shared", iv(t, "09:00", "09:31"), iv(t, "09:30", "10:00"), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.a, tc.b); got != tc.want {
				t.Errorf("Overlaps(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			// symmetry
			if got := Overlaps(tc.b, tc.a); got != tc.want {
				t.Errorf("Overlaps(%s, %s) = %v, want %v (not symmetric)", tc.b, tc.a, got, tc.want)
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("09:45:00")
	if err != nil {
		t.Fatalf("ParseTimeOfDay with seconds: %v", err)
	}
	if got.String() != "09:45" {
		t.Errorf("String() = %q, want 09:45", got.String())
	}

	if _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Error("expected error for 25:00")
	}
}

func TestIntervalMinutes(t *testing.T) {
	if got := iv(t, "09:00", "09:30").Minutes(); got != 30 {
		t.Errorf("Minutes() = %d, want 30", got)
	}
}
