package schedule

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-06-15")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.String() != "2026-06-15" {
		t.Errorf("String() = %q", d.String())
	}
	if d.Weekday() != time.Monday {
		t.Errorf("Weekday() = %v, want Monday", d.Weekday())
	}

	if _, err := ParseDate("15/06/2026"); err == nil {
		t.Error("expected error for non-ISO input")
	}
}

func TestDateArithmetic(t *testing.T) {
	d, _ := ParseDate("2026-06-30")

	next := d.AddDays(1)
	if next.String() != "2026-07-01" {
		t.Errorf("AddDays across month = %s", next)
	}
	if !d.Before(next) || next.Before(d) {
		t.Error("Before is inconsistent with AddDays")
	}
	if !d.Equal(d) {
		t.Error("Equal(self) = false")
	}
}
