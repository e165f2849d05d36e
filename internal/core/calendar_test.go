package core

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name     string
		next     time.Time
		anchor   time.Time
		freq     Frequency
		interval int
		want     time.Time
	}{
		{"daily", date(2025, 1, 31), date(2025, 1, 1), Daily, 1, date(2025, 2, 1)},
		{"every 3 days", date(2025, 2, 27), date(2025, 2, 27), Daily, 3, date(2025, 3, 2)},
		{"weekly", date(2025, 12, 29), date(2025, 12, 29), Weekly, 1, date(2026, 1, 5)},
		{"biweekly", date(2025, 1, 1), date(2025, 1, 1), Weekly, 2, date(2025, 1, 15)},
		{"monthly", date(2025, 1, 1), date(2025, 1, 1), Monthly, 1, date(2025, 2, 1)},
		{"monthly clamps to february", date(2025, 1, 31), date(2025, 1, 31), Monthly, 1, date(2025, 2, 28)},
		{"monthly clamps to leap february", date(2024, 1, 31), date(2024, 1, 31), Monthly, 1, date(2024, 2, 29)},
		{"monthly returns to anchor day", date(2025, 2, 28), date(2025, 1, 31), Monthly, 1, date(2025, 3, 31)},
		{"monthly clamps to 30 day month", date(2025, 3, 31), date(2025, 1, 31), Monthly, 1, date(2025, 4, 30)},
		{"quarterly across year", date(2025, 11, 15), date(2025, 5, 15), Monthly, 3, date(2026, 2, 15)},
		{"every 14 months", date(2025, 12, 31), date(2025, 12, 31), Monthly, 14, date(2027, 2, 28)},
		{"yearly", date(2025, 6, 1), date(2025, 6, 1), Yearly, 1, date(2026, 6, 1)},
		{"yearly leap day", date(2024, 2, 29), date(2024, 2, 29), Yearly, 1, date(2025, 2, 28)},
		{"yearly leap day returns", date(2027, 2, 28), date(2024, 2, 29), Yearly, 1, date(2028, 2, 29)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Advance(tt.next, tt.anchor, tt.freq, tt.interval)
			if err != nil {
				t.Fatalf("Advance() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("Advance() = %s, want %s", got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

func TestAdvanceKeepsClock(t *testing.T) {
	next := time.Date(2025, 1, 31, 9, 30, 0, 0, time.UTC)
	got, err := Advance(next, next, Monthly, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 2, 28, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestAdvanceRejectsBadInput(t *testing.T) {
	if _, err := Advance(date(2025, 1, 1), date(2025, 1, 1), Monthly, 0); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	if _, err := Advance(date(2025, 1, 1), date(2025, 1, 1), "hourly", 1); err == nil {
		t.Fatalf("expected error for unknown frequency")
	}
}

func TestCountDue(t *testing.T) {
	start := date(2025, 1, 1)
	n, err := CountDue(start, start, date(2025, 4, 1), Monthly, 1, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("CountDue = %d, want 4", n)
	}

	n, err = CountDue(date(2025, 5, 1), start, date(2025, 4, 1), Monthly, 1, 1000)
	if err != nil || n != 0 {
		t.Fatalf("future rule: n=%d err=%v", n, err)
	}

	n, err = CountDue(date(2000, 1, 1), date(2000, 1, 1), date(2025, 1, 1), Daily, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 11 {
		t.Fatalf("CountDue should stop at limit+1, got %d", n)
	}
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(2024, 2)
	if !start.Equal(date(2024, 2, 1)) {
		t.Fatalf("start = %v", start)
	}
	if want := time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("end = %v, want %v", end, want)
	}
	_, end = MonthBounds(2025, 12)
	if want := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("december end = %v", end)
	}
}
