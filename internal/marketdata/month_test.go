package marketdata

import "testing"

func TestMonthRangeWithinYear(t *testing.T) {
	got, err := MonthRange("2024-03", "2024-06")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"2024-03", "2024-04", "2024-05", "2024-06"}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: want %s, got %s", i, want[i], got[i])
		}
	}
}

func TestMonthRangeCrossesYearBoundary(t *testing.T) {
	got, err := MonthRange("2023-11", "2024-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"2023-11", "2023-12", "2024-01", "2024-02"}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: want %s, got %s", i, want[i], got[i])
		}
	}
}

func TestMonthRangeSingleMonth(t *testing.T) {
	got, err := MonthRange("2024-06", "2024-06")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "2024-06" {
		t.Fatalf("want [2024-06], got %v", got)
	}
}

func TestMonthRangeInvalidInput(t *testing.T) {
	if _, err := MonthRange("2024-13", "2024-06"); err == nil {
		t.Fatal("expected error for invalid month")
	}
	if _, err := MonthRange("not-a-month", "2024-06"); err == nil {
		t.Fatal("expected error for malformed input")
	}
}

func TestYearMonthNextCarriesYear(t *testing.T) {
	dec := yearMonth{year: 2024, month: 12}
	jan := dec.next()
	if jan.year != 2025 || jan.month != 1 {
		t.Fatalf("want 2025-01, got %04d-%02d", jan.year, jan.month)
	}
}

func TestYearMonthBefore(t *testing.T) {
	a := yearMonth{year: 2024, month: 6}
	b := yearMonth{year: 2024, month: 7}
	if !a.before(b) {
		t.Fatal("expected 2024-06 before 2024-07")
	}
	if b.before(a) {
		t.Fatal("expected 2024-07 not before 2024-06")
	}
	c := yearMonth{year: 2025, month: 1}
	if !b.before(c) {
		t.Fatal("expected 2024-07 before 2025-01")
	}
}
