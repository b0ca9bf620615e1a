package models

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}

func TestRoundToQuarterHour(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"0.1", "0.25"},
		{"0.25", "0.25"},
		{"0.26", "0.5"},
		{"1", "1"},
		{"1.26", "1.5"},
		{"1.5", "1.5"},
		{"2.01", "2.25"},
		{"0", "0"},
		{"-1", "0"},
	}
	for _, tc := range cases {
		got := RoundToQuarterHour(d(t, tc.in))
		if !got.Equal(d(t, tc.expected)) {
			t.Fatalf("RoundToQuarterHour(%s) expected %s, got %s", tc.in, tc.expected, got)
		}
	}
}

// rounding an already-rounded value must not move it again
func TestRoundToQuarterHourIdempotent(t *testing.T) {
	inputs := []string{"0.1", "0.7", "1.26", "3.99", "5.25"}
	for _, in := range inputs {
		once := RoundToQuarterHour(d(t, in))
		twice := RoundToQuarterHour(once)
		if !once.Equal(twice) {
			t.Fatalf("rounding %s twice moved %s to %s", in, once, twice)
		}
	}
}

func TestResolveReportWindow(t *testing.T) {
	start, end := resolveReportWindow("November 2025")
	if !start.Equal(time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window start %v", start)
	}
	if !end.Equal(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window end %v", end)
	}

	// December rolls into the next year
	start, end = resolveReportWindow("December 2025")
	if !end.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("december window must end in january, got %v", end)
	}
	_ = start

	// unparsable labels yield a zero window, not an error
	start, end = resolveReportWindow("not a month")
	if !start.IsZero() || !end.IsZero() {
		t.Fatalf("expected zero window, got %v .. %v", start, end)
	}
}

func TestSumRoundedPerEntry(t *testing.T) {
	billable := true
	nonBillable := false
	entries := []*TimeEntry{
		{Hours: d(t, "0.1"), Billable: &billable},  // 0.25
		{Hours: d(t, "1.26"), Billable: &billable}, // 1.5
		{Hours: d(t, "2"), Billable: &nonBillable}, // excluded from billable
	}

	if got := sumRounded(entries, true); !got.Equal(d(t, "1.75")) {
		t.Fatalf("billable sum expected 1.75, got %s", got)
	}
	if got := sumRounded(entries, false); !got.Equal(d(t, "3.75")) {
		t.Fatalf("all-hours sum expected 3.75, got %s", got)
	}
}

func TestFreeHoursProgressOf(t *testing.T) {
	progress := freeHoursProgressOf(d(t, "1"), d(t, "2"))
	if !progress.Percent.Equal(d(t, "50")) {
		t.Fatalf("expected 50 percent, got %s", progress.Percent)
	}
	if !progress.Remaining.Equal(d(t, "1")) {
		t.Fatalf("expected 1 remaining, got %s", progress.Remaining)
	}

	// over the limit: display percent caps at 100, raw keeps going
	progress = freeHoursProgressOf(d(t, "5.25"), d(t, "2"))
	if !progress.Percent.Equal(d(t, "100")) {
		t.Fatalf("expected capped 100 percent, got %s", progress.Percent)
	}
	if !progress.PercentRaw.Equal(d(t, "262.5")) {
		t.Fatalf("expected raw 262.5 percent, got %s", progress.PercentRaw)
	}
	if !progress.Remaining.IsZero() {
		t.Fatalf("remaining must not go negative, got %s", progress.Remaining)
	}

	// zero allowance with usage counts as fully over
	progress = freeHoursProgressOf(d(t, "1"), decimal.Zero)
	if !progress.PercentRaw.Equal(d(t, "100")) {
		t.Fatalf("expected 100 raw percent with zero limit, got %s", progress.PercentRaw)
	}
}

func TestProgressColorBands(t *testing.T) {
	cases := []struct {
		percent  string
		expected string
	}{
		{"0", "blue"},
		{"50", "blue"},
		{"50.99", "blue"},
		{"51", "yellow"},
		{"80", "yellow"},
		{"81", "orange"},
		{"99", "orange"},
		{"99.5", "orange"},
		{"100", "red"},
		{"262.5", "red"},
	}
	for _, tc := range cases {
		if got := progressColorOf(d(t, tc.percent)); got != tc.expected {
			t.Fatalf("progressColorOf(%s) expected %s, got %s", tc.percent, tc.expected, got)
		}
	}
}

func TestOverageHoursOf(t *testing.T) {
	cases := []struct {
		used     string
		limit    string
		expected string
	}{
		{"5.25", "2", "3.25"},
		{"2", "2", "0"},
		{"1.5", "2", "0"},
		{"2.005", "2", "0.01"},
	}
	for _, tc := range cases {
		got := overageHoursOf(d(t, tc.used), d(t, tc.limit))
		if !got.Equal(d(t, tc.expected)) {
			t.Fatalf("overageHoursOf(%s, %s) expected %s, got %s", tc.used, tc.limit, tc.expected, got)
		}
	}
}

func TestOverageAmountAtRate(t *testing.T) {
	overage := overageHoursOf(d(t, "5.25"), d(t, "2"))
	amount := overage.Mul(d(t, "30")).Round(2)
	if !amount.Equal(d(t, "97.5")) {
		t.Fatalf("expected 97.50 at rate 30, got %s", amount)
	}
}

func TestResolveFreeHoursLimitReportOverride(t *testing.T) {
	limit := d(t, "4")
	report := MonthlyReport{FreeHoursLimit: &limit}

	// the override must short-circuit before any organization lookup
	got, err := report.ResolveFreeHoursLimit(context.Background())
	if err != nil {
		t.Fatalf("ResolveFreeHoursLimit: %v", err)
	}
	if !got.Equal(limit) {
		t.Fatalf("expected override 4, got %s", got)
	}
}
