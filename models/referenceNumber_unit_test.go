package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatProjectReference(t *testing.T) {
	cases := []struct {
		seqNo    int64
		expected string
	}{
		{1, "PR-0001"},
		{7, "PR-0007"},
		{42, "PR-0042"},
		{9999, "PR-9999"},
		{10000, "PR-10000"},
	}
	for _, tc := range cases {
		got := formatProjectReference(tc.seqNo)
		if got != tc.expected {
			t.Fatalf("formatProjectReference(%d) expected %s, got %s", tc.seqNo, tc.expected, got)
		}
	}
}

func TestGenerateMilestoneReference(t *testing.T) {
	cases := []struct {
		projectRef string
		order      string
		expected   string
	}{
		{"PR-0001", "1", "PR-0001-01"},
		{"PR-0001", "2", "PR-0001-02"},
		{"PR-0001", "1.5", "PR-0001-01.5"},
		{"PR-0001", "10", "PR-0001-10"},
		{"PR-0007", "2", "PR-0007-02"},
		{"PR-0042", "3.25", "PR-0042-03.25"},
	}
	for _, tc := range cases {
		order, err := decimal.NewFromString(tc.order)
		if err != nil {
			t.Fatalf("bad order %q: %v", tc.order, err)
		}
		got, err := GenerateMilestoneReference(tc.projectRef, order)
		if err != nil {
			t.Fatalf("GenerateMilestoneReference(%s, %s) error: %v", tc.projectRef, tc.order, err)
		}
		if got != tc.expected {
			t.Fatalf("GenerateMilestoneReference(%s, %s) expected %s, got %s", tc.projectRef, tc.order, tc.expected, got)
		}
	}
}

func TestGenerateMilestoneReferenceRejectsBadInput(t *testing.T) {
	if _, err := GenerateMilestoneReference("", decimal.NewFromInt(1)); err == nil {
		t.Fatal("expected error for empty project reference")
	}
	if _, err := GenerateMilestoneReference("PR-0001", decimal.Zero); err == nil {
		t.Fatal("expected error for zero order")
	}
	if _, err := GenerateMilestoneReference("PR-0001", decimal.NewFromInt(-1)); err == nil {
		t.Fatal("expected error for negative order")
	}
}
