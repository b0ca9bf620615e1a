package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMilestonePaymentStatusOf(t *testing.T) {
	d := func(s string) decimal.Decimal {
		v, err := decimal.NewFromString(s)
		if err != nil {
			t.Fatalf("bad decimal %q: %v", s, err)
		}
		return v
	}

	cases := []struct {
		name         string
		amount       string
		totalPaid    string
		invoiceCount int
		expected     MilestonePaymentStatus
	}{
		{"no invoices", "1000", "0", 0, MilestonePaymentStatusPending},
		{"invoiced unpaid", "1000", "0", 1, MilestonePaymentStatusInvoiced},
		{"invoiced partially paid", "1000", "400", 1, MilestonePaymentStatusInvoiced},
		{"fully paid", "1000", "1000", 1, MilestonePaymentStatusPaid},
		{"overpaid still paid", "1000", "1200", 2, MilestonePaymentStatusPaid},
		{"zero amount with invoice stays invoiced", "0", "0", 1, MilestonePaymentStatusInvoiced},
		{"zero amount no invoice", "0", "0", 0, MilestonePaymentStatusPending},
	}
	for _, tc := range cases {
		got := milestonePaymentStatusOf(d(tc.amount), d(tc.totalPaid), tc.invoiceCount)
		if got != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, got)
		}
	}
}

// Paid is reachable only by accumulating payments, never by losing them, so
// walking the paid total upward must move the status monotonically.
func TestMilestonePaymentStatusMonotonic(t *testing.T) {
	amount := decimal.NewFromInt(1000)
	rank := map[MilestonePaymentStatus]int{
		MilestonePaymentStatusPending:  0,
		MilestonePaymentStatusInvoiced: 1,
		MilestonePaymentStatusPaid:     2,
	}

	previous := milestonePaymentStatusOf(amount, decimal.Zero, 0)
	steps := []struct {
		totalPaid    string
		invoiceCount int
	}{
		{"0", 1},
		{"250", 1},
		{"500", 2},
		{"999.99", 2},
		{"1000", 2},
	}
	for _, step := range steps {
		paid, _ := decimal.NewFromString(step.totalPaid)
		current := milestonePaymentStatusOf(amount, paid, step.invoiceCount)
		if rank[current] < rank[previous] {
			t.Fatalf("status regressed from %s to %s at paid=%s", previous, current, step.totalPaid)
		}
		previous = current
	}
	if previous != MilestonePaymentStatusPaid {
		t.Fatalf("expected final status Paid, got %s", previous)
	}
}
