package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestInvoiceBalance(t *testing.T) {
	cases := []struct {
		amount   string
		paid     string
		expected string
	}{
		{"1000", "0", "1000"},
		{"1000", "400", "600"},
		{"1000", "1000", "0"},
		{"1000", "1200", "0"},
	}
	for _, tc := range cases {
		amount, _ := decimal.NewFromString(tc.amount)
		paid, _ := decimal.NewFromString(tc.paid)
		invoice := Invoice{Amount: amount, AmountPaid: paid}
		if got := invoice.Balance(); got.String() != tc.expected {
			t.Fatalf("Balance(%s paid %s) expected %s, got %s", tc.amount, tc.paid, tc.expected, got)
		}
	}
}

func TestInvoiceOverdueAsOf(t *testing.T) {
	today := time.Date(2025, 11, 15, 10, 30, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)
	// same calendar date, later clock time than "now"
	laterToday := time.Date(2025, 11, 15, 23, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		status   InvoiceStatus
		due      *time.Time
		expected bool
	}{
		{"pending due yesterday", InvoiceStatusPending, &yesterday, true},
		{"partial due yesterday", InvoiceStatusPartial, &yesterday, true},
		{"pending due today", InvoiceStatusPending, &laterToday, false},
		{"pending due tomorrow", InvoiceStatusPending, &tomorrow, false},
		{"pending no due date", InvoiceStatusPending, nil, false},
		{"paid due yesterday", InvoiceStatusPaid, &yesterday, false},
		{"void due yesterday", InvoiceStatusVoid, &yesterday, false},
		{"credited due yesterday", InvoiceStatusCredited, &yesterday, false},
		{"draft due yesterday", InvoiceStatusDraft, &yesterday, true},
	}
	for _, tc := range cases {
		invoice := Invoice{CurrentStatus: tc.status, InvoiceDueDate: tc.due}
		if got := invoice.OverdueAsOf(today); got != tc.expected {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expected, got)
		}
	}
}

func TestInvoiceEffectiveStatus(t *testing.T) {
	today := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	overdue := Invoice{CurrentStatus: InvoiceStatusPending, InvoiceDueDate: &yesterday}
	if got := overdue.EffectiveStatus(today); got != InvoiceStatusOverdue {
		t.Fatalf("expected Overdue overlay, got %s", got)
	}
	// the stored status is untouched by the overlay
	if overdue.StoredStatus() != InvoiceStatusPending {
		t.Fatalf("stored status changed to %s", overdue.StoredStatus())
	}

	paid := Invoice{CurrentStatus: InvoiceStatusPaid, InvoiceDueDate: &yesterday}
	if got := paid.EffectiveStatus(today); got != InvoiceStatusPaid {
		t.Fatalf("terminal status must not show overdue, got %s", got)
	}
}
