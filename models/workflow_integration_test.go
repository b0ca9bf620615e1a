package models_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
	"bitbucket.org/mmdatafocus/clientdesk_backend/models"
	"bitbucket.org/mmdatafocus/clientdesk_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// End-to-end billing flow against real MySQL and Redis: project reference,
// milestone reference, invoicing, payment, derived statuses.
func TestMilestoneBillingFlow(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires MySQL and Redis)")
	}

	ctx := context.Background()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	_ = config.ClearRedis(ctx)
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	stamp := time.Now().UnixNano()
	organization, err := models.CreateOrganization(ctx, &models.NewOrganization{
		Shortcode: fmt.Sprintf("ACME%d", stamp%100000),
		Name:      "Acme Industries",
	})
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}

	project, err := models.CreateProject(ctx, &models.NewProject{
		OrganizationId: organization.ID,
		Name:           "Warehouse Portal",
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if !strings.HasPrefix(project.ReferenceNumber, "PR-") {
		t.Fatalf("project reference %q missing PR- prefix", project.ReferenceNumber)
	}

	milestone, err := models.CreateMilestone(ctx, &models.NewMilestone{
		ProjectId: project.ID,
		Name:      "Phase two",
		Order:     decimal.NewFromInt(2),
		Amount:    decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}
	wantRef := project.ReferenceNumber + "-02"
	if milestone.ReferenceNumber != wantRef {
		t.Fatalf("milestone reference expected %s, got %s", wantRef, milestone.ReferenceNumber)
	}

	status, err := milestone.PaymentStatus(ctx)
	if err != nil {
		t.Fatalf("PaymentStatus: %v", err)
	}
	if status != models.MilestonePaymentStatusPending {
		t.Fatalf("expected Pending before invoicing, got %s", status)
	}

	invoice, err := models.CreateInvoice(ctx, &models.NewInvoice{
		OrganizationId: organization.ID,
		MilestoneId:    milestone.ID,
		Amount:         decimal.NewFromInt(1000),
		CurrentStatus:  models.InvoiceStatusPending,
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if !strings.HasPrefix(invoice.InvoiceNumber, "INV-") {
		t.Fatalf("invoice number %q missing INV- prefix", invoice.InvoiceNumber)
	}

	status, err = milestone.PaymentStatus(ctx)
	if err != nil {
		t.Fatalf("PaymentStatus after invoicing: %v", err)
	}
	if status != models.MilestonePaymentStatusInvoiced {
		t.Fatalf("expected Invoiced after invoicing, got %s", status)
	}

	paid, err := models.RecordPayment(ctx, invoice.ID, &models.NewPayment{
		Amount:        decimal.NewFromInt(1000),
		PaymentMethod: "bank transfer",
	})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if paid.CurrentStatus != models.InvoiceStatusPaid {
		t.Fatalf("expected Paid invoice, got %s", paid.CurrentStatus)
	}
	if paid.PaymentDate == nil {
		t.Fatal("payment date not stamped on full payment")
	}
	if !paid.Balance().IsZero() {
		t.Fatalf("expected zero balance, got %s", paid.Balance())
	}

	status, err = milestone.PaymentStatus(ctx)
	if err != nil {
		t.Fatalf("PaymentStatus after payment: %v", err)
	}
	if status != models.MilestonePaymentStatusPaid {
		t.Fatalf("expected Paid milestone, got %s", status)
	}

	// overpayment is rejected outright
	if _, err := models.RecordPayment(ctx, invoice.ID, &models.NewPayment{
		Amount: decimal.NewFromInt(1),
	}); err == nil {
		t.Fatal("expected overpayment on a paid invoice to fail")
	}
}

// Hours logged against a service request flow through the monthly report
// with quarter-hour rounding and free-hours banding.
func TestMonthlyReportFlow(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires MySQL and Redis)")
	}

	ctx := context.Background()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	_ = config.ClearRedis(ctx)
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	stamp := time.Now().UnixNano()
	limit := decimal.NewFromInt(2)
	organization, err := models.CreateOrganization(ctx, &models.NewOrganization{
		Shortcode:      fmt.Sprintf("RPT%d", stamp%100000),
		Name:           "Reporting Co",
		FreeHoursLimit: &limit,
	})
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}

	request, err := models.CreateServiceRequest(ctx, &models.NewServiceRequest{
		OrganizationId: organization.ID,
		Subject:        "Login issues",
	})
	if err != nil {
		t.Fatalf("CreateServiceRequest: %v", err)
	}

	entryDate := time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC)
	for _, hours := range []string{"0.1", "1.26", "3.9"} {
		h, _ := decimal.NewFromString(hours)
		if _, err := models.CreateTimeEntry(ctx, &models.NewTimeEntry{
			ServiceRequestId: request.ID,
			Hours:            h,
			EntryDate:        entryDate,
		}); err != nil {
			t.Fatalf("CreateTimeEntry(%s): %v", hours, err)
		}
	}

	report, err := models.CreateMonthlyReport(ctx, &models.NewMonthlyReport{
		OrganizationId: organization.ID,
		ReportMonth:    "November 2025",
	})
	if err != nil {
		t.Fatalf("CreateMonthlyReport: %v", err)
	}

	summary, err := models.GetReportSummary(ctx, report.ID)
	if err != nil {
		t.Fatalf("GetReportSummary: %v", err)
	}
	// 0.1 -> 0.25, 1.26 -> 1.5, 3.9 -> 4.0
	expected, _ := decimal.NewFromString("5.75")
	if !summary.BillableHours.Equal(expected) {
		t.Fatalf("expected 5.75 billable hours, got %s", summary.BillableHours)
	}
	expectedOverage, _ := decimal.NewFromString("3.75")
	if !summary.OverageHours.Equal(expectedOverage) {
		t.Fatalf("expected 3.75 overage hours, got %s", summary.OverageHours)
	}
	if summary.ProgressColor != "red" {
		t.Fatalf("expected red band over the limit, got %s", summary.ProgressColor)
	}

	// a new time entry invalidates the cached summary
	extra, _ := decimal.NewFromString("1")
	if _, err := models.CreateTimeEntry(ctx, &models.NewTimeEntry{
		ServiceRequestId: request.ID,
		Hours:            extra,
		EntryDate:        entryDate,
	}); err != nil {
		t.Fatalf("CreateTimeEntry extra: %v", err)
	}
	summary, err = models.GetReportSummary(ctx, report.ID)
	if err != nil {
		t.Fatalf("GetReportSummary after write: %v", err)
	}
	expected, _ = decimal.NewFromString("6.75")
	if !summary.BillableHours.Equal(expected) {
		t.Fatalf("expected refreshed 6.75 billable hours, got %s", summary.BillableHours)
	}
}

// A row that predates reference assignment must stop serving its cached
// snapshot once the standalone assignment runs: the write goes through
// UpdateColumn, so the eviction cannot come from the model hooks.
func TestAssignProjectReferenceRefreshesCachedInstance(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires MySQL and Redis)")
	}

	ctx := context.Background()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	_ = config.ClearRedis(ctx)
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	stamp := time.Now().UnixNano()
	organization, err := models.CreateOrganization(ctx, &models.NewOrganization{
		Shortcode: fmt.Sprintf("LEG%d", stamp%1000000),
		Name:      "Legacy Imports",
	})
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}

	project, err := models.CreateProject(ctx, &models.NewProject{
		OrganizationId: organization.ID,
		Name:           "Pre-migration project",
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	// mimic a row imported before references existed
	db := config.GetDB()
	if err := db.Session(&gorm.Session{SkipHooks: true}).
		Model(&models.Project{}).
		Where("id = ?", project.ID).
		UpdateColumn("reference_number", "").Error; err != nil {
		t.Fatalf("blank reference: %v", err)
	}
	if err := utils.RemoveRedisItem[models.Project](project.ID); err != nil {
		t.Fatalf("RemoveRedisItem: %v", err)
	}

	// prime the instance cache with the unreferenced snapshot
	cached, err := models.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if cached.ReferenceNumber != "" {
		t.Fatalf("expected blank reference before assignment, got %q", cached.ReferenceNumber)
	}

	assigned, err := models.AssignProjectReference(ctx, project.ID)
	if err != nil {
		t.Fatalf("AssignProjectReference: %v", err)
	}
	if !strings.HasPrefix(assigned.ReferenceNumber, "PR-") {
		t.Fatalf("assigned reference %q missing PR- prefix", assigned.ReferenceNumber)
	}

	fresh, err := models.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject after assignment: %v", err)
	}
	if fresh.ReferenceNumber != assigned.ReferenceNumber {
		t.Fatalf("cached project still serves pre-assignment snapshot: %q", fresh.ReferenceNumber)
	}
}
