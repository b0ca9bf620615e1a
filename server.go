package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
	"bitbucket.org/mmdatafocus/clientdesk_backend/middlewares"
	"bitbucket.org/mmdatafocus/clientdesk_backend/models"
	"bitbucket.org/mmdatafocus/clientdesk_backend/models/reports"
	"bitbucket.org/mmdatafocus/clientdesk_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// respondError maps model errors onto HTTP statuses: missing records are
// 404, store outages are 503, everything else is a client error.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// bindJSON binds the request body and, for validation failures, answers with
// a field-to-message map instead of the raw validator error string.
func bindJSON(c *gin.Context, input interface{}) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		if fields := utils.ProcessValidationErrors(err); len(fields) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": fields})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

/* organizations */

func createOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewOrganization
		if !bindJSON(c, &input) {
			return
		}
		organization, err := models.CreateOrganization(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, organization)
	}
}

func updateOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewOrganization
		if !bindJSON(c, &input) {
			return
		}
		organization, err := models.UpdateOrganization(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, organization)
	}
}

func deleteOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		organization, err := models.DeleteOrganization(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, organization)
	}
}

func getOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		organization, err := models.GetOrganization(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, organization)
	}
}

func listOrganizationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := utils.NilIfEmpty(c.Query("name"))
		results, err := models.GetOrganizationAll(c.Request.Context(), name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

/* projects */

func createProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProject
		if !bindJSON(c, &input) {
			return
		}
		project, err := models.CreateProject(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, project)
	}
}

func updateProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewProject
		if !bindJSON(c, &input) {
			return
		}
		project, err := models.UpdateProject(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

func deleteProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		project, err := models.DeleteProject(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

func getProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		project, err := models.GetProject(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

func listProjectsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var organizationId *int
		if v := c.Query("organization_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization_id"})
				return
			}
			organizationId = &id
		}
		results, err := models.GetProjectAll(c.Request.Context(), organizationId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

func activeProjectsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		results, err := models.GetActiveProjects(c.Request.Context(), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

func assignProjectReferenceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		project, err := models.AssignProjectReference(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

func projectRollupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		invoiced, err := models.TotalInvoicedForProject(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		paid, err := models.TotalPaidForProject(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		hours, err := models.TotalHoursForProject(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"project_id":     id,
			"total_invoiced": invoiced,
			"total_paid":     paid,
			"total_hours":    hours,
		})
	}
}

/* milestones */

func createMilestoneHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewMilestone
		if !bindJSON(c, &input) {
			return
		}
		milestone, err := models.CreateMilestone(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, milestone)
	}
}

func updateMilestoneHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewMilestone
		if !bindJSON(c, &input) {
			return
		}
		milestone, err := models.UpdateMilestone(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, milestone)
	}
}

func deleteMilestoneHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		milestone, err := models.DeleteMilestone(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, milestone)
	}
}

func getMilestoneHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		milestone, err := models.GetMilestone(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, milestone)
	}
}

func projectMilestonesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		results, err := models.GetMilestoneAll(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

func assignMilestoneReferenceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		milestone, err := models.AssignMilestoneReference(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, milestone)
	}
}

func milestonePaymentStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		milestone, err := models.GetMilestone(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		status, err := milestone.PaymentStatus(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		paid, err := milestone.PaidTotal(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		display, err := milestone.OrderDisplay(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"milestone_id":   milestone.ID,
			"payment_status": status,
			"amount":         milestone.Amount,
			"total_paid":     paid,
			"order_display":  display,
		})
	}
}

/* invoices */

func createInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInvoice
		if !bindJSON(c, &input) {
			return
		}
		invoice, err := models.CreateInvoice(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func updateInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewInvoice
		if !bindJSON(c, &input) {
			return
		}
		invoice, err := models.UpdateInvoice(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func deleteInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		invoice, err := models.DeleteInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func getInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		invoice, err := models.GetInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		now := time.Now()
		c.JSON(http.StatusOK, gin.H{
			"invoice":          invoice,
			"balance":          invoice.Balance(),
			"effective_status": invoice.EffectiveStatus(now),
			"is_overdue":       invoice.OverdueAsOf(now),
		})
	}
}

func setInvoiceStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input struct {
			Status models.InvoiceStatus `json:"status" binding:"required"`
		}
		if !bindJSON(c, &input) {
			return
		}
		invoice, err := models.SetInvoiceStatus(c.Request.Context(), id, input.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func recordPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewPayment
		if !bindJSON(c, &input) {
			return
		}
		invoice, err := models.RecordPayment(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func organizationInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		results, err := models.GetInvoicesForOrganization(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

func organizationPendingInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		results, err := models.GetPendingInvoicesForOrganization(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

/* service requests */

func createServiceRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewServiceRequest
		if !bindJSON(c, &input) {
			return
		}
		request, err := models.CreateServiceRequest(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, request)
	}
}

func updateServiceRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewServiceRequest
		if !bindJSON(c, &input) {
			return
		}
		request, err := models.UpdateServiceRequest(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, request)
	}
}

func deleteServiceRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		request, err := models.DeleteServiceRequest(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, request)
	}
}

func getServiceRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		request, err := models.GetServiceRequest(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		hours, err := models.TotalHoursForServiceRequest(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"service_request": request,
			"total_hours":     hours,
		})
	}
}

func organizationServiceRequestsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		results, err := models.GetServiceRequestAll(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

func listServiceRequestsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, _ := strconv.Atoi(c.Query("organization_id"))
		results, err := models.GetServiceRequestAll(c.Request.Context(), organizationId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

/* time entries */

func createTimeEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewTimeEntry
		if !bindJSON(c, &input) {
			return
		}
		entry, err := models.CreateTimeEntry(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

func updateTimeEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewTimeEntry
		if !bindJSON(c, &input) {
			return
		}
		entry, err := models.UpdateTimeEntry(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

func deleteTimeEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		entry, err := models.DeleteTimeEntry(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

func getTimeEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		entry, err := models.GetTimeEntry(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

/* monthly reports */

func createMonthlyReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewMonthlyReport
		if !bindJSON(c, &input) {
			return
		}
		report, err := models.CreateMonthlyReport(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, report)
	}
}

func updateMonthlyReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewMonthlyReport
		if !bindJSON(c, &input) {
			return
		}
		report, err := models.UpdateMonthlyReport(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func deleteMonthlyReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		report, err := models.DeleteMonthlyReport(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func getMonthlyReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		report, err := models.GetMonthlyReport(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func listMonthlyReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, _ := strconv.Atoi(c.Query("organization_id"))
		results, err := models.GetMonthlyReportAll(c.Request.Context(), organizationId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

func reportSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		summary, err := models.GetReportSummary(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func reportOverageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		report, err := models.GetMonthlyReport(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		var rate *decimal.Decimal
		if v := c.Query("rate"); v != "" {
			parsed, err := utils.ParseDecimal(v)
			if err != nil || parsed.IsNegative() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate"})
				return
			}
			rate = &parsed
		}
		hours, err := report.OverageHours(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		amount, err := report.OverageAmount(ctx, rate)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"report_id":      id,
			"overage_hours":  hours,
			"overage_amount": amount,
		})
	}
}

func reportExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		f, err := reports.BuildMonthlyReportExcel(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		filename := fmt.Sprintf("monthly-report-%d.xlsx", id)
		reports.WriteExcel(c.Writer, f, filename)
	}
}

func registerRoutes(r *gin.Engine) {
	r.POST("/organizations", createOrganizationHandler())
	r.GET("/organizations", listOrganizationsHandler())
	r.GET("/organizations/:id", getOrganizationHandler())
	r.PUT("/organizations/:id", updateOrganizationHandler())
	r.DELETE("/organizations/:id", deleteOrganizationHandler())
	r.GET("/organizations/:id/invoices", organizationInvoicesHandler())
	r.GET("/organizations/:id/invoices/pending", organizationPendingInvoicesHandler())
	r.GET("/organizations/:id/service-requests", organizationServiceRequestsHandler())

	r.POST("/projects", createProjectHandler())
	r.GET("/projects", listProjectsHandler())
	// separate prefix; the router cannot mix a static segment with :id
	r.GET("/workbench/active-projects", activeProjectsHandler())
	r.GET("/projects/:id", getProjectHandler())
	r.PUT("/projects/:id", updateProjectHandler())
	r.DELETE("/projects/:id", deleteProjectHandler())
	r.POST("/projects/:id/reference", assignProjectReferenceHandler())
	r.GET("/projects/:id/rollup", projectRollupHandler())
	r.GET("/projects/:id/milestones", projectMilestonesHandler())

	r.POST("/milestones", createMilestoneHandler())
	r.GET("/milestones/:id", getMilestoneHandler())
	r.PUT("/milestones/:id", updateMilestoneHandler())
	r.DELETE("/milestones/:id", deleteMilestoneHandler())
	r.POST("/milestones/:id/reference", assignMilestoneReferenceHandler())
	r.GET("/milestones/:id/payment-status", milestonePaymentStatusHandler())

	r.POST("/invoices", createInvoiceHandler())
	r.GET("/invoices/:id", getInvoiceHandler())
	r.PUT("/invoices/:id", updateInvoiceHandler())
	r.DELETE("/invoices/:id", deleteInvoiceHandler())
	r.POST("/invoices/:id/status", setInvoiceStatusHandler())
	r.POST("/invoices/:id/payments", recordPaymentHandler())

	r.POST("/service-requests", createServiceRequestHandler())
	r.GET("/service-requests", listServiceRequestsHandler())
	r.GET("/service-requests/:id", getServiceRequestHandler())
	r.PUT("/service-requests/:id", updateServiceRequestHandler())
	r.DELETE("/service-requests/:id", deleteServiceRequestHandler())

	r.POST("/time-entries", createTimeEntryHandler())
	r.GET("/time-entries/:id", getTimeEntryHandler())
	r.PUT("/time-entries/:id", updateTimeEntryHandler())
	r.DELETE("/time-entries/:id", deleteTimeEntryHandler())

	r.POST("/monthly-reports", createMonthlyReportHandler())
	r.GET("/monthly-reports", listMonthlyReportsHandler())
	r.GET("/monthly-reports/:id", getMonthlyReportHandler())
	r.PUT("/monthly-reports/:id", updateMonthlyReportHandler())
	r.DELETE("/monthly-reports/:id", deleteMonthlyReportHandler())
	r.GET("/monthly-reports/:id/summary", reportSummaryHandler())
	r.GET("/monthly-reports/:id/overage", reportOverageHandler())
	r.GET("/monthly-reports/:id/export", reportExportHandler())
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// The dependency table is code; a bad edit should stop the deploy, not
	// serve stale caches.
	if err := models.ValidateCacheDependencies(); err != nil {
		log.Fatalf("cache dependency table invalid: %v", err)
	}

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB is ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on database readiness. Redis is optional;
		// the cache layer degrades to in-process fallback without it.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())
	registerRoutes(r)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Error("AutoMigrate failed: " + err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	log.Println("Server started successfully on port " + port)

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			entry := logger.WithField("path", c.FullPath())
			if cid, ok := utils.GetCorrelationIdFromContext(c.Request.Context()); ok {
				entry = entry.WithField("correlationId", cid)
			}
			entry.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP()

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
