package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/clientdesk_backend/cache"
	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
	"bitbucket.org/mmdatafocus/clientdesk_backend/utils"
	"github.com/shopspring/decimal"
)

type MonthlyReport struct {
	ID             int              `gorm:"primary_key" json:"id"`
	OrganizationId int              `gorm:"index;not null" json:"organization_id" binding:"required"`
	ReportMonth    string           `gorm:"size:50;not null" json:"report_month" binding:"required"`
	FreeHoursLimit *decimal.Decimal `gorm:"type:decimal(10,2);default:null" json:"free_hours_limit"`
	Notes          string           `gorm:"type:text;default:null" json:"notes"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMonthlyReport struct {
	OrganizationId int              `json:"organization_id" binding:"required"`
	ReportMonth    string           `json:"report_month" binding:"required"`
	FreeHoursLimit *decimal.Decimal `json:"free_hours_limit"`
	Notes          string           `json:"notes"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewMonthlyReport) validate(ctx context.Context, id int) error {
	if err := utils.ValidateResourceId[Organization](ctx, input.OrganizationId); err != nil {
		return errors.New("organization not found")
	}
	if input.ReportMonth == "" {
		return errors.New("report month is required")
	}
	if input.FreeHoursLimit != nil && input.FreeHoursLimit.IsNegative() {
		return errors.New("free hours limit cannot be negative")
	}
	// one report per organization per month
	count, err := utils.ResourceCountWhere[MonthlyReport](ctx,
		"organization_id = ? AND report_month = ? AND id != ?",
		input.OrganizationId, input.ReportMonth, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("a report for that organization and month already exists")
	}
	return nil
}

func CreateMonthlyReport(ctx context.Context, input *NewMonthlyReport) (*MonthlyReport, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	report := MonthlyReport{
		OrganizationId: input.OrganizationId,
		ReportMonth:    input.ReportMonth,
		FreeHoursLimit: input.FreeHoursLimit,
		Notes:          input.Notes,
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action
	if err := db.WithContext(ctx).Create(&report).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return &report, nil
}

func UpdateMonthlyReport(ctx context.Context, id int, input *NewMonthlyReport) (*MonthlyReport, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	report, err := utils.FetchModel[MonthlyReport](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action
	if err = db.WithContext(ctx).Model(report).
		Updates(map[string]interface{}{
			"OrganizationId": input.OrganizationId,
			"ReportMonth":    input.ReportMonth,
			"FreeHoursLimit": input.FreeHoursLimit,
			"Notes":          input.Notes,
		}).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return report, nil
}

func DeleteMonthlyReport(ctx context.Context, id int) (*MonthlyReport, error) {

	report, err := utils.FetchModel[MonthlyReport](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action
	if err = db.WithContext(ctx).Delete(report).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return report, nil
}

func GetMonthlyReport(ctx context.Context, id int) (*MonthlyReport, error) {
	return GetResource[MonthlyReport](ctx, id)
}

func GetMonthlyReportAll(ctx context.Context, organizationId int) ([]*MonthlyReport, error) {
	ctx, cancel := utils.WithStoreTimeout(ctx)
	defer cancel()

	db := config.GetDB()
	var results []*MonthlyReport
	query := db.WithContext(ctx).Order("created_at DESC")
	if organizationId > 0 {
		query = query.Where("organization_id = ?", organizationId)
	}
	if err := query.Find(&results).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	return results, nil
}

/* hours engine */

var quarterHour = decimal.NewFromInt(15)

// RoundToQuarterHour rounds a duration in hours up to the next quarter hour.
// Exact quarter multiples pass through unchanged, so the rounding is
// idempotent. Works in minutes to avoid repeating-decimal division.
func RoundToQuarterHour(hours decimal.Decimal) decimal.Decimal {
	if !hours.IsPositive() {
		return decimal.Zero
	}
	minutes := hours.Mul(decimal.NewFromInt(60))
	quarters := minutes.Div(quarterHour).Ceil()
	return quarters.Mul(quarterHour).Div(decimal.NewFromInt(60))
}

// resolveReportWindow parses a month label like "November 2025" into the
// half-open window [first of month, first of next month). An unparsable label
// is logged and yields a zero window, which matches no entries.
func resolveReportWindow(reportMonth string) (time.Time, time.Time) {
	parsed, err := time.Parse("January 2006", reportMonth)
	if err != nil {
		config.LogError(config.GetLogger(), "monthlyReport", "resolveReportWindow",
			"parse report month", reportMonth, err)
		return time.Time{}, time.Time{}
	}
	start := time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// TimeEntriesForReport returns the organization's service request entries
// inside the report month, oldest first.
func (report MonthlyReport) TimeEntriesForReport(ctx context.Context) ([]*TimeEntry, error) {
	start, end := resolveReportWindow(report.ReportMonth)
	if start.IsZero() {
		return []*TimeEntry{}, nil
	}

	serviceRequestIds, err := getServiceRequestIds(ctx, report.OrganizationId)
	if err != nil {
		return nil, err
	}
	if len(serviceRequestIds) == 0 {
		return []*TimeEntry{}, nil
	}

	ctx, cancel := utils.WithStoreTimeout(ctx)
	defer cancel()

	db := config.GetDB()
	var results []*TimeEntry
	err = db.WithContext(ctx).
		Where("service_request_id IN ? AND entry_date >= ? AND entry_date < ?",
			serviceRequestIds, start, end).
		Order("entry_date").
		Find(&results).Error
	if err != nil {
		return nil, utils.WrapDBError(err)
	}
	return results, nil
}

// sumRounded totals per-entry rounded hours. Rounding is applied to each
// entry before summing, never to the total.
func sumRounded(entries []*TimeEntry, billableOnly bool) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		if billableOnly && !utils.DereferencePtr(entry.Billable, true) {
			continue
		}
		total = total.Add(RoundToQuarterHour(entry.Hours))
	}
	return total
}

func (report MonthlyReport) TotalBillableHours(ctx context.Context) (decimal.Decimal, error) {
	entries, err := report.TimeEntriesForReport(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return sumRounded(entries, true), nil
}

func (report MonthlyReport) TotalAllHours(ctx context.Context) (decimal.Decimal, error) {
	entries, err := report.TimeEntriesForReport(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return sumRounded(entries, false), nil
}

// ResolveFreeHoursLimit walks report override, then organization default,
// then the configured fallback. A missing organization falls back; a store
// failure propagates so the caller does not bill against the wrong
// allowance.
func (report MonthlyReport) ResolveFreeHoursLimit(ctx context.Context) (decimal.Decimal, error) {
	if report.FreeHoursLimit != nil {
		return *report.FreeHoursLimit, nil
	}
	organization, err := GetOrganization(ctx, report.OrganizationId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return config.GetFreeHoursDefault(), nil
		}
		return decimal.Zero, err
	}
	if organization.FreeHoursLimit != nil {
		return *organization.FreeHoursLimit, nil
	}
	return config.GetFreeHoursDefault(), nil
}

type FreeHoursProgress struct {
	Used       decimal.Decimal `json:"used"`
	Limit      decimal.Decimal `json:"limit"`
	Percent    decimal.Decimal `json:"percent"`
	PercentRaw decimal.Decimal `json:"percent_raw"`
	Remaining  decimal.Decimal `json:"remaining"`
}

// freeHoursProgressOf derives the progress figures from used and limit.
// Percent is capped at 100 for display while PercentRaw keeps the true
// ratio for banding; Remaining never goes negative.
func freeHoursProgressOf(used, limit decimal.Decimal) FreeHoursProgress {
	progress := FreeHoursProgress{Used: used, Limit: limit}
	if limit.IsPositive() {
		progress.PercentRaw = used.Div(limit).Mul(decimal.NewFromInt(100)).Round(2)
	} else if used.IsPositive() {
		// no free allowance: any usage is fully over
		progress.PercentRaw = decimal.NewFromInt(100)
	}
	progress.Percent = progress.PercentRaw
	hundred := decimal.NewFromInt(100)
	if progress.Percent.GreaterThan(hundred) {
		progress.Percent = hundred
	}
	progress.Remaining = limit.Sub(used)
	if progress.Remaining.IsNegative() {
		progress.Remaining = decimal.Zero
	}
	return progress
}

func (report MonthlyReport) FreeHoursProgress(ctx context.Context) (FreeHoursProgress, error) {
	used, err := report.TotalBillableHours(ctx)
	if err != nil {
		return FreeHoursProgress{}, err
	}
	limit, err := report.ResolveFreeHoursLimit(ctx)
	if err != nil {
		return FreeHoursProgress{}, err
	}
	return freeHoursProgressOf(used, limit), nil
}

// progressColorOf maps the raw percentage onto the dashboard bands.
func progressColorOf(percentRaw decimal.Decimal) string {
	switch {
	case percentRaw.GreaterThanOrEqual(decimal.NewFromInt(100)):
		return "red"
	case percentRaw.GreaterThanOrEqual(decimal.NewFromInt(81)):
		return "orange"
	case percentRaw.GreaterThanOrEqual(decimal.NewFromInt(51)):
		return "yellow"
	default:
		return "blue"
	}
}

func (report MonthlyReport) ProgressColor(ctx context.Context) (string, error) {
	progress, err := report.FreeHoursProgress(ctx)
	if err != nil {
		return "", err
	}
	return progressColorOf(progress.PercentRaw), nil
}

// overageHoursOf is the billable excess beyond the free allowance, floored
// at zero.
func overageHoursOf(used, limit decimal.Decimal) decimal.Decimal {
	overage := used.Sub(limit).Round(2)
	if overage.IsNegative() {
		return decimal.Zero
	}
	return overage
}

func (report MonthlyReport) OverageHours(ctx context.Context) (decimal.Decimal, error) {
	used, err := report.TotalBillableHours(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	limit, err := report.ResolveFreeHoursLimit(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return overageHoursOf(used, limit), nil
}

// OverageAmount prices the overage at the given hourly rate, falling back to
// the configured rate when nil.
func (report MonthlyReport) OverageAmount(ctx context.Context, rate *decimal.Decimal) (decimal.Decimal, error) {
	overage, err := report.OverageHours(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	hourlyRate := config.GetOverageHourlyRate()
	if rate != nil {
		hourlyRate = *rate
	}
	return overage.Mul(hourlyRate).Round(2), nil
}

/* cached summary */

type ReportSummary struct {
	ReportId      int               `json:"report_id"`
	ReportMonth   string            `json:"report_month"`
	BillableHours decimal.Decimal   `json:"billable_hours"`
	AllHours      decimal.Decimal   `json:"all_hours"`
	Progress      FreeHoursProgress `json:"progress"`
	ProgressColor string            `json:"progress_color"`
	OverageHours  decimal.Decimal   `json:"overage_hours"`
	OverageAmount decimal.Decimal   `json:"overage_amount"`
}

// GetReportSummary assembles the dashboard view of one report, cached until
// a time entry write evicts the report-summary namespace.
func GetReportSummary(ctx context.Context, reportId int) (*ReportSummary, error) {
	key := fmt.Sprintf("%s%d", NamespaceReportSummary, reportId)
	return cache.Remember(ctx, cache.Std(), key, utils.GetCacheLifespan(), func(ctx context.Context) (*ReportSummary, error) {
		report, err := GetMonthlyReport(ctx, reportId)
		if err != nil {
			return nil, err
		}
		entries, err := report.TimeEntriesForReport(ctx)
		if err != nil {
			return nil, err
		}

		billable := sumRounded(entries, true)
		limit, err := report.ResolveFreeHoursLimit(ctx)
		if err != nil {
			return nil, err
		}
		progress := freeHoursProgressOf(billable, limit)
		overage := overageHoursOf(billable, limit)

		return &ReportSummary{
			ReportId:      report.ID,
			ReportMonth:   report.ReportMonth,
			BillableHours: billable,
			AllHours:      sumRounded(entries, false),
			Progress:      progress,
			ProgressColor: progressColorOf(progress.PercentRaw),
			OverageHours:  overage,
			OverageAmount: overage.Mul(config.GetOverageHourlyRate()).Round(2),
		}, nil
	})
}
