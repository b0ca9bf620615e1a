package reports

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/clientdesk_backend/models"
	"bitbucket.org/mmdatafocus/clientdesk_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type MonthlyReportRow struct {
	EntryDate    time.Time
	Subject      string
	Description  string
	Hours        decimal.Decimal
	RoundedHours decimal.Decimal
	Billable     bool
}

// buildMonthlyReportRows flattens the report's time entries for the sheet,
// resolving each entry's service request subject.
func buildMonthlyReportRows(ctx context.Context, report *models.MonthlyReport) ([]MonthlyReportRow, error) {

	entries, err := report.TimeEntriesForReport(ctx)
	if err != nil {
		return nil, err
	}

	subjects := map[int]string{}
	rows := make([]MonthlyReportRow, 0, len(entries))
	for _, entry := range entries {
		subject, ok := subjects[entry.ServiceRequestId]
		if !ok {
			serviceRequest, err := models.GetServiceRequest(ctx, entry.ServiceRequestId)
			if err == nil {
				subject = serviceRequest.Subject
			}
			subjects[entry.ServiceRequestId] = subject
		}
		rows = append(rows, MonthlyReportRow{
			EntryDate:    entry.EntryDate,
			Subject:      subject,
			Description:  entry.Description,
			Hours:        entry.Hours,
			RoundedHours: models.RoundToQuarterHour(entry.Hours),
			Billable:     utils.DereferencePtr(entry.Billable, true),
		})
	}
	return rows, nil
}

// BuildMonthlyReportExcel renders one monthly report as a workbook: a detail
// row per time entry and a summary block underneath.
func BuildMonthlyReportExcel(ctx context.Context, reportId int) (*excelize.File, error) {

	report, err := models.GetMonthlyReport(ctx, reportId)
	if err != nil {
		return nil, err
	}
	summary, err := models.GetReportSummary(ctx, reportId)
	if err != nil {
		return nil, err
	}
	rows, err := buildMonthlyReportRows(ctx, report)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "Sheet1"

	// Add headers
	f.SetCellValue(sheet, "A1", "Date")
	f.SetCellValue(sheet, "B1", "ServiceRequest")
	f.SetCellValue(sheet, "C1", "Description")
	f.SetCellValue(sheet, "D1", "Hours")
	f.SetCellValue(sheet, "E1", "BilledHours")
	f.SetCellValue(sheet, "F1", "Billable")

	// Add data
	for i, row := range rows {
		rowNo := fmt.Sprint(i + 2)
		f.SetCellValue(sheet, "A"+rowNo, row.EntryDate.Format("2006-01-02"))
		f.SetCellValue(sheet, "B"+rowNo, row.Subject)
		f.SetCellValue(sheet, "C"+rowNo, row.Description)
		f.SetCellValue(sheet, "D"+rowNo, row.Hours.String())
		f.SetCellValue(sheet, "E"+rowNo, row.RoundedHours.String())
		f.SetCellValue(sheet, "F"+rowNo, row.Billable)
	}

	base := len(rows) + 3
	f.SetCellValue(sheet, "A"+fmt.Sprint(base), "ReportMonth")
	f.SetCellValue(sheet, "B"+fmt.Sprint(base), summary.ReportMonth)
	f.SetCellValue(sheet, "A"+fmt.Sprint(base+1), "BillableHours")
	f.SetCellValue(sheet, "B"+fmt.Sprint(base+1), summary.BillableHours.String())
	f.SetCellValue(sheet, "A"+fmt.Sprint(base+2), "AllHours")
	f.SetCellValue(sheet, "B"+fmt.Sprint(base+2), summary.AllHours.String())
	f.SetCellValue(sheet, "A"+fmt.Sprint(base+3), "FreeHoursLimit")
	f.SetCellValue(sheet, "B"+fmt.Sprint(base+3), summary.Progress.Limit.String())
	f.SetCellValue(sheet, "A"+fmt.Sprint(base+4), "OverageHours")
	f.SetCellValue(sheet, "B"+fmt.Sprint(base+4), summary.OverageHours.String())
	f.SetCellValue(sheet, "A"+fmt.Sprint(base+5), "OverageAmount")
	f.SetCellValue(sheet, "B"+fmt.Sprint(base+5), summary.OverageAmount.String())

	return f, nil
}

// WriteExcel streams a workbook as an xlsx attachment.
func WriteExcel(w http.ResponseWriter, f *excelize.File, filename string) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	if err := f.Write(w); err != nil {
		http.Error(w, "Failed to write file", http.StatusInternalServerError)
	}
}
