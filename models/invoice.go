package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/clientdesk_backend/cache"
	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
	"bitbucket.org/mmdatafocus/clientdesk_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Invoice struct {
	ID             int               `gorm:"primary_key" json:"id"`
	OrganizationId int               `gorm:"index;not null" json:"organization_id" binding:"required"`
	ProjectId      int               `gorm:"index;default:null" json:"project_id"`
	MilestoneId    int               `gorm:"index;default:null" json:"milestone_id"`
	InvoiceNumber  string            `gorm:"size:50;not null;uniqueIndex" json:"invoice_number"`
	Amount         decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"amount"`
	AmountPaid     decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"amount_paid"`
	CurrentStatus  InvoiceStatus     `gorm:"type:enum('Draft','Pending','Partial','Paid','Overdue','Void','Credited');not null;default:Draft" json:"current_status"`
	InvoiceDueDate *time.Time        `gorm:"default:null" json:"invoice_due_date"`
	PaymentDate    *time.Time        `gorm:"default:null" json:"payment_date"`
	PaymentMethod  string            `gorm:"size:100;default:null" json:"payment_method"`
	TransactionRef string            `gorm:"size:255;default:null" json:"transaction_ref"`
	ProcessingFee  decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"processing_fee"`
	Notes          string            `gorm:"type:text;default:null" json:"notes"`
	LineItems      []InvoiceLineItem `gorm:"foreignKey:InvoiceId" json:"line_items"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInvoice struct {
	OrganizationId int                 `json:"organization_id" binding:"required"`
	ProjectId      int                 `json:"project_id"`
	MilestoneId    int                 `json:"milestone_id"`
	Amount         decimal.Decimal     `json:"amount"`
	CurrentStatus  InvoiceStatus       `json:"current_status"`
	InvoiceDueDate *time.Time          `json:"invoice_due_date"`
	Notes          string              `json:"notes"`
	LineItems      []NewInvoiceLineItem `json:"line_items"`
}

type InvoiceLineItem struct {
	ID        int             `gorm:"primary_key" json:"id"`
	InvoiceId int             `gorm:"index;not null" json:"invoice_id" binding:"required"`
	LineType  LineItemType    `gorm:"type:enum('Fixed','Support','Expense','Discount');not null;default:Fixed" json:"line_type"`
	Name      string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Quantity  decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"quantity"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInvoiceLineItem struct {
	LineType LineItemType    `json:"line_type"`
	Name     string          `json:"name" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Quantity decimal.Decimal `json:"quantity"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewInvoice) validate(ctx context.Context, _ int) error {
	// exists organization
	if err := utils.ValidateResourceId[Organization](ctx, input.OrganizationId); err != nil {
		return errors.New("organization not found")
	}
	// at most one owning scope: project-direct or milestone
	if input.ProjectId > 0 && input.MilestoneId > 0 {
		return errors.New("invoice cannot be linked to both a project and a milestone")
	}
	if input.ProjectId > 0 {
		if err := utils.ValidateResourceId[Project](ctx, input.ProjectId); err != nil {
			return errors.New("project not found")
		}
	}
	if input.MilestoneId > 0 {
		if err := utils.ValidateResourceId[Milestone](ctx, input.MilestoneId); err != nil {
			return errors.New("milestone not found")
		}
	}
	if input.Amount.IsNegative() {
		return errors.New("amount cannot be negative")
	}
	if input.CurrentStatus != "" && !input.CurrentStatus.IsValid() {
		return errors.New("invalid invoice status")
	}
	for _, item := range input.LineItems {
		if item.LineType != "" && !item.LineType.IsValid() {
			return errors.New("invalid line item type")
		}
	}
	return nil
}

func mapNewInvoiceLineItems(input []NewInvoiceLineItem) []InvoiceLineItem {
	items := make([]InvoiceLineItem, 0, len(input))
	for _, item := range input {
		lineType := item.LineType
		if lineType == "" {
			lineType = LineItemTypeFixed
		}
		items = append(items, InvoiceLineItem{
			LineType: lineType,
			Name:     item.Name,
			Amount:   item.Amount,
			Quantity: item.Quantity,
		})
	}
	return items
}

func CreateInvoice(ctx context.Context, input *NewInvoice) (*Invoice, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	status := input.CurrentStatus
	if status == "" {
		status = InvoiceStatusDraft
	}

	items := mapNewInvoiceLineItems(input.LineItems)

	// invoice amount defaults to the line item sum when not given
	amount := input.Amount
	if amount.IsZero() && len(items) > 0 {
		for _, item := range items {
			amount = amount.Add(item.Amount)
		}
	}

	invoice := Invoice{
		OrganizationId: input.OrganizationId,
		ProjectId:      input.ProjectId,
		MilestoneId:    input.MilestoneId,
		Amount:         amount,
		CurrentStatus:  status,
		InvoiceDueDate: input.InvoiceDueDate,
		Notes:          input.Notes,
		LineItems:      items,
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	tx := db.Begin()
	defer func() { _ = tx.Rollback().Error }()

	// immutable once assigned
	invoiceNumber, err := nextInvoiceNumber(tx.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	invoice.InvoiceNumber = invoiceNumber

	// db action
	if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return &invoice, nil
}

func UpdateInvoice(ctx context.Context, id int, input *NewInvoice) (*Invoice, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	invoice, err := utils.FetchModel[Invoice](ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.CurrentStatus.isTerminal() {
		return nil, errors.New("invoice is in a terminal status")
	}

	items := mapNewInvoiceLineItems(input.LineItems)

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	tx := db.Begin()
	defer func() { _ = tx.Rollback().Error }()

	// db action. InvoiceNumber and the payment ledger fields are not
	// client-updatable; RecordPayment owns AmountPaid.
	if err = tx.WithContext(ctx).Model(invoice).
		Updates(map[string]interface{}{
			"OrganizationId": input.OrganizationId,
			"ProjectId":      input.ProjectId,
			"MilestoneId":    input.MilestoneId,
			"Amount":         input.Amount,
			"InvoiceDueDate": input.InvoiceDueDate,
			"Notes":          input.Notes,
		}).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	// line items move in lockstep with their invoice
	if err = tx.WithContext(ctx).Model(invoice).
		Session(&gorm.Session{FullSaveAssociations: true, SkipHooks: true}).
		Association("LineItems").
		Unscoped().Replace(&items); err != nil {
		return nil, utils.WrapDBError(err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapDBError(err)
	}

	flush()
	return invoice, nil
}

// SetInvoiceStatus applies a manual status transition. Paid/Partial are owned
// by RecordPayment; Overdue is derived at read time and cannot be stored.
func SetInvoiceStatus(ctx context.Context, id int, status InvoiceStatus) (*Invoice, error) {
	if !status.IsValid() {
		return nil, errors.New("invalid invoice status")
	}
	switch status {
	case InvoiceStatusPaid, InvoiceStatusPartial:
		return nil, errors.New("payment statuses are set by recording payments")
	case InvoiceStatusOverdue:
		return nil, errors.New("overdue is derived, not stored")
	}

	invoice, err := utils.FetchModel[Invoice](ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.CurrentStatus.isTerminal() {
		return nil, errors.New("invoice is in a terminal status")
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	if err = db.WithContext(ctx).Model(invoice).
		Updates(map[string]interface{}{"CurrentStatus": status}).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return invoice, nil
}

func DeleteInvoice(ctx context.Context, id int) (*Invoice, error) {

	invoice, err := utils.FetchModel[Invoice](ctx, id, "LineItems")
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action, line items cascade with their invoice
	err = db.WithContext(ctx).Select("LineItems").Delete(invoice).Error
	if err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return invoice, nil
}

func GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	return GetResource[Invoice](ctx, id, "LineItems")
}

/* derived status (read-time, never stored) */

// Balance is the open amount, never negative.
func (iv Invoice) Balance() decimal.Decimal {
	balance := iv.Amount.Sub(iv.AmountPaid)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

// StoredStatus is exactly what persistence says. EffectiveStatus overlays the
// read-time Overdue derivation; keeping both accessors separate keeps the
// derived-vs-stored duality visible at call sites.
func (iv Invoice) StoredStatus() InvoiceStatus {
	return iv.CurrentStatus
}

// OverdueAsOf compares calendar dates, not instants: an invoice due yesterday
// is overdue all of today regardless of time of day.
func (iv Invoice) OverdueAsOf(today time.Time) bool {
	if iv.CurrentStatus.isTerminal() {
		return false
	}
	if iv.InvoiceDueDate == nil {
		return false
	}
	due := *iv.InvoiceDueDate
	dueDate := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, today.Location())
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	return dueDate.Before(todayDate)
}

// IsOverdue evaluates against today's calendar date in the business
// timezone (BUSINESS_TIMEZONE, default Asia/Yangon).
func (iv Invoice) IsOverdue() bool {
	today, err := utils.ConvertToDate(time.Now(), os.Getenv("BUSINESS_TIMEZONE"))
	if err != nil {
		today = time.Now()
	}
	return iv.OverdueAsOf(today)
}

// EffectiveStatus is the display status: stored status with Overdue overlaid
// at read time. Nothing persists Overdue.
func (iv Invoice) EffectiveStatus(today time.Time) InvoiceStatus {
	if iv.OverdueAsOf(today) {
		return InvoiceStatusOverdue
	}
	return iv.CurrentStatus
}

/* project rollups */

// invoicesForProject returns every invoice reachable from the project,
// directly or via its milestones, newest first. The single query de-dupes by
// construction.
func invoicesForProject(ctx context.Context, projectId int) ([]*Invoice, error) {
	ctx, cancel := utils.WithStoreTimeout(ctx)
	defer cancel()

	db := config.GetDB()
	var results []*Invoice
	err := db.WithContext(ctx).
		Where("project_id = ? OR milestone_id IN (?)",
			projectId,
			db.Model(&Milestone{}).Select("id").Where("project_id = ?", projectId),
		).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, utils.WrapDBError(err)
	}
	return results, nil
}

func TotalInvoicedForProject(ctx context.Context, projectId int) (decimal.Decimal, error) {
	invoices, err := invoicesForProject(ctx, projectId)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, invoice := range invoices {
		total = total.Add(invoice.Amount)
	}
	return total, nil
}

func TotalPaidForProject(ctx context.Context, projectId int) (decimal.Decimal, error) {
	invoices, err := invoicesForProject(ctx, projectId)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, invoice := range invoices {
		total = total.Add(invoice.AmountPaid)
	}
	return total, nil
}

/* cached lists */

// GetInvoicesForOrganization lists an organization's invoices newest first,
// cached until an invoice write evicts the invoice-list namespace.
func GetInvoicesForOrganization(ctx context.Context, organizationId int) ([]*Invoice, error) {
	key := fmt.Sprintf("%s%d", NamespaceInvoiceList, organizationId)
	return cache.Remember(ctx, cache.Std(), key, utils.GetCacheLifespan(), func(ctx context.Context) ([]*Invoice, error) {
		ctx, cancel := utils.WithStoreTimeout(ctx)
		defer cancel()

		db := config.GetDB()
		var results []*Invoice
		err := db.WithContext(ctx).
			Where("organization_id = ?", organizationId).
			Order("created_at DESC").
			Find(&results).Error
		if err != nil {
			return nil, utils.WrapDBError(err)
		}
		return results, nil
	})
}

// GetPendingInvoicesForOrganization lists open invoices (Pending or Partial)
// ordered by due date, cached under the pending-invoices namespace.
func GetPendingInvoicesForOrganization(ctx context.Context, organizationId int) ([]*Invoice, error) {
	key := fmt.Sprintf("%s%d", NamespacePendingInvoices, organizationId)
	return cache.Remember(ctx, cache.Std(), key, utils.GetCacheLifespan(), func(ctx context.Context) ([]*Invoice, error) {
		ctx, cancel := utils.WithStoreTimeout(ctx)
		defer cancel()

		db := config.GetDB()
		var results []*Invoice
		err := db.WithContext(ctx).
			Where("organization_id = ? AND current_status IN ?", organizationId,
				[]InvoiceStatus{InvoiceStatusPending, InvoiceStatusPartial}).
			Order("invoice_due_date").
			Find(&results).Error
		if err != nil {
			return nil, utils.WrapDBError(err)
		}
		return results, nil
	})
}
