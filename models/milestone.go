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

type Milestone struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	ProjectId       int                 `gorm:"index;not null" json:"project_id" binding:"required"`
	Name            string              `gorm:"size:255;not null" json:"name" binding:"required"`
	Order           decimal.Decimal     `gorm:"column:display_order;type:decimal(10,2);not null" json:"order" binding:"required"`
	ReferenceNumber string              `gorm:"size:50;default:null;uniqueIndex" json:"reference_number"`
	Amount          decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"amount"`
	WorkStatus      MilestoneWorkStatus `gorm:"type:enum('Planned','InProgress','OnHold','WaitingForClient','Completed');not null;default:Planned" json:"work_status"`
	IsDeposit       *bool               `gorm:"not null;default:false" json:"is_deposit"`
	Notes           string              `gorm:"type:text;default:null" json:"notes"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMilestone struct {
	ProjectId  int                 `json:"project_id" binding:"required"`
	Name       string              `json:"name" binding:"required"`
	Order      decimal.Decimal     `json:"order" binding:"required"`
	Amount     decimal.Decimal     `json:"amount"`
	WorkStatus MilestoneWorkStatus `json:"work_status"`
	IsDeposit  *bool               `json:"is_deposit"`
	Notes      string              `json:"notes"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewMilestone) validate(ctx context.Context, id int) error {
	// exists project
	if err := utils.ValidateResourceId[Project](ctx, input.ProjectId); err != nil {
		return errors.New("project not found")
	}
	if input.Order.LessThanOrEqual(decimal.Zero) {
		return errors.New("order must be positive")
	}
	if input.Amount.IsNegative() {
		return errors.New("amount cannot be negative")
	}
	if input.WorkStatus != "" && !input.WorkStatus.IsValid() {
		return errors.New("invalid work status")
	}
	// order is the reference suffix, keep it unique within the project
	count, err := utils.ResourceCountWhere[Milestone](ctx,
		"project_id = ? AND display_order = ? AND id != ?", input.ProjectId, input.Order, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("order already used in this project")
	}
	return nil
}

func CreateMilestone(ctx context.Context, input *NewMilestone) (*Milestone, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	status := input.WorkStatus
	if status == "" {
		status = MilestoneWorkStatusPlanned
	}
	isDeposit := input.IsDeposit
	if isDeposit == nil {
		isDeposit = utils.NewFalse()
	}

	milestone := Milestone{
		ProjectId:  input.ProjectId,
		Name:       input.Name,
		Order:      input.Order,
		Amount:     input.Amount,
		WorkStatus: status,
		IsDeposit:  isDeposit,
		Notes:      input.Notes,
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	tx := db.Begin()
	defer func() { _ = tx.Rollback().Error }()

	// db action
	if err := tx.WithContext(ctx).Create(&milestone).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}

	// assigned exactly once; silently skipped while the project has no
	// reference yet, a later AssignMilestoneReference retries
	if err := assignMilestoneReference(tx.WithContext(ctx), &milestone); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return &milestone, nil
}

func UpdateMilestone(ctx context.Context, id int, input *NewMilestone) (*Milestone, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	milestone, err := utils.FetchModel[Milestone](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action. ReferenceNumber is immutable: a later order change does not
	// rewrite an already assigned reference.
	if err = db.WithContext(ctx).Model(milestone).
		Updates(map[string]interface{}{
			"ProjectId":  input.ProjectId,
			"Name":       input.Name,
			"Order":      input.Order,
			"Amount":     input.Amount,
			"WorkStatus": input.WorkStatus,
			"IsDeposit":  input.IsDeposit,
			"Notes":      input.Notes,
		}).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}

	flush()
	return milestone, nil
}

func DeleteMilestone(ctx context.Context, id int) (*Milestone, error) {

	milestone, err := utils.FetchModel[Milestone](ctx, id)
	if err != nil {
		return nil, err
	}

	// invoices keep their ledger role, a billed milestone cannot vanish
	count, err := utils.ResourceCountWhere[Invoice](ctx, "milestone_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("milestone has linked invoices")
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action
	err = db.WithContext(ctx).Delete(milestone).Error
	if err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return milestone, nil
}

func GetMilestone(ctx context.Context, id int) (*Milestone, error) {
	return GetResource[Milestone](ctx, id)
}

func GetMilestoneAll(ctx context.Context, projectId int) ([]*Milestone, error) {

	db := config.GetDB()
	var results []*Milestone
	// db query
	err := db.WithContext(ctx).
		Where("project_id = ?", projectId).
		Order("display_order").
		Find(&results).Error
	if err != nil {
		return nil, utils.WrapDBError(err)
	}
	return results, nil
}

/* payment status (derived, never stored) */

type milestoneInvoiceTotals struct {
	Count     int             `json:"count"`
	TotalPaid decimal.Decimal `json:"total_paid"`
}

// milestonePaymentStatusOf derives the payment status from the linked
// invoice ledger. Monotonic in totalPaid: paid totals only grow, so a
// milestone never regresses from Paid back to Invoiced.
func milestonePaymentStatusOf(amount decimal.Decimal, totalPaid decimal.Decimal, invoiceCount int) MilestonePaymentStatus {
	if invoiceCount == 0 {
		return MilestonePaymentStatusPending
	}
	if amount.GreaterThan(decimal.Zero) && totalPaid.GreaterThanOrEqual(amount) {
		return MilestonePaymentStatusPaid
	}
	return MilestonePaymentStatusInvoiced
}

// invoiceTotals aggregates the milestone's linked invoices, fresh on every
// read. Storing the result would split the source of truth.
func (m *Milestone) invoiceTotals(ctx context.Context) (*milestoneInvoiceTotals, error) {
	ctx, cancel := utils.WithStoreTimeout(ctx)
	defer cancel()

	db := config.GetDB()
	var totals milestoneInvoiceTotals
	err := db.WithContext(ctx).Model(&Invoice{}).
		Where("milestone_id = ?", m.ID).
		Select("COUNT(*) AS count, COALESCE(SUM(amount_paid), 0) AS total_paid").
		Scan(&totals).Error
	if err != nil {
		return nil, utils.WrapDBError(err)
	}
	return &totals, nil
}

func (m *Milestone) PaymentStatus(ctx context.Context) (MilestonePaymentStatus, error) {
	totals, err := m.invoiceTotals(ctx)
	if err != nil {
		return "", err
	}
	return milestonePaymentStatusOf(m.Amount, totals.TotalPaid, totals.Count), nil
}

func (m *Milestone) PaidTotal(ctx context.Context) (decimal.Decimal, error) {
	totals, err := m.invoiceTotals(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return totals.TotalPaid, nil
}

func (m *Milestone) InvoiceCount(ctx context.Context) (int, error) {
	totals, err := m.invoiceTotals(ctx)
	if err != nil {
		return 0, err
	}
	return totals.Count, nil
}

func (m *Milestone) IsPaid(ctx context.Context) (bool, error) {
	status, err := m.PaymentStatus(ctx)
	if err != nil {
		return false, err
	}
	return status == MilestonePaymentStatusPaid, nil
}

// OrderDisplay renders "order / milestones in project". The denominator is
// the project-rollup milestone count, cached until a milestone write evicts
// the rollup namespace.
func (m *Milestone) OrderDisplay(ctx context.Context) (string, error) {
	total, err := projectMilestoneCount(ctx, m.ProjectId)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s / %d", m.Order.String(), total), nil
}

func projectMilestoneCount(ctx context.Context, projectId int) (int64, error) {
	key := fmt.Sprintf("%s%d", NamespaceProjectRollup, projectId)
	return cache.Remember(ctx, cache.Std(), key, utils.GetCacheLifespan(), func(ctx context.Context) (int64, error) {
		ctx, cancel := utils.WithStoreTimeout(ctx)
		defer cancel()
		return utils.ResourceCountWhere[Milestone](ctx, "project_id = ?", projectId)
	})
}
