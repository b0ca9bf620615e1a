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

type TimeEntry struct {
	ID               int             `gorm:"primary_key" json:"id"`
	ServiceRequestId int             `gorm:"index;default:null" json:"service_request_id"`
	ProjectId        int             `gorm:"index;default:null" json:"project_id"`
	MilestoneId      int             `gorm:"index;default:null" json:"milestone_id"`
	Hours            decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"hours" binding:"required"`
	EntryDate        time.Time       `gorm:"not null;index" json:"entry_date" binding:"required"`
	Billable         *bool           `gorm:"default:true" json:"billable"`
	Description      string          `gorm:"type:text;default:null" json:"description"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTimeEntry struct {
	ServiceRequestId int             `json:"service_request_id"`
	ProjectId        int             `json:"project_id"`
	MilestoneId      int             `json:"milestone_id"`
	Hours            decimal.Decimal `json:"hours" binding:"required"`
	EntryDate        time.Time       `json:"entry_date" binding:"required"`
	Billable         *bool           `json:"billable"`
	Description      string          `json:"description"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewTimeEntry) validate(ctx context.Context, _ int) error {
	// exactly one owning scope
	scopes := 0
	if input.ServiceRequestId > 0 {
		scopes++
	}
	if input.ProjectId > 0 {
		scopes++
	}
	if input.MilestoneId > 0 {
		scopes++
	}
	if scopes != 1 {
		return errors.New("time entry must be linked to exactly one of service request, project or milestone")
	}
	if input.ServiceRequestId > 0 {
		if err := utils.ValidateResourceId[ServiceRequest](ctx, input.ServiceRequestId); err != nil {
			return errors.New("service request not found")
		}
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
	if !input.Hours.IsPositive() {
		return errors.New("hours must be positive")
	}
	if input.EntryDate.IsZero() {
		return errors.New("entry date is required")
	}
	return nil
}

func CreateTimeEntry(ctx context.Context, input *NewTimeEntry) (*TimeEntry, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	billable := input.Billable
	if billable == nil {
		billable = utils.NewTrue()
	}

	entry := TimeEntry{
		ServiceRequestId: input.ServiceRequestId,
		ProjectId:        input.ProjectId,
		MilestoneId:      input.MilestoneId,
		Hours:            input.Hours,
		EntryDate:        input.EntryDate,
		Billable:         billable,
		Description:      input.Description,
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action
	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return &entry, nil
}

func UpdateTimeEntry(ctx context.Context, id int, input *NewTimeEntry) (*TimeEntry, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	entry, err := utils.FetchModel[TimeEntry](ctx, id)
	if err != nil {
		return nil, err
	}

	billable := input.Billable
	if billable == nil {
		billable = entry.Billable
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action
	if err = db.WithContext(ctx).Model(entry).
		Updates(map[string]interface{}{
			"ServiceRequestId": input.ServiceRequestId,
			"ProjectId":        input.ProjectId,
			"MilestoneId":      input.MilestoneId,
			"Hours":            input.Hours,
			"EntryDate":        input.EntryDate,
			"Billable":         billable,
			"Description":      input.Description,
		}).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return entry, nil
}

func DeleteTimeEntry(ctx context.Context, id int) (*TimeEntry, error) {

	entry, err := utils.FetchModel[TimeEntry](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action
	if err = db.WithContext(ctx).Delete(entry).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return entry, nil
}

func GetTimeEntry(ctx context.Context, id int) (*TimeEntry, error) {
	return GetResource[TimeEntry](ctx, id)
}

/* hour rollups */

func sumHours(ctx context.Context, column string, id int) (decimal.Decimal, error) {
	ctx, cancel := utils.WithStoreTimeout(ctx)
	defer cancel()

	db := config.GetDB()
	var total decimal.Decimal
	err := db.WithContext(ctx).Model(&TimeEntry{}).
		Select("COALESCE(SUM(hours), 0)").
		Where(fmt.Sprintf("%s = ?", column), id).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, utils.WrapDBError(err)
	}
	return total, nil
}

// TotalHoursForServiceRequest sums raw logged hours for one service request,
// cached until a time entry write evicts the namespace. Rounding is a report
// concern, the rollups stay exact.
func TotalHoursForServiceRequest(ctx context.Context, serviceRequestId int) (decimal.Decimal, error) {
	key := fmt.Sprintf("%s%d", NamespaceServiceRequestHours, serviceRequestId)
	return cache.Remember(ctx, cache.Std(), key, utils.GetCacheLifespan(), func(ctx context.Context) (decimal.Decimal, error) {
		return sumHours(ctx, "service_request_id", serviceRequestId)
	})
}

func TotalHoursForProject(ctx context.Context, projectId int) (decimal.Decimal, error) {
	key := fmt.Sprintf("%s%d", NamespaceProjectHours, projectId)
	return cache.Remember(ctx, cache.Std(), key, utils.GetCacheLifespan(), func(ctx context.Context) (decimal.Decimal, error) {
		return sumHours(ctx, "project_id", projectId)
	})
}

func TotalHoursForMilestone(ctx context.Context, milestoneId int) (decimal.Decimal, error) {
	key := fmt.Sprintf("%s%d", NamespaceMilestoneHours, milestoneId)
	return cache.Remember(ctx, cache.Std(), key, utils.GetCacheLifespan(), func(ctx context.Context) (decimal.Decimal, error) {
		return sumHours(ctx, "milestone_id", milestoneId)
	})
}
