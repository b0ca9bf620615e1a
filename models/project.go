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

type Project struct {
	ID              int             `gorm:"primary_key" json:"id"`
	OrganizationId  int             `gorm:"index;not null" json:"organization_id" binding:"required"`
	Name            string          `gorm:"size:255;not null" json:"name" binding:"required"`
	ReferenceNumber string          `gorm:"size:50;default:null;uniqueIndex" json:"reference_number"`
	CurrentStatus   ProjectStatus   `gorm:"type:enum('Active','WaitingOnClient','OnHold','Completed','Cancelled');not null;default:Active" json:"current_status"`
	TotalBudget     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_budget"`
	Notes           string          `gorm:"type:text;default:null" json:"notes"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProject struct {
	OrganizationId int             `json:"organization_id" binding:"required"`
	Name           string          `json:"name" binding:"required"`
	CurrentStatus  ProjectStatus   `json:"current_status"`
	TotalBudget    decimal.Decimal `json:"total_budget"`
	Notes          string          `json:"notes"`
}

func (input *NewProject) validate(ctx context.Context) error {
	// exists organization
	if err := utils.ValidateResourceId[Organization](ctx, input.OrganizationId); err != nil {
		return errors.New("organization not found")
	}
	if input.CurrentStatus != "" && !input.CurrentStatus.IsValid() {
		return errors.New("invalid project status")
	}
	return nil
}

func CreateProject(ctx context.Context, input *NewProject) (*Project, error) {

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	status := input.CurrentStatus
	if status == "" {
		status = ProjectStatusActive
	}

	project := Project{
		OrganizationId: input.OrganizationId,
		Name:           input.Name,
		CurrentStatus:  status,
		TotalBudget:    input.TotalBudget,
		Notes:          input.Notes,
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	tx := db.Begin()
	defer func() { _ = tx.Rollback().Error }()

	// db action
	if err := tx.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}

	// reference number is assigned exactly once, on first save
	if err := assignProjectReference(tx.WithContext(ctx), &project); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return &project, nil
}

func UpdateProject(ctx context.Context, id int, input *NewProject) (*Project, error) {

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	project, err := utils.FetchModel[Project](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action. ReferenceNumber is immutable and never part of an update.
	if err = db.WithContext(ctx).Model(project).
		Updates(map[string]interface{}{
			"OrganizationId": input.OrganizationId,
			"Name":           input.Name,
			"CurrentStatus":  input.CurrentStatus,
			"TotalBudget":    input.TotalBudget,
			"Notes":          input.Notes,
		}).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}

	flush()
	return project, nil
}

func DeleteProject(ctx context.Context, id int) (*Project, error) {

	project, err := utils.FetchModel[Project](ctx, id)
	if err != nil {
		return nil, err
	}

	// do not delete while milestones exist
	count, err := utils.ResourceCountWhere[Milestone](ctx, "project_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("project still has milestones")
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action
	err = db.WithContext(ctx).Delete(project).Error
	if err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return project, nil
}

func GetProject(ctx context.Context, id int) (*Project, error) {
	return GetResource[Project](ctx, id)
}

func GetProjectAll(ctx context.Context, organizationId *int) ([]*Project, error) {

	db := config.GetDB()
	var results []*Project

	dbCtx := db.WithContext(ctx)
	if organizationId != nil && *organizationId > 0 {
		dbCtx = dbCtx.Where("organization_id = ?", *organizationId)
	}
	// db query
	err := dbCtx.Order("reference_number").Find(&results).Error
	if err != nil {
		return nil, utils.WrapDBError(err)
	}
	return results, nil
}

// GetActiveProjects lists up to limit active projects for the workbench view,
// cached until a project write evicts the project-list namespace.
func GetActiveProjects(ctx context.Context, limit int) ([]*Project, error) {
	if limit <= 0 {
		limit = 20
	}
	key := fmt.Sprintf("%s%d", NamespaceActiveProjects, limit)
	return cache.Remember(ctx, cache.Std(), key, utils.GetCacheLifespan(), func(ctx context.Context) ([]*Project, error) {
		ctx, cancel := utils.WithStoreTimeout(ctx)
		defer cancel()

		db := config.GetDB()
		var results []*Project
		err := db.WithContext(ctx).
			Where("current_status = ?", ProjectStatusActive).
			Order("reference_number").
			Limit(limit).
			Find(&results).Error
		if err != nil {
			return nil, utils.WrapDBError(err)
		}
		return results, nil
	})
}
