package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
	"bitbucket.org/mmdatafocus/clientdesk_backend/utils"
	"github.com/shopspring/decimal"
)

// Organization is the root of all client-scoped data. It is never hard
// deleted while dependents exist; DeleteOrganization refuses when projects,
// invoices or service requests still reference it.
type Organization struct {
	ID             int              `gorm:"primary_key" json:"id"`
	Shortcode      string           `gorm:"size:20;not null;uniqueIndex" json:"shortcode" binding:"required"`
	Name           string           `gorm:"size:255;not null" json:"name" binding:"required"`
	FreeHoursLimit *decimal.Decimal `gorm:"type:decimal(10,2);default:null" json:"free_hours_limit"`
	Notes          string           `gorm:"type:text;default:null" json:"notes"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrganization struct {
	Shortcode      string           `json:"shortcode" binding:"required"`
	Name           string           `json:"name" binding:"required"`
	FreeHoursLimit *decimal.Decimal `json:"free_hours_limit"`
	Notes          string           `json:"notes"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewOrganization) validate(ctx context.Context, id int) error {
	// shortcode stays unique across clients
	if err := utils.ValidateUnique[Organization](ctx, "shortcode", input.Shortcode, id); err != nil {
		return err
	}
	return nil
}

func CreateOrganization(ctx context.Context, input *NewOrganization) (*Organization, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	organization := Organization{
		Shortcode:      input.Shortcode,
		Name:           input.Name,
		FreeHoursLimit: input.FreeHoursLimit,
		Notes:          input.Notes,
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action
	err := db.WithContext(ctx).Create(&organization).Error
	if err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return &organization, nil
}

func UpdateOrganization(ctx context.Context, id int, input *NewOrganization) (*Organization, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	organization, err := utils.FetchModel[Organization](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action
	if err = db.WithContext(ctx).Model(organization).
		Updates(map[string]interface{}{
			"Shortcode":      input.Shortcode,
			"Name":           input.Name,
			"FreeHoursLimit": input.FreeHoursLimit,
			"Notes":          input.Notes,
		}).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}

	flush()
	return organization, nil
}

func DeleteOrganization(ctx context.Context, id int) (*Organization, error) {

	organization, err := utils.FetchModel[Organization](ctx, id)
	if err != nil {
		return nil, err
	}

	// do not delete while dependents exist
	dependentCounts := []struct {
		name  string
		count func() (int64, error)
	}{
		{"project", func() (int64, error) {
			return utils.ResourceCountWhere[Project](ctx, "organization_id = ?", id)
		}},
		{"invoice", func() (int64, error) {
			return utils.ResourceCountWhere[Invoice](ctx, "organization_id = ?", id)
		}},
		{"service request", func() (int64, error) {
			return utils.ResourceCountWhere[ServiceRequest](ctx, "organization_id = ?", id)
		}},
		{"monthly report", func() (int64, error) {
			return utils.ResourceCountWhere[MonthlyReport](ctx, "organization_id = ?", id)
		}},
	}
	for _, dep := range dependentCounts {
		count, err := dep.count()
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, errors.New("organization still has " + dep.name + " records")
		}
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action
	err = db.WithContext(ctx).Delete(organization).Error
	if err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return organization, nil
}

func GetOrganization(ctx context.Context, id int) (*Organization, error) {
	return GetResource[Organization](ctx, id)
}

func GetOrganizationAll(ctx context.Context, name *string) ([]*Organization, error) {

	db := config.GetDB()
	var results []*Organization

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ? OR shortcode LIKE ?", "%"+*name+"%", "%"+*name+"%")
	}
	// db query
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, utils.WrapDBError(err)
	}
	return results, nil
}
