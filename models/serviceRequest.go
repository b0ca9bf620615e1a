package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
	"bitbucket.org/mmdatafocus/clientdesk_backend/utils"
)

// ServiceRequest is a client support ticket. Monthly reports aggregate time
// entries through it: the report's organization owns requests, requests own
// entries. A request carries its organization as a first-class foreign key;
// moving a request between organizations retroactively changes historical
// report totals (known quirk, see DESIGN.md).
type ServiceRequest struct {
	ID             int                  `gorm:"primary_key" json:"id"`
	OrganizationId int                  `gorm:"index;not null" json:"organization_id" binding:"required"`
	Subject        string               `gorm:"size:255;not null" json:"subject" binding:"required"`
	Details        string               `gorm:"type:text;default:null" json:"details"`
	CurrentStatus  ServiceRequestStatus `gorm:"type:enum('Open','InProgress','Resolved','Closed');not null;default:Open" json:"current_status"`
	CreatedAt      time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewServiceRequest struct {
	OrganizationId int                  `json:"organization_id" binding:"required"`
	Subject        string               `json:"subject" binding:"required"`
	Details        string               `json:"details"`
	CurrentStatus  ServiceRequestStatus `json:"current_status"`
}

func (input *NewServiceRequest) validate(ctx context.Context) error {
	// exists organization
	if err := utils.ValidateResourceId[Organization](ctx, input.OrganizationId); err != nil {
		return errors.New("organization not found")
	}
	if input.CurrentStatus != "" && !input.CurrentStatus.IsValid() {
		return errors.New("invalid service request status")
	}
	return nil
}

func CreateServiceRequest(ctx context.Context, input *NewServiceRequest) (*ServiceRequest, error) {

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	status := input.CurrentStatus
	if status == "" {
		status = ServiceRequestStatusOpen
	}

	request := ServiceRequest{
		OrganizationId: input.OrganizationId,
		Subject:        input.Subject,
		Details:        input.Details,
		CurrentStatus:  status,
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action
	err := db.WithContext(ctx).Create(&request).Error
	if err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return &request, nil
}

func UpdateServiceRequest(ctx context.Context, id int, input *NewServiceRequest) (*ServiceRequest, error) {

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	request, err := utils.FetchModel[ServiceRequest](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action
	if err = db.WithContext(ctx).Model(request).
		Updates(map[string]interface{}{
			"OrganizationId": input.OrganizationId,
			"Subject":        input.Subject,
			"Details":        input.Details,
			"CurrentStatus":  input.CurrentStatus,
		}).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}

	flush()
	return request, nil
}

func DeleteServiceRequest(ctx context.Context, id int) (*ServiceRequest, error) {

	request, err := utils.FetchModel[ServiceRequest](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	// db action
	err = db.WithContext(ctx).Delete(request).Error
	if err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return request, nil
}

func GetServiceRequest(ctx context.Context, id int) (*ServiceRequest, error) {
	return GetResource[ServiceRequest](ctx, id)
}

func GetServiceRequestAll(ctx context.Context, organizationId int) ([]*ServiceRequest, error) {
	ctx, cancel := utils.WithStoreTimeout(ctx)
	defer cancel()

	db := config.GetDB()
	var results []*ServiceRequest
	query := db.WithContext(ctx).Order("created_at DESC")
	if organizationId > 0 {
		query = query.Where("organization_id = ?", organizationId)
	}
	if err := query.Find(&results).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	return results, nil
}

// service request ids of one organization
func getServiceRequestIds(ctx context.Context, organizationId int) ([]int, error) {
	db := config.GetDB()
	var ids []int
	if err := db.WithContext(ctx).Model(&ServiceRequest{}).
		Where("organization_id = ?", organizationId).
		Select("id").Scan(&ids).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	return ids, nil
}
