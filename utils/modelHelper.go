package utils

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
	"gorm.io/gorm"
)

/* DB fetching */

// fetch model from db
// (may return RecordNotFound)
func FetchModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return &result, nil
}

// check if id exists, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ResourceCountWhere[T any](ctx context.Context, cond string, values ...interface{}) (int64, error) {
	db := config.GetDB()
	var model T
	var count int64
	err := db.WithContext(ctx).Model(&model).Where(cond, values...).Count(&count).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, WrapDBError(err)
	}
	return count, nil
}

// check field value is not taken by another row. (excludeId = 0 for create)
func ValidateUnique[T any](ctx context.Context, field string, value interface{}, excludeId int) error {
	count, err := ResourceCountWhere[T](ctx, field+" = ? AND id != ?", value, excludeId)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New(field + " already exists")
	}
	return nil
}
