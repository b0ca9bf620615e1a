package utils

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorStoreUnavailable marks infrastructure failures (db unreachable, call
// timed out). Calculators must surface it to the caller instead of silently
// substituting zero; "no data" is ErrorRecordNotFound, a different case.
var ErrorStoreUnavailable = errors.New("object store unavailable")

// WrapDBError maps a gorm error to the error taxonomy.
func WrapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorRecordNotFound
	}
	return fmt.Errorf("%w: %v", ErrorStoreUnavailable, err)
}
