package refrange

import (
	"errors"
	"fmt"

	"github.com/helixlabs/limsd/pkg/common/models"
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// validateItems rejects a sync batch before any writes happen. A single bad
// item fails the whole call so the store never holds half-applied config.
func validateItems(items []models.RangeConfigItem) error {
	if len(items) == 0 {
		return ValidationError{reason: errors.New("empty config batch")}
	}
	for i, item := range items {
		if NormalizeCode(item.TestCode) == "" {
			return ValidationError{reason: fmt.Errorf("item %d: test_code is required", i)}
		}
		if item.Min != nil && item.Max != nil && *item.Min >= *item.Max {
			return ValidationError{reason: fmt.Errorf("item %d (%s): min %v must be strictly less than max %v",
				i, item.TestCode, *item.Min, *item.Max)}
		}
	}
	return nil
}
