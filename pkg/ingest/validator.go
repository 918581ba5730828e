package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/helixlabs/limsd/pkg/common/models"
)

var (
	errMissingMessageID = errors.New("missing message id")
	errInvalidOrderID   = errors.New("invalid test order id")
	errInvalidSource    = errors.New("invalid source system")
	errEmptyResults     = errors.New("message carries no results")
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

type Validator struct {
	allowedSources map[string]struct{}
}

// NewValidator restricts accepted source systems; an empty list allows any.
func NewValidator(sources []string) *Validator {
	vs := make(map[string]struct{})
	for _, src := range sources {
		if trimmed := strings.TrimSpace(strings.ToLower(src)); trimmed != "" {
			vs[trimmed] = struct{}{}
		}
	}
	return &Validator{allowedSources: vs}
}

func (v *Validator) Validate(msg models.ResultMessage) error {
	if v == nil {
		return ValidationError{reason: errors.New("validator not initialised")}
	}

	if strings.TrimSpace(msg.MessageID) == "" {
		return ValidationError{reason: errMissingMessageID}
	}
	if msg.TestOrderID <= 0 {
		return ValidationError{reason: errInvalidOrderID}
	}

	source := strings.TrimSpace(strings.ToLower(msg.SourceSystem))
	if source == "" {
		return ValidationError{reason: fmt.Errorf("source system required: %w", errInvalidSource)}
	}
	if len(v.allowedSources) > 0 {
		if _, ok := v.allowedSources[source]; !ok {
			return ValidationError{reason: fmt.Errorf("source '%s' not allowed: %w", source, errInvalidSource)}
		}
	}

	if len(msg.Results) == 0 {
		return ValidationError{reason: errEmptyResults}
	}
	for i, item := range msg.Results {
		if strings.TrimSpace(item.TestCode) == "" {
			return ValidationError{reason: fmt.Errorf("result %d: test_code is required", i)}
		}
		if item.Value == nil && strings.TrimSpace(item.ValueText) == "" {
			return ValidationError{reason: fmt.Errorf("result %d (%s): value or value_text is required", i, item.TestCode)}
		}
	}

	return nil
}
