package schedule

import (
	"errors"
	"fmt"
)

// Sentinel errors for the schedule service layer.
var (
	ErrNotFound = errors.New("schedule not found")
)

// ValidationError reports a malformed schedule field. Validation errors are
// rejected at create/edit time and never persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
