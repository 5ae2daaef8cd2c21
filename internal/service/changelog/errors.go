package changelog

import "errors"

// Sentinel errors for the change review workflow.
var (
	ErrNotFound        = errors.New("change log entry not found")
	ErrAlreadyReviewed = errors.New("change log entry already reviewed")
	ErrInvalidDecision = errors.New("decision must be approved or rejected")
	ErrInvalidType     = errors.New("unknown change type")
)
