package survey

import "errors"

// Sentinel errors for the survey service layer.
var (
	// ErrNotFound means the access token (or id) matches no survey instance.
	ErrNotFound = errors.New("survey not found")

	// ErrClosed means the survey is already completed or expired; no
	// submission is accepted and no field changes.
	ErrClosed = errors.New("survey closed")

	// ErrIncompleteResponse means the submitted answers do not cover the
	// frozen question set's required prompts.
	ErrIncompleteResponse = errors.New("response does not cover the question set")

	// ErrTokenExists is returned by repositories on an access-token unique
	// constraint violation; the issuer retries with a fresh token.
	ErrTokenExists = errors.New("access token already issued")
)
