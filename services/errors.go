package services

import "errors"

// Shared errors used across services and by the HTTP error mapping.
var (
	ErrValidationFailed   = errors.New("validation failed")
	ErrContestTitleTaken  = errors.New("contest title is already in use")
	ErrMemberKindMismatch = errors.New("member kind does not match the contest")
	ErrDuplicateMember    = errors.New("member is listed twice")

	ErrContestNotFound = errors.New("contest not found")
	ErrMatchNotFound   = errors.New("match not found")

	// ErrConcurrentUpdate is retryable: reload and try again.
	ErrConcurrentUpdate = errors.New("contest was updated concurrently, retry")
)
