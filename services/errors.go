package services

import "errors"

var (
	// ErrValidation marks a malformed request. Never retried server-side.
	ErrValidation = errors.New("validation error")

	// ErrDuplicateSubmission is a client session id reused by a concurrent request.
	ErrDuplicateSubmission = errors.New("duplicate submission")

	ErrNonceNotFound = errors.New("nonce not found")
	ErrNonceExpired  = errors.New("nonce expired")

	ErrInvalidName  = errors.New("invalid display name")
	ErrNameTaken    = errors.New("display name already taken")
	ErrUserNotFound = errors.New("user not found")
)
