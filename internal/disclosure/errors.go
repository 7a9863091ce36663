package disclosure

import "errors"

var (
	ErrNotFound          = errors.New("disclosure request not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicatePending  = errors.New("pending request already exists")
	ErrDuplicateGrant    = errors.New("document already granted under request")
)
