package messaging

import "errors"

// The error taxonomy surfaced to callers. Validation errors are never
// retried; ErrTransientStore wraps a persistence failure that survived one
// retry.
var (
	ErrAccessDenied   = errors.New("messaging: access denied")
	ErrInvalidSender  = errors.New("messaging: unknown thread or sender is not a participant")
	ErrEmptyMessage   = errors.New("messaging: empty message content")
	ErrNotFound       = errors.New("messaging: not found")
	ErrTransientStore = errors.New("messaging: transient store failure")
)
