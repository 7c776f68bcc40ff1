package xerrors

import "errors"

// Sentinel errors shared by the sync subsystem and the bridge.
var (
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrSessionExpired = errors.New("session expired or invalid")
	ErrNoSession      = errors.New("no active session")
	ErrStaleSession   = errors.New("response belongs to an ended session")
	ErrInvalidToken   = errors.New("invalid token")
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
)

func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsSession reports whether err only says the session is gone or has moved
// on. Such errors are expected during logout and are not worth an alert.
func IsSession(err error) bool {
	return errors.Is(err, ErrNoSession) ||
		errors.Is(err, ErrStaleSession) ||
		errors.Is(err, ErrSessionExpired)
}
