// internal/api/errors.go
package api

import (
	"fmt"
	"net/http"

	xerrors "studio-notify/internal/pkg/errors"
)

// Error is a non-2xx response from the marketplace API.
type Error struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: %s %s returned %d", e.Method, e.Path, e.StatusCode)
}

// Unwrap exposes the shared sentinel for statuses the bridge answers with
// directly, so errors.Is(err, xerrors.ErrNotFound) holds for an upstream 404.
func (e *Error) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return xerrors.ErrNotFound
	case http.StatusUnauthorized:
		return xerrors.ErrUnauthorized
	}
	return nil
}
