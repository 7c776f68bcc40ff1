// internal/pkg/response/response.go
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	xerrors "studio-notify/internal/pkg/errors"
)

// Response is the envelope every bridge endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// Error aborts the handler chain before writing, so middleware that fails
// a request never lets the next handler run.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	c.Abort()

	body := Response{Message: message}
	if err != nil {
		body.Error = err.Error()
	}
	if len(data) > 0 {
		body.Data = data[0]
	}
	c.JSON(code, body)
}

func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// FromError answers with the status that matches err.
func FromError(c *gin.Context, message string, err error) {
	Error(c, StatusFor(err), message, err)
}

// StatusFor maps the sentinel errors onto HTTP statuses. Anything else is
// an upstream failure of the marketplace backend.
func StatusFor(err error) int {
	for _, m := range statusMap {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusBadGateway
}

var statusMap = []struct {
	err    error
	status int
}{
	{xerrors.ErrNoSession, http.StatusConflict},
	{xerrors.ErrStaleSession, http.StatusConflict},
	{xerrors.ErrSessionExpired, http.StatusUnauthorized},
	{xerrors.ErrInvalidToken, http.StatusUnauthorized},
	{xerrors.ErrUnauthorized, http.StatusUnauthorized},
	{xerrors.ErrInvalidInput, http.StatusBadRequest},
	{xerrors.ErrNotFound, http.StatusNotFound},
}
