package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-notify/internal/api"
	xerrors "studio-notify/internal/pkg/errors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{xerrors.ErrNoSession, http.StatusConflict},
		{fmt.Errorf("reconcile: %w", xerrors.ErrStaleSession), http.StatusConflict},
		{fmt.Errorf("refresh: %w", xerrors.ErrSessionExpired), http.StatusUnauthorized},
		{xerrors.ErrInvalidToken, http.StatusUnauthorized},
		{xerrors.ErrInvalidInput, http.StatusBadRequest},
		{xerrors.ErrNotFound, http.StatusNotFound},
		{errors.New("connection refused"), http.StatusBadGateway},
		{fmt.Errorf("remove: %w", &api.Error{StatusCode: http.StatusNotFound, Method: http.MethodDelete, Path: "/notifications/n1"}), http.StatusNotFound},
		{&api.Error{StatusCode: http.StatusUnauthorized, Method: http.MethodGet, Path: "/notifications"}, http.StatusUnauthorized},
		{&api.Error{StatusCode: http.StatusInternalServerError, Method: http.MethodGet, Path: "/notifications"}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestFromErrorAbortsWithEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	FromError(c, "failed to mark notification as read", xerrors.ErrNoSession)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusConflict, w.Code)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "failed to mark notification as read", body.Message)
	assert.Equal(t, xerrors.ErrNoSession.Error(), body.Error)
}
