package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "string detail",
			status:   http.StatusForbidden,
			body:     `{"detail":"Analysis limit reached"}`,
			wantKind: KindDomain,
			wantMsg:  "Analysis limit reached",
		},
		{
			name:     "validation list strips prefix",
			status:   http.StatusUnprocessableEntity,
			body:     `{"detail":[{"msg":"Value error, password too short"}]}`,
			wantKind: KindValidation,
			wantMsg:  "password too short",
		},
		{
			name:     "validation list without prefix",
			status:   http.StatusUnprocessableEntity,
			body:     `{"detail":[{"loc":["body","email"],"msg":"field required"},{"msg":"ignored"}]}`,
			wantKind: KindValidation,
			wantMsg:  "field required",
		},
		{
			name:     "empty validation list falls back",
			status:   http.StatusUnprocessableEntity,
			body:     `{"detail":[]}`,
			wantKind: KindValidation,
			wantMsg:  "Upload failed: 422 Unprocessable Entity",
		},
		{
			name:     "object detail",
			status:   http.StatusBadRequest,
			body:     `{"detail":{"message":"bad csv"}}`,
			wantKind: KindDomain,
			wantMsg:  "bad csv",
		},
		{
			name:     "non json body",
			status:   http.StatusBadGateway,
			body:     `<html>Bad Gateway</html>`,
			wantKind: KindDomain,
			wantMsg:  "Upload failed: 502 Bad Gateway",
		},
		{
			name:     "empty body",
			status:   http.StatusInternalServerError,
			body:     ``,
			wantKind: KindDomain,
			wantMsg:  "Upload failed: 500 Internal Server Error",
		},
		{
			name:     "unauthorized with detail",
			status:   http.StatusUnauthorized,
			body:     `{"detail":"Could not validate credentials"}`,
			wantKind: KindUnauthorized,
			wantMsg:  "Could not validate credentials",
		},
		{
			name:     "unauthorized without detail",
			status:   http.StatusUnauthorized,
			body:     `nope`,
			wantKind: KindUnauthorized,
			wantMsg:  MsgUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseError(tt.status, []byte(tt.body), "Upload failed")

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantKind, apiErr.Kind)
			assert.Equal(t, tt.wantMsg, apiErr.Error())
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	unauthorized := fmt.Errorf("fetch uploads: %w", parseError(http.StatusUnauthorized, nil, "x"))
	assert.True(t, IsUnauthorized(unauthorized))
	assert.False(t, IsValidation(unauthorized))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(unauthorized))

	cause := errors.New("connection refused")
	transport := transportError(cause)
	assert.True(t, IsTransport(transport))
	assert.ErrorIs(t, transport, cause)
	assert.Equal(t, MsgTransport, transport.Error())
	assert.Zero(t, StatusCode(transport))

	assert.False(t, IsUnauthorized(errors.New("plain")))
	assert.False(t, IsTransport(nil))
}
