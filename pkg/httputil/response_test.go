package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusOK, map[string]string{"message": "Howdy!"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"Howdy!"}`, rec.Body.String())
}

func TestWriteErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		body   string
	}{
		{
			name:   "bad request",
			write:  func(w http.ResponseWriter) { WriteBadRequest(w, "SSO and signature are required") },
			status: http.StatusBadRequest,
			body:   `{"error":"SSO and signature are required"}`,
		},
		{
			name:   "unauthorized",
			write:  func(w http.ResponseWriter) { WriteUnauthorized(w, "invalid token") },
			status: http.StatusUnauthorized,
			body:   `{"error":"invalid token"}`,
		},
		{
			name:   "accepted",
			write:  func(w http.ResponseWriter) { WriteAccepted(w, "Syncing member") },
			status: http.StatusAccepted,
			body:   `{"message":"Syncing member"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestWriteNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteNoContent(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestSingleQueryParam(t *testing.T) {
	tests := []struct {
		name   string
		target string
		key    string
		want   string
		ok     bool
	}{
		{name: "present once", target: "/sso?sso=abc&sig=def", key: "sso", want: "abc", ok: true},
		{name: "missing", target: "/sso?sig=def", key: "sso", ok: false},
		{name: "array valued", target: "/sso?sso=a&sso=b", key: "sso", ok: false},
		{name: "empty value", target: "/sso?sso=", key: "sso", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			got, ok := SingleQueryParam(r, tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
