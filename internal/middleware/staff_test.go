package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestStaffMiddleware_Unconfigured(t *testing.T) {
	mw := NewStaffMiddleware("")

	req := httptest.NewRequest(http.MethodGet, "/staff/clients/c1/portal", nil)
	req.Header.Set("X-Staff-Key", "anything")
	rec := httptest.NewRecorder()
	mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStaffMiddleware_InvalidKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-key"), bcrypt.MinCost)
	require.NoError(t, err)
	mw := NewStaffMiddleware(string(hash))

	tests := []struct {
		name   string
		header func(r *http.Request)
	}{
		{"no key", func(r *http.Request) {}},
		{"wrong key", func(r *http.Request) { r.Header.Set("X-Staff-Key", "wrong") }},
		{"wrong bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer wrong") }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/staff/clients/c1/portal", nil)
			tc.header(req)
			rec := httptest.NewRecorder()
			mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be reached")
			})).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestStaffMiddleware_ValidKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-key"), bcrypt.MinCost)
	require.NoError(t, err)
	mw := NewStaffMiddleware(string(hash))

	for _, set := range []func(r *http.Request){
		func(r *http.Request) { r.Header.Set("X-Staff-Key", "correct-key") },
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer correct-key") },
	} {
		var called bool
		req := httptest.NewRequest(http.MethodGet, "/staff/clients/c1/portal", nil)
		set(req)
		rec := httptest.NewRecorder()
		mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, called)
	}
}
