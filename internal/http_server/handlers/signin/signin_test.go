package signin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"feedback_service/internal/auth"
	"feedback_service/internal/http_server/middleware/session"
	"feedback_service/internal/lib/validation"
	"feedback_service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) Login(ctx context.Context, identifier, pass string) (auth.Session, error) {
	args := m.Called(ctx, identifier, pass)
	return args.Get(0).(auth.Session), args.Error(1)
}

func newHandler(a Authenticator) http.HandlerFunc {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), validation.New(), a, true)
}

func TestSignin_Success(t *testing.T) {
	expires := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	a := &mockAuthenticator{}
	a.On("Login", mock.Anything, "alice", "secret1").Return(auth.Session{
		Token:     "signed.token.value",
		ExpiresAt: expires,
		Principal: models.Principal{ID: "42", Username: "alice"},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/signin", strings.NewReader(`{"identifier":"alice","password":"secret1"}`))
	rr := httptest.NewRecorder()

	newHandler(a).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "signed.token.value", body.Token)
	assert.True(t, expires.Equal(body.ExpiresAt))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.Equal(t, "signed.token.value", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
}

func TestSignin_Failures(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		callSvc  bool
		mockErr  error
		wantCode int
	}{
		{name: "short identifier", body: `{"identifier":"al","password":"secret1"}`, wantCode: http.StatusBadRequest},
		{name: "missing password", body: `{"identifier":"alice"}`, wantCode: http.StatusBadRequest},
		{name: "invalid credentials", body: `{"identifier":"alice","password":"secret1"}`, callSvc: true, mockErr: auth.ErrInvalidCredentials, wantCode: http.StatusUnauthorized},
		{name: "not verified", body: `{"identifier":"alice","password":"secret1"}`, callSvc: true, mockErr: auth.ErrEmailNotVerified, wantCode: http.StatusForbidden},
		{name: "internal", body: `{"identifier":"alice","password":"secret1"}`, callSvc: true, mockErr: errors.New("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &mockAuthenticator{}
			if tt.callSvc {
				a.On("Login", mock.Anything, "alice", "secret1").Return(auth.Session{}, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/signin", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			newHandler(a).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Empty(t, rr.Result().Cookies())
			a.AssertExpectations(t)
		})
	}
}
