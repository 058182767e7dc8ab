package verifyCode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"feedback_service/internal/auth"
	"feedback_service/internal/lib/validation"
	"feedback_service/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) VerifyCode(ctx context.Context, username, code string) error {
	return m.Called(ctx, username, code).Error(0)
}

func TestVerifyCode(t *testing.T) {
	const valid = `{"username":"alice","code":"123456"}`

	tests := []struct {
		name     string
		body     string
		callSvc  bool
		mockErr  error
		wantCode int
		wantMsg  string
	}{
		{name: "success", body: valid, callSvc: true, wantCode: http.StatusOK, wantMsg: "Account verified successfully"},
		{name: "short code", body: `{"username":"alice","code":"123"}`, wantCode: http.StatusBadRequest, wantMsg: "field code must be exactly 6 characters"},
		{name: "non numeric code", body: `{"username":"alice","code":"12345a"}`, wantCode: http.StatusBadRequest, wantMsg: "field code must contain only digits"},
		{name: "unknown user", body: valid, callSvc: true, mockErr: fmt.Errorf("op: %w", storage.ErrUserNotFound), wantCode: http.StatusNotFound, wantMsg: "User not found"},
		{name: "expired", body: valid, callSvc: true, mockErr: fmt.Errorf("op: %w", auth.ErrCodeExpired), wantCode: http.StatusBadRequest, wantMsg: "expired"},
		{name: "invalid", body: valid, callSvc: true, mockErr: fmt.Errorf("op: %w", auth.ErrInvalidCode), wantCode: http.StatusBadRequest, wantMsg: "Incorrect verification code"},
		{name: "internal", body: valid, callSvc: true, mockErr: errors.New("db down"), wantCode: http.StatusInternalServerError, wantMsg: "Internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &mockVerifier{}
			if tt.callSvc {
				v.On("VerifyCode", mock.Anything, "alice", "123456").Return(tt.mockErr).Once()
			}

			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), validation.New(), v)

			req := httptest.NewRequest(http.MethodPost, "/verify-code", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantMsg)
			v.AssertExpectations(t)
		})
	}
}
