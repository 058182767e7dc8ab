package signout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"feedback_service/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRevoker struct {
	mock.Mock
}

func (m *mockRevoker) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func TestSignout(t *testing.T) {
	tests := []struct {
		name     string
		mockErr  error
		wantCode int
	}{
		{name: "success", wantCode: http.StatusOK},
		{name: "invalid token", mockErr: auth.ErrInvalidCredentials, wantCode: http.StatusUnauthorized},
		{name: "internal", mockErr: errors.New("redis down"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockRevoker{}
			m.On("Logout", mock.Anything, "tok").Return(tt.mockErr).Once()

			req := httptest.NewRequest(http.MethodPost, "/signout", nil)
			req.Header.Set("Authorization", "Bearer tok")
			rr := httptest.NewRecorder()

			New(slog.New(slog.NewTextHandler(io.Discard, nil)), m).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			m.AssertExpectations(t)

			if tt.wantCode == http.StatusOK {
				cookies := rr.Result().Cookies()
				require.Len(t, cookies, 1)
				assert.Equal(t, -1, cookies[0].MaxAge)
			}
		})
	}
}
