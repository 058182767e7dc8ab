package checkUsername

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"feedback_service/internal/lib/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func TestCheckUsername(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		callSvc   bool
		available bool
		mockErr   error
		wantCode  int
		wantMsg   string
	}{
		{name: "unique", query: "?username=alice", callSvc: true, available: true, wantCode: http.StatusOK, wantMsg: "Username is unique"},
		{name: "taken", query: "?username=alice", callSvc: true, wantCode: http.StatusBadRequest, wantMsg: "Username is already taken"},
		{name: "missing", query: "", wantCode: http.StatusBadRequest, wantMsg: "field username is required"},
		{name: "bad chars", query: "?username=al-ice", wantCode: http.StatusBadRequest, wantMsg: "letters, digits and underscores"},
		{name: "internal", query: "?username=alice", callSvc: true, mockErr: errors.New("db down"), wantCode: http.StatusInternalServerError, wantMsg: "Internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockChecker{}
			if tt.callSvc {
				m.On("IsUsernameAvailable", mock.Anything, "alice").Return(tt.available, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodGet, "/check-username-unique"+tt.query, nil)
			rr := httptest.NewRecorder()

			New(slog.New(slog.NewTextHandler(io.Discard, nil)), validation.New(), m).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantMsg)
			m.AssertExpectations(t)
		})
	}
}
