package sendMessage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"feedback_service/internal/lib/validation"
	"feedback_service/internal/messaging"
	"feedback_service/internal/models"
	"feedback_service/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) Submit(ctx context.Context, username, content string) (models.Message, error) {
	args := m.Called(ctx, username, content)
	return args.Get(0).(models.Message), args.Error(1)
}

func TestSendMessage(t *testing.T) {
	const valid = `{"username":"alice","content":"you did great today"}`

	tests := []struct {
		name     string
		body     string
		callSvc  bool
		mockErr  error
		wantCode int
		wantMsg  string
	}{
		{name: "success", body: valid, callSvc: true, wantCode: http.StatusOK, wantMsg: "Message sent successfully"},
		{name: "too short", body: `{"username":"alice","content":"hi"}`, wantCode: http.StatusBadRequest, wantMsg: "at least 10 characters"},
		{name: "too long", body: `{"username":"alice","content":"` + strings.Repeat("x", 301) + `"}`, wantCode: http.StatusBadRequest, wantMsg: "at most 300 characters"},
		{name: "unknown user", body: valid, callSvc: true, mockErr: storage.ErrUserNotFound, wantCode: http.StatusNotFound, wantMsg: "User not found"},
		{name: "not accepting", body: valid, callSvc: true, mockErr: messaging.ErrNotAccepting, wantCode: http.StatusBadRequest, wantMsg: "not accepting"},
		{name: "internal", body: valid, callSvc: true, mockErr: errors.New("db down"), wantCode: http.StatusInternalServerError, wantMsg: "Internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockSubmitter{}
			if tt.callSvc {
				m.On("Submit", mock.Anything, "alice", "you did great today").Return(models.Message{}, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/send-message", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			New(slog.New(slog.NewTextHandler(io.Discard, nil)), validation.New(), m).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantMsg)
			m.AssertExpectations(t)
		})
	}
}
