package deleteMessage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"feedback_service/internal/http_server/middleware/session"
	"feedback_service/internal/models"
	"feedback_service/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockDeleter struct {
	mock.Mock
}

func (m *mockDeleter) DeleteMessage(ctx context.Context, p *models.Principal, accountID, messageID string) error {
	return m.Called(ctx, p, accountID, messageID).Error(0)
}

func TestDeleteMessage(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		callSvc  bool
		mockErr  error
		wantCode int
	}{
		{name: "success", query: "?messageId=m1", callSvc: true, wantCode: http.StatusOK},
		{name: "missing id", query: "", wantCode: http.StatusBadRequest},
		{name: "not found", query: "?messageId=m1", callSvc: true, mockErr: storage.ErrMessageNotFound, wantCode: http.StatusNotFound},
		{name: "internal", query: "?messageId=m1", callSvc: true, mockErr: errors.New("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockDeleter{}
			if tt.callSvc {
				m.On("DeleteMessage", mock.Anything, mock.Anything, "42", "m1").Return(tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodDelete, "/delete-message"+tt.query, nil)
			req = req.WithContext(session.WithPrincipal(req.Context(), models.Principal{ID: "42"}))
			rr := httptest.NewRecorder()

			New(slog.New(slog.NewTextHandler(io.Discard, nil)), m).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			m.AssertExpectations(t)
		})
	}
}
