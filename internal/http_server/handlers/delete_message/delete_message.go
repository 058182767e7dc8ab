package deleteMessage

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"feedback_service/internal/http_server/middleware/session"
	resp "feedback_service/internal/lib/api/response"
	sl "feedback_service/internal/lib/logger"
	"feedback_service/internal/messaging"
	"feedback_service/internal/models"
	"feedback_service/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Deleter interface {
	DeleteMessage(ctx context.Context, p *models.Principal, accountID, messageID string) error
}

func New(log *slog.Logger, deleter Deleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.delete_message.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		messageID := r.URL.Query().Get("messageId")
		if messageID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("field messageId is required"))

			return
		}

		p, _ := session.FromContext(r.Context())

		var accountID string
		if p != nil {
			accountID = p.ID
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := deleter.DeleteMessage(ctx, p, accountID, messageID); err != nil {
			switch {
			case errors.Is(err, messaging.ErrUnauthorized):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Not authenticated"))
			case errors.Is(err, storage.ErrMessageNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Message not found or already deleted"))
			default:
				log.Error("failed to delete message", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		render.JSON(w, r, resp.OK("Message deleted"))
	}
}
