package getMessages

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

type Response struct {
	resp.Response
	Messages []models.Message `json:"messages"`
}

type Lister interface {
	ListMessages(ctx context.Context, p *models.Principal, accountID string) ([]models.Message, error)
}

func New(log *slog.Logger, lister Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.get_messages.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		p, _ := session.FromContext(r.Context())

		var accountID string
		if p != nil {
			accountID = p.ID
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		msgs, err := lister.ListMessages(ctx, p, accountID)
		if err != nil {
			switch {
			case errors.Is(err, messaging.ErrUnauthorized):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Not authenticated"))
			case errors.Is(err, storage.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User not found"))
			default:
				log.Error("failed to list messages", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(""),
			Messages: msgs,
		})
	}
}
