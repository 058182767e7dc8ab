package sendMessage

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	resp "feedback_service/internal/lib/api/response"
	sl "feedback_service/internal/lib/logger"
	"feedback_service/internal/messaging"
	"feedback_service/internal/models"
	"feedback_service/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Username string `json:"username" validate:"required"`
	Content  string `json:"content" validate:"required,min=10,max=300"`
}

type Submitter interface {
	Submit(ctx context.Context, username, content string) (models.Message, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	submitter Submitter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.send_message.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if _, err := submitter.Submit(ctx, req.Username, req.Content); err != nil {
			switch {
			case errors.Is(err, storage.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User not found"))
			case errors.Is(err, messaging.ErrNotAccepting):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("User is not accepting messages"))
			default:
				log.Error("failed to send message", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		render.JSON(w, r, resp.OK("Message sent successfully"))
	}
}
