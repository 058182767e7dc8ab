package resendCode

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"feedback_service/internal/auth"
	resp "feedback_service/internal/lib/api/response"
	sl "feedback_service/internal/lib/logger"
	"feedback_service/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Username string `json:"username" validate:"required"`
}

type Resender interface {
	ResendCode(ctx context.Context, username string) error
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	resender Resender,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resend_code.New"

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

		if err := resender.ResendCode(ctx, req.Username); err != nil {
			switch {
			case errors.Is(err, storage.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User not found"))
			case errors.Is(err, auth.ErrNotification):
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Failed to send verification email"))
			default:
				log.Error("failed to resend code", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		render.JSON(w, r, resp.OK("Verification code sent"))
	}
}
