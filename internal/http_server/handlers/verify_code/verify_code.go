package verifyCode

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
	Code     string `json:"code" validate:"required,len=6,numeric"`
}

type Verifier interface {
	VerifyCode(ctx context.Context, username, code string) error
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	verifier Verifier,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verify_code.New"

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

		err := verifier.VerifyCode(ctx, req.Username, req.Code)
		switch {
		case err == nil:
		case errors.Is(err, storage.ErrUserNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, resp.Error("User not found"))

			return
		case errors.Is(err, auth.ErrCodeExpired):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Verification code has expired, please sign up again to get a new code"))

			return
		case errors.Is(err, auth.ErrInvalidCode):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Incorrect verification code"))

			return
		default:
			log.Error("failed to verify code", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, resp.OK("Account verified successfully"))
	}
}
