package signup

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"feedback_service/internal/auth"
	resp "feedback_service/internal/lib/api/response"
	sl "feedback_service/internal/lib/logger"
	"feedback_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Username string `json:"username" validate:"required,min=2,max=20,username"`
	Email    string `json:"email" validate:"required,email"`
	Pass     string `json:"password" validate:"required,min=6"`
}

type Registrar interface {
	RegisterNewUser(ctx context.Context, username, email, pass string) (models.Account, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	registrar Registrar,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.signup.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Info("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		_, err = registrar.RegisterNewUser(ctx, req.Username, req.Email, req.Pass)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUsernameTaken):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Username is already taken"))
			case errors.Is(err, auth.ErrEmailTaken):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("User already exists with this email"))
			case errors.Is(err, auth.ErrNotification):
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Failed to send verification email"))
			default:
				log.Error("failed to register user", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("user registered")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, resp.OK("User registered successfully. Please verify your email"))
	}
}
