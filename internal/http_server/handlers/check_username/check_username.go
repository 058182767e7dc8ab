package checkUsername

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	resp "feedback_service/internal/lib/api/response"
	sl "feedback_service/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Query struct {
	Username string `json:"username" validate:"required,min=2,max=20,username"`
}

type Checker interface {
	IsUsernameAvailable(ctx context.Context, username string) (bool, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	checker Checker,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.check_username.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		q := Query{Username: r.URL.Query().Get("username")}

		if err := validate.Struct(q); err != nil {
			validateErr := err.(validator.ValidationErrors)

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		ok, err := checker.IsUsernameAvailable(ctx, q.Username)
		if err != nil {
			log.Error("failed to check username", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if !ok {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Username is already taken"))

			return
		}

		render.JSON(w, r, resp.OK("Username is unique"))
	}
}
