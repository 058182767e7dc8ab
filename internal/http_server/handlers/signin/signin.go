package signin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"feedback_service/internal/auth"
	"feedback_service/internal/http_server/middleware/session"
	resp "feedback_service/internal/lib/api/response"
	sl "feedback_service/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Identifier string `json:"identifier" validate:"required,min=3"`
	Pass       string `json:"password" validate:"required"`
}

type Response struct {
	resp.Response
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Authenticator interface {
	Login(ctx context.Context, identifier, pass string) (auth.Session, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	authenticator Authenticator,
	secureCookie bool,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.signin.New"

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

		sess, err := authenticator.Login(ctx, req.Identifier, req.Pass)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid credentials"))
			case errors.Is(err, auth.ErrEmailNotVerified):
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("Please verify your account before signing in"))
			default:
				log.Error("failed to sign in", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     session.CookieName,
			Value:    sess.Token,
			Path:     "/",
			Expires:  sess.ExpiresAt,
			HttpOnly: true,
			Secure:   secureCookie,
			SameSite: http.SameSiteLaxMode,
		})

		log.Info("user signed in", slog.String("uid", sess.Principal.ID))

		render.JSON(w, r, Response{
			Response:  resp.OK("Signed in successfully"),
			Token:     sess.Token,
			ExpiresAt: sess.ExpiresAt,
		})
	}
}
