// Package session authenticates requests by their session token.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	resp "feedback_service/internal/lib/api/response"
	sl "feedback_service/internal/lib/logger"
	"feedback_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

const CookieName = "session_token"

type ctxKey struct{}

type Authenticator interface {
	Principal(ctx context.Context, token string) (models.Principal, error)
}

// New rejects requests without a valid session with 401 and stores the principal in the request context.
func New(log *slog.Logger, authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.session.New"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token := TokenFromRequest(r)
			if token == "" {
				unauthorized(w, r)

				return
			}

			p, err := authenticator.Principal(r.Context(), token)
			if err != nil {
				log.Info("session rejected", sl.Err(err))

				unauthorized(w, r)

				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		}

		return http.HandlerFunc(fn)
	}
}

// TokenFromRequest reads a bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}

	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}

	return ""
}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, &p)
}

func FromContext(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*models.Principal)
	return p, ok
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, resp.Error("Not authenticated"))
}
