package acceptMessages

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
	"github.com/go-playground/validator/v10"
)

type Request struct {
	AcceptMessages *bool `json:"acceptMessages" validate:"required"`
}

type Response struct {
	resp.Response
	IsAcceptingMessages bool `json:"isAcceptingMessages"`
}

type StateProvider interface {
	AcceptingState(ctx context.Context, p *models.Principal, username string) (bool, error)
}

type Toggler interface {
	ToggleAccepting(ctx context.Context, p *models.Principal, accountID string, accept bool) (models.Account, error)
}

// * Get answers with the accepting flag of ?username=, or of the caller when it is omitted.
func Get(log *slog.Logger, provider StateProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.accept_messages.Get"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		p, _ := session.FromContext(r.Context())

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		state, err := provider.AcceptingState(ctx, p, r.URL.Query().Get("username"))
		if err != nil {
			writeError(w, r, log, err)

			return
		}

		render.JSON(w, r, Response{
			Response:            resp.OK(""),
			IsAcceptingMessages: state,
		})
	}
}

func Set(log *slog.Logger, validate *validator.Validate, toggler Toggler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.accept_messages.Set"

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

		p, _ := session.FromContext(r.Context())

		var accountID string
		if p != nil {
			accountID = p.ID
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		acc, err := toggler.ToggleAccepting(ctx, p, accountID, *req.AcceptMessages)
		if err != nil {
			writeError(w, r, log, err)

			return
		}

		render.JSON(w, r, Response{
			Response:            resp.OK("Message acceptance status updated successfully"),
			IsAcceptingMessages: acc.IsAcceptingMessages,
		})
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, messaging.ErrUnauthorized):
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, resp.Error("Not authenticated"))
	case errors.Is(err, storage.ErrUserNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, resp.Error("User not found"))
	default:
		log.Error("failed to handle accepting state", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("Internal error"))
	}
}
