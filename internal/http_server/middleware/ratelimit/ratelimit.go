package ratelimit

import (
	"net/http"
	"time"

	resp "feedback_service/internal/lib/api/response"

	"github.com/go-chi/render"
	httprate "github.com/go-chi/httprate"
)

// Global bounds every request from a single client address.
func Global(perMinute int) func(http.Handler) http.Handler {
	return limitByIP(perMinute, time.Minute)
}

func SignIn() func(http.Handler) http.Handler {
	return limitByIP(10, 5*time.Minute)
}

func SignUp() func(http.Handler) http.Handler {
	return limitByIP(5, time.Hour)
}

func SignOut() func(http.Handler) http.Handler {
	return limitByIP(20, 10*time.Minute)
}

func VerifyCode() func(http.Handler) http.Handler {
	return limitByIP(10, 10*time.Minute)
}

func ResendCode() func(http.Handler) http.Handler {
	return limitByIP(3, time.Hour)
}

func SendMessage() func(http.Handler) http.Handler {
	return limitByIP(30, time.Minute)
}

func limitByIP(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(tooManyRequests),
	)
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, resp.Error("Too many requests, please try again later"))
}
