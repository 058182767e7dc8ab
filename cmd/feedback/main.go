package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedback_service/internal/auth"
	"feedback_service/internal/config"
	acceptMessages "feedback_service/internal/http_server/handlers/accept_messages"
	checkUsername "feedback_service/internal/http_server/handlers/check_username"
	deleteMessage "feedback_service/internal/http_server/handlers/delete_message"
	getMessages "feedback_service/internal/http_server/handlers/get_messages"
	resendCode "feedback_service/internal/http_server/handlers/resend_code"
	sendMessage "feedback_service/internal/http_server/handlers/send_message"
	"feedback_service/internal/http_server/handlers/signin"
	"feedback_service/internal/http_server/handlers/signout"
	"feedback_service/internal/http_server/handlers/signup"
	verifyCode "feedback_service/internal/http_server/handlers/verify_code"
	"feedback_service/internal/http_server/middleware/ratelimit"
	"feedback_service/internal/http_server/middleware/session"
	resp "feedback_service/internal/lib/api/response"
	sl "feedback_service/internal/lib/logger"
	"feedback_service/internal/lib/validation"
	"feedback_service/internal/lib/verification"
	"feedback_service/internal/mailer"
	"feedback_service/internal/messaging"
	"feedback_service/internal/rabbitmq"
	"feedback_service/internal/scheduler"
	"feedback_service/internal/storage/memory"
	"feedback_service/internal/storage/mongo"
	"feedback_service/internal/storage/postgres"
	"feedback_service/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type accountStore interface {
	auth.UserSaver
	auth.UserProvider
	messaging.AccountStore
	Close()
}

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting feedback service",
		slog.String("env", cfg.Env),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("notifier", cfg.Notifier.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := setupStorage(ctx, cfg)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}
	defer store.Close()

	publisher, closePublisher, err := setupNotifier(cfg, log)
	if err != nil {
		log.Error("failed to init notifier", sl.Err(err))
		os.Exit(1)
	}
	defer closePublisher()

	revoker, closeRevoker, err := setupRevoker(ctx, cfg, log)
	if err != nil {
		log.Error("failed to init session revocation", sl.Err(err))
		os.Exit(1)
	}
	defer closeRevoker()

	authService := auth.New(
		log,
		store,
		store,
		publisher,
		revoker,
		cfg.Tokens.SessionTTL,
		cfg.Verification.CodeTTL,
		cfg.Tokens.SessionSecret,
		cfg.Security.BcryptCost,
	)
	msgService := messaging.New(log, store)

	router := setupRouter(log, authService, msgService, routerOptions{
		globalPerMinute: cfg.RateLimit.GlobalPerMinute,
		secureCookie:    cfg.Env == envProd,
		trustProxy:      cfg.HTTPServer.TrustProxy,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
	} else {
		log.Info("Server stopped gracefully")
	}
}

func setupStorage(ctx context.Context, cfg *config.Config) (accountStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		return postgres.New(connectCtx, cfg)
	case config.StorageMemory:
		return memory.New(), nil
	default:
		return mongo.New(connectCtx, cfg)
	}
}

func setupNotifier(cfg *config.Config, log *slog.Logger) (verification.Publisher, func(), error) {
	switch cfg.Notifier.Driver {
	case config.NotifierSMTP:
		m := mailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		return m, func() {}, nil
	case config.NotifierLog:
		return &verification.LogPublisher{Log: log}, func() {}, nil
	default:
		broker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err != nil {
			return nil, nil, err
		}
		return broker, broker.Close, nil
	}
}

// * setupRevoker prefers Redis; without it revoked sessions live in memory and are pruned every minute.
func setupRevoker(ctx context.Context, cfg *config.Config, log *slog.Logger) (auth.Revoker, func(), error) {
	if cfg.Redis.Enabled {
		rdb, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		return rdb, rdb.Close, nil
	}

	deny := memory.NewDenylist(time.Now)

	sched, err := scheduler.Start(log, deny, time.Minute)
	if err != nil {
		return nil, nil, err
	}

	return deny, sched.Stop, nil
}

type routerOptions struct {
	globalPerMinute int
	secureCookie    bool
	trustProxy      bool
}

func setupRouter(
	log *slog.Logger,
	authService *auth.Auth,
	msgService *messaging.Service,
	opts routerOptions,
) *chi.Mux {
	validate := validation.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	// * rate limits key on RemoteAddr, so forwarding headers are honoured only behind a trusted proxy
	if opts.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("X-Content-Type-Options", "nosniff"))
	r.Use(middleware.SetHeader("X-Frame-Options", "DENY"))
	r.Use(ratelimit.Global(opts.globalPerMinute))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, resp.OK("ok"))
	})

	r.With(ratelimit.SignUp()).Post("/signup", signup.New(log, validate, authService))
	r.With(ratelimit.VerifyCode()).Post("/verify-code", verifyCode.New(log, validate, authService))
	r.With(ratelimit.ResendCode()).Post("/resend-code", resendCode.New(log, validate, authService))
	r.With(ratelimit.SignIn()).Post("/signin", signin.New(log, validate, authService, opts.secureCookie))
	r.Get("/check-username-unique", checkUsername.New(log, validate, authService))
	r.With(ratelimit.SendMessage()).Post("/send-message", sendMessage.New(log, validate, msgService))

	r.Group(func(r chi.Router) {
		r.Use(session.New(log, authService))

		r.With(ratelimit.SignOut()).Post("/signout", signout.New(log, authService))
		r.Get("/accept-messages", acceptMessages.Get(log, msgService))
		r.Post("/accept-messages", acceptMessages.Set(log, validate, msgService))
		r.Get("/get-messages", getMessages.New(log, msgService))
		r.Delete("/delete-message", deleteMessage.New(log, msgService))
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
