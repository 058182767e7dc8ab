package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"feedback_service/internal/config"
	sl "feedback_service/internal/lib/logger"
	"feedback_service/internal/lib/verification"
	"feedback_service/internal/mailer"
	"feedback_service/internal/rabbitmq"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	log.Info("starting mailer", slog.String("env", cfg.Env))

	r, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to init rabbitmq", sl.Err(err))
		os.Exit(1)
	}
	defer r.Close()

	m := mailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)

	done := make(chan struct{})

	go func() {
		defer close(done)

		err := r.StartReading(ctx, deliver(log, m))
		if err != nil {
			log.Error("consumer stopped", sl.Err(err))
		}
	}()

	log.Info("consumer successfully started")

	select {
	case <-ctx.Done():
		log.Info("shutting down consumer...")
		<-done
	case <-done:
		log.Info("consumer finished the work")
	}

	log.Info("mailer gracefully stopped")
}

// deliver decodes one queue body and mails it. Malformed bodies are dropped without retry.
func deliver(log *slog.Logger, pub verification.Publisher) func(ctx context.Context, body []byte) error {
	return func(ctx context.Context, body []byte) error {
		n, err := rabbitmq.DecodeNotification(body)
		if err != nil {
			log.Error("failed to decode notification", sl.Err(err))
			return nil
		}

		if err := pub.SendMessage(ctx, n); err != nil {
			log.Error("failed to send email", slog.String("to", n.Email), sl.Err(err))
			return err
		}

		log.Info("email sent successfully", slog.String("to", n.Email))

		return nil
	}
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
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
