package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"feedback_service/internal/models"
)

const (
	CodeLength = 6

	codeMin   = 100000
	codeRange = 900000
)

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Notification) error
}

// Code is a freshly issued one-time code with its absolute expiry.
type Code struct {
	Value     string
	ExpiresAt time.Time
}

// NewCode draws a code uniformly from 100000..999999 and stamps it with issuedAt+ttl.
func NewCode(issuedAt time.Time, ttl time.Duration) (Code, error) {
	const op = "verification.NewCode"

	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return Code{}, fmt.Errorf("%s: %w", op, err)
	}

	return Code{
		Value:     fmt.Sprintf("%06d", n.Int64()+codeMin),
		ExpiresAt: issuedAt.Add(ttl),
	}, nil
}

func SendVerificationCode(
	ctx context.Context,
	log *slog.Logger,
	pub Publisher,
	email, username, code string,
) error {
	msg := models.Notification{
		Email:    email,
		Username: username,
		Code:     code,
		Purpose:  models.PurposeVerification,
	}

	if err := pub.SendMessage(ctx, msg); err != nil {
		log.Error("failed to send verification code", slog.Any("err", err))

		return err
	}

	return nil
}

// LogPublisher writes codes to the log instead of delivering them. Local development only.
type LogPublisher struct {
	Log *slog.Logger
}

func (p *LogPublisher) SendMessage(_ context.Context, msg models.Notification) error {
	p.Log.Info("verification code issued",
		slog.String("to", msg.Email),
		slog.String("username", msg.Username),
		slog.String("code", msg.Code),
	)

	return nil
}
