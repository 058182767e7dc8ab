// Package messaging accepts anonymous messages for an account and lets the owner manage them.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sl "feedback_service/internal/lib/logger"
	"feedback_service/internal/models"
	"feedback_service/internal/storage"
)

var (
	ErrNotAccepting = errors.New("user is not accepting messages")
	ErrUnauthorized = errors.New("not authenticated")
)

type AccountStore interface {
	UserByUsername(ctx context.Context, username string) (models.Account, error)
	UserByID(ctx context.Context, id string) (models.Account, error)
	SetAcceptingMessages(ctx context.Context, id string, accept bool) (models.Account, error)
	AppendMessage(ctx context.Context, id string, msg models.Message) (models.Message, error)
	Messages(ctx context.Context, id string) ([]models.Message, error)
	DeleteMessage(ctx context.Context, id string, messageID string) error
}

type Service struct {
	log   *slog.Logger
	store AccountStore
	now   func() time.Time
}

func New(log *slog.Logger, store AccountStore) *Service {
	return &Service{
		log:   log,
		store: store,
		now:   time.Now,
	}
}

// * Submit appends an anonymous message to username's inbox if the owner accepts messages.
func (s *Service) Submit(ctx context.Context, username, content string) (models.Message, error) {
	const op = "messaging.Submit"

	username = strings.ToLower(strings.TrimSpace(username))

	log := s.log.With(
		slog.String("op", op),
		slog.String("username", username),
	)

	acc, err := s.store.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
		} else {
			log.Error("failed to get user", sl.Err(err))
		}

		return models.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	if !acc.IsAcceptingMessages {
		log.Info("user is not accepting messages")

		return models.Message{}, fmt.Errorf("%s: %w", op, ErrNotAccepting)
	}

	msg, err := s.store.AppendMessage(ctx, acc.ID, models.Message{
		Content:   content,
		CreatedAt: s.now(),
	})
	if err != nil {
		log.Error("failed to append message", sl.Err(err))

		return models.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("message delivered", slog.String("message_id", msg.ID))

	return msg, nil
}

// AcceptingState returns the flag of username, or of the principal itself when username is empty.
func (s *Service) AcceptingState(ctx context.Context, p *models.Principal, username string) (bool, error) {
	const op = "messaging.AcceptingState"

	if p == nil {
		return false, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	var (
		acc models.Account
		err error
	)

	if username == "" {
		acc, err = s.store.UserByID(ctx, p.ID)
	} else {
		acc, err = s.store.UserByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return acc.IsAcceptingMessages, nil
}

// ToggleAccepting sets the accepting flag of accountID. Only the owner may do so.
func (s *Service) ToggleAccepting(ctx context.Context, p *models.Principal, accountID string, accept bool) (models.Account, error) {
	const op = "messaging.ToggleAccepting"

	if err := authorize(p, accountID); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	acc, err := s.store.SetAcceptingMessages(ctx, accountID, accept)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			s.log.Error("failed to update accepting state", slog.String("op", op), sl.Err(err))
		}

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("accepting state updated",
		slog.String("op", op),
		slog.String("uid", accountID),
		slog.Bool("accepting", accept),
	)

	return acc, nil
}

// ListMessages returns the owner's messages newest first.
func (s *Service) ListMessages(ctx context.Context, p *models.Principal, accountID string) ([]models.Message, error) {
	const op = "messaging.ListMessages"

	if err := authorize(p, accountID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	msgs, err := s.store.Messages(ctx, accountID)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			s.log.Error("failed to list messages", slog.String("op", op), sl.Err(err))
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if msgs == nil {
		msgs = []models.Message{}
	}

	return msgs, nil
}

func (s *Service) DeleteMessage(ctx context.Context, p *models.Principal, accountID, messageID string) error {
	const op = "messaging.DeleteMessage"

	if err := authorize(p, accountID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.DeleteMessage(ctx, accountID, messageID); err != nil {
		if !errors.Is(err, storage.ErrMessageNotFound) {
			s.log.Error("failed to delete message", slog.String("op", op), sl.Err(err))
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("message deleted",
		slog.String("op", op),
		slog.String("uid", accountID),
		slog.String("message_id", messageID),
	)

	return nil
}

func authorize(p *models.Principal, accountID string) error {
	if p == nil || p.ID == "" || p.ID != accountID {
		return ErrUnauthorized
	}

	return nil
}
