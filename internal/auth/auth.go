package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"feedback_service/internal/lib/jwt"
	sl "feedback_service/internal/lib/logger"
	"feedback_service/internal/lib/password"
	"feedback_service/internal/lib/verification"
	"feedback_service/internal/models"
	"feedback_service/internal/storage"
)

var (
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrEmailTaken         = errors.New("user already exists with this email")
	ErrCodeExpired        = errors.New("verification code has expired")
	ErrInvalidCode        = errors.New("incorrect verification code")
	ErrNotification       = errors.New("failed to send verification email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
)

type Auth struct {
	log         *slog.Logger
	usrSaver    UserSaver
	usrProvider UserProvider
	publisher   verification.Publisher
	revoker     Revoker
	tokenTTL    time.Duration
	codeTTL     time.Duration
	secret      string
	bcryptCost  int
	now         func() time.Time
}

type UserSaver interface {
	SaveUser(ctx context.Context, user models.Account) (id string, err error)
	UpdatePendingUser(ctx context.Context, id string, passHash []byte, code string, expiresAt time.Time) error
	SetVerificationCode(ctx context.Context, id string, code string, expiresAt time.Time) error
	SetEmailVerified(ctx context.Context, id string, code string) error
}

type UserProvider interface {
	User(ctx context.Context, email string) (models.Account, error)
	UserByUsername(ctx context.Context, username string) (models.Account, error)
	UserByIdentifier(ctx context.Context, identifier string) (models.Account, error)
}

// Revoker is the session denylist keyed by token id.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Session is what a successful sign-in hands back to the caller.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Principal models.Principal
}

type Option func(*Auth)

// WithClock replaces time.Now for code expiry and token timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Auth) {
		a.now = now
	}
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	publisher verification.Publisher,
	revoker Revoker,
	tokenTTL, codeTTL time.Duration,
	secret string,
	bcryptCost int,
	opts ...Option,
) *Auth {
	a := &Auth{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		publisher:   publisher,
		revoker:     revoker,
		tokenTTL:    tokenTTL,
		codeTTL:     codeTTL,
		secret:      secret,
		bcryptCost:  bcryptCost,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// * RegisterNewUser creates a pending account, or refreshes the credentials and code of a pending
// * account that already owns the email, then sends the code.
func (a *Auth) RegisterNewUser(
	ctx context.Context,
	username string,
	email string,
	pass string,
) (models.Account, error) {
	const op = "auth.RegisterNewUser"

	username = normalize(username)
	email = normalize(email)

	log := a.log.With(
		slog.String("op", op),
		slog.String("username", username),
	)

	log.Info("registering new user")

	byName, err := a.usrProvider.UserByUsername(ctx, username)
	switch {
	case err == nil && byName.IsVerified:
		log.Warn("username is taken")

		return models.Account{}, fmt.Errorf("%s: %w", op, ErrUsernameTaken)
	case err != nil && !errors.Is(err, storage.ErrUserNotFound):
		log.Error("failed to look up username", sl.Err(err))

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	byEmail, err := a.usrProvider.User(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		log.Error("failed to look up email", sl.Err(err))

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}
	emailOwned := err == nil

	if emailOwned && byEmail.IsVerified {
		log.Warn("email is taken")

		return models.Account{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}

	passHash, err := password.Hash(pass, a.bcryptCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	code, err := verification.NewCode(a.now(), a.codeTTL)
	if err != nil {
		log.Error("failed to generate verification code", sl.Err(err))

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	var acc models.Account

	if emailOwned {
		if err := a.usrSaver.UpdatePendingUser(ctx, byEmail.ID, passHash, code.Value, code.ExpiresAt); err != nil {
			log.Error("failed to update pending user", sl.Err(err))

			return models.Account{}, fmt.Errorf("%s: %w", op, err)
		}

		acc = byEmail
		acc.PassHash = passHash
		acc.VerificationCode = code.Value
		acc.VerificationCodeExpiry = code.ExpiresAt

		log.Info("pending user re-registered", slog.String("uid", acc.ID))
	} else {
		acc = models.Account{
			Username:               username,
			Email:                  email,
			PassHash:               passHash,
			VerificationCode:       code.Value,
			VerificationCodeExpiry: code.ExpiresAt,
			IsAcceptingMessages:    true,
			CreatedAt:              a.now(),
		}

		id, err := a.usrSaver.SaveUser(ctx, acc)
		if err != nil {
			if errors.Is(err, storage.ErrUserExists) {
				// * the email may have been claimed between the lookup above and the insert
				if _, lookupErr := a.usrProvider.User(ctx, email); lookupErr == nil {
					log.Warn("email is taken")

					return models.Account{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
				}

				log.Warn("username is held by a pending account")

				return models.Account{}, fmt.Errorf("%s: %w", op, ErrUsernameTaken)
			}

			log.Error("failed to save user", sl.Err(err))

			return models.Account{}, fmt.Errorf("%s: %w", op, err)
		}

		acc.ID = id

		log.Info("user saved", slog.String("uid", id))
	}

	if err := verification.SendVerificationCode(ctx, log, a.publisher, acc.Email, acc.Username, code.Value); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrNotification)
	}

	return acc, nil
}

// * VerifyCode consumes the pending code of username. An expired code fails even when it matches.
func (a *Auth) VerifyCode(ctx context.Context, username string, code string) error {
	const op = "auth.VerifyCode"

	username = normalize(username)

	log := a.log.With(
		slog.String("op", op),
		slog.String("username", username),
	)

	acc, err := a.usrProvider.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
		} else {
			log.Error("failed to get user", sl.Err(err))
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if acc.CodeExpired(a.now()) {
		log.Info("verification code expired")

		return fmt.Errorf("%s: %w", op, ErrCodeExpired)
	}

	if acc.VerificationCode == "" || acc.VerificationCode != code {
		log.Info("verification code mismatch")

		return fmt.Errorf("%s: %w", op, ErrInvalidCode)
	}

	if err := a.usrSaver.SetEmailVerified(ctx, acc.ID, code); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// already consumed by a concurrent request, or the account was verified before
			log.Info("verification code already used")

			return fmt.Errorf("%s: %w", op, ErrInvalidCode)
		}

		log.Error("failed to mark user verified", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user verified", slog.String("uid", acc.ID))

	return nil
}

// * ResendCode issues a fresh code for username regardless of its verification state.
func (a *Auth) ResendCode(ctx context.Context, username string) error {
	const op = "auth.ResendCode"

	username = normalize(username)

	log := a.log.With(
		slog.String("op", op),
		slog.String("username", username),
	)

	acc, err := a.usrProvider.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
		} else {
			log.Error("failed to get user", sl.Err(err))
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	code, err := verification.NewCode(a.now(), a.codeTTL)
	if err != nil {
		log.Error("failed to generate verification code", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.SetVerificationCode(ctx, acc.ID, code.Value, code.ExpiresAt); err != nil {
		log.Error("failed to store verification code", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := verification.SendVerificationCode(ctx, log, a.publisher, acc.Email, acc.Username, code.Value); err != nil {
		return fmt.Errorf("%s: %w", op, ErrNotification)
	}

	log.Info("verification code re-sent", slog.String("uid", acc.ID))

	return nil
}

// IsUsernameAvailable reports false only when a verified account owns username.
func (a *Auth) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	const op = "auth.IsUsernameAvailable"

	acc, err := a.usrProvider.UserByUsername(ctx, normalize(username))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return true, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return !acc.IsVerified, nil
}

// * Login checks the credentials of a verified account and signs a session token.
func (a *Auth) Login(ctx context.Context, identifier, pass string) (Session, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	acc, err := a.usrProvider.UserByIdentifier(ctx, normalize(identifier))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")

			return Session{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		log.Error("failed to get user", sl.Err(err))

		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	if !password.Verify(pass, acc.PassHash) {
		log.Info("invalid credentials", slog.String("uid", acc.ID))

		return Session{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if !acc.IsVerified {
		log.Info("login attempt on unverified account", slog.String("uid", acc.ID))

		return Session{}, fmt.Errorf("%s: %w", op, ErrEmailNotVerified)
	}

	token, principal, err := jwt.NewToken(acc, a.now(), a.tokenTTL, a.secret)
	if err != nil {
		log.Error("failed to generate session token", sl.Err(err))

		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.String("uid", acc.ID))

	return Session{
		Token:     token,
		ExpiresAt: principal.ExpiresAt,
		Principal: principal,
	}, nil
}

// * Logout revokes the session token until it would have expired on its own.
func (a *Auth) Logout(ctx context.Context, token string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	p, err := a.Principal(ctx, token)
	if err != nil {
		return err
	}

	if err := a.revoker.Revoke(ctx, p.TokenID, p.ExpiresAt.Sub(a.now())); err != nil {
		log.Error("failed to revoke session", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("logout successful", slog.String("uid", p.ID))

	return nil
}

// Principal validates token and returns the identity it carries. Revoked tokens are rejected.
func (a *Auth) Principal(ctx context.Context, token string) (models.Principal, error) {
	const op = "auth.Principal"

	p, err := jwt.ParseToken(token, a.now(), a.secret)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	revoked, err := a.revoker.IsRevoked(ctx, p.TokenID)
	if err != nil {
		a.log.Error("failed to check session revocation", slog.String("op", op), sl.Err(err))

		return models.Principal{}, fmt.Errorf("%s: %w", op, err)
	}

	if revoked {
		return models.Principal{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return p, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
