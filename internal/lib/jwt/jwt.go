package jwt

import (
	"errors"
	"fmt"
	"time"

	"feedback_service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

type Claims struct {
	jwt.RegisteredClaims
	Username            string `json:"username"`
	IsVerified          bool   `json:"verified"`
	IsAcceptingMessages bool   `json:"accepting"`
}

// NewToken signs a session token for user valid for ttl from now.
// The returned principal is the one ParseToken yields for the token.
func NewToken(user models.Account, now time.Time, ttl time.Duration, secret string) (string, models.Principal, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username:            user.Username,
		IsVerified:          user.IsVerified,
		IsAcceptingMessages: user.IsAcceptingMessages,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", models.Principal{}, err
	}

	return signed, claims.principal(), nil
}

// ParseToken validates signature and expiry (against now) and returns the principal it carries.
func ParseToken(tokenStr string, now time.Time, secret string) (models.Principal, error) {
	const op = "jwt.ParseToken"

	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%s: unexpected signing method: %v", op, t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Principal{}, ErrTokenExpired
		}

		return models.Principal{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return models.Principal{}, ErrInvalidToken
	}

	return claims.principal(), nil
}

func (c *Claims) principal() models.Principal {
	return models.Principal{
		ID:                  c.Subject,
		Username:            c.Username,
		IsVerified:          c.IsVerified,
		IsAcceptingMessages: c.IsAcceptingMessages,
		TokenID:             c.ID,
		ExpiresAt:           c.ExpiresAt.Time,
	}
}
