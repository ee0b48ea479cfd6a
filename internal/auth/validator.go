// Package auth implements the session validator that guards the connection
// handshake: a bearer credential is decoded, checked for expiry, and then
// confirmed against the external user-account store so that server-side
// revocation (logout) takes effect immediately.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/addysrii/new-backend-sub001/pkg/gateway"
)

// Typed handshake failures. These are the only auth outcomes surfaced to
// clients; anything else is an internal error.
var (
	ErrMissingCredential   = errors.New("missing credential")
	ErrMalformedCredential = errors.New("malformed credential")
	ErrExpiredCredential   = errors.New("expired credential")
	ErrUnknownUser         = errors.New("unknown user")
	ErrRevokedSession      = errors.New("revoked session")
)

// Claims is the expected credential payload.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Validator confirms bearer credentials against the session store.
type Validator struct {
	secret   []byte
	sessions gateway.SessionStore
	logger   zerolog.Logger
}

// NewValidator creates a validator over the given HMAC secret and store.
func NewValidator(secret string, sessions gateway.SessionStore, logger zerolog.Logger) (*Validator, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret cannot be empty")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store cannot be nil")
	}
	return &Validator{
		secret:   []byte(secret),
		sessions: sessions,
		logger:   logger.With().Str("component", "SessionValidator").Logger(),
	}, nil
}

// Validate returns the identity the credential proves, or one of the typed
// failures above. Business failures never panic.
func (v *Validator) Validate(ctx context.Context, credential string) (gateway.Identity, error) {
	if credential == "" {
		return gateway.Identity{}, ErrMissingCredential
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return gateway.Identity{}, ErrExpiredCredential
		}
		return gateway.Identity{}, ErrMalformedCredential
	}
	if !token.Valid || claims.UserID == "" {
		return gateway.Identity{}, ErrMalformedCredential
	}

	sessions, err := v.sessions.ActiveSessions(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gateway.ErrUserNotFound) {
			return gateway.Identity{}, ErrUnknownUser
		}
		v.logger.Error().Err(err).Str("user", claims.UserID).Msg("Session store lookup failed")
		return gateway.Identity{}, fmt.Errorf("session lookup failed: %w", err)
	}

	for _, s := range sessions {
		if s == credential {
			return gateway.Identity{UserID: claims.UserID, Email: claims.Email}, nil
		}
	}
	return gateway.Identity{}, ErrRevokedSession
}

// IsAuthFailure reports whether err is one of the typed handshake failures
// that may be surfaced to the client as a rejection reason.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrMalformedCredential) ||
		errors.Is(err, ErrExpiredCredential) ||
		errors.Is(err, ErrUnknownUser) ||
		errors.Is(err, ErrRevokedSession)
}
