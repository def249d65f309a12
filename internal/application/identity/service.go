package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pocketbroker-gate/internal/domain"
	"github.com/pocketbroker-gate/internal/infrastructure/google"
)

// CodeExchanger runs the provider's authorization-code flow.
type CodeExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (idToken string, err error)
}

// TokenVerifier validates provider ID tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*google.Payload, error)
}

// SessionTokens issues and checks session tokens.
type SessionTokens interface {
	Sign(subjectID, email string) (string, *domain.SessionClaims, error)
	Verify(token string) (*domain.SessionClaims, error)
}

type Service interface {
	// StartURL returns the provider consent URL bound to state.
	StartURL(state string) string
	// Exchange trades an authorization code for session claims and a signed session token.
	Exchange(ctx context.Context, code string) (*domain.SessionClaims, string, error)
	// Current returns the claims carried by a session token, if it is still valid.
	Current(token string) (*domain.SessionClaims, bool)
}

type service struct {
	exchanger CodeExchanger
	verifier  TokenVerifier
	tokens    SessionTokens
	now       func() time.Time
}

func NewService(exchanger CodeExchanger, verifier TokenVerifier, tokens SessionTokens) Service {
	return &service{exchanger: exchanger, verifier: verifier, tokens: tokens, now: time.Now}
}

func (s *service) StartURL(state string) string {
	return s.exchanger.AuthCodeURL(state)
}

func (s *service) Exchange(ctx context.Context, code string) (*domain.SessionClaims, string, error) {
	idToken, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("code exchange: %w", domain.ErrUnauthorized)
	}
	payload, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, "", fmt.Errorf("id token: %w", domain.ErrUnauthorized)
	}
	token, claims, err := s.tokens.Sign(payload.Sub, payload.Email)
	if err != nil {
		return nil, "", fmt.Errorf("sign session: %w", err)
	}
	slog.InfoContext(ctx, "session issued", "subject_id", claims.SubjectID, "session_id", claims.SessionID)
	return claims, token, nil
}

func (s *service) Current(token string) (*domain.SessionClaims, bool) {
	if token == "" {
		return nil, false
	}
	claims, err := s.tokens.Verify(token)
	if err != nil || !claims.Valid(s.now()) {
		return nil, false
	}
	return claims, true
}
