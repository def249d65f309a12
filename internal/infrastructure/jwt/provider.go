package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pocketbroker-gate/internal/config"
	"github.com/pocketbroker-gate/internal/domain"
	"github.com/pocketbroker-gate/internal/pkg/id"
)

// sessionClaims is the JWT payload of a session token.
type sessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 session tokens.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiry     time.Duration
	now        func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return NewProviderFromKeys(privKey, pubKey, cfg.JWTExpiry), nil
}

// NewProviderFromKeys builds a Provider from already parsed keys.
func NewProviderFromKeys(priv *rsa.PrivateKey, pub *rsa.PublicKey, expiry time.Duration) *Provider {
	return &Provider{privateKey: priv, publicKey: pub, expiry: expiry, now: time.Now}
}

// Sign issues a session token for subjectID with a fresh session ID.
func (p *Provider) Sign(subjectID, email string) (string, *domain.SessionClaims, error) {
	if subjectID == "" {
		return "", nil, errors.New("subject is required")
	}
	now := p.now().UTC().Truncate(time.Second)
	sc := &domain.SessionClaims{
		SubjectID: subjectID,
		Email:     email,
		SessionID: id.New(),
		IssuedAt:  now,
		ExpiresAt: now.Add(p.expiry),
	}
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sc.SubjectID,
			ID:        sc.SessionID,
			IssuedAt:  jwt.NewNumericDate(sc.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sc.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(p.privateKey)
	if err != nil {
		return "", nil, err
	}
	return signed, sc, nil
}

// Verify parses tokenStr and returns its session claims.
func (p *Provider) Verify(tokenStr string) (*domain.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, jwt.WithTimeFunc(p.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token claims")
	}
	sc := &domain.SessionClaims{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		SessionID: claims.ID,
	}
	if claims.IssuedAt != nil {
		sc.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		sc.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return sc, nil
}
