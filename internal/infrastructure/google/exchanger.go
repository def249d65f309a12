package google

import (
	"context"
	"fmt"

	"github.com/pocketbroker-gate/internal/config"
	"github.com/pocketbroker-gate/internal/domain"
	"golang.org/x/oauth2"
)

// Exchanger runs the authorization-code leg of the Google OAuth flow.
type Exchanger struct {
	oauth *oauth2.Config
}

func NewExchanger(cfg config.GoogleConfig) *Exchanger {
	return &Exchanger{oauth: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
	}}
}

// AuthCodeURL returns the provider consent URL carrying state.
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the provider's ID token.
func (e *Exchanger) Exchange(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("missing authorization code: %w", domain.ErrBadRequest)
	}
	tok, err := e.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", domain.ErrUnauthorized)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return "", fmt.Errorf("token response has no id_token: %w", domain.ErrUnauthorized)
	}
	return idToken, nil
}
