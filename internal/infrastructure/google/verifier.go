package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"github.com/taskboard-api/internal/config"
	"github.com/taskboard-api/internal/domain"
)

// Identity holds the verified claims extracted from a Google ID token.
type Identity struct {
	Sub           string
	Email         string
	EmailVerified bool
	Name          string
}

// Verifier exchanges authorization codes and verifies Google ID tokens
// against a specific client ID.
type Verifier struct {
	clientID string
	oauth    *oauth2.Config
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewVerifier(cfg config.Google) *Verifier {
	return &Verifier{
		clientID: cfg.ClientID,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     googleoauth.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		validate: idtoken.Validate,
	}
}

// Verify validates the Google ID token and returns the extracted identity.
// Returns a domain.ErrUnauthorized-wrapped error if the token is invalid.
func (v *Verifier) Verify(ctx context.Context, token string) (*Identity, error) {
	p, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("invalid google token: %w", domain.ErrUnauthorized)
	}
	email, _ := p.Claims["email"].(string)
	emailVerified, _ := p.Claims["email_verified"].(bool)
	name, _ := p.Claims["name"].(string)
	return &Identity{
		Sub:           p.Subject,
		Email:         email,
		EmailVerified: emailVerified,
		Name:          name,
	}, nil
}

// Exchange trades an authorization code from the browser popup for tokens
// and verifies the returned ID token.
func (v *Verifier) Exchange(ctx context.Context, code string) (*Identity, error) {
	tok, err := v.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange: %w", domain.ErrUnauthorized)
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return nil, fmt.Errorf("google response has no id_token: %w", domain.ErrUnauthorized)
	}
	return v.Verify(ctx, raw)
}
