package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/pocketbroker-gate/internal/application/gate"
	"github.com/pocketbroker-gate/internal/application/identity"
	"github.com/pocketbroker-gate/internal/domain"
	"github.com/pocketbroker-gate/internal/pkg/token"
)

const (
	stateCookieName = "pb_oauth_state"
	stateTTL        = 10 * time.Minute
)

// Evaluator decides where a session belongs.
type Evaluator interface {
	Evaluate(ctx context.Context, claims *domain.SessionClaims) gate.Decision
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler serves the sign-in flow and the post-authentication callback.
type AuthHandler struct {
	svc       identity.Service
	gate      Evaluator
	routes    gate.Routes
	cookie    CookieConfig
	startPath string
}

func NewAuthHandler(svc identity.Service, ev Evaluator, routes gate.Routes, cookie CookieConfig, startPath string) *AuthHandler {
	return &AuthHandler{svc: svc, gate: ev, routes: routes, cookie: cookie, startPath: startPath}
}

// Login describes how to begin signing in.
func (h *AuthHandler) Login(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, LoginEnvelope{Message: "Sign in to continue", StartURL: h.startPath})
}

// Start binds a fresh state to the browser and redirects to the provider.
func (h *AuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := token.NewState()
	if err != nil {
		slog.ErrorContext(r.Context(), "could not generate oauth state", "err", err)
		writeError(w, http.StatusInternalServerError, "could not start sign in")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.svc.StartURL(state), http.StatusFound)
}

// Callback exchanges the provider code for a session and routes the caller
// through the gate. Every failure ends at the login path.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	h.clearCookie(w, stateCookieName)

	if providerErr := q.Get("error"); providerErr != "" {
		slog.InfoContext(ctx, "provider denied sign in", "error", providerErr)
		h.redirect(w, r, gate.Unauthenticated)
		return
	}
	if !h.stateMatches(r, q.Get("state")) {
		slog.WarnContext(ctx, "oauth state mismatch")
		h.redirect(w, r, gate.Unauthenticated)
		return
	}

	claims, sessionToken, err := h.svc.Exchange(ctx, q.Get("code"))
	if err != nil {
		slog.InfoContext(ctx, "code exchange failed", "err", err)
		h.redirect(w, r, gate.Unauthenticated)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    sessionToken,
		Path:     "/",
		Expires:  claims.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	h.redirect(w, r, h.gate.Evaluate(ctx, claims))
}

// Logout drops the session cookie and returns to login.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, h.cookie.Name)
	h.redirect(w, r, gate.Unauthenticated)
}

func (h *AuthHandler) stateMatches(r *http.Request, state string) bool {
	c, err := r.Cookie(stateCookieName)
	if err != nil || c.Value == "" || state == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(state)) == 1
}

func (h *AuthHandler) redirect(w http.ResponseWriter, r *http.Request, d gate.Decision) {
	http.Redirect(w, r, h.routes.Target(d), http.StatusFound)
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
