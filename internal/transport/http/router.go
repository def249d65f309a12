package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pocketbroker-gate/internal/application/gate"
	"github.com/pocketbroker-gate/internal/application/identity"
	"github.com/pocketbroker-gate/internal/application/onboarding"
	"github.com/pocketbroker-gate/internal/config"
	"github.com/pocketbroker-gate/internal/transport/http/handler"
	appmiddleware "github.com/pocketbroker-gate/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Profiles ProfileRepository
	Sealer   SecretSealer
	Identity identity.Service
}

// NewRouter builds and returns the application router. ctx bounds background
// work owned by the router, such as rate-limiter cleanup and idle draft eviction.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appmiddleware.Session(deps.Identity, cfg.SessionCookieName))

	// 5 requests/second, burst of 10: applied to the callback and submission.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10)

	routes := gate.Routes{Login: cfg.LoginPath, Onboarding: cfg.OnboardingPath, Protected: cfg.ProtectedPath}
	gateSvc := gate.NewService(deps.Profiles)
	onboardingSvc := onboarding.NewService(deps.Profiles, deps.Sealer)
	wizards := onboarding.NewRegistry(onboarding.Options{
		Writer:      onboardingSvc,
		Session:     appmiddleware.SubjectFromContext,
		Destination: cfg.ProtectedPath,
		Delay:       cfg.OnboardingRedirectDelay,
		Notify: func(n onboarding.Notice) {
			slog.Info("onboarding notice", "kind", n.Kind, "message", n.Message)
		},
	}, cfg.OnboardingDraftTTL)
	go wizards.Run(ctx, time.Minute)

	const startPath = "/auth/google/start"
	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(deps.Identity, gateSvc, routes,
		handler.CookieConfig{Name: cfg.SessionCookieName, Secure: cfg.SessionCookieSecure}, startPath)
	protectedH := handler.NewProtectedHandler()
	onboardingH := handler.NewOnboardingHandler(wizards)

	// ── Public routes (no session required) ──────────────────────────────
	r.Get("/health-check/{action}", healthH.Ping)
	r.Get(cfg.LoginPath, authH.Login)
	r.Get(startPath, authH.Start)
	r.With(sensitiveRL.Limit).Get("/auth/callback", authH.Callback)
	r.Post("/auth/logout", authH.Logout)

	// ── Gated protected area ─────────────────────────────────────────────
	r.With(appmiddleware.Guard(gateSvc, routes)).Get(cfg.ProtectedPath, protectedH.Show)

	// ── Onboarding (session required, not yet admitted) ──────────────────
	r.With(
		appmiddleware.RedirectWithoutSession(cfg.LoginPath),
		appmiddleware.RedirectAdmitted(gateSvc, routes),
	).Get(cfg.OnboardingPath, onboardingH.Get)
	r.Route("/v1/onboarding", func(r chi.Router) {
		r.Use(appmiddleware.RequireSession)
		r.Use(appmiddleware.RejectAdmitted(gateSvc))

		r.Get("/", onboardingH.Get)
		r.Delete("/", onboardingH.Discard)
		r.Get("/risk-tolerances", onboardingH.RiskTolerances)
		r.Put("/fields/{field}", onboardingH.UpdateField)
		r.Post("/next", onboardingH.Next)
		r.Post("/back", onboardingH.Back)
		r.With(sensitiveRL.Limit).Post("/submit", onboardingH.Submit)
	})

	return r
}
