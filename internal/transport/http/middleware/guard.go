package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pocketbroker-gate/internal/application/gate"
	"github.com/pocketbroker-gate/internal/domain"
)

// Evaluator decides whether a session may enter the protected area.
type Evaluator interface {
	Evaluate(ctx context.Context, claims *domain.SessionClaims) gate.Decision
}

// Guard redirects every request that is not Admitted to its gate target and
// only then calls next. Claims stay in the context for display.
func Guard(ev Evaluator, routes gate.Routes) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			d := ev.Evaluate(r.Context(), claims)
			if d != gate.Admitted {
				slog.DebugContext(r.Context(), "protected entry redirected", "decision", d.String(), "path", r.URL.Path)
				http.Redirect(w, r, routes.Target(d), http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RedirectAdmitted sends callers whose onboarding is already complete to
// routes.Protected instead of the wrapped handler.
func RedirectAdmitted(ev Evaluator, routes gate.Routes) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			if ev.Evaluate(r.Context(), claims) == gate.Admitted {
				http.Redirect(w, r, routes.Protected, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RejectAdmitted answers 409 to callers whose onboarding is already complete,
// so a completed profile is never rewritten through the wizard.
func RejectAdmitted(ev Evaluator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			if ev.Evaluate(r.Context(), claims) == gate.Admitted {
				writeJSONError(w, http.StatusConflict, "onboarding already completed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
