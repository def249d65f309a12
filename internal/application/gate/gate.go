// Package gate decides whether a caller may enter the protected area, must
// finish onboarding first, or must sign in again.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pocketbroker-gate/internal/domain"
)

// Decision is the outcome of evaluating a session against its profile.
type Decision int

const (
	Unauthenticated Decision = iota
	NeedsOnboarding
	Admitted
)

func (d Decision) String() string {
	switch d {
	case NeedsOnboarding:
		return "needs_onboarding"
	case Admitted:
		return "admitted"
	}
	return "unauthenticated"
}

// Decide applies the gate checks in order. It is pure: claims are checked at now,
// and a nil profile is treated as not onboarded.
func Decide(claims *domain.SessionClaims, profile *domain.Profile, now time.Time) Decision {
	if !claims.Valid(now) {
		return Unauthenticated
	}
	if profile == nil || !profile.OnboardingCompleted {
		return NeedsOnboarding
	}
	return Admitted
}

// ProfileReader is the read side of the profile store.
type ProfileReader interface {
	Get(ctx context.Context, subjectID string) (*domain.Profile, error)
}

// Service fetches the profile for a session and decides.
type Service struct {
	profiles ProfileReader
	now      func() time.Time
}

func NewService(profiles ProfileReader) *Service {
	return &Service{profiles: profiles, now: time.Now}
}

// Evaluate re-reads the profile on every call. Read failures other than
// not-found resolve to NeedsOnboarding so protected content is never exposed
// on a store outage.
func (s *Service) Evaluate(ctx context.Context, claims *domain.SessionClaims) Decision {
	now := s.now()
	if !claims.Valid(now) {
		return Unauthenticated
	}
	profile, err := s.profiles.Get(ctx, claims.SubjectID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.WarnContext(ctx, "profile read failed, requiring onboarding",
				"subject_id", claims.SubjectID, "err", err)
		}
		profile = nil
	}
	return Decide(claims, profile, now)
}

// Routes maps decisions to the three redirect targets.
type Routes struct {
	Login      string
	Onboarding string
	Protected  string
}

// Target returns the path a caller with decision d is sent to.
func (r Routes) Target(d Decision) string {
	switch d {
	case Admitted:
		return r.Protected
	case NeedsOnboarding:
		return r.Onboarding
	}
	return r.Login
}
