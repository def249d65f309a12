package http

import (
	"context"

	"github.com/pocketbroker-gate/internal/domain"
)

// ProfileRepository is the minimal interface the router requires from a profile store.
// Both the DynamoDB and the SQL stores satisfy it.
type ProfileRepository interface {
	// Get returns domain.ErrNotFound when the subject has no profile yet.
	Get(ctx context.Context, subjectID string) (*domain.Profile, error)
	// Complete upserts every onboarding field with onboarding_completed=true in one write.
	Complete(ctx context.Context, subjectID string, c domain.ProfileCompletion) (*domain.Profile, error)
}

// SecretSealer encrypts secrets before they are written to the profile store.
type SecretSealer interface {
	Seal(plaintext string) (string, error)
}
