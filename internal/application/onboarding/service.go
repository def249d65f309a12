package onboarding

import (
	"context"
	"fmt"
	"strings"

	"github.com/pocketbroker-gate/internal/domain"
	"github.com/pocketbroker-gate/internal/pkg/validate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

var tracer = otel.Tracer("github.com/pocketbroker-gate/internal/application/onboarding")

// ProfileStore is the write side of the profile store.
type ProfileStore interface {
	Complete(ctx context.Context, subjectID string, c domain.ProfileCompletion) (*domain.Profile, error)
}

// Sealer encrypts secrets before they are stored.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// Service turns a finished draft into a completed profile.
type Service struct {
	store   ProfileStore
	sealer  Sealer
	pinCost int
}

func NewService(store ProfileStore, sealer Sealer) *Service {
	return &Service{store: store, sealer: sealer, pinCost: bcrypt.DefaultCost}
}

// Complete validates the whole draft and writes every field together with
// onboarding_completed=true in a single store call.
func (s *Service) Complete(ctx context.Context, subjectID string, d Draft) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "onboarding.Complete",
		trace.WithAttributes(attribute.String("subject_id", subjectID)))
	defer span.End()

	p, err := s.complete(ctx, subjectID, d)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "onboarding completion failed")
		return nil, err
	}
	return p, nil
}

func (s *Service) complete(ctx context.Context, subjectID string, d Draft) (*domain.Profile, error) {
	if subjectID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := validate.Struct(d); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBadRequest, err.Error())
	}
	pinHash, err := bcrypt.GenerateFromPassword([]byte(d.PIN), s.pinCost)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}
	sealedKey, err := s.sealer.Seal(strings.TrimSpace(d.ExchangeAPIKey))
	if err != nil {
		return nil, fmt.Errorf("seal exchange key: %w", err)
	}
	p, err := s.store.Complete(ctx, subjectID, domain.ProfileCompletion{
		FirstName:      strings.TrimSpace(d.FirstName),
		LastName:       strings.TrimSpace(d.LastName),
		PhoneNumber:    NormalizePhone(d.PhoneNumber),
		PINHash:        string(pinHash),
		RiskTolerance:  domain.RiskTolerance(d.RiskTolerance),
		ExchangeAPIKey: sealedKey,
	})
	if err != nil {
		return nil, fmt.Errorf("complete profile: %w", err)
	}
	return p, nil
}
