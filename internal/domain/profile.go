package domain

import "time"

// RiskTolerance is the investment risk preference collected during onboarding.
type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskModerate     RiskTolerance = "moderate"
	RiskAggressive   RiskTolerance = "aggressive"
)

// Valid reports whether r is one of the enumerated tolerances.
func (r RiskTolerance) Valid() bool {
	switch r {
	case RiskConservative, RiskModerate, RiskAggressive:
		return true
	}
	return false
}

// RiskOption describes a tolerance for display.
type RiskOption struct {
	Value       RiskTolerance `json:"value"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
}

// RiskOptions lists the selectable tolerances in display order.
var RiskOptions = []RiskOption{
	{Value: RiskConservative, Label: "Conservative", Description: "Low risk, stable returns"},
	{Value: RiskModerate, Label: "Moderate", Description: "Balanced risk and return"},
	{Value: RiskAggressive, Label: "Aggressive", Description: "High risk, high potential returns"},
}

// Profile is the persisted onboarding record, one per subject.
// PK: id (the identity provider subject).
type Profile struct {
	ID                  string        `json:"id" dynamodbav:"id" db:"id"`
	FirstName           string        `json:"first_name" dynamodbav:"first_name" db:"first_name"`
	LastName            string        `json:"last_name" dynamodbav:"last_name" db:"last_name"`
	PhoneNumber         string        `json:"phone_number" dynamodbav:"phone_number" db:"phone_number"`
	PINHash             string        `json:"-" dynamodbav:"pin_hash" db:"pin_hash"`
	RiskTolerance       RiskTolerance `json:"risk_tolerance" dynamodbav:"risk_tolerance" db:"risk_tolerance"`
	ExchangeAPIKey      string        `json:"-" dynamodbav:"exchange_api_key" db:"exchange_api_key"` // sealed
	OnboardingCompleted bool          `json:"onboarding_completed" dynamodbav:"onboarding_completed" db:"onboarding_completed"`
	CreatedAt           time.Time     `json:"created" dynamodbav:"created_at" db:"created_at"`
	UpdatedAt           time.Time     `json:"updated" dynamodbav:"updated_at" db:"updated_at"`
}

// ProfileCompletion carries every field written by the single onboarding
// completion update. Secrets arrive already hashed or sealed.
type ProfileCompletion struct {
	FirstName      string
	LastName       string
	PhoneNumber    string
	PINHash        string
	RiskTolerance  RiskTolerance
	ExchangeAPIKey string
}
