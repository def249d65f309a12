package onboarding

import (
	"fmt"
	"strings"

	"github.com/pocketbroker-gate/internal/domain"
	"github.com/pocketbroker-gate/internal/pkg/validate"
)

// Field names accepted by Wizard.UpdateField.
const (
	FieldFirstName      = "first_name"
	FieldLastName       = "last_name"
	FieldPhoneNumber    = "phone_number"
	FieldPIN            = "pin"
	FieldRiskTolerance  = "risk_tolerance"
	FieldExchangeAPIKey = "exchange_api_key"
)

const pinLength = 4

// Draft is the in-progress onboarding form. It lives only in wizard memory.
type Draft struct {
	FirstName      string `json:"first_name" validate:"notblank"`
	LastName       string `json:"last_name" validate:"notblank"`
	PhoneNumber    string `json:"phone_number" validate:"phone10"`
	PIN            string `json:"pin" validate:"pin4"`
	RiskTolerance  string `json:"risk_tolerance" validate:"oneof=conservative moderate aggressive"`
	ExchangeAPIKey string `json:"exchange_api_key" validate:"notblank"`
}

// set writes value into field, normalizing phone and PIN input.
func (d *Draft) set(field, value string) error {
	switch field {
	case FieldFirstName:
		d.FirstName = value
	case FieldLastName:
		d.LastName = value
	case FieldPhoneNumber:
		d.PhoneNumber = NormalizePhone(value)
	case FieldPIN:
		d.PIN = NormalizePIN(value)
	case FieldRiskTolerance:
		d.RiskTolerance = strings.TrimSpace(value)
	case FieldExchangeAPIKey:
		d.ExchangeAPIKey = value
	default:
		return fmt.Errorf("unknown field %q: %w", field, domain.ErrBadRequest)
	}
	return nil
}

// NormalizePhone keeps only digits and renders exactly ten of them as
// (DDD) DDD-DDDD. Any other digit count is returned unformatted.
func NormalizePhone(s string) string {
	d := validate.DigitsOnly(s)
	if len(d) != 10 {
		return d
	}
	return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:])
}

// NormalizePIN keeps only digits and drops everything past the fourth.
func NormalizePIN(s string) string {
	d := validate.DigitsOnly(s)
	if len(d) > pinLength {
		d = d[:pinLength]
	}
	return d
}
