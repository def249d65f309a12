package onboarding

import "github.com/pocketbroker-gate/internal/pkg/validate"

// TotalSteps is the number of wizard steps.
const TotalSteps = 3

type stepInfo struct {
	title       string
	description string
	fields      []string // Draft struct fields checked by this step
}

var steps = [TotalSteps]stepInfo{
	{"Personal Information", "Tell us about yourself", []string{"FirstName", "LastName"}},
	{"Security", "Secure your account", []string{"PhoneNumber", "PIN"}},
	{"Investment Details", "Set your preferences", []string{"RiskTolerance", "ExchangeAPIKey"}},
}

// validateStep checks only the fields that belong to step (1-based).
func validateStep(d Draft, step int) error {
	return validate.Partial(d, steps[step-1].fields...)
}
