package dynamo

// DynamoDB attribute names used in update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldID                  = "id"
	fieldFirstName           = "first_name"
	fieldLastName            = "last_name"
	fieldPhoneNumber         = "phone_number"
	fieldPINHash             = "pin_hash"
	fieldRiskTolerance       = "risk_tolerance"
	fieldExchangeAPIKey      = "exchange_api_key"
	fieldOnboardingCompleted = "onboarding_completed"
	fieldCreatedAt           = "created_at"
	fieldUpdatedAt           = "updated_at"
)
