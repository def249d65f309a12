package handler

import (
	"encoding/json"
	"net/http"

	"github.com/pocketbroker-gate/internal/application/onboarding"
	"github.com/pocketbroker-gate/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// LoginEnvelope describes how to start signing in.
type LoginEnvelope struct {
	Message  string `json:"message"`
	StartURL string `json:"start_url"`
}

// ProtectedEnvelope wraps the protected-area response.
type ProtectedEnvelope struct {
	Message   string `json:"message"`
	SubjectID string `json:"subject_id"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// WizardEnvelope wraps every onboarding wizard response.
type WizardEnvelope struct {
	Wizard onboarding.View `json:"wizard"`
	Error  string          `json:"error,omitempty"`
}

// RiskOptionsEnvelope lists the selectable risk tolerances.
type RiskOptionsEnvelope struct {
	Data []domain.RiskOption `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
