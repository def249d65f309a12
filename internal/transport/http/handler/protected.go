package handler

import (
	"net/http"

	"github.com/pocketbroker-gate/internal/transport/http/middleware"
)

// ProtectedHandler renders the protected area. It is only reachable behind
// middleware.Guard, so claims are already admitted.
type ProtectedHandler struct{}

func NewProtectedHandler() *ProtectedHandler { return &ProtectedHandler{} }

func (h *ProtectedHandler) Show(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, ProtectedEnvelope{
		Message:   "Welcome to PocketBroker",
		SubjectID: claims.SubjectID,
		Email:     claims.Email,
		SessionID: claims.SessionID,
	})
}
