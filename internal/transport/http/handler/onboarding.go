package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pocketbroker-gate/internal/application/onboarding"
	"github.com/pocketbroker-gate/internal/domain"
	"github.com/pocketbroker-gate/internal/transport/http/middleware"
)

// WizardRegistry holds one onboarding wizard per subject.
type WizardRegistry interface {
	Open(subjectID string) *onboarding.Wizard
	Discard(subjectID string)
}

type fieldRequest struct {
	Value *string `json:"value"`
}

// OnboardingHandler exposes the onboarding wizard over JSON.
type OnboardingHandler struct {
	wizards WizardRegistry
}

func NewOnboardingHandler(wizards WizardRegistry) *OnboardingHandler {
	return &OnboardingHandler{wizards: wizards}
}

// wizard resolves the caller's wizard, writing 401 when there is no session.
func (h *OnboardingHandler) wizard(w http.ResponseWriter, r *http.Request) (*onboarding.Wizard, bool) {
	sub, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return h.wizards.Open(sub), true
}

func (h *OnboardingHandler) Get(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, WizardEnvelope{Wizard: wz.View()})
}

func (h *OnboardingHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req fieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.respond(w, wz, wz.UpdateField(chi.URLParam(r, "field"), *req.Value))
}

func (h *OnboardingHandler) Next(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	h.respond(w, wz, wz.Next())
}

func (h *OnboardingHandler) Back(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	h.respond(w, wz, wz.Back())
}

// Submit starts the completion write and waits for its outcome.
func (h *OnboardingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	// the write outlives a dropped connection; the store client's own timeouts bound it
	ch, err := wz.Submit(context.WithoutCancel(r.Context()))
	if err != nil {
		h.respond(w, wz, err)
		return
	}
	select {
	case o := <-ch:
		if o.Err != nil {
			status := http.StatusBadGateway
			if errors.Is(o.Err, domain.ErrUnauthorized) {
				status = http.StatusUnauthorized
			}
			slog.WarnContext(r.Context(), "onboarding submission failed", "err", o.Err)
			v := wz.View()
			msg := "onboarding submission failed"
			if v.Notice != nil {
				msg = v.Notice.Message
			}
			writeJSON(w, status, WizardEnvelope{Wizard: v, Error: msg})
			return
		}
		writeJSON(w, http.StatusOK, WizardEnvelope{Wizard: wz.View()})
	case <-r.Context().Done():
		// the outcome still lands on the wizard
	}
}

// Discard drops the caller's draft.
func (h *OnboardingHandler) Discard(w http.ResponseWriter, r *http.Request) {
	sub, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.wizards.Discard(sub)
	w.WriteHeader(http.StatusNoContent)
}

func (h *OnboardingHandler) RiskTolerances(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RiskOptionsEnvelope{Data: domain.RiskOptions})
}

func (h *OnboardingHandler) respond(w http.ResponseWriter, wz *onboarding.Wizard, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, WizardEnvelope{Wizard: wz.View()})
	case errors.Is(err, domain.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, WizardEnvelope{Wizard: wz.View(), Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, WizardEnvelope{Wizard: wz.View(), Error: err.Error()})
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
