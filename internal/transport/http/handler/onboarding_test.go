package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pocketbroker-gate/internal/application/onboarding"
	"github.com/pocketbroker-gate/internal/domain"
	"github.com/pocketbroker-gate/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu      sync.Mutex
	drafts  []onboarding.Draft
	ctxErrs []error
	err     error
}

func (rw *recordingWriter) Complete(ctx context.Context, subjectID string, d onboarding.Draft) (*domain.Profile, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.drafts = append(rw.drafts, d)
	rw.ctxErrs = append(rw.ctxErrs, ctx.Err())
	if rw.err != nil {
		return nil, rw.err
	}
	return &domain.Profile{ID: subjectID, OnboardingCompleted: true}, nil
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// onboardingServer mounts the wizard routes the same way the router does, with
// the caller's claims injected when subjectID is non-empty.
func onboardingServer(writer onboarding.ProfileWriter, subjectID string) (http.Handler, *onboarding.Registry) {
	reg := onboarding.NewRegistry(onboarding.Options{
		Writer:      writer,
		Session:     middleware.SubjectFromContext,
		Destination: "/protected",
		Delay:       time.Hour,
	}, time.Hour)
	h := NewOnboardingHandler(reg)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if subjectID != "" {
				req = req.WithContext(middleware.WithClaims(req.Context(), &domain.SessionClaims{SubjectID: subjectID}))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/v1/onboarding", h.Get)
	r.Delete("/v1/onboarding", h.Discard)
	r.Put("/v1/onboarding/fields/{field}", h.UpdateField)
	r.Post("/v1/onboarding/next", h.Next)
	r.Post("/v1/onboarding/back", h.Back)
	r.Post("/v1/onboarding/submit", h.Submit)
	r.Get("/v1/onboarding/risk-tolerances", h.RiskTolerances)
	return r, reg
}

func do(t *testing.T, h http.Handler, method, target string, body any) (*httptest.ResponseRecorder, WizardEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, &buf))
	var env WizardEnvelope
	if rr.Code != http.StatusNoContent {
		_ = json.Unmarshal(rr.Body.Bytes(), &env)
	}
	return rr, env
}

func setField(t *testing.T, h http.Handler, field, value string) WizardEnvelope {
	t.Helper()
	rr, env := do(t, h, http.MethodPut, "/v1/onboarding/fields/"+field, map[string]string{"value": value})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return env
}

func completeSteps(t *testing.T, h http.Handler) {
	t.Helper()
	setField(t, h, "first_name", "Ada")
	setField(t, h, "last_name", "Lovelace")
	rr, _ := do(t, h, http.MethodPost, "/v1/onboarding/next", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	setField(t, h, "phone_number", "5551234567")
	setField(t, h, "pin", "12345")
	rr, _ = do(t, h, http.MethodPost, "/v1/onboarding/next", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	setField(t, h, "risk_tolerance", "conservative")
	setField(t, h, "exchange_api_key", "kraken-key")
}

func TestOnboarding_RequiresSession(t *testing.T) {
	h, _ := onboardingServer(&recordingWriter{}, "")
	rr, _ := do(t, h, http.MethodGet, "/v1/onboarding", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestOnboarding_OpenReturnsFirstStep(t *testing.T) {
	h, _ := onboardingServer(&recordingWriter{}, "sub-1")
	rr, env := do(t, h, http.MethodGet, "/v1/onboarding", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, env.Wizard.Step)
	assert.Equal(t, "Personal Information", env.Wizard.Title)
	assert.False(t, env.Wizard.CanNext)
}

func TestOnboarding_NormalizesPhone(t *testing.T) {
	h, _ := onboardingServer(&recordingWriter{}, "sub-1")

	env := setField(t, h, "phone_number", "5551234567")
	assert.Equal(t, "(555) 123-4567", env.Wizard.Draft.PhoneNumber)
	env = setField(t, h, "phone_number", "55512")
	assert.Equal(t, "55512", env.Wizard.Draft.PhoneNumber)
}

func TestOnboarding_NextDisabledIsConflict(t *testing.T) {
	h, _ := onboardingServer(&recordingWriter{}, "sub-1")
	setField(t, h, "first_name", "Ada")

	rr, env := do(t, h, http.MethodPost, "/v1/onboarding/next", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, 1, env.Wizard.Step)
	assert.NotEmpty(t, env.Error)
}

func TestOnboarding_UnknownFieldIsBadRequest(t *testing.T) {
	h, _ := onboardingServer(&recordingWriter{}, "sub-1")
	rr, _ := do(t, h, http.MethodPut, "/v1/onboarding/fields/nickname", map[string]string{"value": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = do(t, h, http.MethodPut, "/v1/onboarding/fields/first_name", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOnboarding_SubmitSuccess(t *testing.T) {
	writer := &recordingWriter{}
	h, _ := onboardingServer(writer, "sub-1")
	completeSteps(t, h)

	rr, env := do(t, h, http.MethodPost, "/v1/onboarding/submit", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, onboarding.StatusSucceeded, env.Wizard.Status)
	assert.Equal(t, "/protected", env.Wizard.Redirect)
	assert.Equal(t, "success", env.Wizard.Notice.Kind)

	require.Len(t, writer.drafts, 1)
	assert.Equal(t, "(555) 123-4567", writer.drafts[0].PhoneNumber)
	assert.Equal(t, "1234", writer.drafts[0].PIN)

	rr, _ = do(t, h, http.MethodPost, "/v1/onboarding/submit", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Len(t, writer.drafts, 1)
}

func TestOnboarding_SubmitFailureIsRetryable(t *testing.T) {
	writer := &recordingWriter{err: errors.New("store down")}
	h, _ := onboardingServer(writer, "sub-1")
	completeSteps(t, h)

	rr, env := do(t, h, http.MethodPost, "/v1/onboarding/submit", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, 3, env.Wizard.Step)
	assert.True(t, env.Wizard.CanSubmit)
	assert.Equal(t, "Ada", env.Wizard.Draft.FirstName)
	assert.Equal(t, "error", env.Wizard.Notice.Kind)
	assert.NotEmpty(t, env.Error)

	writer.mu.Lock()
	writer.err = nil
	writer.mu.Unlock()
	rr, _ = do(t, h, http.MethodPost, "/v1/onboarding/submit", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestOnboarding_DiscardStartsOver(t *testing.T) {
	h, reg := onboardingServer(&recordingWriter{}, "sub-1")
	setField(t, h, "first_name", "Ada")

	rr, _ := do(t, h, http.MethodDelete, "/v1/onboarding", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Zero(t, reg.Len())

	_, env := do(t, h, http.MethodGet, "/v1/onboarding", nil)
	assert.Empty(t, env.Wizard.Draft.FirstName)
}

func TestOnboarding_RiskTolerances(t *testing.T) {
	h, _ := onboardingServer(&recordingWriter{}, "sub-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/onboarding/risk-tolerances", nil))

	var resp RiskOptionsEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Data, 3)
	assert.Equal(t, domain.RiskConservative, resp.Data[0].Value)
}

func TestOnboarding_SubmitSurvivesClientDisconnect(t *testing.T) {
	writer := &recordingWriter{}
	h, reg := onboardingServer(writer, "sub-1")
	completeSteps(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/onboarding/submit", nil).WithContext(ctx)
	h.ServeHTTP(httptest.NewRecorder(), req)

	wz, ok := reg.Get("sub-1")
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		return wz.View().Status == onboarding.StatusSucceeded
	}, time.Second, 5*time.Millisecond)

	writer.mu.Lock()
	defer writer.mu.Unlock()
	require.Len(t, writer.ctxErrs, 1)
	assert.NoError(t, writer.ctxErrs[0])
}
