package onboarding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pocketbroker-gate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	drafts   []Draft
	subjects []string
	err      error
	release  chan struct{}
}

func (f *fakeWriter) Complete(_ context.Context, subjectID string, d Draft) (*domain.Profile, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, d)
	f.subjects = append(f.subjects, subjectID)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Profile{ID: subjectID, FirstName: d.FirstName, OnboardingCompleted: true}, nil
}

func (f *fakeWriter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.drafts)
}

func sessionFor(subjectID string) SessionAccessor {
	return func(context.Context) (string, bool) { return subjectID, subjectID != "" }
}

type harness struct {
	w        *Wizard
	writer   *fakeWriter
	notices  []Notice
	navs     []string
	delays   []time.Duration
	navMutex sync.Mutex
}

func newHarness(t *testing.T, subjectID string) *harness {
	t.Helper()
	h := &harness{writer: &fakeWriter{}}
	h.w = NewWizard(Options{
		Writer:      h.writer,
		Session:     sessionFor(subjectID),
		Destination: "/protected",
		Delay:       2 * time.Second,
		Notify: func(n Notice) {
			h.navMutex.Lock()
			h.notices = append(h.notices, n)
			h.navMutex.Unlock()
		},
		Navigate: func(path string) {
			h.navMutex.Lock()
			h.navs = append(h.navs, path)
			h.navMutex.Unlock()
		},
	})
	h.w.after = func(d time.Duration, f func()) {
		h.navMutex.Lock()
		h.delays = append(h.delays, d)
		h.navMutex.Unlock()
		f()
	}
	return h
}

func fill(t *testing.T, w *Wizard, fields map[string]string) {
	t.Helper()
	for k, v := range fields {
		require.NoError(t, w.UpdateField(k, v))
	}
}

func toFinalStep(t *testing.T, w *Wizard) {
	t.Helper()
	fill(t, w, map[string]string{FieldFirstName: "Ada", FieldLastName: "Lovelace"})
	require.NoError(t, w.Next())
	fill(t, w, map[string]string{FieldPhoneNumber: "5551234567", FieldPIN: "12345"})
	require.NoError(t, w.Next())
	fill(t, w, map[string]string{FieldRiskTolerance: "moderate", FieldExchangeAPIKey: "kraken-key"})
}

func await(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("submission never resolved")
		return Outcome{}
	}
}

func TestWizard_InitialView(t *testing.T) {
	h := newHarness(t, "sub-1")
	v := h.w.View()

	assert.Equal(t, 1, v.Step)
	assert.Equal(t, "Personal Information", v.Title)
	assert.Equal(t, 33, v.Progress)
	assert.False(t, v.CanNext)
	assert.False(t, v.CanBack)
	assert.False(t, v.CanSubmit)
	assert.Equal(t, StatusEditing, v.Status)
}

func TestWizard_NextRequiresValidStep(t *testing.T) {
	h := newHarness(t, "sub-1")

	assert.ErrorIs(t, h.w.Next(), ErrStepIncomplete)
	require.NoError(t, h.w.UpdateField(FieldFirstName, "Ada"))
	assert.ErrorIs(t, h.w.Next(), ErrStepIncomplete)
	require.NoError(t, h.w.UpdateField(FieldLastName, "Lovelace"))
	assert.True(t, h.w.View().CanNext)

	require.NoError(t, h.w.Next())
	v := h.w.View()
	assert.Equal(t, 2, v.Step)
	assert.Equal(t, 67, v.Progress)
	assert.True(t, v.CanBack)
}

func TestWizard_InvalidatingFieldDisablesNext(t *testing.T) {
	h := newHarness(t, "sub-1")
	fill(t, h.w, map[string]string{FieldFirstName: "Ada", FieldLastName: "Lovelace"})
	require.True(t, h.w.View().CanNext)

	require.NoError(t, h.w.UpdateField(FieldFirstName, "   "))
	assert.False(t, h.w.View().CanNext)
	assert.ErrorIs(t, h.w.Next(), ErrStepIncomplete)
}

func TestWizard_BackAndBounds(t *testing.T) {
	h := newHarness(t, "sub-1")
	assert.ErrorIs(t, h.w.Back(), ErrTransitionBlocked)

	toFinalStep(t, h.w)
	assert.ErrorIs(t, h.w.Next(), ErrTransitionBlocked)

	require.NoError(t, h.w.Back())
	assert.Equal(t, 2, h.w.View().Step)
	require.NoError(t, h.w.Back())
	assert.Equal(t, 1, h.w.View().Step)
	assert.Equal(t, "Ada", h.w.View().Draft.FirstName, "back keeps the draft")
}

func TestWizard_NormalizesOnEveryUpdate(t *testing.T) {
	h := newHarness(t, "sub-1")

	require.NoError(t, h.w.UpdateField(FieldPhoneNumber, "55512"))
	assert.Equal(t, "55512", h.w.View().Draft.PhoneNumber)
	require.NoError(t, h.w.UpdateField(FieldPhoneNumber, "5551234567"))
	assert.Equal(t, "(555) 123-4567", h.w.View().Draft.PhoneNumber)
	require.NoError(t, h.w.UpdateField(FieldPIN, "12345"))
	assert.Equal(t, "1234", h.w.View().Draft.PIN)
}

func TestWizard_SubmitOnlyFromFinalStep(t *testing.T) {
	h := newHarness(t, "sub-1")
	_, err := h.w.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotFinalStep)
	assert.Zero(t, h.writer.calls())
}

func TestWizard_SubmitRequiresValidFinalStep(t *testing.T) {
	h := newHarness(t, "sub-1")
	toFinalStep(t, h.w)
	require.NoError(t, h.w.UpdateField(FieldExchangeAPIKey, ""))

	_, err := h.w.Submit(context.Background())
	assert.ErrorIs(t, err, ErrStepIncomplete)
	assert.Zero(t, h.writer.calls())
}

func TestWizard_SubmitSuccess(t *testing.T) {
	h := newHarness(t, "sub-1")
	toFinalStep(t, h.w)
	require.True(t, h.w.View().CanSubmit)

	ch, err := h.w.Submit(context.Background())
	require.NoError(t, err)
	o := await(t, ch)
	require.NoError(t, o.Err)
	assert.True(t, o.Profile.OnboardingCompleted)

	require.Equal(t, 1, h.writer.calls())
	assert.Equal(t, "sub-1", h.writer.subjects[0])
	assert.Equal(t, Draft{
		FirstName:      "Ada",
		LastName:       "Lovelace",
		PhoneNumber:    "(555) 123-4567",
		PIN:            "1234",
		RiskTolerance:  "moderate",
		ExchangeAPIKey: "kraken-key",
	}, h.writer.drafts[0])

	v := h.w.View()
	assert.Equal(t, StatusSucceeded, v.Status)
	assert.Equal(t, Draft{}, v.Draft)
	require.NotNil(t, v.Notice)
	assert.Equal(t, "success", v.Notice.Kind)
	assert.Equal(t, "/protected", v.Redirect)
	assert.Equal(t, int64(2000), v.RedirectMS)
	assert.False(t, v.CanSubmit)

	assert.Equal(t, []string{"/protected"}, h.navs)
	assert.Equal(t, []time.Duration{2 * time.Second}, h.delays)
	assert.ErrorIs(t, h.w.UpdateField(FieldFirstName, "x"), ErrCompleted)
	_, err = h.w.Submit(context.Background())
	assert.ErrorIs(t, err, ErrCompleted)
}

func TestWizard_SubmitFailureKeepsDraft(t *testing.T) {
	h := newHarness(t, "sub-1")
	h.writer.err = errors.New("store unavailable")
	toFinalStep(t, h.w)
	before := h.w.View().Draft

	ch, err := h.w.Submit(context.Background())
	require.NoError(t, err)
	o := await(t, ch)
	assert.Error(t, o.Err)

	v := h.w.View()
	assert.Equal(t, 3, v.Step)
	assert.Equal(t, before, v.Draft)
	assert.Equal(t, StatusEditing, v.Status)
	assert.True(t, v.CanSubmit)
	assert.True(t, v.CanBack)
	require.NotNil(t, v.Notice)
	assert.Equal(t, "error", v.Notice.Kind)
	assert.Empty(t, h.navs)

	h.writer.err = nil
	ch, err = h.w.Submit(context.Background())
	require.NoError(t, err)
	assert.NoError(t, await(t, ch).Err)
	assert.Equal(t, 2, h.writer.calls())
}

func TestWizard_SubmitWithoutSessionDoesNotWrite(t *testing.T) {
	h := newHarness(t, "")
	toFinalStep(t, h.w)

	ch, err := h.w.Submit(context.Background())
	require.NoError(t, err)
	o := await(t, ch)
	assert.ErrorIs(t, o.Err, domain.ErrUnauthorized)
	assert.Zero(t, h.writer.calls())
	assert.Equal(t, StatusEditing, h.w.View().Status)
	assert.Equal(t, "error", h.w.View().Notice.Kind)
}

func TestWizard_SubmitAtMostOnceWhileInFlight(t *testing.T) {
	h := newHarness(t, "sub-1")
	h.writer.release = make(chan struct{})
	toFinalStep(t, h.w)

	ch, err := h.w.Submit(context.Background())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := h.w.Submit(context.Background())
		assert.ErrorIs(t, err, ErrSubmitInFlight)
	}
	assert.ErrorIs(t, h.w.UpdateField(FieldFirstName, "Grace"), ErrSubmitInFlight)
	assert.ErrorIs(t, h.w.Back(), ErrSubmitInFlight)
	v := h.w.View()
	assert.Equal(t, StatusSubmitting, v.Status)
	assert.False(t, v.CanSubmit)

	close(h.writer.release)
	require.NoError(t, await(t, ch).Err)
	assert.Equal(t, 1, h.writer.calls())
}

func TestWizard_ConcurrentSubmitsWriteOnce(t *testing.T) {
	h := newHarness(t, "sub-1")
	h.writer.release = make(chan struct{})
	toFinalStep(t, h.w)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started []<-chan Outcome
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ch, err := h.w.Submit(context.Background()); err == nil {
				mu.Lock()
				started = append(started, ch)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(h.writer.release)

	require.Len(t, started, 1)
	require.NoError(t, await(t, started[0]).Err)
	assert.Equal(t, 1, h.writer.calls())
}
