// Package onboarding implements the three-step onboarding wizard and the
// single write that completes a profile.
package onboarding

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pocketbroker-gate/internal/domain"
)

// Wizard errors. Transition and submit refusals wrap domain.ErrConflict.
var (
	ErrSubmitInFlight    = fmt.Errorf("submission in progress: %w", domain.ErrConflict)
	ErrCompleted         = fmt.Errorf("onboarding already completed: %w", domain.ErrConflict)
	ErrNotFinalStep      = fmt.Errorf("submit is only available on the final step: %w", domain.ErrConflict)
	ErrStepIncomplete    = fmt.Errorf("current step is incomplete: %w", domain.ErrConflict)
	ErrTransitionBlocked = fmt.Errorf("no step in that direction: %w", domain.ErrConflict)
)

// Status is the wizard's submission state.
type Status string

const (
	StatusEditing    Status = "editing"
	StatusSubmitting Status = "submitting"
	StatusSucceeded  Status = "succeeded"
)

const (
	successMessage = "Onboarding completed successfully!"
	failureMessage = "There was an error completing onboarding. Please try again."
)

// Notice is a transient user-visible message.
type Notice struct {
	Kind    string `json:"kind"` // success | error
	Message string `json:"message"`
}

// Outcome is the result of one submission.
type Outcome struct {
	Profile *domain.Profile
	Err     error
}

// ProfileWriter persists a completed draft in one write.
type ProfileWriter interface {
	Complete(ctx context.Context, subjectID string, d Draft) (*domain.Profile, error)
}

// SessionAccessor resolves the subject of the current caller.
type SessionAccessor func(ctx context.Context) (subjectID string, ok bool)

// Options configures a Wizard. Notify and Navigate may be nil.
type Options struct {
	Writer      ProfileWriter
	Session     SessionAccessor
	Destination string        // where to go after success
	Delay       time.Duration // pause before navigating
	Notify      func(Notice)
	Navigate    func(path string)
}

// Wizard is the onboarding state machine. It is safe for concurrent use.
type Wizard struct {
	opts  Options
	after func(time.Duration, func())

	mu     sync.Mutex
	step   int
	status Status
	draft  Draft
	notice *Notice
}

func NewWizard(opts Options) *Wizard {
	return &Wizard{
		opts:   opts,
		after:  func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		step:   1,
		status: StatusEditing,
	}
}

// guard reports why the wizard cannot be edited. Callers hold mu.
func (w *Wizard) guard() error {
	switch w.status {
	case StatusSubmitting:
		return ErrSubmitInFlight
	case StatusSucceeded:
		return ErrCompleted
	}
	return nil
}

func (w *Wizard) submitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status == StatusSubmitting
}

// UpdateField sets one draft field, normalizing phone and PIN input.
func (w *Wizard) UpdateField(field, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guard(); err != nil {
		return err
	}
	return w.draft.set(field, value)
}

// Next advances one step when the current step is valid.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guard(); err != nil {
		return err
	}
	if w.step >= TotalSteps {
		return ErrTransitionBlocked
	}
	if validateStep(w.draft, w.step) != nil {
		return ErrStepIncomplete
	}
	w.step++
	return nil
}

// Back returns one step. It is never available on the first step.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guard(); err != nil {
		return err
	}
	if w.step <= 1 {
		return ErrTransitionBlocked
	}
	w.step--
	return nil
}

// Submit starts the completion write from the final step. The returned
// channel yields exactly one Outcome. While a submission is in flight every
// further Submit returns ErrSubmitInFlight without touching the store.
func (w *Wizard) Submit(ctx context.Context) (<-chan Outcome, error) {
	w.mu.Lock()
	if err := w.guard(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.step != TotalSteps {
		w.mu.Unlock()
		return nil, ErrNotFinalStep
	}
	if validateStep(w.draft, w.step) != nil {
		w.mu.Unlock()
		return nil, ErrStepIncomplete
	}
	w.status = StatusSubmitting
	w.notice = nil
	draft := w.draft
	w.mu.Unlock()

	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		profile, err := w.write(ctx, draft)
		w.finish(err)
		out <- Outcome{Profile: profile, Err: err}
	}()
	return out, nil
}

func (w *Wizard) write(ctx context.Context, draft Draft) (*domain.Profile, error) {
	if w.opts.Session == nil {
		return nil, domain.ErrUnauthorized
	}
	subjectID, ok := w.opts.Session(ctx)
	if !ok || subjectID == "" {
		return nil, domain.ErrUnauthorized
	}
	return w.opts.Writer.Complete(ctx, subjectID, draft)
}

func (w *Wizard) finish(err error) {
	w.mu.Lock()
	var n Notice
	if err != nil {
		n = Notice{Kind: "error", Message: failureMessage}
		w.status = StatusEditing
	} else {
		n = Notice{Kind: "success", Message: successMessage}
		w.status = StatusSucceeded
		w.draft = Draft{}
	}
	w.notice = &n
	w.mu.Unlock()

	if w.opts.Notify != nil {
		w.opts.Notify(n)
	}
	if err == nil && w.opts.Navigate != nil {
		dest := w.opts.Destination
		w.after(w.opts.Delay, func() { w.opts.Navigate(dest) })
	}
}

// View is a snapshot of the wizard for rendering.
type View struct {
	Step        int     `json:"step"`
	TotalSteps  int     `json:"total_steps"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Progress    int     `json:"progress"`
	CanNext     bool    `json:"can_next"`
	CanBack     bool    `json:"can_back"`
	CanSubmit   bool    `json:"can_submit"`
	Status      Status  `json:"status"`
	Draft       Draft   `json:"draft"`
	Notice      *Notice `json:"notice,omitempty"`
	Redirect    string  `json:"redirect,omitempty"`
	RedirectMS  int64   `json:"redirect_after_ms,omitempty"`
}

func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	info := steps[w.step-1]
	editing := w.status == StatusEditing
	valid := validateStep(w.draft, w.step) == nil
	v := View{
		Step:        w.step,
		TotalSteps:  TotalSteps,
		Title:       info.title,
		Description: info.description,
		Progress:    int(math.Round(float64(w.step) / TotalSteps * 100)),
		CanNext:     editing && valid && w.step < TotalSteps,
		CanBack:     editing && w.step > 1,
		CanSubmit:   editing && valid && w.step == TotalSteps,
		Status:      w.status,
		Draft:       w.draft,
	}
	if w.notice != nil {
		n := *w.notice
		v.Notice = &n
	}
	if w.status == StatusSucceeded {
		v.Redirect = w.opts.Destination
		v.RedirectMS = w.opts.Delay.Milliseconds()
	}
	return v
}
