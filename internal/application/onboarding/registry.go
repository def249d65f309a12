package onboarding

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultIdleAfter is how long an untouched draft survives when NewRegistry
// is given no idle timeout.
const DefaultIdleAfter = 30 * time.Minute

type entry struct {
	wizard   *Wizard
	lastSeen time.Time
}

// Registry keeps one wizard per subject in memory. Nothing here is persisted.
// Drafts idle for longer than idleAfter are dropped by Run.
type Registry struct {
	opts      Options
	idleAfter time.Duration
	now       func() time.Time

	mu      sync.Mutex
	wizards map[string]*entry
}

// NewRegistry returns a Registry whose wizards are built from opts. After a
// successful submission the wizard is released before opts.Navigate runs.
func NewRegistry(opts Options, idleAfter time.Duration) *Registry {
	if idleAfter <= 0 {
		idleAfter = DefaultIdleAfter
	}
	return &Registry{
		opts:      opts,
		idleAfter: idleAfter,
		now:       time.Now,
		wizards:   make(map[string]*entry),
	}
}

// Open returns the subject's wizard, creating an empty one if needed.
func (r *Registry) Open(subjectID string) *Wizard {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.wizards[subjectID]; ok {
		e.lastSeen = r.now()
		return e.wizard
	}

	o := r.opts
	next := o.Navigate
	var w *Wizard
	o.Navigate = func(path string) {
		r.release(subjectID, w)
		if next != nil {
			next(path)
		}
	}
	w = NewWizard(o)
	r.wizards[subjectID] = &entry{wizard: w, lastSeen: r.now()}
	return w
}

// Get returns the subject's wizard if one is open.
func (r *Registry) Get(subjectID string) (*Wizard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.wizards[subjectID]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.wizard, true
}

// Discard drops the subject's wizard and its draft.
func (r *Registry) Discard(subjectID string) {
	r.mu.Lock()
	delete(r.wizards, subjectID)
	r.mu.Unlock()
}

func (r *Registry) release(subjectID string, w *Wizard) {
	r.mu.Lock()
	if e, ok := r.wizards[subjectID]; ok && e.wizard == w {
		delete(r.wizards, subjectID)
	}
	r.mu.Unlock()
}

// Run drops idle drafts every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := r.sweep(now); n > 0 {
				slog.Debug("dropped idle onboarding drafts", "count", n)
			}
		}
	}
}

// sweep removes wizards untouched for longer than idleAfter. A wizard with a
// submission in flight is kept.
func (r *Registry) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, e := range r.wizards {
		if now.Sub(e.lastSeen) > r.idleAfter && !e.wizard.submitting() {
			delete(r.wizards, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of open wizards.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wizards)
}
