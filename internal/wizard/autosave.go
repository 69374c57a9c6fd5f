package wizard

import (
	"context"
	"sync"
	"time"

	"guard-backend/pkg/logging"
)

// DefaultQuietPeriod is how long edits must pause before an autosave fires.
const DefaultQuietPeriod = 1000 * time.Millisecond

type SaveStatus string

const (
	StatusIdle    SaveStatus = "idle"
	StatusSaving  SaveStatus = "saving"
	StatusSuccess SaveStatus = "success"
	StatusError   SaveStatus = "error"
)

// SaveFunc persists one section's values.
type SaveFunc func(ctx context.Context, values Values) error

// SaveState is a point-in-time view of a pipeline.
type SaveState struct {
	Status      SaveStatus `json:"status"`
	Pending     bool       `json:"pending"`
	LastSavedAt *time.Time `json:"last_saved_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// AutosavePipeline debounces edits of one section and persists them with at most
// one save in flight. A timer that fires during a save is remembered and the
// latest values are saved once the running call returns, unless a newer edit
// restarted the quiet period in the meantime.
type AutosavePipeline struct {
	mu     sync.Mutex
	clock  Clock
	quiet  time.Duration
	save   SaveFunc
	logger logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	timer        Timer
	gen          uint64
	pending      Values
	inflight     bool
	rerun        bool
	baseline     Values
	status       SaveStatus
	lastErr      error
	lastSaved    time.Time
	lastActivity time.Time
	closed       bool
}

type AutosaveOption func(*AutosavePipeline)

func WithQuietPeriod(d time.Duration) AutosaveOption {
	return func(p *AutosavePipeline) {
		if d > 0 {
			p.quiet = d
		}
	}
}

func WithAutosaveClock(c Clock) AutosaveOption {
	return func(p *AutosavePipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

func WithAutosaveLogger(l logging.Logger) AutosaveOption {
	return func(p *AutosavePipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithBaseline seeds the values already persisted, so an unchanged schedule is skipped.
func WithBaseline(v Values) AutosaveOption {
	return func(p *AutosavePipeline) {
		p.baseline = v.Clone()
	}
}

func NewAutosavePipeline(save SaveFunc, opts ...AutosaveOption) *AutosavePipeline {
	p := &AutosavePipeline{
		clock:  SystemClock(),
		quiet:  DefaultQuietPeriod,
		save:   save,
		logger: logging.Default(),
		status: StatusIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.lastActivity = p.clock.Now()
	return p
}

// Schedule records the latest values and restarts the quiet period.
func (p *AutosavePipeline) Schedule(values Values) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.pending = values.Clone()
	p.lastActivity = p.clock.Now()
	// the new timer owns the next save
	p.rerun = false
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
	}
	gen := p.gen
	p.timer = p.clock.AfterFunc(p.quiet, func() { p.fire(gen) })
}

// Cancel drops a scheduled save that has not fired yet. A save already in flight
// is left to finish.
func (p *AutosavePipeline) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	had := p.timer != nil || p.pending != nil
	p.stopLocked()
	p.rerun = false
	return had
}

// Take cancels the scheduled save like Cancel and returns the values it would
// have written, or nil when nothing was queued.
func (p *AutosavePipeline) Take() Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	values := p.pending
	p.stopLocked()
	p.rerun = false
	return values
}

// Rebase replaces the baseline after the section was persisted by other means.
func (p *AutosavePipeline) Rebase(values Values) {
	p.mu.Lock()
	p.baseline = values.Clone()
	p.mu.Unlock()
}

// State returns the current save status.
func (p *AutosavePipeline) State() SaveState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := SaveState{
		Status:  p.status,
		Pending: p.timer != nil || p.rerun,
	}
	if !p.lastSaved.IsZero() {
		t := p.lastSaved
		st.LastSavedAt = &t
	}
	if p.lastErr != nil {
		st.Error = "Your changes could not be saved automatically"
	}
	return st
}

// IdleFor reports how long the pipeline has been quiet, or false while work is queued.
func (p *AutosavePipeline) IdleFor() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight || p.timer != nil || p.pending != nil {
		return 0, false
	}
	return p.clock.Now().Sub(p.lastActivity), true
}

// Close stops the timer and cancels a running save's context.
func (p *AutosavePipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.stopLocked()
	p.mu.Unlock()
	p.cancel()
}

func (p *AutosavePipeline) stopLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.pending = nil
}

func (p *AutosavePipeline) fire(gen uint64) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	if p.closed || p.pending == nil {
		p.mu.Unlock()
		return
	}
	if p.inflight {
		p.rerun = true
		p.mu.Unlock()
		return
	}
	p.inflight = true
	p.mu.Unlock()

	p.run()
}

func (p *AutosavePipeline) run() {
	for {
		p.mu.Lock()
		values := p.pending
		p.pending = nil
		p.rerun = false
		if values == nil || (p.baseline != nil && values.Equal(p.baseline)) {
			p.inflight = false
			p.mu.Unlock()
			return
		}
		p.status = StatusSaving
		ctx := p.ctx
		p.mu.Unlock()

		err := p.save(ctx, values)

		p.mu.Lock()
		if err != nil {
			p.status = StatusError
			p.lastErr = err
			p.logger.Warn("autosave failed: %v", err)
		} else {
			p.status = StatusSuccess
			p.lastErr = nil
			p.baseline = values
			p.lastSaved = p.clock.Now()
		}
		if !p.rerun || p.pending == nil || p.closed {
			p.inflight = false
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
}
