package wizard

import (
	"sync"
	"time"

	"guard-backend/pkg/logging"
)

type pipelineKey struct {
	responseID string
	step       Step
}

// Registry keeps one autosave pipeline per (responseId, section).
type Registry struct {
	mu        sync.Mutex
	clock     Clock
	quiet     time.Duration
	logger    logging.Logger
	pipelines map[pipelineKey]*AutosavePipeline
}

func NewRegistry(clock Clock, quiet time.Duration, logger logging.Logger) *Registry {
	if clock == nil {
		clock = SystemClock()
	}
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{
		clock:     clock,
		quiet:     quiet,
		logger:    logger,
		pipelines: map[pipelineKey]*AutosavePipeline{},
	}
}

// Pipeline returns the pipeline for a section, creating it with save and baseline
// on first use.
func (r *Registry) Pipeline(responseID string, step Step, baseline Values, save SaveFunc) *AutosavePipeline {
	key := pipelineKey{responseID: responseID, step: step}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pipelines[key]; ok {
		return p
	}
	p := NewAutosavePipeline(save,
		WithAutosaveClock(r.clock),
		WithQuietPeriod(r.quiet),
		WithAutosaveLogger(r.logger.WithFields(map[string]any{
			"response_id": responseID,
			"section":     string(step),
		})),
		WithBaseline(baseline),
	)
	r.pipelines[key] = p
	return p
}

// Lookup returns an existing pipeline without creating one.
func (r *Registry) Lookup(responseID string, step Step) (*AutosavePipeline, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pipelines[pipelineKey{responseID: responseID, step: step}]
	return p, ok
}

// Take cancels the not-yet-fired save of a section and returns its values.
func (r *Registry) Take(responseID string, step Step) Values {
	if p, ok := r.Lookup(responseID, step); ok {
		return p.Take()
	}
	return nil
}

// Forget closes every pipeline of a report, used once it is submitted.
func (r *Registry) Forget(responseID string) {
	r.mu.Lock()
	var closing []*AutosavePipeline
	for key, p := range r.pipelines {
		if key.responseID == responseID {
			closing = append(closing, p)
			delete(r.pipelines, key)
		}
	}
	r.mu.Unlock()
	for _, p := range closing {
		p.Close()
	}
}

// EvictIdle closes pipelines that have been quiet for at least ttl and returns how
// many were removed.
func (r *Registry) EvictIdle(ttl time.Duration) int {
	r.mu.Lock()
	var closing []*AutosavePipeline
	for key, p := range r.pipelines {
		if idle, ok := p.IdleFor(); ok && idle >= ttl {
			closing = append(closing, p)
			delete(r.pipelines, key)
		}
	}
	r.mu.Unlock()
	for _, p := range closing {
		p.Close()
	}
	if len(closing) > 0 {
		r.logger.Debug("evicted %d idle autosave pipelines", len(closing))
	}
	return len(closing)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pipelines)
}

// Close stops every pipeline.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.pipelines
	r.pipelines = map[pipelineKey]*AutosavePipeline{}
	r.mu.Unlock()
	for _, p := range all {
		p.Close()
	}
}
