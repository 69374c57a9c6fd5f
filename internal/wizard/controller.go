package wizard

import (
	"context"
	"strings"
	"sync"
	"time"

	"guard-backend/pkg/logging"
)

type ViewState string

const (
	StateReady      ViewState = "ready"
	StateBlocked    ViewState = "blocked"
	StateErrored    ViewState = "errored"
	StateAdvance    ViewState = "advance"
	StateNotFound   ViewState = "not_found"
	StateSuperseded ViewState = "superseded"
)

const (
	msgLoadFailed   = "There was a problem loading your report. Please try again."
	msgSaveFailed   = "There was a problem saving your information. Please try again."
	msgSubmitFailed = "There was a problem submitting your report. Please try again."
	msgStartFailed  = "We couldn't start a new report. Please try again."
	msgInvalidID    = "Please enter a valid Response ID"
	msgUnknownID    = "We couldn't find a report with that Response ID. Please check your ID and try again."
	msgFixFields    = "Please correct the highlighted fields before continuing."
	msgContact      = "You gave permission to be contacted. A member of our team may reach out using the contact details you provided."
)

// Submission is what the terminal step shows after the report is final.
type Submission struct {
	ResponseID    string     `json:"response_id"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ContactNotice string     `json:"contact_notice,omitempty"`
}

// View is the outcome of a controller operation. Redirect is set when the
// respondent should be sent elsewhere.
type View struct {
	State       ViewState         `json:"state"`
	Step        Step              `json:"step,omitempty"`
	Title       string            `json:"title,omitempty"`
	ResponseID  string            `json:"response_id,omitempty"`
	Fields      []Field           `json:"fields,omitempty"`
	Values      Values            `json:"values,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	Redirect    string            `json:"redirect,omitempty"`
	PrevURL     string            `json:"prev_url,omitempty"`
	NextURL     string            `json:"next_url,omitempty"`
	Progress    *int              `json:"progress,omitempty"`
	StepNumber  int               `json:"step_number,omitempty"`
	TotalSteps  int               `json:"total_steps,omitempty"`
	Message     string            `json:"message,omitempty"`
	Retry       bool              `json:"retry,omitempty"`
	Submission  *Submission       `json:"submission,omitempty"`
}

// Controller drives a respondent through the wizard against a DraftStore.
type Controller struct {
	store    DraftStore
	schema   *Schema
	registry *Registry
	logger   logging.Logger

	mu     sync.Mutex
	seq    uint64
	visits map[string]uint64
}

type ControllerOption func(*Controller)

func WithSchema(s *Schema) ControllerOption {
	return func(c *Controller) {
		if s != nil {
			c.schema = s
		}
	}
}

func WithRegistry(r *Registry) ControllerOption {
	return func(c *Controller) {
		if r != nil {
			c.registry = r
		}
	}
}

func WithLogger(l logging.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewController(store DraftStore, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:  store,
		logger: logging.Default(),
		visits: map[string]uint64{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.schema == nil {
		c.schema = DefaultSchema()
	}
	if c.registry == nil {
		c.registry = NewRegistry(SystemClock(), DefaultQuietPeriod, c.logger)
	}
	return c
}

func (c *Controller) Schema() *Schema     { return c.schema }
func (c *Controller) Registry() *Registry { return c.registry }

// Start creates a report and points at the first section.
func (c *Controller) Start(ctx context.Context) *View {
	r, err := c.store.Create(ctx)
	if err != nil {
		c.logger.Error("create report: %v", err)
		return &View{State: StateErrored, Message: msgStartFailed, Retry: true}
	}
	return &View{
		State:      StateAdvance,
		ResponseID: r.ResponseID,
		Redirect:   StepBeforeYouBegin.URL(r.ResponseID),
	}
}

// Enter loads a section for display, redirecting when its gate is unmet.
func (c *Controller) Enter(ctx context.Context, responseID string, step Step) *View {
	if step.IsTerminal() {
		return c.Confirm(ctx, responseID)
	}
	if step.Index() < 0 {
		return notFoundView()
	}

	token := c.beginVisit(responseID)
	r, err := c.store.Get(ctx, responseID)
	if !c.endVisit(responseID, token) || ctx.Err() != nil {
		return &View{State: StateSuperseded, Step: step, ResponseID: responseID}
	}
	if err != nil {
		return c.fetchFailed(responseID, step, err)
	}

	if r.IsSubmitted {
		return &View{
			State:      StateBlocked,
			Step:       step,
			ResponseID: responseID,
			Redirect:   StepConfirmation.URL(responseID),
			Message:    "This report has already been submitted.",
		}
	}
	if !CanEnter(step, r) {
		return &View{
			State:      StateBlocked,
			Step:       step,
			ResponseID: responseID,
			Redirect:   PrevURL(step, responseID),
		}
	}

	values := c.schema.InitialValues(step, r)
	p := c.registry.Pipeline(responseID, step, values, c.saver(responseID, step))
	if _, idle := p.IdleFor(); idle {
		p.Rebase(values)
	}
	return c.readyView(step, responseID, values)
}

// ScheduleDraft queues an autosave of the section's current edits. A section
// without a pipeline gets one only after its report is found and still open;
// otherwise the returned view says where the respondent belongs.
func (c *Controller) ScheduleDraft(ctx context.Context, responseID string, step Step, raw map[string]any) (SaveState, *View) {
	if step.Index() < 0 {
		return SaveState{}, notFoundView()
	}
	values := c.schema.Normalize(step, raw)
	p, ok := c.registry.Lookup(responseID, step)
	if !ok {
		r, err := c.store.Get(ctx, responseID)
		if err != nil {
			return SaveState{}, c.fetchFailed(responseID, step, err)
		}
		if r.IsSubmitted {
			return SaveState{}, &View{State: StateBlocked, Step: step, ResponseID: responseID, Redirect: StepConfirmation.URL(responseID)}
		}
		p = c.registry.Pipeline(responseID, step, c.schema.InitialValues(step, r), c.saver(responseID, step))
	}
	p.Schedule(values)
	return p.State(), nil
}

// DraftStatus reports the autosave status of a section.
func (c *Controller) DraftStatus(responseID string, step Step) SaveState {
	if p, ok := c.registry.Lookup(responseID, step); ok {
		return p.State()
	}
	return SaveState{Status: StatusIdle}
}

// Advance validates the section against the whole report, persists it and moves on.
func (c *Controller) Advance(ctx context.Context, responseID string, step Step, raw map[string]any) *View {
	if step.Index() < 0 {
		return notFoundView()
	}
	edits := c.schema.Normalize(step, raw)
	draft := c.registry.Take(responseID, step)
	// requeue hands the draft, overlaid with edits, back to autosave when nothing was persisted
	requeue := func() {
		if draft == nil {
			return
		}
		p, ok := c.registry.Lookup(responseID, step)
		if !ok {
			return
		}
		merged := draft.Clone()
		for k, v := range edits {
			merged[k] = v
		}
		p.Schedule(merged)
	}

	r, err := c.store.Get(ctx, responseID)
	if err != nil {
		if !IsNotFound(err) {
			requeue()
		}
		return c.fetchFailed(responseID, step, err)
	}
	if r.IsSubmitted {
		return &View{State: StateAdvance, Step: step, ResponseID: responseID, Redirect: StepConfirmation.URL(responseID)}
	}
	if !CanEnter(step, r) {
		requeue()
		return &View{State: StateBlocked, Step: step, ResponseID: responseID, Redirect: PrevURL(step, responseID)}
	}

	full := c.schema.FullValues(r, step, edits)
	section := Values{}
	for _, f := range c.schema.Fields(step) {
		section[f.Name] = full[f.Name]
	}

	if errs := c.schema.Validate(step, full); len(errs) > 0 {
		requeue()
		v := c.readyView(step, responseID, section)
		v.FieldErrors = errs
		v.Message = msgFixFields
		return v
	}

	if _, err := c.store.PatchSection(ctx, responseID, step, section); err != nil {
		if IsFrozen(err) {
			return &View{State: StateAdvance, Step: step, ResponseID: responseID, Redirect: StepConfirmation.URL(responseID)}
		}
		c.logger.Warn("advance %s/%s: %v", responseID, step, err)
		requeue()
		v := c.readyView(step, responseID, section)
		v.State = StateErrored
		v.Message = msgSaveFailed
		v.Retry = true
		return v
	}
	if p, ok := c.registry.Lookup(responseID, step); ok {
		p.Rebase(section)
	}

	return &View{
		State:      StateAdvance,
		Step:       step,
		ResponseID: responseID,
		Redirect:   NextURL(step, responseID),
	}
}

// Confirm is the terminal step: it submits the report once and shows the receipt details.
func (c *Controller) Confirm(ctx context.Context, responseID string) *View {
	token := c.beginVisit(responseID)
	r, err := c.store.Get(ctx, responseID)
	if !c.endVisit(responseID, token) || ctx.Err() != nil {
		return &View{State: StateSuperseded, Step: StepConfirmation, ResponseID: responseID}
	}
	if err != nil {
		return c.fetchFailed(responseID, StepConfirmation, err)
	}

	if !r.IsSubmitted {
		if missing, ok := FirstIncomplete(r, StepConfirmation); ok {
			return c.blockedOn(responseID, missing)
		}
		r, err = c.store.Submit(ctx, responseID)
		if err != nil {
			if IsIncomplete(err) {
				return &View{State: StateBlocked, Step: StepConfirmation, ResponseID: responseID, Redirect: StepBeforeYouBegin.URL(responseID)}
			}
			c.logger.Error("submit %s: %v", responseID, err)
			return &View{
				State:      StateErrored,
				Step:       StepConfirmation,
				ResponseID: responseID,
				Message:    msgSubmitFailed,
				Retry:      true,
			}
		}
		c.logger.Info("report %s submitted", responseID)
	}
	c.registry.Forget(responseID)

	sub := &Submission{
		ResponseID:  r.ResponseID,
		SubmittedAt: r.SubmittedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.ContactPermission() {
		sub.ContactNotice = msgContact
	}
	return &View{
		State:      StateReady,
		Step:       StepConfirmation,
		ResponseID: responseID,
		TotalSteps: TotalSteps(),
		Submission: sub,
	}
}

// Resume routes a returning respondent: submitted reports go to the terminal
// step, others to their last known section or the first one.
func (c *Controller) Resume(ctx context.Context, responseID string) *View {
	responseID = strings.TrimSpace(responseID)
	if responseID == "" {
		return &View{State: StateErrored, Message: msgInvalidID}
	}
	r, err := c.store.Get(ctx, responseID)
	if err != nil {
		if IsNotFound(err) {
			return &View{State: StateErrored, ResponseID: responseID, Message: msgUnknownID}
		}
		c.logger.Warn("resume %s: %v", responseID, err)
		return &View{State: StateErrored, ResponseID: responseID, Message: msgLoadFailed, Retry: true}
	}
	return &View{State: StateAdvance, ResponseID: responseID, Redirect: ResumeURL(r)}
}

// ResumeURL picks the route a stored report resumes at.
func ResumeURL(r *Report) string {
	if r.IsSubmitted {
		return StepConfirmation.URL(r.ResponseID)
	}
	if step, ok := StepAt(r.CurrentStep - 1); ok {
		return step.URL(r.ResponseID)
	}
	return StepBeforeYouBegin.URL(r.ResponseID)
}

func (c *Controller) readyView(step Step, responseID string, values Values) *View {
	progress := Progress(step)
	v := &View{
		State:      StateReady,
		Step:       step,
		ResponseID: responseID,
		Fields:     c.schema.Fields(step),
		Values:     values,
		PrevURL:    PrevURL(step, responseID),
		NextURL:    NextURL(step, responseID),
		Progress:   &progress,
		StepNumber: StepNumber(step),
		TotalSteps: TotalSteps(),
	}
	if sec, ok := c.schema.Section(step); ok {
		v.Title = sec.Title
	}
	return v
}

func (c *Controller) blockedOn(responseID string, missing Step) *View {
	redirect := PrevURL(missing, responseID)
	if g, ok := GateFor(missing); ok {
		redirect = g.Section.URL(responseID)
	}
	return &View{State: StateBlocked, Step: StepConfirmation, ResponseID: responseID, Redirect: redirect}
}

func (c *Controller) fetchFailed(responseID string, step Step, err error) *View {
	if IsNotFound(err) {
		return &View{State: StateErrored, Step: step, ResponseID: responseID, Message: msgUnknownID}
	}
	c.logger.Warn("load %s: %v", responseID, err)
	return &View{State: StateErrored, Step: step, ResponseID: responseID, Message: msgLoadFailed, Retry: true}
}

func (c *Controller) saver(responseID string, step Step) SaveFunc {
	return func(ctx context.Context, values Values) error {
		_, err := c.store.PatchSection(ctx, responseID, step, values)
		return err
	}
}

func (c *Controller) beginVisit(responseID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.visits[responseID] = c.seq
	return c.seq
}

// endVisit reports whether token is still the latest visit of the report.
func (c *Controller) endVisit(responseID string, token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visits[responseID] != token {
		return false
	}
	delete(c.visits, responseID)
	return true
}

func notFoundView() *View {
	return &View{State: StateNotFound, Message: "Page not found"}
}
