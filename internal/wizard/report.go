package wizard

import (
	"time"
)

// Report is one respondent's intake record.
type Report struct {
	ResponseID string            `json:"response_id"`
	Sections   map[string]Values `json:"sections"`
	// CurrentStep is the 1-based hint of the last section reached; 0 when unknown.
	CurrentStep int        `json:"current_step"`
	IsSubmitted bool       `json:"is_submitted"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewReport returns an empty report created at now.
func NewReport(responseID string, now time.Time) *Report {
	return &Report{
		ResponseID: responseID,
		Sections:   map[string]Values{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Section returns the stored answers of a section; never nil.
func (r *Report) Section(step Step) Values {
	if r == nil || r.Sections == nil {
		return Values{}
	}
	if v, ok := r.Sections[string(step)]; ok && v != nil {
		return v
	}
	return Values{}
}

// Value reports a stored answer and whether it was ever answered.
func (r *Report) Value(step Step, field string) (any, bool) {
	if r == nil || r.Sections == nil {
		return nil, false
	}
	v, ok := r.Sections[string(step)][field]
	return v, ok
}

// Merge overlays the present keys of values onto a section.
func (r *Report) Merge(step Step, values Values) {
	if r.Sections == nil {
		r.Sections = map[string]Values{}
	}
	current := r.Sections[string(step)]
	if current == nil {
		current = Values{}
	}
	for k, v := range values {
		current[k] = v
	}
	r.Sections[string(step)] = current
}

// AdvanceHint moves the resume hint past a saved section, never backwards and
// never beyond the last data section.
func (r *Report) AdvanceHint(step Step) {
	i := step.Index()
	if i < 0 {
		return
	}
	next := i + 2
	if next > TotalSteps() {
		next = TotalSteps()
	}
	if next > r.CurrentStep {
		r.CurrentStep = next
	}
}

// ContactPermission reports whether the respondent agreed to follow-up contact.
func (r *Report) ContactPermission() bool {
	v, _ := r.Value(StepPersonalInfo, "contact_permission")
	return AsBool(v)
}

// Clone returns a deep copy so callers can hand reports across goroutines.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Sections = make(map[string]Values, len(r.Sections))
	for name, values := range r.Sections {
		cp.Sections[name] = values.Clone()
	}
	if r.SubmittedAt != nil {
		t := *r.SubmittedAt
		cp.SubmittedAt = &t
	}
	return &cp
}
