package wizard

// Gate is the prerequisite for entering a step: at least one of AnyOf must be
// answered (non-empty) in Section.
type Gate struct {
	Section Step
	AnyOf   []string
}

var gates = map[Step]Gate{
	StepPersonalInfo:      {Section: StepBeforeYouBegin, AnyOf: []string{"reported_officially"}},
	StepIncidentDetails:   {Section: StepPersonalInfo, AnyOf: []string{"sexual_orientation"}},
	StepReportingResponse: {Section: StepIncidentDetails, AnyOf: []string{"description"}},
	// the two blocks of reporting-response are mutually exclusive
	StepSchoolResponse: {Section: StepReportingResponse, AnyOf: []string{"barriers_to_reporting", "reporting_experience"}},
	StepImpactSupport:  {Section: StepSchoolResponse, AnyOf: []string{"improvement_suggestions"}},
	StepAdditionalInfo: {Section: StepImpactSupport, AnyOf: []string{"additional_support_needed"}},
	StepConfirmation:   {Section: StepAdditionalInfo, AnyOf: []string{"report_value"}},
}

// GateFor returns the gate of a step. The first section has none.
func GateFor(step Step) (Gate, bool) {
	g, ok := gates[step]
	return g, ok
}

// Satisfied reports whether r holds a non-empty answer for one of the gate fields.
func (g Gate) Satisfied(r *Report) bool {
	for _, field := range g.AnyOf {
		if v, ok := r.Value(g.Section, field); ok && !IsEmpty(v) {
			return true
		}
	}
	return false
}

// CanEnter reports whether step's gate is satisfied by r.
func CanEnter(step Step, r *Report) bool {
	g, ok := GateFor(step)
	if !ok {
		return true
	}
	return g.Satisfied(r)
}

// FirstIncomplete returns the earliest step up to and including upTo whose gate is
// unmet, so callers can send the respondent back to the section that unlocks it.
func FirstIncomplete(r *Report, upTo Step) (Step, bool) {
	order := append(DataSteps(), StepConfirmation)
	for _, step := range order {
		if !CanEnter(step, r) {
			return step, true
		}
		if step == upTo {
			break
		}
	}
	return "", false
}

// Complete reports whether every gate up to the terminal step holds.
func Complete(r *Report) bool {
	_, missing := FirstIncomplete(r, StepConfirmation)
	return !missing
}
