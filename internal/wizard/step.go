package wizard

import (
	"math"
	"net/url"
)

// Step names one page of the intake wizard.
type Step string

const (
	StepBeforeYouBegin    Step = "before-you-begin"
	StepPersonalInfo      Step = "personal-info"
	StepIncidentDetails   Step = "incident-details"
	StepReportingResponse Step = "reporting-response"
	StepSchoolResponse    Step = "school-response"
	StepImpactSupport     Step = "impact-support"
	StepAdditionalInfo    Step = "additional-info"

	// StepConfirmation is terminal and holds no fields.
	StepConfirmation Step = "confirmation"
)

// EntryURL is where the respondent starts or resumes a report.
const EntryURL = "/"

var dataSteps = []Step{
	StepBeforeYouBegin,
	StepPersonalInfo,
	StepIncidentDetails,
	StepReportingResponse,
	StepSchoolResponse,
	StepImpactSupport,
	StepAdditionalInfo,
}

// DataSteps returns the ordered data sections. The slice is a copy.
func DataSteps() []Step {
	out := make([]Step, len(dataSteps))
	copy(out, dataSteps)
	return out
}

// TotalSteps is the number of data sections; the terminal step is not counted.
func TotalSteps() int {
	return len(dataSteps)
}

// ParseStep accepts any data section name or the terminal step.
func ParseStep(s string) (Step, bool) {
	step := Step(s)
	if step == StepConfirmation || step.Index() >= 0 {
		return step, true
	}
	return "", false
}

// StepAt returns the data section at a zero-based index.
func StepAt(index int) (Step, bool) {
	if index < 0 || index >= len(dataSteps) {
		return "", false
	}
	return dataSteps[index], true
}

// Index is the zero-based position among data sections, or -1.
func (s Step) Index() int {
	for i, step := range dataSteps {
		if step == s {
			return i
		}
	}
	return -1
}

func (s Step) IsTerminal() bool {
	return s == StepConfirmation
}

func (s Step) String() string {
	return string(s)
}

// URL is the route for this step of a report.
func (s Step) URL(responseID string) string {
	return "/report/" + url.PathEscape(responseID) + "/" + string(s)
}

// NextURL returns the route after step. The last data section, and any step the
// graph does not know, lead to the terminal route.
func NextURL(step Step, responseID string) string {
	i := step.Index()
	if i < 0 || i == len(dataSteps)-1 {
		return StepConfirmation.URL(responseID)
	}
	return dataSteps[i+1].URL(responseID)
}

// PrevURL returns the route before step, or the entry route for the first or an unknown step.
func PrevURL(step Step, responseID string) string {
	i := step.Index()
	if i <= 0 {
		return EntryURL
	}
	return dataSteps[i-1].URL(responseID)
}

// Progress is the percentage through the data sections, 0 for an unknown step.
func Progress(step Step) int {
	i := step.Index()
	if i < 0 {
		return 0
	}
	if len(dataSteps) < 2 {
		return 100
	}
	return int(math.Round(float64(i) / float64(len(dataSteps)-1) * 100))
}

// StepNumber is the 1-based position of a data section; unknown steps report 1.
func StepNumber(step Step) int {
	i := step.Index()
	if i < 0 {
		return 1
	}
	return i + 1
}
