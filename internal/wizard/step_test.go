package wizard

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestStepGraph_Order(t *testing.T) {
	assert.Equal(t, 7, TotalSteps())
	assert.Equal(t, []Step{
		StepBeforeYouBegin,
		StepPersonalInfo,
		StepIncidentDetails,
		StepReportingResponse,
		StepSchoolResponse,
		StepImpactSupport,
		StepAdditionalInfo,
	}, DataSteps())
	assert.Equal(t, -1, StepConfirmation.Index())
}

func TestStepGraph_NextAndPrev(t *testing.T) {
	id := "abc"
	assert.Equal(t, "/report/abc/personal-info", NextURL(StepBeforeYouBegin, id))
	assert.Equal(t, "/report/abc/confirmation", NextURL(StepAdditionalInfo, id))
	assert.Equal(t, "/report/abc/confirmation", NextURL(Step("bogus"), id))

	assert.Equal(t, EntryURL, PrevURL(StepBeforeYouBegin, id))
	assert.Equal(t, EntryURL, PrevURL(Step("bogus"), id))
	assert.Equal(t, "/report/abc/school-response", PrevURL(StepImpactSupport, id))
}

func TestStepGraph_ProgressAndNumbers(t *testing.T) {
	assert.Equal(t, 0, Progress(StepBeforeYouBegin))
	assert.Equal(t, 17, Progress(StepPersonalInfo))
	assert.Equal(t, 50, Progress(StepReportingResponse))
	assert.Equal(t, 100, Progress(StepAdditionalInfo))
	assert.Equal(t, 0, Progress(Step("nope")))

	assert.Equal(t, 1, StepNumber(StepBeforeYouBegin))
	assert.Equal(t, 7, StepNumber(StepAdditionalInfo))
	assert.Equal(t, 1, StepNumber(Step("nope")))
}

func TestParseStep(t *testing.T) {
	s, ok := ParseStep("incident-details")
	assert.True(t, ok)
	assert.Equal(t, StepIncidentDetails, s)

	s, ok = ParseStep("confirmation")
	assert.True(t, ok)
	assert.True(t, s.IsTerminal())

	_, ok = ParseStep("admin")
	assert.False(t, ok)
}

func TestStepGraph_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("prev of next is the step itself", prop.ForAll(
		func(i int, id string) bool {
			step, _ := StepAt(i)
			next, ok := StepAt(i + 1)
			if !ok {
				return NextURL(step, id) == StepConfirmation.URL(id)
			}
			return NextURL(step, id) == next.URL(id) && PrevURL(next, id) == step.URL(id)
		},
		gen.IntRange(0, TotalSteps()-1),
		gen.Identifier(),
	))

	properties.Property("progress is monotonic and bounded", prop.ForAll(
		func(i int) bool {
			step, _ := StepAt(i)
			p := Progress(step)
			if p < 0 || p > 100 {
				return false
			}
			if next, ok := StepAt(i + 1); ok {
				return Progress(next) > p
			}
			return p == 100
		},
		gen.IntRange(0, TotalSteps()-1),
	))

	properties.Property("unknown steps never panic and fall back", prop.ForAll(
		func(name string) bool {
			step := Step("x-" + name)
			return NextURL(step, "id") == StepConfirmation.URL("id") &&
				PrevURL(step, "id") == EntryURL &&
				Progress(step) == 0 &&
				StepNumber(step) == 1
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
