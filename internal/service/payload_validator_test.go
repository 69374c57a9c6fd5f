package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guard-backend/internal/wizard"
)

func TestPayloadValidator(t *testing.T) {
	pv, err := NewPayloadValidator(wizard.DefaultSchema())
	require.NoError(t, err)

	assert.NoError(t, pv.Validate(wizard.StepIncidentDetails, map[string]any{
		"incident_type": []string{"Verbal", "Other"},
		"description":   "long enough description of events",
	}))
	assert.NoError(t, pv.Validate(wizard.StepIncidentDetails, map[string]any{
		"incident_type": []any{"Verbal"},
	}))
	assert.NoError(t, pv.Validate(wizard.StepPersonalInfo, nil))
	assert.NoError(t, pv.Validate(wizard.StepPersonalInfo, map[string]any{"contact_permission": true}))

	err = pv.Validate(wizard.StepPersonalInfo, map[string]any{"contact_permission": "true"})
	assert.Equal(t, wizard.ErrCodePayloadInvalid, wizard.Code(err))

	err = pv.Validate(wizard.StepIncidentDetails, map[string]any{"incident_type": []any{1, 2}})
	assert.Equal(t, wizard.ErrCodePayloadInvalid, wizard.Code(err))

	err = pv.Validate(wizard.StepIncidentDetails, map[string]any{"age_group": "14-15"})
	assert.Equal(t, wizard.ErrCodePayloadInvalid, wizard.Code(err), "fields of other sections are rejected")

	err = pv.Validate(wizard.StepConfirmation, map[string]any{})
	assert.Equal(t, wizard.ErrCodePayloadInvalid, wizard.Code(err))
}
