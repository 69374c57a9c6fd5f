package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"guard-backend/internal/wizard"
)

// PayloadValidator checks the shape of a section patch before it reaches storage:
// declared keys only, each with its answer type.
type PayloadValidator struct {
	schemas map[wizard.Step]*jsonschema.Schema
}

func schemaURL(step wizard.Step) string {
	return "mem://sections/" + string(step) + ".json"
}

// NewPayloadValidator compiles one JSON Schema per data section of s.
func NewPayloadValidator(s *wizard.Schema) (*PayloadValidator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	for _, step := range wizard.DataSteps() {
		doc, err := json.Marshal(s.JSONSchema(step))
		if err != nil {
			return nil, fmt.Errorf("encode schema of %s: %w", step, err)
		}
		if err := c.AddResource(schemaURL(step), bytes.NewReader(doc)); err != nil {
			return nil, fmt.Errorf("add schema of %s: %w", step, err)
		}
	}

	pv := &PayloadValidator{schemas: make(map[wizard.Step]*jsonschema.Schema)}
	for _, step := range wizard.DataSteps() {
		compiled, err := c.Compile(schemaURL(step))
		if err != nil {
			return nil, fmt.Errorf("compile schema of %s: %w", step, err)
		}
		pv.schemas[step] = compiled
	}
	return pv, nil
}

// Validate returns a PayloadInvalid error when values do not fit the section.
func (pv *PayloadValidator) Validate(step wizard.Step, values map[string]any) error {
	compiled, ok := pv.schemas[step]
	if !ok {
		return wizard.PayloadInvalid(step, fmt.Errorf("unknown section %q", step))
	}

	// the validator only understands the shapes encoding/json produces
	raw, err := json.Marshal(values)
	if err != nil {
		return wizard.PayloadInvalid(step, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return wizard.PayloadInvalid(step, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	if err := compiled.Validate(doc); err != nil {
		return wizard.PayloadInvalid(step, err)
	}
	return nil
}
