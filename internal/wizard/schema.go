package wizard

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed sections.yaml
var sectionsYAML []byte

// DateLayout is the wire format of date answers.
const DateLayout = "2006-01-02"

var phonePattern = regexp.MustCompile(`^(\+\d{1,3}[- ]?)?\d{10,14}$`)

type FieldType string

const (
	FieldText   FieldType = "text"
	FieldChoice FieldType = "choice"
	FieldMulti  FieldType = "multi"
	FieldBool   FieldType = "bool"
	FieldDate   FieldType = "date"
	FieldEmail  FieldType = "email"
	FieldPhone  FieldType = "phone"
)

// Field declares one answer of a section.
type Field struct {
	Name         string    `yaml:"name" json:"name"`
	Type         FieldType `yaml:"type" json:"type"`
	Required     bool      `yaml:"required" json:"required,omitempty"`
	RequiredWhen string    `yaml:"required_when" json:"required_when,omitempty"`
	MinLength    int       `yaml:"min_length" json:"min_length,omitempty"`
	Options      []string  `yaml:"options" json:"options,omitempty"`
	Message      string    `yaml:"message" json:"-"`

	predicate *vm.Program
}

// Empty is the representation of an unanswered field.
func (f Field) Empty() any {
	switch f.Type {
	case FieldMulti:
		return []string{}
	case FieldBool:
		return false
	default:
		return ""
	}
}

func (f Field) coerce(v any) any {
	switch f.Type {
	case FieldMulti:
		src := AsStrings(v)
		out := make([]string, len(src))
		copy(out, src)
		return out
	case FieldBool:
		return AsBool(v)
	default:
		return AsString(v)
	}
}

func (f Field) requiredMessage() string {
	if f.Message != "" {
		return f.Message
	}
	if f.Type == FieldMulti {
		return "Please select at least one option"
	}
	return "This field is required"
}

// Section is one page's worth of fields.
type Section struct {
	Name   Step    `yaml:"name" json:"name"`
	Title  string  `yaml:"title" json:"title"`
	Fields []Field `yaml:"fields" json:"fields"`
}

type schemaFile struct {
	Sections []*Section `yaml:"sections"`
}

// Schema holds the section definitions and evaluates their rules.
type Schema struct {
	sections  []*Section
	byStep    map[Step]*Section
	fieldStep map[string]Step
	template  map[string]any
	validate  *validator.Validate
	clock     Clock
}

type SchemaOption func(*Schema)

// WithSchemaClock sets the clock used for "not in the future" checks.
func WithSchemaClock(c Clock) SchemaOption {
	return func(s *Schema) {
		if c != nil {
			s.clock = c
		}
	}
}

var (
	defaultSchema     *Schema
	defaultSchemaOnce sync.Once
)

// DefaultSchema returns the embedded catalogue. It panics if the embedded file is invalid.
func DefaultSchema() *Schema {
	defaultSchemaOnce.Do(func() {
		s, err := ParseSchema(sectionsYAML)
		if err != nil {
			panic(fmt.Sprintf("wizard: embedded sections: %v", err))
		}
		defaultSchema = s
	})
	return defaultSchema
}

// LoadSchema parses the embedded catalogue with options applied.
func LoadSchema(opts ...SchemaOption) (*Schema, error) {
	return ParseSchema(sectionsYAML, opts...)
}

// ParseSchema builds a schema from YAML and compiles every required_when predicate.
func ParseSchema(data []byte, opts ...SchemaOption) (*Schema, error) {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sections: %w", err)
	}

	s := &Schema{
		byStep:    map[Step]*Section{},
		fieldStep: map[string]Step{},
		template:  map[string]any{},
		validate:  validator.New(),
		clock:     SystemClock(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, sec := range file.Sections {
		if sec.Name.Index() < 0 {
			return nil, fmt.Errorf("section %q is not a data step", sec.Name)
		}
		if _, dup := s.byStep[sec.Name]; dup {
			return nil, fmt.Errorf("section %q declared twice", sec.Name)
		}
		for _, f := range sec.Fields {
			if f.Name == "" {
				return nil, fmt.Errorf("section %q has a field without a name", sec.Name)
			}
			if prev, dup := s.fieldStep[f.Name]; dup {
				return nil, fmt.Errorf("field %q declared in %q and %q", f.Name, prev, sec.Name)
			}
			switch f.Type {
			case FieldText, FieldChoice, FieldMulti, FieldBool, FieldDate, FieldEmail, FieldPhone:
			default:
				return nil, fmt.Errorf("field %q has unknown type %q", f.Name, f.Type)
			}
			s.fieldStep[f.Name] = sec.Name
			s.template[f.Name] = f.Empty()
		}
		s.sections = append(s.sections, sec)
		s.byStep[sec.Name] = sec
	}

	for _, sec := range s.sections {
		for i := range sec.Fields {
			f := &sec.Fields[i]
			if strings.TrimSpace(f.RequiredWhen) == "" {
				continue
			}
			program, err := expr.Compile(f.RequiredWhen, expr.Env(s.template), expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("field %q: compile required_when: %w", f.Name, err)
			}
			f.predicate = program
		}
	}
	return s, nil
}

// Sections returns the declared sections in step order.
func (s *Schema) Sections() []*Section {
	return s.sections
}

func (s *Schema) Section(step Step) (*Section, bool) {
	sec, ok := s.byStep[step]
	return sec, ok
}

// Fields returns the fields of a section, or nil for an unknown step.
func (s *Schema) Fields(step Step) []Field {
	if sec, ok := s.byStep[step]; ok {
		return sec.Fields
	}
	return nil
}

// FieldStep reports which section declares a field.
func (s *Schema) FieldStep(name string) (Step, bool) {
	step, ok := s.fieldStep[name]
	return step, ok
}

// Normalize keeps only the section's declared fields, coerced to their answer types.
func (s *Schema) Normalize(step Step, raw map[string]any) Values {
	out := Values{}
	for _, f := range s.Fields(step) {
		if v, ok := raw[f.Name]; ok {
			out[f.Name] = f.coerce(v)
		}
	}
	return out
}

// InitialValues returns every field of a section, defaulting unanswered ones to empty.
func (s *Schema) InitialValues(step Step, r *Report) Values {
	out := Values{}
	for _, f := range s.Fields(step) {
		if v, ok := r.Value(step, f.Name); ok {
			out[f.Name] = f.coerce(v)
			continue
		}
		out[f.Name] = f.Empty()
	}
	return out
}

// FullValues is the whole in-progress value set: every declared field of every section
// from r, overlaid with the current edits of step.
func (s *Schema) FullValues(r *Report, step Step, current Values) Values {
	out := Values{}
	for _, sec := range s.sections {
		for _, f := range sec.Fields {
			if v, ok := r.Value(sec.Name, f.Name); ok {
				out[f.Name] = f.coerce(v)
			} else {
				out[f.Name] = f.Empty()
			}
		}
	}
	for k, v := range s.Normalize(step, current) {
		out[k] = v
	}
	return out
}

// Validate checks the fields of step against the full value set and returns
// field -> reason. The result is empty when the section is valid.
func (s *Schema) Validate(step Step, values Values) map[string]string {
	errs := map[string]string{}
	sec, ok := s.byStep[step]
	if !ok {
		return errs
	}
	env := s.env(values)
	for _, f := range sec.Fields {
		v := env[f.Name]
		if f.Type == FieldBool {
			continue
		}
		if IsEmpty(v) {
			if s.isRequired(f, env) {
				errs[f.Name] = f.requiredMessage()
			}
			continue
		}
		if msg := s.checkFormat(f, v); msg != "" {
			errs[f.Name] = msg
		}
	}
	return errs
}

// IsRequired evaluates whether a field must be answered given the full value set.
func (s *Schema) IsRequired(name string, values Values) bool {
	step, ok := s.fieldStep[name]
	if !ok {
		return false
	}
	for _, f := range s.byStep[step].Fields {
		if f.Name == name {
			return s.isRequired(f, s.env(values))
		}
	}
	return false
}

func (s *Schema) env(values Values) map[string]any {
	env := make(map[string]any, len(s.template))
	for name, empty := range s.template {
		env[name] = empty
	}
	for name, v := range values {
		step, ok := s.fieldStep[name]
		if !ok {
			continue
		}
		for _, f := range s.byStep[step].Fields {
			if f.Name == name {
				env[name] = f.coerce(v)
				break
			}
		}
	}
	return env
}

func (s *Schema) isRequired(f Field, env map[string]any) bool {
	if f.Required {
		return true
	}
	if f.predicate == nil {
		return false
	}
	out, err := expr.Run(f.predicate, env)
	if err != nil {
		return false
	}
	b, _ := out.(bool)
	return b
}

func (s *Schema) checkFormat(f Field, v any) string {
	switch f.Type {
	case FieldEmail:
		if err := s.validate.Var(AsString(v), "email"); err != nil {
			return "Please enter a valid email address"
		}
	case FieldPhone:
		if !phonePattern.MatchString(AsString(v)) {
			return "Phone number is not valid"
		}
	case FieldDate:
		d, ok := parseDate(AsString(v))
		if !ok {
			return "Please enter a valid date"
		}
		now := s.clock.Now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if d.After(today) {
			return "Date cannot be in the future"
		}
	case FieldChoice:
		if len(f.Options) > 0 && !contains(f.Options, AsString(v)) {
			return "Please select a valid option"
		}
	}
	if f.MinLength > 0 && utf8.RuneCountInString(AsString(v)) < f.MinLength {
		return fmt.Sprintf("Please enter at least %d characters", f.MinLength)
	}
	return ""
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// JSONSchema describes the accepted patch payload of a section: declared keys only,
// each with its answer type.
func (s *Schema) JSONSchema(step Step) map[string]any {
	props := map[string]any{}
	for _, f := range s.Fields(step) {
		switch f.Type {
		case FieldMulti:
			props[f.Name] = map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "maxLength": 500},
			}
		case FieldBool:
			props[f.Name] = map[string]any{"type": "boolean"}
		default:
			props[f.Name] = map[string]any{"type": "string", "maxLength": 10000}
		}
	}
	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}
