package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"guard-backend/internal/wizard"
)

// Report is the stored row of one intake report. Sections holds the answers of
// every section as a JSON object keyed by section name.
type Report struct {
	ResponseID  string         `json:"response_id" gorm:"primaryKey;type:varchar(36)"`
	Sections    datatypes.JSON `json:"sections"`
	CurrentStep int            `json:"current_step" gorm:"not null"`
	IsSubmitted bool           `json:"is_submitted" gorm:"not null;index"`
	SubmittedAt *time.Time     `json:"submitted_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Receipt records a rendered confirmation document for a submitted report.
type Receipt struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ResponseID string    `json:"response_id" gorm:"type:varchar(36);not null;uniqueIndex"`
	Path       string    `json:"path" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// All lists the tables migrated at startup.
func All() []any {
	return []any{&Report{}, &Receipt{}}
}

// ToDomain decodes the row into the wizard's report type.
func (r *Report) ToDomain() (*wizard.Report, error) {
	out := &wizard.Report{
		ResponseID:  r.ResponseID,
		Sections:    map[string]wizard.Values{},
		CurrentStep: r.CurrentStep,
		IsSubmitted: r.IsSubmitted,
		SubmittedAt: r.SubmittedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.Sections) > 0 {
		var raw map[string]map[string]any
		if err := json.Unmarshal(r.Sections, &raw); err != nil {
			return nil, fmt.Errorf("decode sections of %s: %w", r.ResponseID, err)
		}
		schema := wizard.DefaultSchema()
		for name, fields := range raw {
			step := wizard.Step(name)
			values := schema.Normalize(step, fields)
			if len(values) > 0 {
				out.Sections[name] = values
			}
		}
	}
	return out, nil
}

// FromDomain encodes a wizard report into a row.
func FromDomain(r *wizard.Report) (*Report, error) {
	sections := make(map[string]map[string]any, len(r.Sections))
	for name, values := range r.Sections {
		sections[name] = values.ToJSON()
	}
	data, err := json.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("encode sections of %s: %w", r.ResponseID, err)
	}
	return &Report{
		ResponseID:  r.ResponseID,
		Sections:    datatypes.JSON(data),
		CurrentStep: r.CurrentStep,
		IsSubmitted: r.IsSubmitted,
		SubmittedAt: r.SubmittedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}
