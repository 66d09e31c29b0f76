package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/gema-grading-api/internal/grading"
)

// Rubric stores an instructor-authored scoring template.
type Rubric struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	InstructorID uint           `gorm:"not null;index" json:"instructor_id"`
	Title        string         `gorm:"size:255;not null" json:"title"`
	Levels       datatypes.JSON `gorm:"type:json" json:"-"`
	Criteria     datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// SetDefinition validates and stores the levels and criteria.
func (r *Rubric) SetDefinition(def grading.Rubric) error {
	if err := def.Validate(); err != nil {
		return err
	}
	levels, err := json.Marshal(def.Levels)
	if err != nil {
		return err
	}
	criteria, err := json.Marshal(def.Criteria)
	if err != nil {
		return err
	}
	r.Levels = datatypes.JSON(levels)
	r.Criteria = datatypes.JSON(criteria)
	return nil
}

// Definition decodes the stored levels and criteria.
func (r Rubric) Definition() (grading.Rubric, error) {
	var def grading.Rubric
	if len(r.Levels) > 0 {
		if err := json.Unmarshal(r.Levels, &def.Levels); err != nil {
			return grading.Rubric{}, fmt.Errorf("decode rubric %d levels: %w", r.ID, err)
		}
	}
	if len(r.Criteria) > 0 {
		if err := json.Unmarshal(r.Criteria, &def.Criteria); err != nil {
			return grading.Rubric{}, fmt.Errorf("decode rubric %d criteria: %w", r.ID, err)
		}
	}
	return def, nil
}
