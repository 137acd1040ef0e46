package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lifeline-hq/lifeline/engine/core"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrStageNotFound   = errors.New("stage not found")
	ErrGroupNotFound   = errors.New("field group not found")
	ErrFieldNotFound   = errors.New("field definition not found")
)

// FieldType enumerates the custom field kinds a project may define.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldNumber      FieldType = "number"
	FieldDate        FieldType = "date"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multiselect"
	FieldCheckbox    FieldType = "checkbox"
	FieldUser        FieldType = "user"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldNumber, FieldDate, FieldSelect, FieldMultiSelect, FieldCheckbox, FieldUser:
		return true
	default:
		return false
	}
}

// Project owns stages, field groups, and field definitions.
type Project struct {
	ID          core.ID   `json:"id"                 db:"id"`
	Name        string    `json:"name"               db:"name"`
	Description string    `json:"description"        db:"description"`
	OwnerID     *core.ID  `json:"owner_id,omitempty" db:"owner_id"`
	CreatedAt   time.Time `json:"created_at"         db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"         db:"updated_at"`
}

// NewProject creates a project owned by the given user.
func NewProject(name, description string, ownerID *core.ID) (*Project, error) {
	if name == "" {
		return nil, fmt.Errorf("project name cannot be empty")
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate project ID: %w", err)
	}
	now := time.Now().UTC()
	return &Project{
		ID:          id,
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Stage is a workflow state a task occupies. Order is for display only;
// workflow validity is governed by the transition graph.
type Stage struct {
	ID        core.ID `json:"id"         db:"id"`
	ProjectID core.ID `json:"project_id" db:"project_id"`
	Name      string  `json:"name"       db:"name"`
	Order     int     `json:"order"      db:"sort_order"`
	Color     string  `json:"color"      db:"color"`
	IsInitial bool    `json:"is_initial" db:"is_initial"`
	IsFinal   bool    `json:"is_final"   db:"is_final"`
}

// NewStage creates a stage within a project.
func NewStage(projectID core.ID, name string, order int, color string) (*Stage, error) {
	if name == "" {
		return nil, fmt.Errorf("stage name cannot be empty")
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate stage ID: %w", err)
	}
	if color == "" {
		color = "#6366f1"
	}
	return &Stage{
		ID:        id,
		ProjectID: projectID,
		Name:      name,
		Order:     order,
		Color:     color,
	}, nil
}

// FieldGroup organizes field definitions on the task form.
type FieldGroup struct {
	ID          core.ID `json:"id"           db:"id"`
	ProjectID   core.ID `json:"project_id"   db:"project_id"`
	Name        string  `json:"name"         db:"name"`
	Order       int     `json:"order"        db:"sort_order"`
	IsCollapsed bool    `json:"is_collapsed" db:"is_collapsed"`
}

// FieldDefinition is a project-scoped custom attribute schema for tasks.
type FieldDefinition struct {
	ID         core.ID         `json:"id"                 db:"id"`
	ProjectID  core.ID         `json:"project_id"         db:"project_id"`
	GroupID    *core.ID        `json:"group_id,omitempty" db:"group_id"`
	Name       string          `json:"name"               db:"name"`
	FieldType  FieldType       `json:"field_type"         db:"field_type"`
	Options    json.RawMessage `json:"options,omitempty"  db:"options"`
	IsRequired bool            `json:"is_required"        db:"is_required"`
	Order      int             `json:"order"              db:"sort_order"`
}

// NewFieldDefinition creates a field definition within a project.
func NewFieldDefinition(projectID core.ID, name string, fieldType FieldType, options json.RawMessage) (*FieldDefinition, error) {
	if name == "" {
		return nil, fmt.Errorf("field name cannot be empty")
	}
	if !fieldType.Valid() {
		return nil, fmt.Errorf("invalid field type: %s", fieldType)
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate field ID: %w", err)
	}
	return &FieldDefinition{
		ID:        id,
		ProjectID: projectID,
		Name:      name,
		FieldType: fieldType,
		Options:   options,
	}, nil
}
