package access

import (
	"errors"
	"fmt"

	"github.com/lifeline-hq/lifeline/engine/core"
	"github.com/lifeline-hq/lifeline/engine/user"
)

var (
	ErrGrantNotFound = errors.New("grant not found")
	ErrRuleNotFound  = errors.New("field rule not found")
	ErrRuleExists    = errors.New("field rule already exists")
	ErrAccessDenied  = errors.New("access denied")
	ErrTaskNotFound  = errors.New("task not found")
	ErrFieldNotFound = errors.New("field definition not found")
)

// Level is the closed two-value permission enumeration.
type Level string

const (
	LevelRead  Level = "read"
	LevelWrite Level = "write"
)

func (l Level) Valid() bool {
	return l == LevelRead || l == LevelWrite
}

// Implies reports whether a granted level satisfies the required one.
// Write implies read; read satisfies only read.
func (l Level) Implies(required Level) bool {
	if l == LevelWrite {
		return true
	}
	return l == LevelRead && required == LevelRead
}

// ResourceKind selects which grant layer an access check targets.
type ResourceKind string

const (
	KindProject ResourceKind = "project"
	KindTask    ResourceKind = "task"
	KindField   ResourceKind = "field"
)

// ProjectGrant allows a user to act on a project and, transitively, on every
// task and field it owns.
type ProjectGrant struct {
	ID        core.ID `json:"id"         db:"id"`
	UserID    core.ID `json:"user_id"    db:"user_id"`
	ProjectID core.ID `json:"project_id" db:"project_id"`
	Level     Level   `json:"level"      db:"permission_type"`
}

// TaskGrant allows a user to act on a single task regardless of any project
// grant. Consulted only when the project layer denies.
type TaskGrant struct {
	ID     core.ID `json:"id"      db:"id"`
	UserID core.ID `json:"user_id" db:"user_id"`
	TaskID core.ID `json:"task_id" db:"task_id"`
	Level  Level   `json:"level"   db:"permission_type"`
}

// FieldGrant allows a user to act on a single field definition. Same
// fallback pattern as TaskGrant.
type FieldGrant struct {
	ID                core.ID `json:"id"                  db:"id"`
	UserID            core.ID `json:"user_id"             db:"user_id"`
	FieldDefinitionID core.ID `json:"field_definition_id" db:"field_definition_id"`
	Level             Level   `json:"level"               db:"permission_type"`
}

// FieldRule is a pure allow-list entry: its existence means a principal
// holding RoleID (or any role when RoleID is nil) may edit the field while
// the owning task is in StageID (or any stage when StageID is nil). There
// are no deny rules; a field with no matching rule is read-only for
// non-admins.
type FieldRule struct {
	ID                core.ID  `json:"id"                  db:"id"`
	FieldDefinitionID core.ID  `json:"field_definition_id" db:"field_definition_id"`
	StageID           *core.ID `json:"stage_id,omitempty"  db:"stage_id"`
	RoleID            *core.ID `json:"role_id,omitempty"   db:"role_id"`
}

// NewFieldRule creates an allow-list rule for a field definition.
func NewFieldRule(fieldID core.ID, stageID, roleID *core.ID) (*FieldRule, error) {
	if fieldID.IsZero() {
		return nil, fmt.Errorf("field definition ID cannot be empty")
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate rule ID: %w", err)
	}
	return &FieldRule{
		ID:                id,
		FieldDefinitionID: fieldID,
		StageID:           stageID,
		RoleID:            roleID,
	}, nil
}

// RoleAliasTable maps the legacy userType classification onto candidate role
// names. It exists only as a migration bridge for principals that predate
// role membership; the resolver consults it solely when a principal has zero
// persisted roles.
type RoleAliasTable map[user.Type][]string

// DefaultRoleAliases returns the alias table matching the legacy deployment
// (Russian role names alongside their English equivalents).
func DefaultRoleAliases() RoleAliasTable {
	return RoleAliasTable{
		user.TypeAdmin:     {"admin", "administrator", "админ", "администратор"},
		user.TypeDeveloper: {"developer", "executor", "разработчик", "исполнитель"},
		user.TypeUser:      {"user", "customer", "пользователь", "заказчик"},
	}
}

// TaskRef is the minimal task projection the access layer needs.
type TaskRef struct {
	ID        core.ID `db:"id"`
	ProjectID core.ID `db:"project_id"`
	StageID   core.ID `db:"stage_id"`
}

// FieldRef is the minimal field-definition projection the access layer needs.
type FieldRef struct {
	ID        core.ID `db:"id"`
	ProjectID core.ID `db:"project_id"`
}
