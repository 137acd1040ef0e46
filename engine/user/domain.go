package user

import (
	"errors"
	"fmt"
	"time"

	"github.com/lifeline-hq/lifeline/engine/core"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrRoleNotFound     = errors.New("role not found")
	ErrOrgNotFound      = errors.New("organization not found")
	ErrDeptNotFound     = errors.New("department not found")
	ErrUsernameExists   = errors.New("username already exists")
	ErrEmailExists      = errors.New("email already exists")
	ErrRoleNameExists   = errors.New("role name already exists")
	ErrInvalidPassword  = errors.New("invalid credentials")
	ErrUserBlocked      = errors.New("user is blocked")
	ErrUserInactive     = errors.New("user is inactive")
	ErrAlreadyAssigned  = errors.New("role already assigned")
	ErrRoleNotAssigned  = errors.New("role not assigned")
	ErrOrgNameExists    = errors.New("organization name already exists")
	ErrAlreadyBootstrap = errors.New("system already bootstrapped")
)

// Type is the legacy coarse classification kept alongside role membership.
// It only matters as a fallback for field-rule role inference.
type Type string

const (
	TypeAdmin     Type = "admin"
	TypeDeveloper Type = "developer"
	TypeUser      Type = "user"
)

func (t Type) Valid() bool {
	switch t {
	case TypeAdmin, TypeDeveloper, TypeUser:
		return true
	default:
		return false
	}
}

// DefaultNotifyTypes are the Telegram notification kinds enabled for new users.
var DefaultNotifyTypes = []string{
	"task_assigned",
	"task_updated",
	"stage_changed",
	"comment_added",
	"attachment_added",
}

// User is the authenticated principal of every request.
type User struct {
	ID             core.ID   `json:"id"                        db:"id"`
	Username       string    `json:"username"                  db:"username"`
	Email          string    `json:"email"                     db:"email"`
	PasswordHash   string    `json:"-"                         db:"password_hash"`
	FullName       string    `json:"full_name"                 db:"full_name"`
	Telegram       string    `json:"telegram,omitempty"        db:"telegram"`
	NotifyTypes    []string  `json:"telegram_notify_types"     db:"telegram_notify_types"`
	Phone          string    `json:"phone,omitempty"           db:"phone"`
	UserType       Type      `json:"user_type"                 db:"user_type"`
	IsActive       bool      `json:"is_active"                 db:"is_active"`
	IsAdmin        bool      `json:"is_admin"                  db:"is_admin"`
	IsBlocked      bool      `json:"is_blocked"                db:"is_blocked"`
	OrganizationID *core.ID  `json:"organization_id,omitempty" db:"organization_id"`
	DepartmentID   *core.ID  `json:"department_id,omitempty"   db:"department_id"`
	Theme          string    `json:"theme"                     db:"theme"`
	CreatedAt      time.Time `json:"created_at"                db:"created_at"`
}

// NewUser creates a principal with a freshly hashed password.
func NewUser(username, email, fullName, password string, userType Type) (*User, error) {
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}
	if !userType.Valid() {
		return nil, fmt.Errorf("invalid user type: %s", userType)
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user ID: %w", err)
	}
	u := &User{
		ID:          id,
		Username:    username,
		Email:       email,
		FullName:    fullName,
		NotifyTypes: append([]string(nil), DefaultNotifyTypes...),
		UserType:    userType,
		IsActive:    true,
		IsAdmin:     userType == TypeAdmin,
		Theme:       "dark",
		CreatedAt:   time.Now().UTC(),
	}
	if err := u.SetPassword(password); err != nil {
		return nil, err
	}
	return u, nil
}

// SetPassword replaces the stored bcrypt hash.
func (u *User) SetPassword(password string) error {
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters long")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// CanAuthenticate reports whether the principal may hold a session at all.
func (u *User) CanAuthenticate() error {
	if u.IsBlocked {
		return ErrUserBlocked
	}
	if !u.IsActive {
		return ErrUserInactive
	}
	return nil
}

// WantsNotification reports whether the user opted into the given Telegram
// notification kind.
func (u *User) WantsNotification(kind string) bool {
	if u.Telegram == "" {
		return false
	}
	for _, t := range u.NotifyTypes {
		if t == kind {
			return true
		}
	}
	return false
}

// Role is a named tag used solely to scope field-edit rules.
type Role struct {
	ID          core.ID   `json:"id"          db:"id"`
	Name        string    `json:"name"        db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
}

// NewRole creates a role tag.
func NewRole(name, description string) (*Role, error) {
	if name == "" {
		return nil, fmt.Errorf("role name cannot be empty")
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate role ID: %w", err)
	}
	return &Role{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Organization groups departments and users for tenant separation.
type Organization struct {
	ID          core.ID   `json:"id"          db:"id"`
	Name        string    `json:"name"        db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
}

// Department belongs to exactly one organization.
type Department struct {
	ID             core.ID   `json:"id"              db:"id"`
	OrganizationID core.ID   `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name"            db:"name"`
	Description    string    `json:"description"     db:"description"`
	CreatedAt      time.Time `json:"created_at"      db:"created_at"`
}
