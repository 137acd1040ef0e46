package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lifeline-hq/lifeline/engine/core"
)

// DBInterface is the minimal pgx surface the repository needs. Satisfied by
// *pgxpool.Pool and by pgxmock pools in tests.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepo struct {
	db DBInterface
}

// NewPostgresRepository creates a user repository backed by PostgreSQL.
func NewPostgresRepository(db DBInterface) Repository {
	return &postgresRepo{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var userColumns = []string{
	"id", "username", "email", "password_hash", "full_name", "telegram",
	"telegram_notify_types", "phone", "user_type", "is_active", "is_admin",
	"is_blocked", "organization_id", "department_id", "theme", "created_at",
}

func (r *postgresRepo) CreateUser(ctx context.Context, u *User) error {
	query, args, err := squirrel.Insert("users").
		Columns(userColumns...).
		Values(
			u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.Telegram,
			u.NotifyTypes, u.Phone, u.UserType, u.IsActive, u.IsAdmin,
			u.IsBlocked, u.OrganizationID, u.DepartmentID, u.Theme, u.CreatedAt,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *postgresRepo) getUserWhere(ctx context.Context, pred any, args ...any) (*User, error) {
	query, qargs, err := squirrel.Select(userColumns...).
		From("users").
		Where(pred, args...).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var u User
	if err := pgxscan.Get(ctx, r.db, &u, query, qargs...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

func (r *postgresRepo) GetUserByID(ctx context.Context, id core.ID) (*User, error) {
	return r.getUserWhere(ctx, squirrel.Eq{"id": id})
}

func (r *postgresRepo) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return r.getUserWhere(ctx, "lower(username) = lower(?)", username)
}

func (r *postgresRepo) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.getUserWhere(ctx, "lower(email) = lower(?)", email)
}

func (r *postgresRepo) ListUsers(ctx context.Context) ([]*User, error) {
	query, args, err := squirrel.Select(userColumns...).
		From("users").
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var users []*User
	if err := pgxscan.Select(ctx, r.db, &users, query, args...); err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}
	return users, nil
}

func (r *postgresRepo) UpdateUser(ctx context.Context, u *User) error {
	query, args, err := squirrel.Update("users").
		Set("username", u.Username).
		Set("email", u.Email).
		Set("password_hash", u.PasswordHash).
		Set("full_name", u.FullName).
		Set("telegram", u.Telegram).
		Set("telegram_notify_types", u.NotifyTypes).
		Set("phone", u.Phone).
		Set("user_type", u.UserType).
		Set("is_active", u.IsActive).
		Set("is_admin", u.IsAdmin).
		Set("is_blocked", u.IsBlocked).
		Set("organization_id", u.OrganizationID).
		Set("department_id", u.DepartmentID).
		Set("theme", u.Theme).
		Where(squirrel.Eq{"id": u.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteUser(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("users").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateInitialAdminIfNone uses INSERT ... WHERE NOT EXISTS so concurrent
// bootstrap attempts cannot race into duplicate admins.
func (r *postgresRepo) CreateInitialAdminIfNone(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (
			id, username, email, password_hash, full_name, telegram,
			telegram_notify_types, phone, user_type, is_active, is_admin,
			is_blocked, organization_id, department_id, theme, created_at
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		WHERE NOT EXISTS (SELECT 1 FROM users WHERE is_admin = TRUE)
	`
	tag, err := r.db.Exec(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.Telegram,
		u.NotifyTypes, u.Phone, u.UserType, u.IsActive, u.IsAdmin,
		u.IsBlocked, u.OrganizationID, u.DepartmentID, u.Theme, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating initial admin user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewError(ErrAlreadyBootstrap, core.ErrCodeAlreadyBootstrapped, nil)
	}
	return nil
}

var roleColumns = []string{"id", "name", "description", "created_at"}

func (r *postgresRepo) CreateRole(ctx context.Context, role *Role) error {
	query, args, err := squirrel.Insert("roles").
		Columns(roleColumns...).
		Values(role.ID, role.Name, role.Description, role.CreatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrRoleNameExists
		}
		return fmt.Errorf("inserting role: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetRoleByID(ctx context.Context, id core.ID) (*Role, error) {
	query, args, err := squirrel.Select(roleColumns...).
		From("roles").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var role Role
	if err := pgxscan.Get(ctx, r.db, &role, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("scanning role: %w", err)
	}
	return &role, nil
}

func (r *postgresRepo) ListRoles(ctx context.Context) ([]*Role, error) {
	query, args, err := squirrel.Select(roleColumns...).
		From("roles").
		OrderBy("name ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var roles []*Role
	if err := pgxscan.Select(ctx, r.db, &roles, query, args...); err != nil {
		return nil, fmt.Errorf("scanning roles: %w", err)
	}
	return roles, nil
}

func (r *postgresRepo) DeleteRole(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("roles").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (r *postgresRepo) FindRoleByAnyName(ctx context.Context, names []string) (*Role, error) {
	if len(names) == 0 {
		return nil, ErrRoleNotFound
	}
	lowered := make([]string, len(names))
	for i, n := range names {
		lowered[i] = strings.ToLower(n)
	}
	query, args, err := squirrel.Select(roleColumns...).
		From("roles").
		Where(squirrel.Eq{"lower(name)": lowered}).
		OrderBy("name ASC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var role Role
	if err := pgxscan.Get(ctx, r.db, &role, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("scanning role: %w", err)
	}
	return &role, nil
}

func (r *postgresRepo) ListRolesForUser(ctx context.Context, userID core.ID) ([]*Role, error) {
	query, args, err := squirrel.Select("r.id", "r.name", "r.description", "r.created_at").
		From("roles r").
		Join("user_roles ur ON ur.role_id = r.id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("r.name ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var roles []*Role
	if err := pgxscan.Select(ctx, r.db, &roles, query, args...); err != nil {
		return nil, fmt.Errorf("scanning user roles: %w", err)
	}
	return roles, nil
}

func (r *postgresRepo) AssignRole(ctx context.Context, userID, roleID core.ID) error {
	query, args, err := squirrel.Insert("user_roles").
		Columns("user_id", "role_id").
		Values(userID, roleID).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyAssigned
		}
		return fmt.Errorf("assigning role: %w", err)
	}
	return nil
}

func (r *postgresRepo) RemoveRole(ctx context.Context, userID, roleID core.ID) error {
	query, args, err := squirrel.Delete("user_roles").
		Where(squirrel.Eq{"user_id": userID, "role_id": roleID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("removing role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotAssigned
	}
	return nil
}

var orgColumns = []string{"id", "name", "description", "created_at"}

func (r *postgresRepo) CreateOrganization(ctx context.Context, o *Organization) error {
	query, args, err := squirrel.Insert("organizations").
		Columns(orgColumns...).
		Values(o.ID, o.Name, o.Description, o.CreatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrOrgNameExists
		}
		return fmt.Errorf("inserting organization: %w", err)
	}
	return nil
}

func (r *postgresRepo) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	query, args, err := squirrel.Select(orgColumns...).
		From("organizations").
		OrderBy("name ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var orgs []*Organization
	if err := pgxscan.Select(ctx, r.db, &orgs, query, args...); err != nil {
		return nil, fmt.Errorf("scanning organizations: %w", err)
	}
	return orgs, nil
}

func (r *postgresRepo) DeleteOrganization(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("organizations").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrgNotFound
	}
	return nil
}

var deptColumns = []string{"id", "organization_id", "name", "description", "created_at"}

func (r *postgresRepo) CreateDepartment(ctx context.Context, d *Department) error {
	query, args, err := squirrel.Insert("departments").
		Columns(deptColumns...).
		Values(d.ID, d.OrganizationID, d.Name, d.Description, d.CreatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting department: %w", err)
	}
	return nil
}

func (r *postgresRepo) ListDepartments(ctx context.Context, orgID core.ID) ([]*Department, error) {
	query, args, err := squirrel.Select(deptColumns...).
		From("departments").
		Where(squirrel.Eq{"organization_id": orgID}).
		OrderBy("name ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var depts []*Department
	if err := pgxscan.Select(ctx, r.db, &depts, query, args...); err != nil {
		return nil, fmt.Errorf("scanning departments: %w", err)
	}
	return depts, nil
}

func (r *postgresRepo) DeleteDepartment(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("departments").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting department: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeptNotFound
	}
	return nil
}
