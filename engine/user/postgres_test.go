package user_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lifeline-hq/lifeline/engine/core"
	"github.com/lifeline-hq/lifeline/engine/user"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userRowColumns() []string {
	return []string{
		"id", "username", "email", "password_hash", "full_name", "telegram",
		"telegram_notify_types", "phone", "user_type", "is_active", "is_admin",
		"is_blocked", "organization_id", "department_id", "theme", "created_at",
	}
}

func TestPostgresRepository_CreateUser(t *testing.T) {
	t.Run("Should insert a user successfully", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := user.NewPostgresRepository(mockPool)
		u, err := user.NewUser("alice", "alice@example.com", "Alice", "s3cret!", user.TypeUser)
		require.NoError(t, err)
		mockPool.ExpectExec("INSERT INTO users").
			WithArgs(
				u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.Telegram,
				u.NotifyTypes, u.Phone, u.UserType, u.IsActive, u.IsAdmin,
				u.IsBlocked, u.OrganizationID, u.DepartmentID, u.Theme, u.CreatedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		assert.NoError(t, repo.CreateUser(context.Background(), u))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should return ErrUsernameExists on unique violation", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := user.NewPostgresRepository(mockPool)
		u, err := user.NewUser("alice", "alice@example.com", "Alice", "s3cret!", user.TypeUser)
		require.NoError(t, err)
		mockPool.ExpectExec("INSERT INTO users").
			WithArgs(
				u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.Telegram,
				u.NotifyTypes, u.Phone, u.UserType, u.IsActive, u.IsAdmin,
				u.IsBlocked, u.OrganizationID, u.DepartmentID, u.Theme, u.CreatedAt,
			).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		err = repo.CreateUser(context.Background(), u)
		assert.True(t, errors.Is(err, user.ErrUsernameExists))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_GetUserByID(t *testing.T) {
	t.Run("Should get user successfully", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := user.NewPostgresRepository(mockPool)
		userID := core.MustNewID()
		rows := mockPool.NewRows(userRowColumns()).AddRow(
			userID, "alice", "alice@example.com", "hash", "Alice", "",
			[]string{"task_assigned"}, "", user.TypeUser, true, false,
			false, (*core.ID)(nil), (*core.ID)(nil), "dark", time.Now().UTC(),
		)
		mockPool.ExpectQuery("SELECT (.+) FROM users").
			WithArgs(userID).
			WillReturnRows(rows)
		got, err := repo.GetUserByID(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.True(t, got.IsActive)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should return ErrUserNotFound when no row exists", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := user.NewPostgresRepository(mockPool)
		userID := core.MustNewID()
		mockPool.ExpectQuery("SELECT (.+) FROM users").
			WithArgs(userID).
			WillReturnError(pgx.ErrNoRows)
		_, err = repo.GetUserByID(context.Background(), userID)
		assert.True(t, errors.Is(err, user.ErrUserNotFound))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_UpdateUser(t *testing.T) {
	t.Run("Should return ErrUserNotFound when nothing was updated", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := user.NewPostgresRepository(mockPool)
		u, err := user.NewUser("alice", "alice@example.com", "Alice", "s3cret!", user.TypeUser)
		require.NoError(t, err)
		mockPool.ExpectExec("UPDATE users").
			WithArgs(
				u.Username, u.Email, u.PasswordHash, u.FullName, u.Telegram,
				u.NotifyTypes, u.Phone, u.UserType, u.IsActive, u.IsAdmin,
				u.IsBlocked, u.OrganizationID, u.DepartmentID, u.Theme, u.ID,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		err = repo.UpdateUser(context.Background(), u)
		assert.True(t, errors.Is(err, user.ErrUserNotFound))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_CreateInitialAdminIfNone(t *testing.T) {
	t.Run("Should insert the bootstrap admin when none exists", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := user.NewPostgresRepository(mockPool)
		u, err := user.NewUser("admin", "admin@example.com", "Administrator", "s3cret!", user.TypeAdmin)
		require.NoError(t, err)
		mockPool.ExpectExec("INSERT INTO users").
			WithArgs(
				u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.Telegram,
				u.NotifyTypes, u.Phone, u.UserType, u.IsActive, u.IsAdmin,
				u.IsBlocked, u.OrganizationID, u.DepartmentID, u.Theme, u.CreatedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		assert.NoError(t, repo.CreateInitialAdminIfNone(context.Background(), u))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should report already bootstrapped when an admin exists", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := user.NewPostgresRepository(mockPool)
		u, err := user.NewUser("admin", "admin@example.com", "Administrator", "s3cret!", user.TypeAdmin)
		require.NoError(t, err)
		mockPool.ExpectExec("INSERT INTO users").
			WithArgs(
				u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.Telegram,
				u.NotifyTypes, u.Phone, u.UserType, u.IsActive, u.IsAdmin,
				u.IsBlocked, u.OrganizationID, u.DepartmentID, u.Theme, u.CreatedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		err = repo.CreateInitialAdminIfNone(context.Background(), u)
		assert.True(t, errors.Is(err, user.ErrAlreadyBootstrap))
		assert.Equal(t, core.ErrCodeAlreadyBootstrapped, core.CodeOf(err))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_FindRoleByAnyName(t *testing.T) {
	t.Run("Should match role names case insensitively", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := user.NewPostgresRepository(mockPool)
		roleID := core.MustNewID()
		rows := mockPool.NewRows([]string{"id", "name", "description", "created_at"}).
			AddRow(roleID, "Developer", "", time.Now().UTC())
		mockPool.ExpectQuery("SELECT (.+) FROM roles").
			WithArgs("developer", "programmer").
			WillReturnRows(rows)
		role, err := repo.FindRoleByAnyName(context.Background(), []string{"Developer", "Programmer"})
		require.NoError(t, err)
		assert.Equal(t, roleID, role.ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should return ErrRoleNotFound without candidates", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := user.NewPostgresRepository(mockPool)
		_, err = repo.FindRoleByAnyName(context.Background(), nil)
		assert.True(t, errors.Is(err, user.ErrRoleNotFound))
	})
}

func TestPostgresRepository_AssignRole(t *testing.T) {
	t.Run("Should return ErrAlreadyAssigned on duplicate membership", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := user.NewPostgresRepository(mockPool)
		userID := core.MustNewID()
		roleID := core.MustNewID()
		mockPool.ExpectExec("INSERT INTO user_roles").
			WithArgs(userID, roleID).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		err = repo.AssignRole(context.Background(), userID, roleID)
		assert.True(t, errors.Is(err, user.ErrAlreadyAssigned))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_RemoveRole(t *testing.T) {
	t.Run("Should return ErrRoleNotAssigned when nothing was deleted", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := user.NewPostgresRepository(mockPool)
		userID := core.MustNewID()
		roleID := core.MustNewID()
		mockPool.ExpectExec("DELETE FROM user_roles").
			WithArgs(roleID, userID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		err = repo.RemoveRole(context.Background(), userID, roleID)
		assert.True(t, errors.Is(err, user.ErrRoleNotAssigned))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_ListRolesForUser(t *testing.T) {
	t.Run("Should list roles joined through memberships", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := user.NewPostgresRepository(mockPool)
		userID := core.MustNewID()
		roleID := core.MustNewID()
		rows := mockPool.NewRows([]string{"id", "name", "description", "created_at"}).
			AddRow(roleID, "developer", "", time.Now().UTC())
		mockPool.ExpectQuery("SELECT (.+) FROM roles r JOIN user_roles ur").
			WithArgs(userID).
			WillReturnRows(rows)
		roles, err := repo.ListRolesForUser(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, roles, 1)
		assert.Equal(t, "developer", roles[0].Name)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
