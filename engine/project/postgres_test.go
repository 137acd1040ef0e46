package project_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lifeline-hq/lifeline/engine/core"
	"github.com/lifeline-hq/lifeline/engine/project"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository_CreateProject(t *testing.T) {
	t.Run("Should insert a project successfully", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := project.NewPostgresRepository(mockPool)
		ownerID := core.MustNewID()
		p, err := project.NewProject("Platform", "internal platform work", &ownerID)
		require.NoError(t, err)
		mockPool.ExpectExec("INSERT INTO projects").
			WithArgs(p.ID, p.Name, p.Description, p.OwnerID, p.CreatedAt, p.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		assert.NoError(t, repo.CreateProject(context.Background(), p))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_GetProjectByID(t *testing.T) {
	t.Run("Should get project successfully", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := project.NewPostgresRepository(mockPool)
		projectID := core.MustNewID()
		now := time.Now().UTC()
		rows := mockPool.NewRows([]string{"id", "name", "description", "owner_id", "created_at", "updated_at"}).
			AddRow(projectID, "Platform", "", (*core.ID)(nil), now, now)
		mockPool.ExpectQuery("SELECT (.+) FROM projects").
			WithArgs(projectID).
			WillReturnRows(rows)
		got, err := repo.GetProjectByID(context.Background(), projectID)
		require.NoError(t, err)
		assert.Equal(t, "Platform", got.Name)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should return ErrProjectNotFound when no row exists", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := project.NewPostgresRepository(mockPool)
		projectID := core.MustNewID()
		mockPool.ExpectQuery("SELECT (.+) FROM projects").
			WithArgs(projectID).
			WillReturnError(pgx.ErrNoRows)
		_, err = repo.GetProjectByID(context.Background(), projectID)
		assert.True(t, errors.Is(err, project.ErrProjectNotFound))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_ListProjectsByIDs(t *testing.T) {
	t.Run("Should return nil for an empty ID set without querying", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := project.NewPostgresRepository(mockPool)
		projects, err := repo.ListProjectsByIDs(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, projects)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should list projects matching the ID set", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := project.NewPostgresRepository(mockPool)
		projectID := core.MustNewID()
		now := time.Now().UTC()
		rows := mockPool.NewRows([]string{"id", "name", "description", "owner_id", "created_at", "updated_at"}).
			AddRow(projectID, "Platform", "", (*core.ID)(nil), now, now)
		mockPool.ExpectQuery("SELECT (.+) FROM projects").
			WithArgs(projectID).
			WillReturnRows(rows)
		projects, err := repo.ListProjectsByIDs(context.Background(), []core.ID{projectID})
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, projectID, projects[0].ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_DeleteProject(t *testing.T) {
	t.Run("Should return ErrProjectNotFound when nothing was deleted", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := project.NewPostgresRepository(mockPool)
		projectID := core.MustNewID()
		mockPool.ExpectExec("DELETE FROM projects").
			WithArgs(projectID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		err = repo.DeleteProject(context.Background(), projectID)
		assert.True(t, errors.Is(err, project.ErrProjectNotFound))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_Stages(t *testing.T) {
	t.Run("Should insert a stage successfully", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := project.NewPostgresRepository(mockPool)
		s, err := project.NewStage(core.MustNewID(), "In Review", 2, "")
		require.NoError(t, err)
		mockPool.ExpectExec("INSERT INTO stages").
			WithArgs(s.ID, s.ProjectID, s.Name, s.Order, s.Color, s.IsInitial, s.IsFinal).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		assert.NoError(t, repo.CreateStage(context.Background(), s))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should list stages ordered by sort order", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := project.NewPostgresRepository(mockPool)
		projectID := core.MustNewID()
		rows := mockPool.NewRows([]string{"id", "project_id", "name", "sort_order", "color", "is_initial", "is_final"}).
			AddRow(core.MustNewID(), projectID, "Backlog", 0, "#6366f1", true, false).
			AddRow(core.MustNewID(), projectID, "Done", 1, "#6366f1", false, true)
		mockPool.ExpectQuery("SELECT (.+) FROM stages").
			WithArgs(projectID).
			WillReturnRows(rows)
		stages, err := repo.ListStages(context.Background(), projectID)
		require.NoError(t, err)
		require.Len(t, stages, 2)
		assert.Equal(t, "Backlog", stages[0].Name)
		assert.True(t, stages[1].IsFinal)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should return ErrStageNotFound when update matched no row", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := project.NewPostgresRepository(mockPool)
		s, err := project.NewStage(core.MustNewID(), "In Review", 2, "")
		require.NoError(t, err)
		mockPool.ExpectExec("UPDATE stages").
			WithArgs(s.Name, s.Order, s.Color, s.IsInitial, s.IsFinal, s.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		err = repo.UpdateStage(context.Background(), s)
		assert.True(t, errors.Is(err, project.ErrStageNotFound))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRepository_FieldDefinitions(t *testing.T) {
	t.Run("Should insert a field definition successfully", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := project.NewPostgresRepository(mockPool)
		f, err := project.NewFieldDefinition(core.MustNewID(), "Severity", project.FieldSelect, []byte(`["low","high"]`))
		require.NoError(t, err)
		mockPool.ExpectExec("INSERT INTO field_definitions").
			WithArgs(f.ID, f.ProjectID, f.GroupID, f.Name, f.FieldType, f.Options, f.IsRequired, f.Order).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		assert.NoError(t, repo.CreateFieldDefinition(context.Background(), f))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should return ErrFieldNotFound when no row exists", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := project.NewPostgresRepository(mockPool)
		fieldID := core.MustNewID()
		mockPool.ExpectQuery("SELECT (.+) FROM field_definitions").
			WithArgs(fieldID).
			WillReturnError(pgx.ErrNoRows)
		_, err = repo.GetFieldDefinitionByID(context.Background(), fieldID)
		assert.True(t, errors.Is(err, project.ErrFieldNotFound))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
