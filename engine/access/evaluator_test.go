package access_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lifeline-hq/lifeline/engine/access"
	"github.com/lifeline-hq/lifeline/engine/core"
	"github.com/lifeline-hq/lifeline/engine/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGrants struct {
	access.Repository
	projectGrants map[string]*access.ProjectGrant
	taskGrants    map[string]*access.TaskGrant
	fieldGrants   map[string]*access.FieldGrant
}

func newFakeGrants() *fakeGrants {
	return &fakeGrants{
		projectGrants: make(map[string]*access.ProjectGrant),
		taskGrants:    make(map[string]*access.TaskGrant),
		fieldGrants:   make(map[string]*access.FieldGrant),
	}
}

func grantKey(userID, resourceID core.ID) string {
	return string(userID) + "/" + string(resourceID)
}

func (f *fakeGrants) GetProjectGrant(_ context.Context, userID, projectID core.ID) (*access.ProjectGrant, error) {
	if g, ok := f.projectGrants[grantKey(userID, projectID)]; ok {
		return g, nil
	}
	return nil, access.ErrGrantNotFound
}

func (f *fakeGrants) GetTaskGrant(_ context.Context, userID, taskID core.ID) (*access.TaskGrant, error) {
	if g, ok := f.taskGrants[grantKey(userID, taskID)]; ok {
		return g, nil
	}
	return nil, access.ErrGrantNotFound
}

func (f *fakeGrants) GetFieldGrant(_ context.Context, userID, fieldID core.ID) (*access.FieldGrant, error) {
	if g, ok := f.fieldGrants[grantKey(userID, fieldID)]; ok {
		return g, nil
	}
	return nil, access.ErrGrantNotFound
}

func (f *fakeGrants) grantProject(userID, projectID core.ID, level access.Level) {
	f.projectGrants[grantKey(userID, projectID)] = &access.ProjectGrant{
		ID: core.MustNewID(), UserID: userID, ProjectID: projectID, Level: level,
	}
}

func (f *fakeGrants) grantTask(userID, taskID core.ID, level access.Level) {
	f.taskGrants[grantKey(userID, taskID)] = &access.TaskGrant{
		ID: core.MustNewID(), UserID: userID, TaskID: taskID, Level: level,
	}
}

func (f *fakeGrants) grantField(userID, fieldID core.ID, level access.Level) {
	f.fieldGrants[grantKey(userID, fieldID)] = &access.FieldGrant{
		ID: core.MustNewID(), UserID: userID, FieldDefinitionID: fieldID, Level: level,
	}
}

type fakeDirectory struct {
	tasks  map[core.ID]*access.TaskRef
	fields map[core.ID]*access.FieldRef
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		tasks:  make(map[core.ID]*access.TaskRef),
		fields: make(map[core.ID]*access.FieldRef),
	}
}

func (f *fakeDirectory) GetTaskRef(_ context.Context, id core.ID) (*access.TaskRef, error) {
	if ref, ok := f.tasks[id]; ok {
		return ref, nil
	}
	return nil, access.ErrTaskNotFound
}

func (f *fakeDirectory) GetFieldRef(_ context.Context, id core.ID) (*access.FieldRef, error) {
	if ref, ok := f.fields[id]; ok {
		return ref, nil
	}
	return nil, access.ErrFieldNotFound
}

// failingDirectory simulates a store outage underneath the ref lookups.
type failingDirectory struct {
	err error
}

func (f *failingDirectory) GetTaskRef(_ context.Context, _ core.ID) (*access.TaskRef, error) {
	return nil, f.err
}

func (f *failingDirectory) GetFieldRef(_ context.Context, _ core.ID) (*access.FieldRef, error) {
	return nil, f.err
}

func testPrincipal(admin bool) *user.User {
	return &user.User{ID: core.MustNewID(), Username: "alice", UserType: user.TypeUser, IsAdmin: admin, IsActive: true}
}

func TestEvaluator_CanAccess_Project(t *testing.T) {
	ctx := context.Background()
	t.Run("Should allow admin without any grant", func(t *testing.T) {
		grants := newFakeGrants()
		eval := access.NewEvaluator(grants, newFakeDirectory(), newFakeDirectory())
		allowed, err := eval.CanAccess(ctx, testPrincipal(true), access.KindProject, core.MustNewID(), access.LevelWrite)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
	t.Run("Should deny when no grant exists", func(t *testing.T) {
		grants := newFakeGrants()
		eval := access.NewEvaluator(grants, newFakeDirectory(), newFakeDirectory())
		allowed, err := eval.CanAccess(ctx, testPrincipal(false), access.KindProject, core.MustNewID(), access.LevelRead)
		require.NoError(t, err)
		assert.False(t, allowed)
	})
	t.Run("Should satisfy read requirement with a write grant", func(t *testing.T) {
		principal := testPrincipal(false)
		projectID := core.MustNewID()
		grants := newFakeGrants()
		grants.grantProject(principal.ID, projectID, access.LevelWrite)
		eval := access.NewEvaluator(grants, newFakeDirectory(), newFakeDirectory())
		allowed, err := eval.CanAccess(ctx, principal, access.KindProject, projectID, access.LevelRead)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
	t.Run("Should deny write requirement with only a read grant", func(t *testing.T) {
		principal := testPrincipal(false)
		projectID := core.MustNewID()
		grants := newFakeGrants()
		grants.grantProject(principal.ID, projectID, access.LevelRead)
		eval := access.NewEvaluator(grants, newFakeDirectory(), newFakeDirectory())
		allowed, err := eval.CanAccess(ctx, principal, access.KindProject, projectID, access.LevelWrite)
		require.NoError(t, err)
		assert.False(t, allowed)
	})
	t.Run("Should reject an invalid level", func(t *testing.T) {
		eval := access.NewEvaluator(newFakeGrants(), newFakeDirectory(), newFakeDirectory())
		_, err := eval.CanAccess(ctx, testPrincipal(false), access.KindProject, core.MustNewID(), access.Level("owner"))
		assert.Error(t, err)
	})
}

func TestEvaluator_CanAccess_Task(t *testing.T) {
	ctx := context.Background()
	t.Run("Should inherit access from the project grant", func(t *testing.T) {
		principal := testPrincipal(false)
		projectID := core.MustNewID()
		taskID := core.MustNewID()
		dir := newFakeDirectory()
		dir.tasks[taskID] = &access.TaskRef{ID: taskID, ProjectID: projectID, StageID: core.MustNewID()}
		grants := newFakeGrants()
		grants.grantProject(principal.ID, projectID, access.LevelRead)
		eval := access.NewEvaluator(grants, dir, dir)
		allowed, err := eval.CanAccess(ctx, principal, access.KindTask, taskID, access.LevelRead)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
	t.Run("Should fall back to the task grant when the project layer denies", func(t *testing.T) {
		principal := testPrincipal(false)
		projectID := core.MustNewID()
		taskID := core.MustNewID()
		dir := newFakeDirectory()
		dir.tasks[taskID] = &access.TaskRef{ID: taskID, ProjectID: projectID, StageID: core.MustNewID()}
		grants := newFakeGrants()
		grants.grantTask(principal.ID, taskID, access.LevelWrite)
		eval := access.NewEvaluator(grants, dir, dir)
		allowed, err := eval.CanAccess(ctx, principal, access.KindTask, taskID, access.LevelWrite)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
	t.Run("Should not escalate a read project grant past a missing task grant", func(t *testing.T) {
		principal := testPrincipal(false)
		projectID := core.MustNewID()
		taskID := core.MustNewID()
		dir := newFakeDirectory()
		dir.tasks[taskID] = &access.TaskRef{ID: taskID, ProjectID: projectID, StageID: core.MustNewID()}
		grants := newFakeGrants()
		grants.grantProject(principal.ID, projectID, access.LevelRead)
		eval := access.NewEvaluator(grants, dir, dir)
		allowed, err := eval.CanAccess(ctx, principal, access.KindTask, taskID, access.LevelWrite)
		require.NoError(t, err)
		assert.False(t, allowed)
	})
	t.Run("Should surface a not found error for an unknown task", func(t *testing.T) {
		eval := access.NewEvaluator(newFakeGrants(), newFakeDirectory(), newFakeDirectory())
		_, err := eval.CanAccess(ctx, testPrincipal(false), access.KindTask, core.MustNewID(), access.LevelRead)
		require.Error(t, err)
		assert.Equal(t, core.ErrCodeNotFound, core.CodeOf(err))
	})
	t.Run("Should propagate a store failure as internal, not not found", func(t *testing.T) {
		dir := &failingDirectory{err: errors.New("connection refused")}
		eval := access.NewEvaluator(newFakeGrants(), dir, dir)
		_, err := eval.CanAccess(ctx, testPrincipal(false), access.KindTask, core.MustNewID(), access.LevelRead)
		require.Error(t, err)
		assert.Equal(t, core.ErrCodeInternal, core.CodeOf(err))
	})
}

func TestEvaluator_CanAccess_Field(t *testing.T) {
	ctx := context.Background()
	t.Run("Should fall back to the field grant when the project layer denies", func(t *testing.T) {
		principal := testPrincipal(false)
		fieldID := core.MustNewID()
		dir := newFakeDirectory()
		dir.fields[fieldID] = &access.FieldRef{ID: fieldID, ProjectID: core.MustNewID()}
		grants := newFakeGrants()
		grants.grantField(principal.ID, fieldID, access.LevelRead)
		eval := access.NewEvaluator(grants, dir, dir)
		allowed, err := eval.CanAccess(ctx, principal, access.KindField, fieldID, access.LevelRead)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
	t.Run("Should surface a not found error for an unknown field", func(t *testing.T) {
		eval := access.NewEvaluator(newFakeGrants(), newFakeDirectory(), newFakeDirectory())
		_, err := eval.CanAccess(ctx, testPrincipal(false), access.KindField, core.MustNewID(), access.LevelRead)
		require.Error(t, err)
		assert.Equal(t, core.ErrCodeNotFound, core.CodeOf(err))
	})
	t.Run("Should propagate a store failure as internal, not not found", func(t *testing.T) {
		dir := &failingDirectory{err: errors.New("connection refused")}
		eval := access.NewEvaluator(newFakeGrants(), dir, dir)
		_, err := eval.CanAccess(ctx, testPrincipal(false), access.KindField, core.MustNewID(), access.LevelRead)
		require.Error(t, err)
		assert.Equal(t, core.ErrCodeInternal, core.CodeOf(err))
	})
}

func TestEvaluator_RequireAccess(t *testing.T) {
	ctx := context.Background()
	t.Run("Should return a coded denial for a missing grant", func(t *testing.T) {
		eval := access.NewEvaluator(newFakeGrants(), newFakeDirectory(), newFakeDirectory())
		err := eval.RequireAccess(ctx, testPrincipal(false), access.KindProject, core.MustNewID(), access.LevelRead)
		require.Error(t, err)
		assert.Equal(t, core.ErrCodeAccessDenied, core.CodeOf(err))
	})
	t.Run("Should return nil when access is granted", func(t *testing.T) {
		principal := testPrincipal(false)
		projectID := core.MustNewID()
		grants := newFakeGrants()
		grants.grantProject(principal.ID, projectID, access.LevelWrite)
		eval := access.NewEvaluator(grants, newFakeDirectory(), newFakeDirectory())
		assert.NoError(t, eval.RequireAccess(ctx, principal, access.KindProject, projectID, access.LevelWrite))
	})
}

func TestLevel_Implies(t *testing.T) {
	t.Run("Should treat write as implying read", func(t *testing.T) {
		assert.True(t, access.LevelWrite.Implies(access.LevelRead))
		assert.True(t, access.LevelWrite.Implies(access.LevelWrite))
	})
	t.Run("Should let read satisfy only read", func(t *testing.T) {
		assert.True(t, access.LevelRead.Implies(access.LevelRead))
		assert.False(t, access.LevelRead.Implies(access.LevelWrite))
	})
}
