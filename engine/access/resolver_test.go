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

type fakeRules struct {
	access.Repository
	editable []core.ID

	gotProjectID core.ID
	gotStageID   core.ID
	gotRoleIDs   []core.ID
}

func (f *fakeRules) ListEditableFieldIDs(_ context.Context, projectID, stageID core.ID, roleIDs []core.ID) ([]core.ID, error) {
	f.gotProjectID = projectID
	f.gotStageID = stageID
	f.gotRoleIDs = roleIDs
	return f.editable, nil
}

type fakeFieldLister struct {
	fields map[core.ID][]core.ID
}

func (f *fakeFieldLister) ListFieldIDs(_ context.Context, projectID core.ID) ([]core.ID, error) {
	return f.fields[projectID], nil
}

type fakeRoles struct {
	memberships map[core.ID][]*user.Role
	byName      map[string]*user.Role

	searchedNames []string
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{
		memberships: make(map[core.ID][]*user.Role),
		byName:      make(map[string]*user.Role),
	}
}

func (f *fakeRoles) ListRolesForUser(_ context.Context, userID core.ID) ([]*user.Role, error) {
	return f.memberships[userID], nil
}

func (f *fakeRoles) FindRoleByAnyName(_ context.Context, names []string) (*user.Role, error) {
	f.searchedNames = names
	for _, name := range names {
		if r, ok := f.byName[name]; ok {
			return r, nil
		}
	}
	return nil, user.ErrRoleNotFound
}

func resolverFixture(editable []core.ID) (*fakeRules, *fakeDirectory, *fakeFieldLister, *fakeRoles) {
	return &fakeRules{editable: editable},
		newFakeDirectory(),
		&fakeFieldLister{fields: make(map[core.ID][]core.ID)},
		newFakeRoles()
}

func TestResolver_EditableFields(t *testing.T) {
	ctx := context.Background()
	t.Run("Should give admins every field of the owning project", func(t *testing.T) {
		rules, dir, lister, roles := resolverFixture(nil)
		projectID := core.MustNewID()
		taskID := core.MustNewID()
		dir.tasks[taskID] = &access.TaskRef{ID: taskID, ProjectID: projectID, StageID: core.MustNewID()}
		fieldA, fieldB := core.MustNewID(), core.MustNewID()
		lister.fields[projectID] = []core.ID{fieldA, fieldB}
		resolver := access.NewResolver(rules, dir, lister, roles, access.DefaultRoleAliases())
		set, err := resolver.EditableFields(ctx, testPrincipal(true), taskID)
		require.NoError(t, err)
		assert.True(t, set.Contains(fieldA))
		assert.True(t, set.Contains(fieldB))
		assert.Len(t, set, 2)
	})
	t.Run("Should match rules against the task's current stage and persisted roles", func(t *testing.T) {
		principal := testPrincipal(false)
		projectID := core.MustNewID()
		stageID := core.MustNewID()
		taskID := core.MustNewID()
		fieldID := core.MustNewID()
		rules, dir, lister, roles := resolverFixture([]core.ID{fieldID})
		dir.tasks[taskID] = &access.TaskRef{ID: taskID, ProjectID: projectID, StageID: stageID}
		role, err := user.NewRole("reviewer", "")
		require.NoError(t, err)
		roles.memberships[principal.ID] = []*user.Role{role}
		resolver := access.NewResolver(rules, dir, lister, roles, access.DefaultRoleAliases())
		set, err := resolver.EditableFields(ctx, principal, taskID)
		require.NoError(t, err)
		assert.True(t, set.Contains(fieldID))
		assert.Equal(t, projectID, rules.gotProjectID)
		assert.Equal(t, stageID, rules.gotStageID)
		assert.Equal(t, []core.ID{role.ID}, rules.gotRoleIDs)
		assert.Nil(t, roles.searchedNames, "alias lookup must not fire when roles exist")
	})
	t.Run("Should infer a role from the user type when no roles are assigned", func(t *testing.T) {
		principal := testPrincipal(false)
		principal.UserType = user.TypeDeveloper
		projectID := core.MustNewID()
		taskID := core.MustNewID()
		rules, dir, lister, roles := resolverFixture(nil)
		dir.tasks[taskID] = &access.TaskRef{ID: taskID, ProjectID: projectID, StageID: core.MustNewID()}
		devRole, err := user.NewRole("developer", "")
		require.NoError(t, err)
		roles.byName["developer"] = devRole
		resolver := access.NewResolver(rules, dir, lister, roles, access.DefaultRoleAliases())
		_, err = resolver.EditableFields(ctx, principal, taskID)
		require.NoError(t, err)
		assert.Equal(t, []core.ID{devRole.ID}, rules.gotRoleIDs)
		assert.Contains(t, roles.searchedNames, "developer")
		assert.Contains(t, roles.searchedNames, "executor")
	})
	t.Run("Should query with no roles when the alias matches nothing", func(t *testing.T) {
		principal := testPrincipal(false)
		taskID := core.MustNewID()
		rules, dir, lister, roles := resolverFixture(nil)
		dir.tasks[taskID] = &access.TaskRef{ID: taskID, ProjectID: core.MustNewID(), StageID: core.MustNewID()}
		resolver := access.NewResolver(rules, dir, lister, roles, access.DefaultRoleAliases())
		set, err := resolver.EditableFields(ctx, principal, taskID)
		require.NoError(t, err)
		assert.Empty(t, set)
		assert.Empty(t, rules.gotRoleIDs)
	})
	t.Run("Should skip inference entirely with a nil alias table", func(t *testing.T) {
		principal := testPrincipal(false)
		taskID := core.MustNewID()
		rules, dir, lister, roles := resolverFixture(nil)
		dir.tasks[taskID] = &access.TaskRef{ID: taskID, ProjectID: core.MustNewID(), StageID: core.MustNewID()}
		resolver := access.NewResolver(rules, dir, lister, roles, nil)
		_, err := resolver.EditableFields(ctx, principal, taskID)
		require.NoError(t, err)
		assert.Nil(t, roles.searchedNames)
	})
	t.Run("Should surface a not found error for an unknown task", func(t *testing.T) {
		rules, dir, lister, roles := resolverFixture(nil)
		resolver := access.NewResolver(rules, dir, lister, roles, access.DefaultRoleAliases())
		_, err := resolver.EditableFields(ctx, testPrincipal(false), core.MustNewID())
		require.Error(t, err)
		assert.Equal(t, core.ErrCodeNotFound, core.CodeOf(err))
	})
	t.Run("Should propagate a store failure as internal, not not found", func(t *testing.T) {
		rules, _, lister, roles := resolverFixture(nil)
		dir := &failingDirectory{err: errors.New("connection refused")}
		resolver := access.NewResolver(rules, dir, lister, roles, access.DefaultRoleAliases())
		_, err := resolver.EditableFields(ctx, testPrincipal(false), core.MustNewID())
		require.Error(t, err)
		assert.Equal(t, core.ErrCodeInternal, core.CodeOf(err))
	})
}

func TestResolver_CanEditField(t *testing.T) {
	ctx := context.Background()
	t.Run("Should report membership of the editable set", func(t *testing.T) {
		principal := testPrincipal(false)
		taskID := core.MustNewID()
		editable := core.MustNewID()
		other := core.MustNewID()
		rules, dir, lister, roles := resolverFixture([]core.ID{editable})
		dir.tasks[taskID] = &access.TaskRef{ID: taskID, ProjectID: core.MustNewID(), StageID: core.MustNewID()}
		resolver := access.NewResolver(rules, dir, lister, roles, access.DefaultRoleAliases())
		ok, err := resolver.CanEditField(ctx, principal, taskID, editable)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = resolver.CanEditField(ctx, principal, taskID, other)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
