package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lifeline-hq/lifeline/engine/access"
	"github.com/lifeline-hq/lifeline/engine/core"
	"github.com/lifeline-hq/lifeline/engine/user"
	"github.com/lifeline-hq/lifeline/engine/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGraph struct {
	workflow.Repository
	edges map[string]bool
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{edges: make(map[string]bool)}
}

func edgeKey(projectID, from, to core.ID) string {
	return string(projectID) + "/" + string(from) + "/" + string(to)
}

func (f *fakeGraph) addEdge(projectID, from, to core.ID) {
	f.edges[edgeKey(projectID, from, to)] = true
}

func (f *fakeGraph) CountTransitions(_ context.Context, projectID core.ID) (int, error) {
	count := 0
	for key := range f.edges {
		if len(key) >= len(projectID) && key[:len(projectID)] == string(projectID) {
			count++
		}
	}
	return count, nil
}

func (f *fakeGraph) TransitionExists(_ context.Context, projectID, from, to core.ID) (bool, error) {
	return f.edges[edgeKey(projectID, from, to)], nil
}

type fakeWorld struct {
	tasks  map[core.ID]*access.TaskRef
	stages map[core.ID]*workflow.StageRef
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		tasks:  make(map[core.ID]*access.TaskRef),
		stages: make(map[core.ID]*workflow.StageRef),
	}
}

func (f *fakeWorld) GetTaskRef(_ context.Context, id core.ID) (*access.TaskRef, error) {
	if ref, ok := f.tasks[id]; ok {
		return ref, nil
	}
	return nil, access.ErrTaskNotFound
}

// brokenTasks simulates a store outage underneath the task lookup.
type brokenTasks struct{}

func (brokenTasks) GetTaskRef(_ context.Context, _ core.ID) (*access.TaskRef, error) {
	return nil, errors.New("connection refused")
}

func (f *fakeWorld) GetStageRef(_ context.Context, id core.ID) (*workflow.StageRef, error) {
	if ref, ok := f.stages[id]; ok {
		return ref, nil
	}
	return nil, workflow.ErrStageNotFound
}

// fixture wires one task sitting in stageA of a project that also owns stageB.
type fixture struct {
	graph  *fakeGraph
	world  *fakeWorld
	guard  *workflow.Guard
	taskID core.ID
	projID core.ID
	stageA core.ID
	stageB core.ID
}

func newFixture() *fixture {
	f := &fixture{
		graph:  newFakeGraph(),
		world:  newFakeWorld(),
		taskID: core.MustNewID(),
		projID: core.MustNewID(),
		stageA: core.MustNewID(),
		stageB: core.MustNewID(),
	}
	f.world.tasks[f.taskID] = &access.TaskRef{ID: f.taskID, ProjectID: f.projID, StageID: f.stageA}
	f.world.stages[f.stageA] = &workflow.StageRef{ID: f.stageA, ProjectID: f.projID}
	f.world.stages[f.stageB] = &workflow.StageRef{ID: f.stageB, ProjectID: f.projID}
	f.guard = workflow.NewGuard(f.graph, f.world, f.world)
	return f
}

func member() *user.User {
	return &user.User{ID: core.MustNewID(), Username: "bob", UserType: user.TypeDeveloper, IsActive: true}
}

func admin() *user.User {
	u := member()
	u.IsAdmin = true
	return u
}

func TestGuard_CanTransition(t *testing.T) {
	ctx := context.Background()
	t.Run("Should allow any movement when no transitions are configured", func(t *testing.T) {
		f := newFixture()
		decision, err := f.guard.CanTransition(ctx, member(), f.taskID, f.stageB, false)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})
	t.Run("Should allow movement along a configured edge", func(t *testing.T) {
		f := newFixture()
		f.graph.addEdge(f.projID, f.stageA, f.stageB)
		decision, err := f.guard.CanTransition(ctx, member(), f.taskID, f.stageB, false)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})
	t.Run("Should deny movement against the edge direction", func(t *testing.T) {
		f := newFixture()
		// Edge points B to A while the task sits in A.
		f.graph.addEdge(f.projID, f.stageB, f.stageA)
		decision, err := f.guard.CanTransition(ctx, member(), f.taskID, f.stageB, false)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, workflow.ReasonNotConfigured, decision.Reason)
	})
	t.Run("Should deny a stage belonging to another project", func(t *testing.T) {
		f := newFixture()
		foreign := core.MustNewID()
		f.world.stages[foreign] = &workflow.StageRef{ID: foreign, ProjectID: core.MustNewID()}
		decision, err := f.guard.CanTransition(ctx, member(), f.taskID, foreign, false)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, workflow.ReasonInvalidStage, decision.Reason)
	})
	t.Run("Should keep a foreign stage invalid even when forced", func(t *testing.T) {
		f := newFixture()
		foreign := core.MustNewID()
		f.world.stages[foreign] = &workflow.StageRef{ID: foreign, ProjectID: core.MustNewID()}
		decision, err := f.guard.CanTransition(ctx, admin(), f.taskID, foreign, true)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, workflow.ReasonInvalidStage, decision.Reason)
	})
	t.Run("Should let admins bypass the graph", func(t *testing.T) {
		f := newFixture()
		f.graph.addEdge(f.projID, f.stageB, f.stageA)
		decision, err := f.guard.CanTransition(ctx, admin(), f.taskID, f.stageB, false)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})
	t.Run("Should let force bypass the graph for non-admins", func(t *testing.T) {
		f := newFixture()
		f.graph.addEdge(f.projID, f.stageB, f.stageA)
		decision, err := f.guard.CanTransition(ctx, member(), f.taskID, f.stageB, true)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})
	t.Run("Should surface a not found error for an unknown target stage", func(t *testing.T) {
		f := newFixture()
		_, err := f.guard.CanTransition(ctx, member(), f.taskID, core.MustNewID(), false)
		require.Error(t, err)
		assert.Equal(t, core.ErrCodeNotFound, core.CodeOf(err))
	})
	t.Run("Should surface a not found error for an unknown task", func(t *testing.T) {
		f := newFixture()
		_, err := f.guard.CanTransition(ctx, member(), core.MustNewID(), f.stageB, false)
		require.Error(t, err)
		assert.Equal(t, core.ErrCodeNotFound, core.CodeOf(err))
	})
	t.Run("Should propagate a store failure as internal, not not found", func(t *testing.T) {
		f := newFixture()
		guard := workflow.NewGuard(f.graph, f.world, brokenTasks{})
		_, err := guard.CanTransition(ctx, member(), f.taskID, f.stageB, false)
		require.Error(t, err)
		assert.Equal(t, core.ErrCodeInternal, core.CodeOf(err))
	})
}

func TestGuard_RequireTransition(t *testing.T) {
	ctx := context.Background()
	t.Run("Should fold a denial into a coded error with its reason", func(t *testing.T) {
		f := newFixture()
		f.graph.addEdge(f.projID, f.stageB, f.stageA)
		err := f.guard.RequireTransition(ctx, member(), f.taskID, f.stageB, false)
		require.Error(t, err)
		assert.Equal(t, core.ErrCodeTransitionDenied, core.CodeOf(err))
		assert.Equal(t, string(workflow.ReasonNotConfigured), core.ExtrasOf(err)["reason"])
	})
	t.Run("Should return nil for an allowed movement", func(t *testing.T) {
		f := newFixture()
		f.graph.addEdge(f.projID, f.stageA, f.stageB)
		assert.NoError(t, f.guard.RequireTransition(ctx, member(), f.taskID, f.stageB, false))
	})
}

func TestNewTransition(t *testing.T) {
	t.Run("Should reject a self loop", func(t *testing.T) {
		stage := core.MustNewID()
		_, err := workflow.NewTransition(core.MustNewID(), stage, stage, "loop")
		assert.Error(t, err)
	})
	t.Run("Should create a directional edge", func(t *testing.T) {
		tr, err := workflow.NewTransition(core.MustNewID(), core.MustNewID(), core.MustNewID(), "to review")
		require.NoError(t, err)
		assert.False(t, tr.ID.IsZero())
		assert.Equal(t, "to review", tr.Name)
	})
}
