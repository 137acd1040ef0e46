package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lifeline-hq/lifeline/engine/access"
	"github.com/lifeline-hq/lifeline/engine/auth"
	"github.com/lifeline-hq/lifeline/engine/core"
	infrarouter "github.com/lifeline-hq/lifeline/engine/infra/server/router"
	"github.com/lifeline-hq/lifeline/engine/workflow"
)

// Routes wires the transition graph endpoints. Reading the graph needs
// project read access; editing it needs project write access.
type Routes struct {
	transitions workflow.Repository
	stages      workflow.StageDirectory
	guard       *workflow.Guard
	evaluator   *access.Evaluator
}

func New(transitions workflow.Repository, stages workflow.StageDirectory, guard *workflow.Guard, evaluator *access.Evaluator) *Routes {
	return &Routes{transitions: transitions, stages: stages, guard: guard, evaluator: evaluator}
}

func (r *Routes) Register(g *gin.RouterGroup) {
	g.GET("/projects/:projectID/transitions", r.listTransitions)
	g.POST("/projects/:projectID/transitions", r.createTransition)
	g.DELETE("/transitions/:transitionID", auth.RequireAdmin(), r.deleteTransition)
	g.POST("/tasks/:taskID/transition-check", r.checkTransition)
}

func (r *Routes) requireProject(c *gin.Context, projectID core.ID, level access.Level) bool {
	principal, _ := auth.GetUser(c)
	if err := r.evaluator.RequireAccess(c.Request.Context(), principal, access.KindProject, projectID, level); err != nil {
		infrarouter.RespondError(c, err)
		return false
	}
	return true
}

func (r *Routes) listTransitions(c *gin.Context) {
	projectID, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	if !r.requireProject(c, projectID, access.LevelRead) {
		return
	}
	transitions, err := r.transitions.ListTransitions(c.Request.Context(), projectID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	if transitions == nil {
		transitions = []*workflow.Transition{}
	}
	c.JSON(http.StatusOK, transitions)
}

type createTransitionRequest struct {
	FromStageID core.ID `json:"from_stage_id" binding:"required"`
	ToStageID   core.ID `json:"to_stage_id"   binding:"required"`
	Name        string  `json:"name"`
}

func (r *Routes) createTransition(c *gin.Context) {
	projectID, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	if !r.requireProject(c, projectID, access.LevelWrite) {
		return
	}
	var req createTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	// Both ends must be stages of this project; a foreign edge would flip the
	// project into restricted mode without ever being walkable.
	for _, stageID := range []core.ID{req.FromStageID, req.ToStageID} {
		ref, err := r.stages.GetStageRef(c.Request.Context(), stageID)
		if err != nil {
			if errors.Is(err, workflow.ErrStageNotFound) {
				infrarouter.RespondNotFound(c, "stage not found")
				return
			}
			infrarouter.RespondError(c, err)
			return
		}
		if ref.ProjectID != projectID {
			infrarouter.RespondBadRequest(c, "stage does not belong to this project")
			return
		}
	}
	transition, err := workflow.NewTransition(projectID, req.FromStageID, req.ToStageID, req.Name)
	if err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if err := r.transitions.CreateTransition(c.Request.Context(), transition); err != nil {
		if errors.Is(err, workflow.ErrTransitionExists) {
			infrarouter.RespondProblem(c, &core.Problem{
				Status: http.StatusConflict,
				Detail: "this transition already exists",
				Extras: map[string]any{"code": core.ErrCodeConflict},
			})
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, transition)
}

func (r *Routes) deleteTransition(c *gin.Context) {
	transitionID, ok := infrarouter.ParseID(c, "transitionID")
	if !ok {
		return
	}
	if err := r.transitions.DeleteTransition(c.Request.Context(), transitionID); err != nil {
		if errors.Is(err, workflow.ErrTransitionNotFound) {
			infrarouter.RespondNotFound(c, "transition not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type checkTransitionRequest struct {
	StageID core.ID `json:"stage_id" binding:"required"`
	Force   bool    `json:"force"`
}

// checkTransition evaluates a proposed move without performing it, so the UI
// can grey out unreachable stages.
func (r *Routes) checkTransition(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	// The verdict leaks graph configuration and stage ownership; only readers
	// of the task may ask for it.
	principal, _ := auth.GetUser(c)
	if err := r.evaluator.RequireAccess(c.Request.Context(), principal, access.KindTask, taskID, access.LevelRead); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	var req checkTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	decision, err := r.guard.CanTransition(c.Request.Context(), principal, taskID, req.StageID, req.Force)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}
