package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lifeline-hq/lifeline/engine/access"
	"github.com/lifeline-hq/lifeline/engine/auth"
	"github.com/lifeline-hq/lifeline/engine/core"
	infrarouter "github.com/lifeline-hq/lifeline/engine/infra/server/router"
)

// Routes wires grant and field-rule administration. All endpoints are
// admin-only; granting access is itself the highest privilege in the system.
type Routes struct {
	grants access.Repository
}

func New(grants access.Repository) *Routes {
	return &Routes{grants: grants}
}

func (r *Routes) Register(g *gin.RouterGroup) {
	admin := g.Group("", auth.RequireAdmin())

	admin.GET("/projects/:projectID/permissions", r.listProjectGrants)
	admin.PUT("/projects/:projectID/permissions/:userID", r.upsertProjectGrant)
	admin.DELETE("/projects/:projectID/permissions/:userID", r.deleteProjectGrant)

	admin.PUT("/tasks/:taskID/permissions/:userID", r.upsertTaskGrant)
	admin.DELETE("/tasks/:taskID/permissions/:userID", r.deleteTaskGrant)

	admin.PUT("/fields/:fieldID/permissions/:userID", r.upsertFieldGrant)
	admin.DELETE("/fields/:fieldID/permissions/:userID", r.deleteFieldGrant)

	admin.GET("/fields/:fieldID/rules", r.listFieldRules)
	admin.POST("/fields/:fieldID/rules", r.createFieldRule)
	admin.DELETE("/rules/:ruleID", r.deleteFieldRule)
}

type grantRequest struct {
	Level access.Level `json:"level" binding:"required"`
}

func (r *Routes) listProjectGrants(c *gin.Context) {
	projectID, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	grants, err := r.grants.ListProjectGrants(c.Request.Context(), projectID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grants)
}

func (r *Routes) upsertProjectGrant(c *gin.Context) {
	projectID, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	userID, ok := infrarouter.ParseID(c, "userID")
	if !ok {
		return
	}
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if !req.Level.Valid() {
		infrarouter.RespondBadRequest(c, "level must be read or write")
		return
	}
	id, err := core.NewID()
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	grant := &access.ProjectGrant{ID: id, UserID: userID, ProjectID: projectID, Level: req.Level}
	if err := r.grants.UpsertProjectGrant(c.Request.Context(), grant); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

func (r *Routes) deleteProjectGrant(c *gin.Context) {
	projectID, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	userID, ok := infrarouter.ParseID(c, "userID")
	if !ok {
		return
	}
	if err := r.grants.DeleteProjectGrant(c.Request.Context(), userID, projectID); err != nil {
		if errors.Is(err, access.ErrGrantNotFound) {
			infrarouter.RespondNotFound(c, "grant not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Routes) upsertTaskGrant(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	userID, ok := infrarouter.ParseID(c, "userID")
	if !ok {
		return
	}
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if !req.Level.Valid() {
		infrarouter.RespondBadRequest(c, "level must be read or write")
		return
	}
	id, err := core.NewID()
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	grant := &access.TaskGrant{ID: id, UserID: userID, TaskID: taskID, Level: req.Level}
	if err := r.grants.UpsertTaskGrant(c.Request.Context(), grant); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

func (r *Routes) deleteTaskGrant(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	userID, ok := infrarouter.ParseID(c, "userID")
	if !ok {
		return
	}
	if err := r.grants.DeleteTaskGrant(c.Request.Context(), userID, taskID); err != nil {
		if errors.Is(err, access.ErrGrantNotFound) {
			infrarouter.RespondNotFound(c, "grant not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Routes) upsertFieldGrant(c *gin.Context) {
	fieldID, ok := infrarouter.ParseID(c, "fieldID")
	if !ok {
		return
	}
	userID, ok := infrarouter.ParseID(c, "userID")
	if !ok {
		return
	}
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if !req.Level.Valid() {
		infrarouter.RespondBadRequest(c, "level must be read or write")
		return
	}
	id, err := core.NewID()
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	grant := &access.FieldGrant{ID: id, UserID: userID, FieldDefinitionID: fieldID, Level: req.Level}
	if err := r.grants.UpsertFieldGrant(c.Request.Context(), grant); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

func (r *Routes) deleteFieldGrant(c *gin.Context) {
	fieldID, ok := infrarouter.ParseID(c, "fieldID")
	if !ok {
		return
	}
	userID, ok := infrarouter.ParseID(c, "userID")
	if !ok {
		return
	}
	if err := r.grants.DeleteFieldGrant(c.Request.Context(), userID, fieldID); err != nil {
		if errors.Is(err, access.ErrGrantNotFound) {
			infrarouter.RespondNotFound(c, "grant not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createRuleRequest struct {
	StageID *core.ID `json:"stage_id"`
	RoleID  *core.ID `json:"role_id"`
}

func (r *Routes) listFieldRules(c *gin.Context) {
	fieldID, ok := infrarouter.ParseID(c, "fieldID")
	if !ok {
		return
	}
	rules, err := r.grants.ListFieldRules(c.Request.Context(), fieldID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (r *Routes) createFieldRule(c *gin.Context) {
	fieldID, ok := infrarouter.ParseID(c, "fieldID")
	if !ok {
		return
	}
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	rule, err := access.NewFieldRule(fieldID, req.StageID, req.RoleID)
	if err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if err := r.grants.CreateFieldRule(c.Request.Context(), rule); err != nil {
		if errors.Is(err, access.ErrRuleExists) {
			infrarouter.RespondProblem(c, &core.Problem{
				Status: http.StatusConflict,
				Detail: "an identical rule already exists",
				Extras: map[string]any{"code": core.ErrCodeConflict},
			})
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (r *Routes) deleteFieldRule(c *gin.Context) {
	ruleID, ok := infrarouter.ParseID(c, "ruleID")
	if !ok {
		return
	}
	if err := r.grants.DeleteFieldRule(c.Request.Context(), ruleID); err != nil {
		if errors.Is(err, access.ErrRuleNotFound) {
			infrarouter.RespondNotFound(c, "rule not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
