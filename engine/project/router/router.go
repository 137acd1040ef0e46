package router

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lifeline-hq/lifeline/engine/access"
	"github.com/lifeline-hq/lifeline/engine/auth"
	"github.com/lifeline-hq/lifeline/engine/core"
	infrarouter "github.com/lifeline-hq/lifeline/engine/infra/server/router"
	"github.com/lifeline-hq/lifeline/engine/project"
)

// Routes wires the project, stage, and field schema endpoints. Every handler
// consults the access evaluator before touching data.
type Routes struct {
	projects  project.Repository
	grants    access.Repository
	evaluator *access.Evaluator
}

func New(projects project.Repository, grants access.Repository, evaluator *access.Evaluator) *Routes {
	return &Routes{projects: projects, grants: grants, evaluator: evaluator}
}

func (r *Routes) Register(g *gin.RouterGroup) {
	g.GET("/projects", r.listProjects)
	g.POST("/projects", r.createProject)
	g.GET("/projects/:projectID", r.getProject)
	g.PATCH("/projects/:projectID", r.updateProject)
	g.DELETE("/projects/:projectID", auth.RequireAdmin(), r.deleteProject)

	g.GET("/projects/:projectID/stages", r.listStages)
	g.POST("/projects/:projectID/stages", r.createStage)
	g.PATCH("/stages/:stageID", r.updateStage)
	g.DELETE("/stages/:stageID", r.deleteStage)

	g.GET("/projects/:projectID/field-groups", r.listFieldGroups)
	g.POST("/projects/:projectID/field-groups", r.createFieldGroup)
	g.DELETE("/field-groups/:groupID", auth.RequireAdmin(), r.deleteFieldGroup)

	g.GET("/projects/:projectID/fields", r.listFields)
	g.POST("/projects/:projectID/fields", r.createField)
	g.PATCH("/fields/:fieldID", r.updateField)
	g.DELETE("/fields/:fieldID", r.deleteField)
}

// requireProject checks access at the project layer and responds on denial.
func (r *Routes) requireProject(c *gin.Context, projectID core.ID, level access.Level) bool {
	principal, _ := auth.GetUser(c)
	if err := r.evaluator.RequireAccess(c.Request.Context(), principal, access.KindProject, projectID, level); err != nil {
		infrarouter.RespondError(c, err)
		return false
	}
	return true
}

// loadProject resolves the project or responds 404. Existence is checked
// before access so unknown IDs read the same for everyone.
func (r *Routes) loadProject(c *gin.Context, id core.ID) (*project.Project, bool) {
	p, err := r.projects.GetProjectByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			infrarouter.RespondNotFound(c, "project not found")
			return nil, false
		}
		infrarouter.RespondError(c, err)
		return nil, false
	}
	return p, true
}

func (r *Routes) listProjects(c *gin.Context) {
	principal, _ := auth.GetUser(c)
	if principal.IsAdmin {
		projects, err := r.projects.ListProjects(c.Request.Context())
		if err != nil {
			infrarouter.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, projects)
		return
	}
	ids, err := r.grants.ListAccessibleProjectIDs(c.Request.Context(), principal.ID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	projects, err := r.projects.ListProjectsByIDs(c.Request.Context(), ids)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	if projects == nil {
		projects = []*project.Project{}
	}
	c.JSON(http.StatusOK, projects)
}

type createProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (r *Routes) createProject(c *gin.Context) {
	principal, _ := auth.GetUser(c)
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	p, err := project.NewProject(req.Name, req.Description, &principal.ID)
	if err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if err := r.projects.CreateProject(c.Request.Context(), p); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	// The creator gets a write grant so the project is usable immediately.
	grantID, err := core.NewID()
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	grant := &access.ProjectGrant{ID: grantID, UserID: principal.ID, ProjectID: p.ID, Level: access.LevelWrite}
	if err := r.grants.UpsertProjectGrant(c.Request.Context(), grant); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (r *Routes) getProject(c *gin.Context) {
	id, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	p, ok := r.loadProject(c, id)
	if !ok {
		return
	}
	if !r.requireProject(c, id, access.LevelRead) {
		return
	}
	c.JSON(http.StatusOK, p)
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (r *Routes) updateProject(c *gin.Context) {
	id, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	p, ok := r.loadProject(c, id)
	if !ok {
		return
	}
	if !r.requireProject(c, id, access.LevelWrite) {
		return
	}
	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			infrarouter.RespondBadRequest(c, "project name cannot be empty")
			return
		}
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if err := r.projects.UpdateProject(c.Request.Context(), p); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (r *Routes) deleteProject(c *gin.Context) {
	id, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	if err := r.projects.DeleteProject(c.Request.Context(), id); err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			infrarouter.RespondNotFound(c, "project not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createStageRequest struct {
	Name      string `json:"name" binding:"required"`
	Order     int    `json:"order"`
	Color     string `json:"color"`
	IsInitial bool   `json:"is_initial"`
	IsFinal   bool   `json:"is_final"`
}

func (r *Routes) listStages(c *gin.Context) {
	projectID, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	if _, ok := r.loadProject(c, projectID); !ok {
		return
	}
	if !r.requireProject(c, projectID, access.LevelRead) {
		return
	}
	stages, err := r.projects.ListStages(c.Request.Context(), projectID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stages)
}

func (r *Routes) createStage(c *gin.Context) {
	projectID, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	if _, ok := r.loadProject(c, projectID); !ok {
		return
	}
	if !r.requireProject(c, projectID, access.LevelWrite) {
		return
	}
	var req createStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	s, err := project.NewStage(projectID, req.Name, req.Order, req.Color)
	if err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	s.IsInitial = req.IsInitial
	s.IsFinal = req.IsFinal
	if err := r.projects.CreateStage(c.Request.Context(), s); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

type updateStageRequest struct {
	Name      *string `json:"name"`
	Order     *int    `json:"order"`
	Color     *string `json:"color"`
	IsInitial *bool   `json:"is_initial"`
	IsFinal   *bool   `json:"is_final"`
}

func (r *Routes) updateStage(c *gin.Context) {
	stageID, ok := infrarouter.ParseID(c, "stageID")
	if !ok {
		return
	}
	s, err := r.projects.GetStageByID(c.Request.Context(), stageID)
	if err != nil {
		if errors.Is(err, project.ErrStageNotFound) {
			infrarouter.RespondNotFound(c, "stage not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	if !r.requireProject(c, s.ProjectID, access.LevelWrite) {
		return
	}
	var req updateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if req.Name != nil {
		s.Name = *req.Name
	}
	if req.Order != nil {
		s.Order = *req.Order
	}
	if req.Color != nil {
		s.Color = *req.Color
	}
	if req.IsInitial != nil {
		s.IsInitial = *req.IsInitial
	}
	if req.IsFinal != nil {
		s.IsFinal = *req.IsFinal
	}
	if err := r.projects.UpdateStage(c.Request.Context(), s); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (r *Routes) deleteStage(c *gin.Context) {
	stageID, ok := infrarouter.ParseID(c, "stageID")
	if !ok {
		return
	}
	s, err := r.projects.GetStageByID(c.Request.Context(), stageID)
	if err != nil {
		if errors.Is(err, project.ErrStageNotFound) {
			infrarouter.RespondNotFound(c, "stage not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	if !r.requireProject(c, s.ProjectID, access.LevelWrite) {
		return
	}
	if err := r.projects.DeleteStage(c.Request.Context(), stageID); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createFieldGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Order       int    `json:"order"`
	IsCollapsed bool   `json:"is_collapsed"`
}

func (r *Routes) listFieldGroups(c *gin.Context) {
	projectID, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	if _, ok := r.loadProject(c, projectID); !ok {
		return
	}
	if !r.requireProject(c, projectID, access.LevelRead) {
		return
	}
	groups, err := r.projects.ListFieldGroups(c.Request.Context(), projectID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (r *Routes) createFieldGroup(c *gin.Context) {
	projectID, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	if _, ok := r.loadProject(c, projectID); !ok {
		return
	}
	if !r.requireProject(c, projectID, access.LevelWrite) {
		return
	}
	var req createFieldGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	id, err := core.NewID()
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	group := &project.FieldGroup{
		ID:          id,
		ProjectID:   projectID,
		Name:        req.Name,
		Order:       req.Order,
		IsCollapsed: req.IsCollapsed,
	}
	if err := r.projects.CreateFieldGroup(c.Request.Context(), group); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (r *Routes) deleteFieldGroup(c *gin.Context) {
	groupID, ok := infrarouter.ParseID(c, "groupID")
	if !ok {
		return
	}
	if err := r.projects.DeleteFieldGroup(c.Request.Context(), groupID); err != nil {
		if errors.Is(err, project.ErrGroupNotFound) {
			infrarouter.RespondNotFound(c, "field group not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createFieldRequest struct {
	Name       string            `json:"name" binding:"required"`
	FieldType  project.FieldType `json:"field_type" binding:"required"`
	GroupID    *core.ID          `json:"group_id"`
	Options    json.RawMessage   `json:"options"`
	IsRequired bool              `json:"is_required"`
	Order      int               `json:"order"`
}

func (r *Routes) listFields(c *gin.Context) {
	projectID, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	if _, ok := r.loadProject(c, projectID); !ok {
		return
	}
	if !r.requireProject(c, projectID, access.LevelRead) {
		return
	}
	fields, err := r.projects.ListFieldDefinitions(c.Request.Context(), projectID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fields)
}

func (r *Routes) createField(c *gin.Context) {
	projectID, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	if _, ok := r.loadProject(c, projectID); !ok {
		return
	}
	if !r.requireProject(c, projectID, access.LevelWrite) {
		return
	}
	var req createFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	f, err := project.NewFieldDefinition(projectID, req.Name, req.FieldType, req.Options)
	if err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	f.GroupID = req.GroupID
	f.IsRequired = req.IsRequired
	f.Order = req.Order
	if err := r.projects.CreateFieldDefinition(c.Request.Context(), f); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

type updateFieldRequest struct {
	Name       *string            `json:"name"`
	FieldType  *project.FieldType `json:"field_type"`
	GroupID    *core.ID           `json:"group_id"`
	Options    json.RawMessage    `json:"options"`
	IsRequired *bool              `json:"is_required"`
	Order      *int               `json:"order"`
}

func (r *Routes) updateField(c *gin.Context) {
	fieldID, ok := infrarouter.ParseID(c, "fieldID")
	if !ok {
		return
	}
	f, err := r.projects.GetFieldDefinitionByID(c.Request.Context(), fieldID)
	if err != nil {
		if errors.Is(err, project.ErrFieldNotFound) {
			infrarouter.RespondNotFound(c, "field definition not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	if !r.requireProject(c, f.ProjectID, access.LevelWrite) {
		return
	}
	var req updateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if req.Name != nil {
		f.Name = *req.Name
	}
	if req.FieldType != nil {
		if !req.FieldType.Valid() {
			infrarouter.RespondBadRequest(c, "invalid field type")
			return
		}
		f.FieldType = *req.FieldType
	}
	if req.GroupID != nil {
		f.GroupID = req.GroupID
	}
	if req.Options != nil {
		f.Options = req.Options
	}
	if req.IsRequired != nil {
		f.IsRequired = *req.IsRequired
	}
	if req.Order != nil {
		f.Order = *req.Order
	}
	if err := r.projects.UpdateFieldDefinition(c.Request.Context(), f); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (r *Routes) deleteField(c *gin.Context) {
	fieldID, ok := infrarouter.ParseID(c, "fieldID")
	if !ok {
		return
	}
	f, err := r.projects.GetFieldDefinitionByID(c.Request.Context(), fieldID)
	if err != nil {
		if errors.Is(err, project.ErrFieldNotFound) {
			infrarouter.RespondNotFound(c, "field definition not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	if !r.requireProject(c, f.ProjectID, access.LevelWrite) {
		return
	}
	if err := r.projects.DeleteFieldDefinition(c.Request.Context(), fieldID); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
