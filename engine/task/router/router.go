package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lifeline-hq/lifeline/engine/access"
	"github.com/lifeline-hq/lifeline/engine/auth"
	"github.com/lifeline-hq/lifeline/engine/core"
	infrarouter "github.com/lifeline-hq/lifeline/engine/infra/server/router"
	"github.com/lifeline-hq/lifeline/engine/notification"
	"github.com/lifeline-hq/lifeline/engine/task"
	"github.com/lifeline-hq/lifeline/engine/workflow"
	"github.com/lifeline-hq/lifeline/pkg/logger"
)

// Routes wires the task endpoints. Reads go through the access evaluator,
// field writes through the visibility resolver, and stage moves through the
// workflow guard.
type Routes struct {
	tasks      task.Repository
	evaluator  *access.Evaluator
	resolver   *access.Resolver
	guard      *workflow.Guard
	dispatcher *notification.Dispatcher
}

func New(
	tasks task.Repository,
	evaluator *access.Evaluator,
	resolver *access.Resolver,
	guard *workflow.Guard,
	dispatcher *notification.Dispatcher,
) *Routes {
	return &Routes{
		tasks:      tasks,
		evaluator:  evaluator,
		resolver:   resolver,
		guard:      guard,
		dispatcher: dispatcher,
	}
}

func (r *Routes) Register(g *gin.RouterGroup) {
	g.GET("/projects/:projectID/tasks", r.listTasks)
	g.POST("/projects/:projectID/tasks", r.createTask)
	g.GET("/tasks/:taskID", r.getTask)
	g.PATCH("/tasks/:taskID", r.updateTask)
	g.DELETE("/tasks/:taskID", r.deleteTask)
	g.PUT("/tasks/:taskID/stage", r.moveStage)

	g.GET("/tasks/:taskID/fields", r.listFieldValues)
	g.PUT("/tasks/:taskID/fields/:fieldID", r.setFieldValue)
	g.GET("/tasks/:taskID/editable-fields", r.editableFields)

	g.GET("/tasks/:taskID/comments", r.listComments)
	g.POST("/tasks/:taskID/comments", r.createComment)
	g.PATCH("/comments/:commentID", r.updateComment)
	g.DELETE("/comments/:commentID", r.deleteComment)

	g.GET("/tasks/:taskID/history", r.listHistory)

	g.GET("/tasks/:taskID/links", r.listLinks)
	g.POST("/tasks/:taskID/links", r.createLink)
	g.DELETE("/links/:linkID", r.deleteLink)

	g.GET("/tasks/:taskID/attachments", r.listAttachments)
	g.POST("/tasks/:taskID/attachments", r.createAttachment)
	g.DELETE("/attachments/:attachmentID", r.deleteAttachment)
}

// loadTask resolves the task or responds 404. Existence is surfaced before
// access so unknown and forbidden tasks do not read the same.
func (r *Routes) loadTask(c *gin.Context, id core.ID) (*task.Task, bool) {
	t, err := r.tasks.GetTaskByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			infrarouter.RespondNotFound(c, "task not found")
			return nil, false
		}
		infrarouter.RespondError(c, err)
		return nil, false
	}
	return t, true
}

func (r *Routes) requireTask(c *gin.Context, taskID core.ID, level access.Level) bool {
	principal, _ := auth.GetUser(c)
	if err := r.evaluator.RequireAccess(c.Request.Context(), principal, access.KindTask, taskID, level); err != nil {
		infrarouter.RespondError(c, err)
		return false
	}
	return true
}

func (r *Routes) requireProject(c *gin.Context, projectID core.ID, level access.Level) bool {
	principal, _ := auth.GetUser(c)
	if err := r.evaluator.RequireAccess(c.Request.Context(), principal, access.KindProject, projectID, level); err != nil {
		infrarouter.RespondError(c, err)
		return false
	}
	return true
}

func (r *Routes) recordHistory(c *gin.Context, entry *task.HistoryEntry, err error) {
	if err != nil {
		logger.FromContext(c.Request.Context()).Warn("building history entry failed", "error", err)
		return
	}
	if err := r.tasks.CreateHistoryEntry(c.Request.Context(), entry); err != nil {
		logger.FromContext(c.Request.Context()).Warn("recording history failed",
			"task_id", entry.TaskID, "action", entry.Action, "error", err)
	}
}

func (r *Routes) notify(c *gin.Context, userID *core.ID, taskID core.ID, kind notification.Kind, message string) {
	if userID == nil {
		return
	}
	principal, _ := auth.GetUser(c)
	// Never notify the actor about their own change.
	if *userID == principal.ID {
		return
	}
	if err := r.dispatcher.Notify(c.Request.Context(), *userID, &taskID, kind, message); err != nil {
		logger.FromContext(c.Request.Context()).Warn("notification failed",
			"user_id", userID, "task_id", taskID, "kind", kind, "error", err)
	}
}

func (r *Routes) listTasks(c *gin.Context) {
	projectID, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	if !r.requireProject(c, projectID, access.LevelRead) {
		return
	}
	filter := task.ListFilter{IncludeArchived: c.Query("include_archived") == "true"}
	if raw := c.Query("stage_id"); raw != "" {
		id, err := core.ParseID(raw)
		if err != nil {
			infrarouter.RespondBadRequest(c, "invalid stage_id")
			return
		}
		filter.StageID = &id
	}
	if raw := c.Query("assignee_id"); raw != "" {
		id, err := core.ParseID(raw)
		if err != nil {
			infrarouter.RespondBadRequest(c, "invalid assignee_id")
			return
		}
		filter.AssigneeID = &id
	}
	tasks, err := r.tasks.ListTasks(c.Request.Context(), projectID, filter)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

type createTaskRequest struct {
	StageID     core.ID    `json:"stage_id" binding:"required"`
	Title       string     `json:"title"    binding:"required"`
	Description string     `json:"description"`
	AssigneeID  *core.ID   `json:"assignee_id"`
	Priority    int        `json:"priority"`
	StartDate   *time.Time `json:"start_date"`
	DueDate     *time.Time `json:"due_date"`
}

func (r *Routes) createTask(c *gin.Context) {
	projectID, ok := infrarouter.ParseID(c, "projectID")
	if !ok {
		return
	}
	if !r.requireProject(c, projectID, access.LevelWrite) {
		return
	}
	principal, _ := auth.GetUser(c)
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	t, err := task.NewTask(projectID, req.StageID, req.Title, req.Description, &principal.ID)
	if err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	t.AssigneeID = req.AssigneeID
	t.Priority = req.Priority
	t.StartDate = req.StartDate
	t.DueDate = req.DueDate
	if err := r.tasks.CreateTask(c.Request.Context(), t); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	entry, err := task.NewHistoryEntry(t.ID, &principal.ID, task.ActionCreated, "task created", nil, nil)
	r.recordHistory(c, entry, err)
	r.notify(c, t.AssigneeID, t.ID, notification.KindTaskAssigned,
		fmt.Sprintf("You were assigned to task %q", t.Title))
	c.JSON(http.StatusCreated, t)
}

func (r *Routes) getTask(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	t, ok := r.loadTask(c, taskID)
	if !ok {
		return
	}
	if !r.requireTask(c, taskID, access.LevelRead) {
		return
	}
	c.JSON(http.StatusOK, t)
}

type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	AssigneeID  *core.ID   `json:"assignee_id"`
	Priority    *int       `json:"priority"`
	StartDate   *time.Time `json:"start_date"`
	DueDate     *time.Time `json:"due_date"`
	IsArchived  *bool      `json:"is_archived"`
}

func (r *Routes) updateTask(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	t, ok := r.loadTask(c, taskID)
	if !ok {
		return
	}
	if !r.requireTask(c, taskID, access.LevelWrite) {
		return
	}
	principal, _ := auth.GetUser(c)
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	assigneeChanged := false
	if req.Title != nil {
		if *req.Title == "" {
			infrarouter.RespondBadRequest(c, "task title cannot be empty")
			return
		}
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.AssigneeID != nil {
		assigneeChanged = t.AssigneeID == nil || *t.AssigneeID != *req.AssigneeID
		t.AssigneeID = req.AssigneeID
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.StartDate != nil {
		t.StartDate = req.StartDate
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}
	if req.IsArchived != nil {
		t.IsArchived = *req.IsArchived
	}
	if err := r.tasks.UpdateTask(c.Request.Context(), t); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	entry, err := task.NewHistoryEntry(t.ID, &principal.ID, task.ActionUpdated, "task updated", nil, nil)
	r.recordHistory(c, entry, err)
	if assigneeChanged {
		r.notify(c, t.AssigneeID, t.ID, notification.KindTaskAssigned,
			fmt.Sprintf("You were assigned to task %q", t.Title))
	} else {
		r.notify(c, t.AssigneeID, t.ID, notification.KindTaskUpdated,
			fmt.Sprintf("Task %q was updated", t.Title))
	}
	c.JSON(http.StatusOK, t)
}

func (r *Routes) deleteTask(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	if _, ok := r.loadTask(c, taskID); !ok {
		return
	}
	if !r.requireTask(c, taskID, access.LevelWrite) {
		return
	}
	if err := r.tasks.DeleteTask(c.Request.Context(), taskID); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type moveStageRequest struct {
	StageID core.ID `json:"stage_id" binding:"required"`
	Force   bool    `json:"force"`
}

func (r *Routes) moveStage(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	t, ok := r.loadTask(c, taskID)
	if !ok {
		return
	}
	if !r.requireTask(c, taskID, access.LevelWrite) {
		return
	}
	principal, _ := auth.GetUser(c)
	var req moveStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if err := r.guard.RequireTransition(c.Request.Context(), principal, taskID, req.StageID, req.Force); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	if err := r.tasks.UpdateTaskStage(c.Request.Context(), taskID, req.StageID); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	oldStage, _ := json.Marshal(t.StageID)
	newStage, _ := json.Marshal(req.StageID)
	entry, err := task.NewHistoryEntry(t.ID, &principal.ID, task.ActionStageChanged, "stage changed", oldStage, newStage)
	r.recordHistory(c, entry, err)
	r.notify(c, t.AssigneeID, t.ID, notification.KindStageChanged,
		fmt.Sprintf("Task %q moved to a new stage", t.Title))
	t.StageID = req.StageID
	c.JSON(http.StatusOK, t)
}

// fieldValueView pairs a stored value with the caller's editability verdict.
type fieldValueView struct {
	*task.FieldValue
	Editable bool `json:"editable"`
}

func (r *Routes) listFieldValues(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	if _, ok := r.loadTask(c, taskID); !ok {
		return
	}
	if !r.requireTask(c, taskID, access.LevelRead) {
		return
	}
	principal, _ := auth.GetUser(c)
	values, err := r.tasks.ListFieldValues(c.Request.Context(), taskID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	editable, err := r.resolver.EditableFields(c.Request.Context(), principal, taskID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	views := make([]fieldValueView, 0, len(values))
	for _, v := range values {
		views = append(views, fieldValueView{FieldValue: v, Editable: editable.Contains(v.FieldDefinitionID)})
	}
	c.JSON(http.StatusOK, views)
}

type setFieldValueRequest struct {
	Value json.RawMessage `json:"value" binding:"required"`
}

func (r *Routes) setFieldValue(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	fieldID, ok := infrarouter.ParseID(c, "fieldID")
	if !ok {
		return
	}
	if _, ok := r.loadTask(c, taskID); !ok {
		return
	}
	if !r.requireTask(c, taskID, access.LevelWrite) {
		return
	}
	principal, _ := auth.GetUser(c)
	editable, err := r.resolver.CanEditField(c.Request.Context(), principal, taskID, fieldID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	if !editable {
		infrarouter.RespondProblem(c, &core.Problem{
			Status: http.StatusForbidden,
			Detail: "field is not editable in the task's current stage for your roles",
			Extras: map[string]any{"code": core.ErrCodeAccessDenied},
		})
		return
	}
	var req setFieldValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	id, err := core.NewID()
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	value := &task.FieldValue{ID: id, TaskID: taskID, FieldDefinitionID: fieldID, Value: req.Value}
	if err := r.tasks.UpsertFieldValue(c.Request.Context(), value); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	entry, err := task.NewHistoryEntry(taskID, &principal.ID, task.ActionFieldChanged, "field value changed", nil, req.Value)
	r.recordHistory(c, entry, err)
	c.JSON(http.StatusOK, value)
}

func (r *Routes) editableFields(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	if _, ok := r.loadTask(c, taskID); !ok {
		return
	}
	if !r.requireTask(c, taskID, access.LevelRead) {
		return
	}
	principal, _ := auth.GetUser(c)
	editable, err := r.resolver.EditableFields(c.Request.Context(), principal, taskID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"field_ids": editable.IDs()})
}

type createCommentRequest struct {
	Message   string   `json:"message" binding:"required"`
	ReplyToID *core.ID `json:"reply_to_id"`
}

func (r *Routes) listComments(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	if _, ok := r.loadTask(c, taskID); !ok {
		return
	}
	if !r.requireTask(c, taskID, access.LevelRead) {
		return
	}
	comments, err := r.tasks.ListComments(c.Request.Context(), taskID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (r *Routes) createComment(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	t, ok := r.loadTask(c, taskID)
	if !ok {
		return
	}
	// Commenting requires only read access; the task record itself is untouched.
	if !r.requireTask(c, taskID, access.LevelRead) {
		return
	}
	principal, _ := auth.GetUser(c)
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	comment, err := task.NewComment(taskID, principal.ID, req.Message, req.ReplyToID)
	if err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if err := r.tasks.CreateComment(c.Request.Context(), comment); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	r.notify(c, t.AssigneeID, taskID, notification.KindCommentAdded,
		fmt.Sprintf("New comment on task %q", t.Title))
	c.JSON(http.StatusCreated, comment)
}

type updateCommentRequest struct {
	Message string `json:"message" binding:"required"`
}

func (r *Routes) updateComment(c *gin.Context) {
	commentID, ok := infrarouter.ParseID(c, "commentID")
	if !ok {
		return
	}
	comment, err := r.tasks.GetCommentByID(c.Request.Context(), commentID)
	if err != nil {
		if errors.Is(err, task.ErrCommentNotFound) {
			infrarouter.RespondNotFound(c, "comment not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	principal, _ := auth.GetUser(c)
	if comment.UserID != principal.ID && !principal.IsAdmin {
		infrarouter.RespondProblem(c, &core.Problem{
			Status: http.StatusForbidden,
			Detail: "only the author may edit a comment",
			Extras: map[string]any{"code": core.ErrCodeAccessDenied},
		})
		return
	}
	var req updateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	comment.Message = req.Message
	comment.IsEdited = true
	if err := r.tasks.UpdateComment(c.Request.Context(), comment); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (r *Routes) deleteComment(c *gin.Context) {
	commentID, ok := infrarouter.ParseID(c, "commentID")
	if !ok {
		return
	}
	comment, err := r.tasks.GetCommentByID(c.Request.Context(), commentID)
	if err != nil {
		if errors.Is(err, task.ErrCommentNotFound) {
			infrarouter.RespondNotFound(c, "comment not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	principal, _ := auth.GetUser(c)
	if comment.UserID != principal.ID && !principal.IsAdmin {
		infrarouter.RespondProblem(c, &core.Problem{
			Status: http.StatusForbidden,
			Detail: "only the author may delete a comment",
			Extras: map[string]any{"code": core.ErrCodeAccessDenied},
		})
		return
	}
	if err := r.tasks.DeleteComment(c.Request.Context(), commentID); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Routes) listHistory(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	if _, ok := r.loadTask(c, taskID); !ok {
		return
	}
	if !r.requireTask(c, taskID, access.LevelRead) {
		return
	}
	history, err := r.tasks.ListHistory(c.Request.Context(), taskID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

type createLinkRequest struct {
	TargetTaskID core.ID       `json:"target_task_id" binding:"required"`
	LinkType     task.LinkType `json:"link_type"      binding:"required"`
}

func (r *Routes) listLinks(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	if _, ok := r.loadTask(c, taskID); !ok {
		return
	}
	if !r.requireTask(c, taskID, access.LevelRead) {
		return
	}
	links, err := r.tasks.ListLinks(c.Request.Context(), taskID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

func (r *Routes) createLink(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	if _, ok := r.loadTask(c, taskID); !ok {
		return
	}
	if !r.requireTask(c, taskID, access.LevelWrite) {
		return
	}
	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if !req.LinkType.Valid() {
		infrarouter.RespondBadRequest(c, "invalid link type")
		return
	}
	// Both ends must be readable; a link leaks the target's existence.
	if !r.requireTask(c, req.TargetTaskID, access.LevelRead) {
		return
	}
	principal, _ := auth.GetUser(c)
	id, err := core.NewID()
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	link := &task.Link{
		ID:           id,
		SourceTaskID: taskID,
		TargetTaskID: req.TargetTaskID,
		LinkType:     req.LinkType,
		CreatedBy:    &principal.ID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.tasks.CreateLink(c.Request.Context(), link); err != nil {
		if errors.Is(err, task.ErrLinkExists) {
			infrarouter.RespondProblem(c, &core.Problem{
				Status: http.StatusConflict,
				Detail: err.Error(),
				Extras: map[string]any{"code": core.ErrCodeConflict},
			})
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

func (r *Routes) deleteLink(c *gin.Context) {
	linkID, ok := infrarouter.ParseID(c, "linkID")
	if !ok {
		return
	}
	if err := r.tasks.DeleteLink(c.Request.Context(), linkID); err != nil {
		if errors.Is(err, task.ErrLinkNotFound) {
			infrarouter.RespondNotFound(c, "link not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createAttachmentRequest struct {
	Filename       string `json:"filename"        binding:"required"`
	StoredFilename string `json:"stored_filename" binding:"required"`
	FileSize       int64  `json:"file_size"`
	MimeType       string `json:"mime_type"`
}

func (r *Routes) listAttachments(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	if _, ok := r.loadTask(c, taskID); !ok {
		return
	}
	if !r.requireTask(c, taskID, access.LevelRead) {
		return
	}
	attachments, err := r.tasks.ListAttachments(c.Request.Context(), taskID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, attachments)
}

func (r *Routes) createAttachment(c *gin.Context) {
	taskID, ok := infrarouter.ParseID(c, "taskID")
	if !ok {
		return
	}
	t, ok := r.loadTask(c, taskID)
	if !ok {
		return
	}
	if !r.requireTask(c, taskID, access.LevelWrite) {
		return
	}
	principal, _ := auth.GetUser(c)
	var req createAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	id, err := core.NewID()
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	attachment := &task.Attachment{
		ID:             id,
		TaskID:         taskID,
		Filename:       req.Filename,
		StoredFilename: req.StoredFilename,
		FileSize:       req.FileSize,
		MimeType:       req.MimeType,
		UploadedBy:     &principal.ID,
		UploadedAt:     time.Now().UTC(),
	}
	if err := r.tasks.CreateAttachment(c.Request.Context(), attachment); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	entry, err := task.NewHistoryEntry(taskID, &principal.ID, task.ActionAttachmentAdded, "attachment added", nil, nil)
	r.recordHistory(c, entry, err)
	r.notify(c, t.AssigneeID, taskID, notification.KindAttachmentAdded,
		fmt.Sprintf("New attachment on task %q", t.Title))
	c.JSON(http.StatusCreated, attachment)
}

func (r *Routes) deleteAttachment(c *gin.Context) {
	attachmentID, ok := infrarouter.ParseID(c, "attachmentID")
	if !ok {
		return
	}
	attachment, err := r.tasks.GetAttachmentByID(c.Request.Context(), attachmentID)
	if err != nil {
		if errors.Is(err, task.ErrAttachmentNotFound) {
			infrarouter.RespondNotFound(c, "attachment not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	if !r.requireTask(c, attachment.TaskID, access.LevelWrite) {
		return
	}
	if err := r.tasks.DeleteAttachment(c.Request.Context(), attachmentID); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	principal, _ := auth.GetUser(c)
	entry, err := task.NewHistoryEntry(attachment.TaskID, &principal.ID, task.ActionAttachmentDeleted, "attachment deleted", nil, nil)
	r.recordHistory(c, entry, err)
	c.Status(http.StatusNoContent)
}
