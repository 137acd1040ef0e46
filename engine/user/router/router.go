package router

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lifeline-hq/lifeline/engine/auth"
	"github.com/lifeline-hq/lifeline/engine/core"
	infrarouter "github.com/lifeline-hq/lifeline/engine/infra/server/router"
	"github.com/lifeline-hq/lifeline/engine/user"
	"github.com/lifeline-hq/lifeline/pkg/logger"
)

// Routes wires the authentication and user management endpoints.
type Routes struct {
	users  user.Repository
	tokens *auth.TokenManager
}

func New(users user.Repository, tokens *auth.TokenManager) *Routes {
	return &Routes{users: users, tokens: tokens}
}

// RegisterPublic mounts the endpoints that do not require a session.
func (r *Routes) RegisterPublic(g *gin.RouterGroup) {
	g.POST("/auth/register", r.register)
	g.POST("/auth/login", r.login)
}

// Register mounts the authenticated endpoints. Admin-only groups carry the
// RequireAdmin middleware.
func (r *Routes) Register(g *gin.RouterGroup) {
	g.GET("/auth/me", r.me)
	g.PATCH("/auth/me", r.updateMe)

	admin := g.Group("", auth.RequireAdmin())
	admin.GET("/users", r.listUsers)
	admin.GET("/users/:userID", r.getUser)
	admin.PATCH("/users/:userID", r.updateUser)
	admin.DELETE("/users/:userID", r.deleteUser)
	admin.POST("/users/:userID/roles/:roleID", r.assignRole)
	admin.DELETE("/users/:userID/roles/:roleID", r.removeRole)

	admin.GET("/roles", r.listRoles)
	admin.POST("/roles", r.createRole)
	admin.DELETE("/roles/:roleID", r.deleteRole)

	admin.GET("/organizations", r.listOrganizations)
	admin.POST("/organizations", r.createOrganization)
	admin.DELETE("/organizations/:orgID", r.deleteOrganization)
	admin.GET("/organizations/:orgID/departments", r.listDepartments)
	admin.POST("/organizations/:orgID/departments", r.createDepartment)
	admin.DELETE("/departments/:deptID", r.deleteDepartment)

	g.GET("/users/:userID/roles", r.listUserRoles)
}

type registerRequest struct {
	Username string    `json:"username" binding:"required"`
	Email    string    `json:"email"    binding:"required,email"`
	FullName string    `json:"full_name"`
	Password string    `json:"password" binding:"required,min=6"`
	UserType user.Type `json:"user_type"`
}

func (r *Routes) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if req.UserType == "" {
		req.UserType = user.TypeUser
	}
	// Self-registration never yields an admin account.
	if req.UserType == user.TypeAdmin {
		req.UserType = user.TypeUser
	}
	u, err := user.NewUser(req.Username, req.Email, req.FullName, req.Password, req.UserType)
	if err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if err := r.users.CreateUser(c.Request.Context(), u); err != nil {
		if errors.Is(err, user.ErrUsernameExists) || errors.Is(err, user.ErrEmailExists) {
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
	token, err := r.tokens.Issue(u.ID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u, "token": token})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (r *Routes) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	log := logger.FromContext(c.Request.Context())
	u, err := r.users.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil || !u.CheckPassword(req.Password) {
		log.Debug("login rejected", "username", req.Username)
		infrarouter.RespondProblem(c, &core.Problem{
			Status: http.StatusUnauthorized,
			Detail: "invalid credentials",
			Extras: map[string]any{"code": core.ErrCodeUnauthenticated},
		})
		return
	}
	if err := u.CanAuthenticate(); err != nil {
		infrarouter.RespondProblem(c, &core.Problem{
			Status: http.StatusForbidden,
			Detail: err.Error(),
			Extras: map[string]any{"code": core.ErrCodeAccessDenied},
		})
		return
	}
	token, err := r.tokens.Issue(u.ID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "token": token})
}

func (r *Routes) me(c *gin.Context) {
	principal, _ := auth.GetUser(c)
	c.JSON(http.StatusOK, principal)
}

type updateMeRequest struct {
	FullName    *string   `json:"full_name"`
	Telegram    *string   `json:"telegram"`
	NotifyTypes *[]string `json:"telegram_notify_types"`
	Phone       *string   `json:"phone"`
	Theme       *string   `json:"theme"`
	Password    *string   `json:"password"`
}

func (r *Routes) updateMe(c *gin.Context) {
	principal, _ := auth.GetUser(c)
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if req.FullName != nil {
		principal.FullName = *req.FullName
	}
	if req.Telegram != nil {
		principal.Telegram = *req.Telegram
	}
	if req.NotifyTypes != nil {
		principal.NotifyTypes = *req.NotifyTypes
	}
	if req.Phone != nil {
		principal.Phone = *req.Phone
	}
	if req.Theme != nil {
		principal.Theme = *req.Theme
	}
	if req.Password != nil {
		if err := principal.SetPassword(*req.Password); err != nil {
			infrarouter.RespondBadRequest(c, err.Error())
			return
		}
	}
	if err := r.users.UpdateUser(c.Request.Context(), principal); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, principal)
}

func (r *Routes) listUsers(c *gin.Context) {
	users, err := r.users.ListUsers(c.Request.Context())
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (r *Routes) getUser(c *gin.Context) {
	id, ok := infrarouter.ParseID(c, "userID")
	if !ok {
		return
	}
	u, err := r.users.GetUserByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			infrarouter.RespondNotFound(c, "user not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type updateUserRequest struct {
	FullName  *string    `json:"full_name"`
	UserType  *user.Type `json:"user_type"`
	IsActive  *bool      `json:"is_active"`
	IsAdmin   *bool      `json:"is_admin"`
	IsBlocked *bool      `json:"is_blocked"`
}

func (r *Routes) updateUser(c *gin.Context) {
	id, ok := infrarouter.ParseID(c, "userID")
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	u, err := r.users.GetUserByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			infrarouter.RespondNotFound(c, "user not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	if req.FullName != nil {
		u.FullName = *req.FullName
	}
	if req.UserType != nil {
		if !req.UserType.Valid() {
			infrarouter.RespondBadRequest(c, "invalid user type")
			return
		}
		u.UserType = *req.UserType
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if req.IsAdmin != nil {
		u.IsAdmin = *req.IsAdmin
	}
	if req.IsBlocked != nil {
		u.IsBlocked = *req.IsBlocked
	}
	if err := r.users.UpdateUser(c.Request.Context(), u); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (r *Routes) deleteUser(c *gin.Context) {
	id, ok := infrarouter.ParseID(c, "userID")
	if !ok {
		return
	}
	if err := r.users.DeleteUser(c.Request.Context(), id); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			infrarouter.RespondNotFound(c, "user not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Routes) listUserRoles(c *gin.Context) {
	id, ok := infrarouter.ParseID(c, "userID")
	if !ok {
		return
	}
	roles, err := r.users.ListRolesForUser(c.Request.Context(), id)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

func (r *Routes) assignRole(c *gin.Context) {
	userID, ok := infrarouter.ParseID(c, "userID")
	if !ok {
		return
	}
	roleID, ok := infrarouter.ParseID(c, "roleID")
	if !ok {
		return
	}
	if err := r.users.AssignRole(c.Request.Context(), userID, roleID); err != nil {
		if errors.Is(err, user.ErrAlreadyAssigned) {
			c.Status(http.StatusNoContent)
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Routes) removeRole(c *gin.Context) {
	userID, ok := infrarouter.ParseID(c, "userID")
	if !ok {
		return
	}
	roleID, ok := infrarouter.ParseID(c, "roleID")
	if !ok {
		return
	}
	if err := r.users.RemoveRole(c.Request.Context(), userID, roleID); err != nil {
		if errors.Is(err, user.ErrRoleNotAssigned) {
			infrarouter.RespondNotFound(c, "role not assigned")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (r *Routes) listRoles(c *gin.Context) {
	roles, err := r.users.ListRoles(c.Request.Context())
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

func (r *Routes) createRole(c *gin.Context) {
	var req createRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	role, err := user.NewRole(req.Name, req.Description)
	if err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	if err := r.users.CreateRole(c.Request.Context(), role); err != nil {
		if errors.Is(err, user.ErrRoleNameExists) {
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
	c.JSON(http.StatusCreated, role)
}

func (r *Routes) deleteRole(c *gin.Context) {
	id, ok := infrarouter.ParseID(c, "roleID")
	if !ok {
		return
	}
	if err := r.users.DeleteRole(c.Request.Context(), id); err != nil {
		if errors.Is(err, user.ErrRoleNotFound) {
			infrarouter.RespondNotFound(c, "role not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createOrgRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (r *Routes) listOrganizations(c *gin.Context) {
	orgs, err := r.users.ListOrganizations(c.Request.Context())
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orgs)
}

func (r *Routes) createOrganization(c *gin.Context) {
	var req createOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	id, err := core.NewID()
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	org := &user.Organization{ID: id, Name: req.Name, Description: req.Description, CreatedAt: time.Now().UTC()}
	if err := r.users.CreateOrganization(c.Request.Context(), org); err != nil {
		if errors.Is(err, user.ErrOrgNameExists) {
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
	c.JSON(http.StatusCreated, org)
}

func (r *Routes) deleteOrganization(c *gin.Context) {
	id, ok := infrarouter.ParseID(c, "orgID")
	if !ok {
		return
	}
	if err := r.users.DeleteOrganization(c.Request.Context(), id); err != nil {
		if errors.Is(err, user.ErrOrgNotFound) {
			infrarouter.RespondNotFound(c, "organization not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createDeptRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (r *Routes) listDepartments(c *gin.Context) {
	orgID, ok := infrarouter.ParseID(c, "orgID")
	if !ok {
		return
	}
	departments, err := r.users.ListDepartments(c.Request.Context(), orgID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, departments)
}

func (r *Routes) createDepartment(c *gin.Context) {
	orgID, ok := infrarouter.ParseID(c, "orgID")
	if !ok {
		return
	}
	var req createDeptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		infrarouter.RespondBadRequest(c, err.Error())
		return
	}
	id, err := core.NewID()
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	dept := &user.Department{
		ID:             id,
		OrganizationID: orgID,
		Name:           req.Name,
		Description:    req.Description,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.users.CreateDepartment(c.Request.Context(), dept); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dept)
}

func (r *Routes) deleteDepartment(c *gin.Context) {
	id, ok := infrarouter.ParseID(c, "deptID")
	if !ok {
		return
	}
	if err := r.users.DeleteDepartment(c.Request.Context(), id); err != nil {
		if errors.Is(err, user.ErrDeptNotFound) {
			infrarouter.RespondNotFound(c, "department not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
