package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lifeline-hq/lifeline/engine/auth"
	infrarouter "github.com/lifeline-hq/lifeline/engine/infra/server/router"
	"github.com/lifeline-hq/lifeline/engine/notification"
)

// Routes wires the in-app notification endpoints. Users only ever see their
// own notifications.
type Routes struct {
	notifications notification.Repository
}

func New(notifications notification.Repository) *Routes {
	return &Routes{notifications: notifications}
}

func (r *Routes) Register(g *gin.RouterGroup) {
	g.GET("/notifications", r.list)
	g.GET("/notifications/unread-count", r.unreadCount)
	g.POST("/notifications/:notificationID/read", r.markRead)
	g.POST("/notifications/read-all", r.markAllRead)
}

func (r *Routes) list(c *gin.Context) {
	principal, _ := auth.GetUser(c)
	unreadOnly := c.Query("unread") == "true"
	notifications, err := r.notifications.ListForUser(c.Request.Context(), principal.ID, unreadOnly)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	if notifications == nil {
		notifications = []*notification.Notification{}
	}
	c.JSON(http.StatusOK, notifications)
}

func (r *Routes) unreadCount(c *gin.Context) {
	principal, _ := auth.GetUser(c)
	count, err := r.notifications.CountUnread(c.Request.Context(), principal.ID)
	if err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (r *Routes) markRead(c *gin.Context) {
	principal, _ := auth.GetUser(c)
	id, ok := infrarouter.ParseID(c, "notificationID")
	if !ok {
		return
	}
	if err := r.notifications.MarkRead(c.Request.Context(), id, principal.ID); err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			infrarouter.RespondNotFound(c, "notification not found")
			return
		}
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Routes) markAllRead(c *gin.Context) {
	principal, _ := auth.GetUser(c)
	if err := r.notifications.MarkAllRead(c.Request.Context(), principal.ID); err != nil {
		infrarouter.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
