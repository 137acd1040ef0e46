package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lifeline-hq/lifeline/engine/core"
	"github.com/lifeline-hq/lifeline/engine/user"
	"github.com/lifeline-hq/lifeline/pkg/logger"
)

// Middleware resolves the Bearer token of each request into a principal.
type Middleware struct {
	tokens *TokenManager
	users  user.Repository
}

// NewMiddleware creates the authentication middleware.
func NewMiddleware(tokens *TokenManager, users user.Repository) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// Authenticate rejects requests without a valid token or with a blocked or
// deactivated principal, and stores the resolved user in the request context.
func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromContext(c.Request.Context())
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthenticated(c, "missing Authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthenticated(c, "expected Bearer token")
			return
		}
		userID, err := m.tokens.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			log.Debug("token verification failed", "error", err)
			abortUnauthenticated(c, "invalid or expired token")
			return
		}
		principal, err := m.users.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				abortUnauthenticated(c, "unknown principal")
				return
			}
			log.Error("loading principal failed", "error", err, "user_id", userID)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"status": http.StatusInternalServerError,
				"error":  "Internal Server Error",
			})
			return
		}
		if err := principal.CanAuthenticate(); err != nil {
			log.Debug("principal rejected", "user_id", principal.ID, "error", err)
			abortUnauthenticated(c, err.Error())
			return
		}
		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), principal))
		c.Next()
	}
}

// RequireAdmin rejects non-admin principals. Must run after Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetUser(c)
		if !ok {
			abortUnauthenticated(c, "authentication required")
			return
		}
		if !principal.IsAdmin {
			problem := core.NormalizeProblem(&core.Problem{
				Status: http.StatusForbidden,
				Detail: "administrator access required",
				Extras: map[string]any{"code": core.ErrCodeAccessDenied},
			})
			c.AbortWithStatusJSON(problem.Status, core.BuildProblemBody(problem))
			return
		}
		c.Next()
	}
}

// GetUser retrieves the authenticated principal from the gin context.
func GetUser(c *gin.Context) (*user.User, bool) {
	return UserFromContext(c.Request.Context())
}

func abortUnauthenticated(c *gin.Context, detail string) {
	problem := core.NormalizeProblem(&core.Problem{
		Status: http.StatusUnauthorized,
		Detail: detail,
		Extras: map[string]any{"code": core.ErrCodeUnauthenticated},
	})
	c.AbortWithStatusJSON(problem.Status, core.BuildProblemBody(problem))
}
