package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lifeline-hq/lifeline/engine/core"
	"github.com/lifeline-hq/lifeline/pkg/logger"
)

// RespondProblem writes a canonical RFC 7807 error response and aborts the
// request.
func RespondProblem(c *gin.Context, problem *core.Problem) {
	prepared := core.NormalizeProblem(problem)
	logProblem(c, prepared)
	c.AbortWithStatusJSON(prepared.Status, core.BuildProblemBody(prepared))
}

// RespondError translates a domain error into a problem response using its
// code.
func RespondError(c *gin.Context, err error) {
	RespondProblem(c, core.ProblemFromError(err, c.Request.URL.Path))
}

// RespondBadRequest writes a validation problem with the given detail.
func RespondBadRequest(c *gin.Context, detail string) {
	RespondProblem(c, &core.Problem{
		Status: http.StatusBadRequest,
		Detail: detail,
		Extras: map[string]any{"code": core.ErrCodeValidationFailed},
	})
}

// RespondNotFound writes a not-found problem with the given detail.
func RespondNotFound(c *gin.Context, detail string) {
	RespondProblem(c, &core.Problem{
		Status: http.StatusNotFound,
		Detail: detail,
		Extras: map[string]any{"code": core.ErrCodeNotFound},
	})
}

func logProblem(c *gin.Context, problem *core.Problem) {
	log := logger.FromContext(c.Request.Context())
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	fields := []any{
		"status", problem.Status,
		"detail", problem.Detail,
		"route", route,
	}
	if code, ok := problem.Extras["code"]; ok {
		fields = append(fields, "code", code)
	}
	if problem.Status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
		return
	}
	log.Debug("request rejected", fields...)
}

// ParseID binds a path parameter as a core ID, responding with a validation
// problem when it is malformed.
func ParseID(c *gin.Context, name string) (core.ID, bool) {
	id, err := core.ParseID(c.Param(name))
	if err != nil {
		RespondBadRequest(c, "invalid "+name)
		return "", false
	}
	return id, true
}
