package core

import "net/http"

// Problem captures the information returned in an RFC 7807 error response.
type Problem struct {
	Type     string
	Title    string
	Status   int
	Detail   string
	Instance string
	Extras   map[string]any
}

// StatusForCode maps a domain error code onto an HTTP status. Not-found takes
// precedence over denial at the handler level; this mapping only translates
// whichever condition the handler decided to surface.
func StatusForCode(code string) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAccessDenied:
		return http.StatusForbidden
	case ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case ErrCodeTransitionDenied, ErrCodeConflict, ErrCodeAlreadyBootstrapped:
		return http.StatusConflict
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ProblemFromError builds the canonical problem document for a failed request.
func ProblemFromError(err error, instance string) *Problem {
	code := CodeOf(err)
	problem := &Problem{
		Status:   StatusForCode(code),
		Detail:   err.Error(),
		Instance: instance,
		Extras:   map[string]any{"code": code},
	}
	for k, v := range ExtrasOf(err) {
		if k != "code" {
			problem.Extras[k] = v
		}
	}
	return NormalizeProblem(problem)
}

// NormalizeProblem ensures the provided problem includes canonical defaults.
func NormalizeProblem(problem *Problem) *Problem {
	if problem == nil {
		problem = &Problem{}
	}
	if problem.Status == 0 {
		problem.Status = http.StatusInternalServerError
	}
	if problem.Title == "" {
		problem.Title = http.StatusText(problem.Status)
	}
	if problem.Type == "" {
		problem.Type = "about:blank"
	}
	return problem
}

// BuildProblemBody assembles the serialized representation of the problem.
func BuildProblemBody(problem *Problem) map[string]any {
	body := map[string]any{
		"status": problem.Status,
		"error":  problem.Title,
	}
	if problem.Detail != "" {
		body["details"] = problem.Detail
	}
	if code, ok := problem.Extras["code"]; ok {
		body["code"] = code
	}
	if problem.Type != "" {
		body["type"] = problem.Type
	}
	if problem.Instance != "" {
		body["instance"] = problem.Instance
	}
	for key, value := range problem.Extras {
		if !isReservedProblemKey(key) {
			body[key] = value
		}
	}
	return body
}

func isReservedProblemKey(key string) bool {
	switch key {
	case "status", "error", "details", "code", "type", "instance":
		return true
	default:
		return false
	}
}
