package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/api/middleware"
	"github.com/Marga-Ghale/ora-progress-api/internal/models"
	"github.com/Marga-Ghale/ora-progress-api/internal/service"
	"github.com/gin-gonic/gin"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Workspace *WorkspaceHandler
	Project   *ProjectHandler
	Task      *TaskHandler
	Time      *TimeHandler
	Progress  *ProgressHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Workspace: &WorkspaceHandler{workspaceService: services.Workspace},
		Project:   &ProjectHandler{projectService: services.Project},
		Task:      &TaskHandler{taskService: services.Task, progressService: services.Progress},
		Time:      &TimeHandler{timeService: services.Time},
		Progress:  &ProgressHandler{dashboardService: services.Dashboard},
	}
}

// ============================================
// Errors
// ============================================

var statusByKind = map[string]int{
	service.KindNotFound:            http.StatusNotFound,
	service.KindAccessDenied:        http.StatusForbidden,
	service.KindInsufficientRole:    http.StatusForbidden,
	service.KindTimerAlreadyRunning: http.StatusConflict,
	service.KindFutureDate:          http.StatusBadRequest,
	service.KindNotEditable:         http.StatusConflict,
	service.KindValidation:          http.StatusBadRequest,
	service.KindQuotaExceeded:       http.StatusPaymentRequired,
	service.KindConflict:            http.StatusConflict,
}

// handleServiceError writes the response for any error a service returns.
// Errors that are not *service.Error are logged and reported as 500.
func handleServiceError(c *gin.Context, err error) {
	var se *service.Error
	if errors.As(err, &se) {
		status, ok := statusByKind[se.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		c.JSON(status, errorResponse(se))
		return
	}

	slog.ErrorContext(c.Request.Context(), "request failed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"user_id", middleware.GetUserID(c),
		"error", err,
	)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error: models.ErrorBody{Code: "INTERNAL_ERROR", Message: "Internal server error"},
	})
}

func errorResponse(se *service.Error) models.ErrorResponse {
	return models.ErrorResponse{Error: models.ErrorBody{Code: se.Kind, Message: se.Message, Reason: se.Reason}}
}

// badRequest reports a binding failure with the same body shape as service errors.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: models.ErrorBody{Code: service.KindValidation, Message: err.Error()},
	})
}

// ============================================
// Helpers
// ============================================

func paginated(items interface{}, total int, q models.PageQuery) models.PaginatedResponse {
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return models.PaginatedResponse{Items: items, Total: total, Page: page, Limit: limit}
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Empty input yields nil.
func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, errors.New("invalid date " + value + ", expected YYYY-MM-DD")
	}
	return &t, nil
}

// parseRange parses an inclusive [from, to] day range. The end is moved to the
// last instant of its day.
func parseRange(from, to string) (*time.Time, *time.Time, error) {
	start, err := parseDate(from)
	if err != nil {
		return nil, nil, err
	}
	end, err := parseDate(to)
	if err != nil {
		return nil, nil, err
	}
	if end != nil && len(to) == len(time.DateOnly) {
		e := end.Add(24*time.Hour - time.Nanosecond)
		end = &e
	}
	return start, end, nil
}
