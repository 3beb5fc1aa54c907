package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/api/middleware"
	"github.com/Marga-Ghale/ora-progress-api/internal/models"
	"github.com/Marga-Ghale/ora-progress-api/internal/service"
	"github.com/gin-gonic/gin"
)

// ============================================
// Time Tracking Handler
// ============================================

type TimeHandler struct {
	timeService service.TimeTrackingService
}

func NewTimeHandler(timeService service.TimeTrackingService) *TimeHandler {
	return &TimeHandler{timeService: timeService}
}

// StartTimer - POST /time/timer/start
// A second start answers 409 with the timer that is already running.
func (h *TimeHandler) StartTimer(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.StartTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	entry, err := h.timeService.StartTimer(c.Request.Context(), userID, req.TaskID, req.Description)
	if errors.Is(err, service.ErrTimerAlreadyRunning) {
		var se *service.Error
		errors.As(err, &se)
		c.JSON(http.StatusConflict, models.TimerConflictResponse{
			Error:        errorResponse(se).Error,
			RunningEntry: entry,
		})
		return
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// StopTimer - PUT /time/timer/:entryId/stop
func (h *TimeHandler) StopTimer(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	entry, err := h.timeService.StopTimer(c.Request.Context(), userID, c.Param("entryId"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// RunningTimer - GET /time/timer/running
func (h *TimeHandler) RunningTimer(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	running, err := h.timeService.GetRunningTimer(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if running == nil {
		running = &service.RunningTimer{}
	}
	c.JSON(http.StatusOK, running)
}

// ============================================
// Entries
// ============================================

// LogTime - POST /time/entries
func (h *TimeHandler) LogTime(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.LogTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	entry, err := h.timeService.LogTime(c.Request.Context(), userID, service.LogTimeInput{
		TaskID:      req.TaskID,
		Hours:       req.Hours,
		Date:        req.Date,
		Description: req.Description,
		Billable:    req.Billable,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// BulkLogTime - POST /time/entries/bulk
func (h *TimeHandler) BulkLogTime(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.BulkLogTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	inputs := make([]service.LogTimeInput, 0, len(req.Entries))
	for _, e := range req.Entries {
		inputs = append(inputs, service.LogTimeInput{
			TaskID:      e.TaskID,
			Hours:       e.Hours,
			Date:        e.Date,
			Description: e.Description,
			Billable:    e.Billable,
		})
	}

	result, err := h.timeService.BulkLogTime(c.Request.Context(), userID, inputs)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// MySummary - GET /time/my-summary?period=today|week|month
func (h *TimeHandler) MySummary(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var q models.MySummaryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	summary, err := h.timeService.GetMySummary(c.Request.Context(), userID, q.Period)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListEntries - GET /time/entries
func (h *TimeHandler) ListEntries(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var q models.TimeEntryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	from, to, err := parseRange(q.From, q.To)
	if err != nil {
		badRequest(c, err)
		return
	}

	page, err := h.timeService.ListUserEntries(c.Request.Context(), userID, service.EntryQuery{
		From:      from,
		To:        to,
		ProjectID: q.ProjectID,
		TaskID:    q.TaskID,
		Billable:  q.Billable,
		Page:      q.Page,
		Limit:     q.Limit,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// UpdateEntry - PUT /time/entries/:entryId
func (h *TimeHandler) UpdateEntry(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.UpdateTimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	entry, err := h.timeService.UpdateTimeEntry(c.Request.Context(), userID, c.Param("entryId"), service.UpdateTimeEntryInput{
		Hours:       req.Hours,
		Description: req.Description,
		Billable:    req.Billable,
		Date:        req.Date,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// DeleteEntry - DELETE /time/entries/:entryId
func (h *TimeHandler) DeleteEntry(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.timeService.DeleteTimeEntry(c.Request.Context(), userID, c.Param("entryId")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Approve - PUT /time/entries/approve
// Entries are processed one by one; the response lists the outcome of each.
func (h *TimeHandler) Approve(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.ApproveTimeEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	approved := req.Approved == nil || *req.Approved

	results, err := h.timeService.ApproveTimeEntries(c.Request.Context(), userID, req.EntryIDs, approved, req.Comment)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// ============================================
// Reports
// ============================================

// ProjectTime - GET /projects/:id/time
func (h *TimeHandler) ProjectTime(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	from, to, err := parseRange(c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		badRequest(c, err)
		return
	}

	summary, err := h.timeService.GetProjectTime(c.Request.Context(), userID, c.Param("id"), from, to)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Report - GET /workspaces/:id/time-reports
func (h *TimeHandler) Report(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var q models.TimeReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	from, to, err := parseRange(q.From, q.To)
	if err != nil {
		badRequest(c, err)
		return
	}

	report, err := h.timeService.GetTimeReport(c.Request.Context(), userID, c.Param("id"), service.ReportQuery{
		Type:      q.Type,
		From:      from,
		To:        to,
		ProjectID: q.ProjectID,
		UserID:    q.UserID,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func splitIDs(list string) []string {
	var ids []string
	for _, id := range strings.Split(list, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Export - GET /workspaces/:id/time-export?format=csv|json
func (h *TimeHandler) Export(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var q models.TimeExportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	if q.Format == "" {
		q.Format = "csv"
	}
	if q.Format != "csv" && q.Format != "json" {
		badRequest(c, errors.New("format must be csv or json"))
		return
	}
	from, to, err := parseRange(q.From, q.To)
	if err != nil {
		badRequest(c, err)
		return
	}

	export, err := h.timeService.ExportEntries(c.Request.Context(), userID, c.Param("id"), service.ExportQuery{
		From:         from,
		To:           to,
		ProjectIDs:   splitIDs(q.ProjectIDs),
		UserIDs:      splitIDs(q.UserIDs),
		BillableOnly: q.BillableOnly,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	withDescriptions := q.IncludeDescriptions == nil || *q.IncludeDescriptions
	if q.Format == "json" {
		if !withDescriptions {
			for i := range export.Rows {
				export.Rows[i].Description = ""
			}
		}
		c.JSON(http.StatusOK, export)
		return
	}

	filename := fmt.Sprintf("time-export-%s-%s.csv", export.From.Format(time.DateOnly), export.To.Format(time.DateOnly))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	header := []string{"Date", "User", "Project", "Task", "Hours", "Billable", "Approved"}
	if withDescriptions {
		header = append(header, "Description")
	}
	_ = w.Write(header)
	for _, r := range export.Rows {
		record := []string{
			r.Date.Format(time.DateOnly),
			r.UserName,
			r.ProjectName,
			r.TaskTitle,
			strconv.FormatFloat(r.Hours, 'f', 2, 64),
			strconv.FormatBool(r.Billable),
			strconv.FormatBool(r.Approved),
		}
		if withDescriptions {
			record = append(record, r.Description)
		}
		_ = w.Write(record)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = c.Error(err)
	}
}
