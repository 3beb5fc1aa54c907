package models

import "time"

// ============================================
// TIME TRACKING REQUESTS
// ============================================

type StartTimerRequest struct {
	TaskID      string `json:"taskId" binding:"required"`
	Description string `json:"description"`
}

type LogTimeRequest struct {
	TaskID      string     `json:"taskId" binding:"required"`
	Hours       float64    `json:"hours" binding:"required"`
	Date        *time.Time `json:"date"`
	Description string     `json:"description"`
	Billable    bool       `json:"billable"`
}

type BulkLogTimeRequest struct {
	Entries []LogTimeRequest `json:"entries" binding:"required,min=1,dive"`
}

type UpdateTimeEntryRequest struct {
	Hours       *float64   `json:"hours"`
	Description *string    `json:"description"`
	Billable    *bool      `json:"billable"`
	Date        *time.Time `json:"date"`
}

type ApproveTimeEntriesRequest struct {
	EntryIDs []string `json:"entryIds" binding:"required,min=1"`
	Approved *bool    `json:"approved"`
	Comment  string   `json:"comment"`
}

// TimeEntryQuery is bound from the query string; dates are YYYY-MM-DD.
type TimeEntryQuery struct {
	PageQuery
	From      string `form:"startDate"`
	To        string `form:"endDate"`
	ProjectID string `form:"projectId"`
	TaskID    string `form:"taskId"`
	Billable  *bool  `form:"billable"`
}

type TimeReportQuery struct {
	Type      string `form:"type"`
	From      string `form:"startDate"`
	To        string `form:"endDate"`
	ProjectID string `form:"projectId"`
	UserID    string `form:"userId"`
}

// TimeExportQuery selects entries for an export. ProjectIDs and UserIDs are
// comma-separated lists.
type TimeExportQuery struct {
	From                string `form:"startDate"`
	To                  string `form:"endDate"`
	Format              string `form:"format"`
	ProjectIDs          string `form:"projectIds"`
	UserIDs             string `form:"userIds"`
	BillableOnly        bool   `form:"billableOnly"`
	IncludeDescriptions *bool  `form:"includeDescriptions"`
}

type MySummaryQuery struct {
	Period string `form:"period"`
}

type TimerConflictResponse struct {
	Error        ErrorBody   `json:"error"`
	RunningEntry interface{} `json:"runningEntry"`
}
