package models

import "time"

type CreateProjectRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

type UpdateProjectRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

type AddProjectMemberRequest struct {
	UserID string `json:"userId" binding:"required"`
	Role   string `json:"role"`
}

type ListProjectsQuery struct {
	PageQuery
	IncludeArchived bool `form:"includeArchived"`
}

type ProjectAnalyticsQuery struct {
	From    string `form:"startDate"`
	To      string `form:"endDate"`
	GroupBy string `form:"groupBy"`
}
