package models

import (
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/types"
)

// Request models
type CreateWorkspaceRequest struct {
	Name             string                        `json:"name" binding:"required"`
	Description      *string                       `json:"description"`
	SubscriptionPlan string                        `json:"subscriptionPlan" binding:"omitempty,oneof=free pro enterprise"`
	Settings         *repository.WorkspaceSettings `json:"settings"`
}

type UpdateWorkspaceRequest struct {
	Name             *string                       `json:"name"`
	Description      *string                       `json:"description"`
	SubscriptionPlan *string                       `json:"subscriptionPlan" binding:"omitempty,oneof=free pro enterprise"`
	Settings         *repository.WorkspaceSettings `json:"settings"`
}

type InviteRequest struct {
	Role  string `json:"role"`
	Email string `json:"email" binding:"omitempty,email"`
}

// Response models
type WorkspaceMemberResponse struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspaceId"`
	UserID      *string    `json:"userId"`
	Role        string     `json:"role"`
	Permissions []string   `json:"permissions"`
	Status      string     `json:"status"`
	InvitedBy   *string    `json:"invitedBy,omitempty"`
	JoinedAt    *time.Time `json:"joinedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func ToWorkspaceMemberResponse(m *repository.WorkspaceMember) WorkspaceMemberResponse {
	return WorkspaceMemberResponse{
		ID:          m.ID,
		WorkspaceID: m.WorkspaceID,
		UserID:      m.UserID,
		Role:        m.Role,
		Permissions: types.PermissionsForRole(m.Role),
		Status:      m.Status,
		InvitedBy:   m.InvitedBy,
		JoinedAt:    m.JoinedAt,
		CreatedAt:   m.CreatedAt,
	}
}
