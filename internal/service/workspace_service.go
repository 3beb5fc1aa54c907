package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/types"
)

// ============================================
// Workspace Service
// ============================================

type CreateWorkspaceInput struct {
	Name        string                        `json:"name"`
	Description *string                       `json:"description"`
	Plan        string                        `json:"subscriptionPlan"`
	Settings    *repository.WorkspaceSettings `json:"settings"`
}

type UpdateWorkspaceInput struct {
	Name        *string                       `json:"name"`
	Description *string                       `json:"description"`
	Plan        *string                       `json:"subscriptionPlan"`
	Settings    *repository.WorkspaceSettings `json:"settings"`
}

type InviteInput struct {
	Role  string `json:"role"`
	Email string `json:"email"`
}

type Invite struct {
	Token     string    `json:"token"`
	Link      string    `json:"link"`
	Role      string    `json:"role"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type WorkspaceService interface {
	Create(ctx context.Context, actorID string, in CreateWorkspaceInput) (*repository.Workspace, error)
	Get(ctx context.Context, actorID, workspaceID string) (*repository.Workspace, error)
	ListForUser(ctx context.Context, userID string, page, limit int) ([]*repository.Workspace, int, error)
	Update(ctx context.Context, actorID, workspaceID string, in UpdateWorkspaceInput) (*repository.Workspace, error)
	ListMembers(ctx context.Context, actorID, workspaceID string) ([]*repository.WorkspaceMember, error)
	GenerateInviteLink(ctx context.Context, actorID, workspaceID string, in InviteInput) (*Invite, error)
	JoinByInvite(ctx context.Context, userID, token string) (*repository.WorkspaceMember, error)
	ExpireInvites(ctx context.Context) (int, error)
}

type workspaceService struct {
	*env
}

func newWorkspaceService(e *env) *workspaceService {
	return &workspaceService{env: e}
}

var (
	slugInvalid    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugHyphens    = regexp.MustCompile(`-+`)
)

// Slugify lowercases name and reduces it to [a-z0-9-].
func Slugify(name string) string {
	slug := strings.ToLower(name)
	slug = slugInvalid.ReplaceAllString(slug, "")
	slug = slugWhitespace.ReplaceAllString(strings.TrimSpace(slug), "-")
	slug = slugHyphens.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "workspace"
	}
	return slug
}

// uniqueSlug appends -1, -2, … until the slug is free.
func uniqueSlug(ctx context.Context, repo repository.WorkspaceRepository, name, excludeID string) (string, error) {
	base := Slugify(name)
	slug := base
	for i := 1; ; i++ {
		exists, err := repo.SlugExists(ctx, slug, excludeID)
		if err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if !exists {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(i)
	}
}

func newInviteToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *workspaceService) Create(ctx context.Context, actorID string, in CreateWorkspaceInput) (*repository.Workspace, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	plan := in.Plan
	if plan == "" {
		plan = types.PlanFree
	}
	if !types.IsValidPlan(plan) {
		return nil, invalid("unknown subscription plan " + plan)
	}
	settings := repository.DefaultWorkspaceSettings()
	if in.Settings != nil {
		settings = *in.Settings
	}
	limits := s.cfg.LimitsFor(plan)

	ws := &repository.Workspace{
		Name:         name,
		Description:  in.Description,
		OwnerID:      actorID,
		Plan:         plan,
		MemberLimit:  limits.MaxMembers,
		ProjectLimit: limits.MaxProjects,
		Settings:     settings,
	}

	err := s.repos.WithTx(ctx, func(tx *repository.Repositories) error {
		slug, err := uniqueSlug(ctx, tx.WorkspaceRepo, name, "")
		if err != nil {
			return err
		}
		ws.Slug = slug

		if err := tx.WorkspaceRepo.Create(ctx, ws); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return conflict("workspace slug already taken")
			}
			return fmt.Errorf("create workspace: %w", err)
		}

		joined := s.now()
		admin := &repository.WorkspaceMember{
			WorkspaceID: ws.ID,
			UserID:      &actorID,
			Role:        types.RoleWorkspaceAdmin,
			Status:      types.MemberActive,
			JoinedAt:    &joined,
		}
		if err := tx.WorkspaceRepo.AddMember(ctx, admin); err != nil {
			return fmt.Errorf("add workspace admin: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "workspace created", "workspace_id", ws.ID, "slug", ws.Slug, "owner_id", actorID)
	return ws, nil
}

func (s *workspaceService) Get(ctx context.Context, actorID, workspaceID string) (*repository.Workspace, error) {
	a, err := resolveAccess(ctx, s.repos, actorID, Target{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}
	return a.Workspace, nil
}

func (s *workspaceService) ListForUser(ctx context.Context, userID string, page, limit int) ([]*repository.Workspace, int, error) {
	page, limit = normalizePage(page, limit)
	list, total, err := s.repos.WorkspaceRepo.FindByUserID(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list workspaces: %w", err)
	}
	if list == nil {
		list = []*repository.Workspace{}
	}
	return list, total, nil
}

func (s *workspaceService) Update(ctx context.Context, actorID, workspaceID string, in UpdateWorkspaceInput) (*repository.Workspace, error) {
	a, err := resolveAccess(ctx, s.repos, actorID, Target{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}
	if a.Role() != types.RoleWorkspaceAdmin {
		return nil, &Error{Kind: KindInsufficientRole, Message: "only workspace admins can change settings", Reason: ReasonInsufficientRole}
	}

	ws := a.Workspace
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalid("name cannot be empty")
		}
		if name != ws.Name {
			ws.Name = name
			if ws.Slug, err = uniqueSlug(ctx, s.repos.WorkspaceRepo, name, ws.ID); err != nil {
				return nil, err
			}
		}
	}
	if in.Description != nil {
		ws.Description = in.Description
	}
	if in.Plan != nil {
		if !types.IsValidPlan(*in.Plan) {
			return nil, invalid("unknown subscription plan " + *in.Plan)
		}
		limits := s.cfg.LimitsFor(*in.Plan)
		ws.Plan = *in.Plan
		ws.MemberLimit = limits.MaxMembers
		ws.ProjectLimit = limits.MaxProjects
	}
	if in.Settings != nil {
		ws.Settings = *in.Settings
	}

	if err := s.repos.WorkspaceRepo.Update(ctx, ws); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("workspace slug already taken")
		}
		return nil, fmt.Errorf("update workspace: %w", err)
	}
	return ws, nil
}

func (s *workspaceService) ListMembers(ctx context.Context, actorID, workspaceID string) ([]*repository.WorkspaceMember, error) {
	if _, err := resolveAccess(ctx, s.repos, actorID, Target{WorkspaceID: workspaceID}); err != nil {
		return nil, err
	}
	members, err := s.repos.WorkspaceRepo.ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if members == nil {
		members = []*repository.WorkspaceMember{}
	}
	return members, nil
}

// ============================================
// Invitations
// ============================================

func (s *workspaceService) GenerateInviteLink(ctx context.Context, actorID, workspaceID string, in InviteInput) (*Invite, error) {
	a, err := resolveAccess(ctx, s.repos, actorID, Target{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}
	if a.Role() != types.RoleWorkspaceAdmin && a.Role() != types.RoleProjectManager {
		return nil, &Error{Kind: KindInsufficientRole, Message: "only admins and project managers can invite", Reason: ReasonInsufficientRole}
	}

	role := in.Role
	if !types.IsValidWorkspaceRole(role) {
		role = types.RoleTeamMember
	}

	token, err := newInviteToken()
	if err != nil {
		return nil, fmt.Errorf("generate invite token: %w", err)
	}
	expires := s.now().Add(s.cfg.InviteTTL)

	member := &repository.WorkspaceMember{
		WorkspaceID:   workspaceID,
		Role:          role,
		Status:        types.MemberPending,
		InviteToken:   &token,
		InviteExpires: &expires,
		InvitedBy:     &actorID,
	}
	if err := s.repos.WorkspaceRepo.AddMember(ctx, member); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	invite := &Invite{
		Token:     token,
		Link:      strings.TrimRight(s.cfg.FrontendURL, "/") + "/invite/" + token,
		Role:      role,
		Email:     strings.TrimSpace(strings.ToLower(in.Email)),
		ExpiresAt: expires,
	}

	if s.mailer != nil && invite.Email != "" {
		inviterName := ""
		if inviter, err := s.repos.UserRepo.FindByID(ctx, actorID); err == nil && inviter != nil {
			inviterName = inviter.Name
		}
		go func(wsName string) {
			if err := s.mailer.SendInvite(invite.Email, wsName, inviterName, role, invite.Link); err != nil {
				s.log.Warn("invite mail failed", "workspace_id", workspaceID, "error", err)
			}
		}(a.Workspace.Name)
	}

	s.log.InfoContext(ctx, "invite link generated", "workspace_id", workspaceID, "role", role, "invited_by", actorID)
	return invite, nil
}

func (s *workspaceService) JoinByInvite(ctx context.Context, userID, token string) (*repository.WorkspaceMember, error) {
	var member *repository.WorkspaceMember
	err := s.repos.WithTx(ctx, func(tx *repository.Repositories) error {
		var err error
		member, err = tx.WorkspaceRepo.FindPendingByToken(ctx, token, s.now())
		if err != nil {
			return fmt.Errorf("find invitation: %w", err)
		}
		if member == nil {
			return notFound("invitation")
		}

		existing, err := tx.WorkspaceRepo.FindMember(ctx, member.WorkspaceID, userID)
		if err != nil {
			return fmt.Errorf("find membership: %w", err)
		}
		if existing != nil {
			return conflict("already a member of this workspace")
		}

		ws, err := tx.WorkspaceRepo.FindByID(ctx, member.WorkspaceID)
		if err != nil {
			return fmt.Errorf("find workspace: %w", err)
		}
		if ws == nil || !ws.IsActive {
			return notFound("workspace")
		}
		if ws.MemberLimit >= 0 {
			count, err := tx.WorkspaceRepo.CountActiveMembers(ctx, ws.ID)
			if err != nil {
				return fmt.Errorf("count members: %w", err)
			}
			if count >= ws.MemberLimit {
				return &Error{Kind: KindQuotaExceeded, Message: "workspace member limit reached", Reason: ReasonQuotaExceeded}
			}
		}

		joined := s.now()
		member.UserID = &userID
		member.Status = types.MemberActive
		member.JoinedAt = &joined
		member.InviteToken = nil
		if err := tx.WorkspaceRepo.UpdateMember(ctx, member); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return conflict("already a member of this workspace")
			}
			return fmt.Errorf("activate membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "invite accepted", "workspace_id", member.WorkspaceID, "user_id", userID)
	return member, nil
}

func (s *workspaceService) ExpireInvites(ctx context.Context) (int, error) {
	n, err := s.repos.WorkspaceRepo.ExpireInvites(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expire invites: %w", err)
	}
	return n, nil
}
