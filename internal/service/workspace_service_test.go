package service

import (
	"testing"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"My Cool Workspace":     "my-cool-workspace",
		"  Acme   Corp!!  ":     "acme-corp",
		"R&D -- Lab":            "rd-lab",
		"---":                   "workspace",
		"Team 42":               "team-42",
		"already-slugged--name": "already-slugged-name",
		"Ünicode Café":          "nicode-caf",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestCreateWorkspace_AdminMembershipAndUniqueSlug(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")

	first := f.workspace(owner, "Acme Corp")
	second := f.workspace(owner, "Acme Corp")
	third := f.workspace(owner, "acme  corp")

	assert.Equal(t, "acme-corp", first.Slug)
	assert.Equal(t, "acme-corp-1", second.Slug)
	assert.Equal(t, "acme-corp-2", third.Slug)
	assert.Equal(t, types.PlanFree, first.Plan)
	assert.Equal(t, 5, first.MemberLimit)
	assert.True(t, first.Settings.RequireApproval)

	members, err := f.svc.Workspace.ListMembers(f.ctx, owner, first.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, types.RoleWorkspaceAdmin, members[0].Role)
	assert.Equal(t, types.MemberActive, members[0].Status)

	list, total, err := f.svc.Workspace.ListForUser(f.ctx, owner, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, list, 2)
}

func TestCreateWorkspace_Validation(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")

	_, err := f.svc.Workspace.Create(f.ctx, owner, CreateWorkspaceInput{Name: "  "})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Workspace.Create(f.ctx, owner, CreateWorkspaceInput{Name: "X", Plan: "gold"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateWorkspace(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")
	pm := f.user("pm")
	ws := f.workspace(owner, "Acme")
	f.join(ws.ID, pm, types.RoleProjectManager)

	_, err := f.svc.Workspace.Update(f.ctx, pm, ws.ID, UpdateWorkspaceInput{Name: strPtr("Hijack")})
	assert.ErrorIs(t, err, ErrInsufficientRole)

	updated, err := f.svc.Workspace.Update(f.ctx, owner, ws.ID, UpdateWorkspaceInput{
		Name: strPtr("Acme Labs"),
		Plan: strPtr(types.PlanPro),
	})
	require.NoError(t, err)
	assert.Equal(t, "acme-labs", updated.Slug)
	assert.Equal(t, 50, updated.MemberLimit)
	assert.Equal(t, 25, updated.ProjectLimit)

	got, err := f.svc.Workspace.Get(f.ctx, pm, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Labs", got.Name)
}

func TestInviteFlow(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")
	newbie := f.user("newbie")
	ws := f.workspace(owner, "Acme")

	invite, err := f.svc.Workspace.GenerateInviteLink(f.ctx, owner, ws.ID, InviteInput{Role: "superuser", Email: "Newbie@Example.com"})
	require.NoError(t, err)
	assert.Len(t, invite.Token, 64)
	assert.Equal(t, types.RoleTeamMember, invite.Role, "unknown roles fall back to team_member")
	assert.Equal(t, f.cfg.FrontendURL+"/invite/"+invite.Token, invite.Link)
	assert.True(t, invite.ExpiresAt.Equal(f.clock.Now().Add(7*24*time.Hour)))

	assert.Eventually(t, func() bool {
		f.mailer.mu.Lock()
		defer f.mailer.mu.Unlock()
		return len(f.mailer.invites) == 1
	}, time.Second, 10*time.Millisecond)

	m, err := f.svc.Workspace.JoinByInvite(f.ctx, newbie, invite.Token)
	require.NoError(t, err)
	assert.Equal(t, types.MemberActive, m.Status)
	require.NotNil(t, m.UserID)
	assert.Equal(t, newbie, *m.UserID)
	assert.Nil(t, m.InviteToken)

	_, err = f.svc.Workspace.JoinByInvite(f.ctx, newbie, invite.Token)
	assert.ErrorIs(t, err, ErrNotFound, "tokens are single use")

	second, err := f.svc.Workspace.GenerateInviteLink(f.ctx, owner, ws.ID, InviteInput{})
	require.NoError(t, err)
	_, err = f.svc.Workspace.JoinByInvite(f.ctx, newbie, second.Token)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestInvite_TeamMemberCannotInvite(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")
	dev := f.user("dev")
	ws := f.workspace(owner, "Acme")
	f.join(ws.ID, dev, types.RoleTeamMember)

	_, err := f.svc.Workspace.GenerateInviteLink(f.ctx, dev, ws.ID, InviteInput{})
	assert.ErrorIs(t, err, ErrInsufficientRole)
}

func TestInvite_ExpiredAndSwept(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")
	late := f.user("late")
	ws := f.workspace(owner, "Acme")

	invite, err := f.svc.Workspace.GenerateInviteLink(f.ctx, owner, ws.ID, InviteInput{})
	require.NoError(t, err)

	f.clock.Advance(8 * 24 * time.Hour)
	_, err = f.svc.Workspace.JoinByInvite(f.ctx, late, invite.Token)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := f.svc.Workspace.ExpireInvites(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInvite_MemberQuota(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner")
	ws := f.workspace(owner, "Small")
	for i := 1; i < ws.MemberLimit; i++ {
		f.join(ws.ID, f.user("member"+string(rune('a'+i))), types.RoleTeamMember)
	}

	invite, err := f.svc.Workspace.GenerateInviteLink(f.ctx, owner, ws.ID, InviteInput{})
	require.NoError(t, err)

	_, err = f.svc.Workspace.JoinByInvite(f.ctx, f.user("onetoomany"), invite.Token)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}
