package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_PORT", "")
	t.Setenv("PLAN_FREE_MEMBERS", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.InviteTTL)
	assert.Equal(t, PlanLimits{MaxMembers: 5, MaxProjects: 3}, cfg.LimitsFor("free"))
	assert.Equal(t, -1, cfg.LimitsFor("enterprise").MaxProjects)
	assert.False(t, cfg.OTel.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("PLAN_FREE_PROJECTS", "10")
	t.Setenv("DASHBOARD_CACHE_TTL", "30s")
	t.Setenv("SMTP_USE_TLS", "yes")
	t.Setenv("INVITE_TTL_HOURS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 10, cfg.LimitsFor("free").MaxProjects)
	assert.Equal(t, 30*time.Second, cfg.DashboardCacheTTL)
	assert.True(t, cfg.SMTP.UseTLS)
	assert.Equal(t, 7*24*time.Hour, cfg.InviteTTL, "invalid ints fall back to the default")
}

func TestLimitsFor_UnknownPlanFallsBackToFree(t *testing.T) {
	cfg := Load()
	assert.Equal(t, cfg.LimitsFor("free"), cfg.LimitsFor("platinum"))
}
