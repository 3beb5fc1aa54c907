package telemetry

import (
	"context"
	"testing"

	"github.com/Marga-Ghale/ora-progress-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	tel, err := Setup(context.Background(), config.OTelConfig{ServiceName: "x"})
	require.NoError(t, err)
	assert.Nil(t, tel)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders("authorization=Bearer abc, x-team = core,broken")
	assert.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-team":        "core",
	}, h)
	assert.Empty(t, ParseHeaders(""))
}
