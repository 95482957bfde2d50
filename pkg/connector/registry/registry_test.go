package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junctionhq/junction/pkg/config"
	"github.com/junctionhq/junction/pkg/connector/core"
	cerrors "github.com/junctionhq/junction/pkg/errors"
)

type stubConnector struct{}

func (stubConnector) Connect(context.Context, *config.ConnectorConfig, *core.Credentials) error {
	return nil
}
func (stubConnector) Disconnect(context.Context) error { return nil }
func (stubConnector) HealthCheck(context.Context) (core.HealthCheckResult, error) {
	return core.HealthCheckResult{Healthy: true}, nil
}

func githubDescriptor() core.Descriptor {
	return core.Descriptor{
		ID:             "github",
		Name:           "GitHub",
		Capabilities:   []string{"issues", "pull_requests"},
		RequiredConfig: []string{"owner", "repo"},
	}
}

func stubFactory(cfg *config.ConnectorConfig) (core.Connector, error) {
	return stubConnector{}, nil
}

func TestRegisterAndCreate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(githubDescriptor(), stubFactory))

	cfg := config.NewConnectorConfig("gh-1", "github")
	cfg.Settings["owner"] = "junctionhq"
	cfg.Settings["repo"] = "junction"

	conn, err := r.Create(cfg)
	require.NoError(t, err)
	assert.NotNil(t, conn)
}

func TestRegisterDuplicateRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(githubDescriptor(), stubFactory))

	err := r.Register(githubDescriptor(), stubFactory)
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryConfig))
}

func TestCreateUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(config.NewConnectorConfig("x", "gitlab"))
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryConfig))
}

func TestCreateMissingRequiredConfig(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(githubDescriptor(), stubFactory))

	cfg := config.NewConnectorConfig("gh-1", "github")
	cfg.Settings["owner"] = "junctionhq" // repo missing

	_, err := r.Create(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repo")
}

func TestDescribeAndList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(githubDescriptor(), stubFactory))

	desc, ok := r.Describe("github")
	require.True(t, ok)
	assert.Equal(t, "GitHub", desc.Name)

	_, ok = r.Describe("jira")
	assert.False(t, ok)

	assert.Len(t, r.List(), 1)
}
