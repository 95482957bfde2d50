package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junctionhq/junction/pkg/config"
	"github.com/junctionhq/junction/pkg/connector/core"
	"github.com/junctionhq/junction/pkg/connector/registry"
	cerrors "github.com/junctionhq/junction/pkg/errors"
)

func newTestServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/issues":
			if r.Header.Get("Authorization") != "Bearer tok" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"id": "ISSUE-1"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func newTestConnector(t *testing.T, baseURL string) *Connector {
	t.Helper()
	cfg := config.NewConnectorConfig("api-test", "httpapi")
	cfg.Settings[SettingBaseURL] = baseURL

	conn, err := New(cfg)
	require.NoError(t, err)
	return conn.(*Connector)
}

func TestRegisteredInDefaultRegistry(t *testing.T) {
	desc, ok := registry.Default().Describe("httpapi")
	require.True(t, ok)
	assert.Equal(t, []string{SettingBaseURL}, desc.RequiredConfig)
}

func TestNewRequiresBaseURL(t *testing.T) {
	cfg := config.NewConnectorConfig("api-test", "httpapi")

	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryConfig))
}

func TestConnectProbesHealthEndpoint(t *testing.T) {
	srv, paths := newTestServer(t)
	conn := newTestConnector(t, srv.URL)

	cfg := config.NewConnectorConfig("api-test", "httpapi")
	err := conn.Connect(context.Background(), cfg, &core.Credentials{AccessToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/health"}, *paths)
}

func TestDoSendsAuthorizedRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := newTestConnector(t, srv.URL)

	cfg := config.NewConnectorConfig("api-test", "httpapi")
	require.NoError(t, conn.Connect(context.Background(), cfg, &core.Credentials{AccessToken: "tok"}))

	var out map[string]string
	require.NoError(t, conn.Do(context.Background(), http.MethodGet, "issues", nil, &out))
	assert.Equal(t, "ISSUE-1", out["id"])
}

func TestDoWithoutCredentialsIsRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := newTestConnector(t, srv.URL)

	err := conn.Do(context.Background(), http.MethodGet, "/issues", nil, nil)
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryAuth))
}

func TestHealthCheckReportsFailure(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := newTestConnector(t, srv.URL)
	conn.healthPath = "/missing"

	result, err := conn.HealthCheck(context.Background())
	require.Error(t, err)
	assert.False(t, result.Healthy)
	assert.NotEmpty(t, result.Message)
	assert.False(t, result.CheckedAt.IsZero())
}

func TestDisconnectDropsCredentials(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := newTestConnector(t, srv.URL)

	cfg := config.NewConnectorConfig("api-test", "httpapi")
	require.NoError(t, conn.Connect(context.Background(), cfg, &core.Credentials{AccessToken: "tok"}))
	require.NoError(t, conn.Disconnect(context.Background()))
	assert.Nil(t, conn.authHeaders())
}
