package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/junctionhq/junction/pkg/errors"
)

func TestStaticSource(t *testing.T) {
	src := &StaticSource{Token: "pat-123"}

	creds, err := src.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pat-123", creds.AccessToken)
	assert.Equal(t, "Bearer", creds.TokenType)
	assert.False(t, creds.Expired(time.Now()))
}

func TestStaticSourceRequiresToken(t *testing.T) {
	src := &StaticSource{}

	_, err := src.Credentials(context.Background())
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryConfig))
}

func TestClientCredentialsSourceFetchesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-abc","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	src, err := NewClientCredentialsSource(context.Background(), "id", "secret", srv.URL, []string{"read", "write"})
	require.NoError(t, err)

	creds, err := src.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", creds.AccessToken)
	assert.Equal(t, "Bearer", creds.TokenType)
	assert.Equal(t, "read write", creds.Scope)
	assert.False(t, creds.Expired(time.Now()))
	assert.True(t, creds.Expired(time.Now().Add(2*time.Hour)))
}

func TestClientCredentialsSourceEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad client", http.StatusUnauthorized)
	}))
	defer srv.Close()

	src, err := NewClientCredentialsSource(context.Background(), "id", "wrong", srv.URL, nil)
	require.NoError(t, err)

	_, err = src.Credentials(context.Background())
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryAuth))
	assert.False(t, cerrors.IsRetryable(err))
}

func TestClientCredentialsSourceValidation(t *testing.T) {
	_, err := NewClientCredentialsSource(context.Background(), "", "secret", "https://example.com/token", nil)
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryConfig))
}
