package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/junctionhq/junction/pkg/errors"
)

func TestDoJSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "hello", in["message"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "created"})
	}))
	defer srv.Close()

	// httptest servers speak HTTP/1.1 only.
	cfg := DefaultHTTPConfig()
	cfg.EnableHTTP2 = false
	client, err := NewHTTPClient(cfg)
	require.NoError(t, err)
	defer client.Close()

	var out map[string]string
	err = client.DoJSON(context.Background(), http.MethodPost, srv.URL,
		map[string]string{"Authorization": "Bearer tok"},
		map[string]string{"message": "hello"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "created", out["status"])
	assert.Equal(t, int64(1), client.Stats().TotalRequests)
	assert.Equal(t, int64(0), client.Stats().FailedRequests)
}

func TestDoJSONClassifiesHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.EnableHTTP2 = false
	client, err := NewHTTPClient(cfg)
	require.NoError(t, err)
	defer client.Close()

	err = client.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)

	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryRateLimit))
	assert.True(t, cerrors.IsRetryable(err))

	var cerr *cerrors.ConnectorError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, http.StatusTooManyRequests, cerr.StatusCode)
	assert.Equal(t, int64(1), client.Stats().FailedRequests)
}

func TestDoClassifiesTransportFailure(t *testing.T) {
	cfg := DefaultHTTPConfig()
	cfg.EnableHTTP2 = false
	client, err := NewHTTPClient(cfg)
	require.NoError(t, err)
	defer client.Close()

	// Port 1 is never listening.
	err = client.DoJSON(context.Background(), http.MethodGet, "http://127.0.0.1:1/", nil, nil, nil)

	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryNetwork))
	assert.True(t, cerrors.IsRetryable(err))
}

func TestDoSetsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.EnableHTTP2 = false
	cfg.UserAgent = "junction-test/9.9"
	client, err := NewHTTPClient(cfg)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil))
	assert.Equal(t, "junction-test/9.9", gotUA)
}
