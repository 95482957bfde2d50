package base

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/junctionhq/junction/pkg/config"
	"github.com/junctionhq/junction/pkg/connector/core"
	cerrors "github.com/junctionhq/junction/pkg/errors"
)

// fakeConnector is a scriptable provider adapter.
type fakeConnector struct {
	connectErrs   []error // consumed one per Connect call; nil entries succeed
	connectCalls  int
	disconnectErr error
	healthErr     error
	healthResult  core.HealthCheckResult
}

func (f *fakeConnector) Connect(ctx context.Context, cfg *config.ConnectorConfig, creds *core.Credentials) error {
	f.connectCalls++
	if len(f.connectErrs) == 0 {
		return nil
	}
	err := f.connectErrs[0]
	f.connectErrs = f.connectErrs[1:]
	return err
}

func (f *fakeConnector) Disconnect(ctx context.Context) error {
	return f.disconnectErr
}

func (f *fakeConnector) HealthCheck(ctx context.Context) (core.HealthCheckResult, error) {
	if f.healthErr != nil {
		return core.HealthCheckResult{}, f.healthErr
	}
	return f.healthResult, nil
}

func newTestConnector(t *testing.T, impl *fakeConnector) *ResilientConnector[*fakeConnector] {
	t.Helper()

	cfg := config.NewConnectorConfig("test-conn", "github")
	cfg.Retry = config.RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterFactor:      0,
	}

	rc, err := New(cfg, impl, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(rc.Close)

	// No real sleeping in tests.
	rc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return rc
}

func testCreds() *core.Credentials {
	return &core.Credentials{AccessToken: "tok", TokenType: "bearer"}
}

func TestConnectTransitionsToConnected(t *testing.T) {
	impl := &fakeConnector{}
	rc := newTestConnector(t, impl)

	require.NoError(t, rc.Connect(context.Background(), testCreds()))
	assert.Equal(t, core.StateConnected, rc.State())
	assert.Equal(t, 1, impl.connectCalls)

	// Already connected: no-op, hook not invoked again.
	require.NoError(t, rc.Connect(context.Background(), testCreds()))
	assert.Equal(t, 1, impl.connectCalls)
}

func TestConnectFailureClassifies(t *testing.T) {
	impl := &fakeConnector{connectErrs: []error{stderrors.New("401 unauthorized")}}
	rc := newTestConnector(t, impl)

	err := rc.Connect(context.Background(), testCreds())
	require.Error(t, err)
	assert.Equal(t, core.StateError, rc.State())

	var cerr *cerrors.ConnectorError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, cerrors.CategoryAuth, cerr.Category)
	assert.False(t, cerr.Retryable)
}

func TestDisconnectClearsState(t *testing.T) {
	impl := &fakeConnector{}
	rc := newTestConnector(t, impl)

	require.NoError(t, rc.Connect(context.Background(), testCreds()))
	require.NotNil(t, rc.Credentials())

	require.NoError(t, rc.Disconnect(context.Background()))
	assert.Equal(t, core.StateDisconnected, rc.State())
	assert.Nil(t, rc.Credentials())

	// Already disconnected: no-op.
	require.NoError(t, rc.Disconnect(context.Background()))
}

func TestDisconnectHookFailureStillCleansUp(t *testing.T) {
	impl := &fakeConnector{disconnectErr: stderrors.New("socket already gone")}
	rc := newTestConnector(t, impl)

	require.NoError(t, rc.Connect(context.Background(), testCreds()))
	err := rc.Disconnect(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.StateDisconnected, rc.State())
	assert.Nil(t, rc.Credentials())
}

func TestHealthCheckNeverReturnsError(t *testing.T) {
	impl := &fakeConnector{healthErr: stderrors.New("probe timeout")}
	rc := newTestConnector(t, impl)

	res := rc.HealthCheck(context.Background())
	assert.False(t, res.Healthy)
	assert.Equal(t, 1, res.ConsecutiveFailures)
	assert.Contains(t, res.Message, "probe timeout")
	assert.False(t, res.CheckedAt.IsZero())
}

func TestHealthCheckConsecutiveFailures(t *testing.T) {
	impl := &fakeConnector{healthResult: core.HealthCheckResult{Healthy: true}}
	rc := newTestConnector(t, impl)

	rc.HealthCheck(context.Background())

	impl.healthErr = stderrors.New("down")
	for want := 1; want <= 3; want++ {
		res := rc.HealthCheck(context.Background())
		assert.Equal(t, want, res.ConsecutiveFailures)
	}

	impl.healthErr = nil
	res := rc.HealthCheck(context.Background())
	assert.True(t, res.Healthy)
	assert.Equal(t, 0, res.ConsecutiveFailures)
}

func TestHealthHistoryBounded(t *testing.T) {
	impl := &fakeConnector{healthResult: core.HealthCheckResult{Healthy: true}}
	rc := newTestConnector(t, impl)

	for i := 0; i < 25; i++ {
		rc.HealthCheck(context.Background())
	}
	assert.Len(t, rc.HealthHistory(), 10)
}

func TestWithRetryEventualSuccess(t *testing.T) {
	rc := newTestConnector(t, &fakeConnector{})
	require.NoError(t, rc.Connect(context.Background(), testCreds()))

	calls := 0
	err := rc.WithRetry(context.Background(), "fetch", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return stderrors.New("network timeout")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls, "fails twice then succeeds: exactly 3 invocations")
}

func TestWithRetryAttemptCeiling(t *testing.T) {
	rc := newTestConnector(t, &fakeConnector{})
	require.NoError(t, rc.Connect(context.Background(), testCreds()))

	calls := 0
	err := rc.WithRetry(context.Background(), "fetch", func(ctx context.Context) error {
		calls++
		return stderrors.New("503 service unavailable")
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls, "maxAttempts=3 means initial try plus 3 retries")
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryNetwork))
}

func TestWithRetryNonRetryableStopsImmediately(t *testing.T) {
	rc := newTestConnector(t, &fakeConnector{})
	require.NoError(t, rc.Connect(context.Background(), testCreds()))

	calls := 0
	err := rc.WithRetry(context.Background(), "fetch", func(ctx context.Context) error {
		calls++
		return stderrors.New("403 forbidden")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryAuth))
}

func TestWithRetryBackoffSchedule(t *testing.T) {
	rc := newTestConnector(t, &fakeConnector{})
	require.NoError(t, rc.Connect(context.Background(), testCreds()))

	var delays []time.Duration
	rc.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_ = rc.WithRetry(context.Background(), "fetch", func(ctx context.Context) error {
		return stderrors.New("connection refused")
	})

	// Three retries, no sleep before the first attempt; jitter is 0.
	require.Len(t, delays, 3)
	assert.Equal(t, time.Millisecond, delays[0])
	assert.Equal(t, 2*time.Millisecond, delays[1])
	assert.Equal(t, 4*time.Millisecond, delays[2])
}

func TestWithRetryRateLimited(t *testing.T) {
	impl := &fakeConnector{}
	cfg := config.NewConnectorConfig("rl-conn", "github")
	cfg.RateLimit = config.RateLimitConfig{MaxRequests: 1, Window: time.Hour}
	cfg.Retry = config.RetryConfig{
		MaxAttempts:       1,
		InitialDelay:      time.Millisecond,
		MaxDelay:          time.Millisecond,
		BackoffMultiplier: 1,
		JitterFactor:      0,
	}
	rc, err := New(cfg, impl, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(rc.Close)
	rc.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	require.NoError(t, rc.Connect(context.Background(), testCreds()))

	calls := 0
	op := func(ctx context.Context) error { calls++; return nil }

	// First call consumes the only token in the window.
	require.NoError(t, rc.WithRetry(context.Background(), "send", op))
	assert.Equal(t, 1, calls)

	// Window exhausted: both the initial try and the single retry are
	// denied a token; the operation never runs.
	err = rc.WithRetry(context.Background(), "send", op)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryRateLimit))
	assert.True(t, cerrors.IsRetryable(err))
	assert.Equal(t, core.StateRateLimited, rc.State())
}

func TestWithRetryResultReturnsValue(t *testing.T) {
	rc := newTestConnector(t, &fakeConnector{})
	require.NoError(t, rc.Connect(context.Background(), testCreds()))

	calls := 0
	got, err := WithRetryResult(context.Background(), rc, "fetch", func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", stderrors.New("network timeout")
		}
		return "payload", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "payload", got)
	assert.Equal(t, 2, calls)
}

func TestReconnectWithoutPriorConnect(t *testing.T) {
	rc := newTestConnector(t, &fakeConnector{})

	err := rc.Reconnect(context.Background())
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryConfig))
	assert.False(t, cerrors.IsRetryable(err))
}

func TestReconnectCeilingDisablesConnector(t *testing.T) {
	failing := make([]error, 10)
	for i := range failing {
		failing[i] = stderrors.New("connection refused")
	}
	// First connect succeeds so config/credentials are stored, every
	// later connect attempt fails.
	impl := &fakeConnector{connectErrs: append([]error{nil}, failing...)}
	rc := newTestConnector(t, impl)

	require.NoError(t, rc.Connect(context.Background(), testCreds()))

	for i := 0; i < 5; i++ {
		err := rc.Reconnect(context.Background())
		require.Error(t, err, "reconnect %d should fail", i+1)
		assert.True(t, cerrors.IsRetryable(err))
	}

	err := rc.Reconnect(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.StateDisabled, rc.State())
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryNetwork))
	assert.False(t, cerrors.IsRetryable(err), "ceiling error must not be retryable")

	// Disabled is terminal for this instance.
	err = rc.Connect(context.Background(), testCreds())
	require.Error(t, err)
}

func TestReconnectSuccessResetsCounter(t *testing.T) {
	impl := &fakeConnector{connectErrs: []error{nil, stderrors.New("connection refused"), nil}}
	rc := newTestConnector(t, impl)

	require.NoError(t, rc.Connect(context.Background(), testCreds()))
	require.Error(t, rc.Reconnect(context.Background()))
	require.NoError(t, rc.Reconnect(context.Background()))
	assert.Equal(t, core.StateConnected, rc.State())

	rc.mu.Lock()
	attempts := rc.reconnectAttempts
	rc.mu.Unlock()
	assert.Equal(t, 0, attempts)
}

func TestRefreshCredentialsReplacesWholesale(t *testing.T) {
	rc := newTestConnector(t, &fakeConnector{})
	require.NoError(t, rc.Connect(context.Background(), testCreds()))

	fresh := &core.Credentials{AccessToken: "new-tok", RefreshToken: "r2"}
	rc.RefreshCredentials(fresh)
	assert.Same(t, fresh, rc.Credentials())
}

func TestRequestLogBounded(t *testing.T) {
	rc := newTestConnector(t, &fakeConnector{})

	for i := 0; i < 250; i++ {
		rc.RecordRequest(core.RequestLogEntry{Method: "GET", URL: "https://api.example.com"})
	}

	log := rc.RequestLog()
	assert.Len(t, log, 100)
	for _, entry := range log {
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, "test-conn", entry.ConnectorID)
	}
}

func TestLifecycleEvents(t *testing.T) {
	rc := newTestConnector(t, &fakeConnector{})

	seen := make(chan EventType, 16)
	for _, et := range []EventType{EventConnected, EventDisconnected, EventCredentialsRefreshed} {
		rc.Events().On(et, func(ev Event) { seen <- ev.Type })
	}

	require.NoError(t, rc.Connect(context.Background(), testCreds()))
	rc.RefreshCredentials(testCreds())
	require.NoError(t, rc.Disconnect(context.Background()))
	rc.Events().Close()

	var got []EventType
	for len(seen) > 0 {
		got = append(got, <-seen)
	}
	assert.Equal(t, []EventType{EventConnected, EventCredentialsRefreshed, EventDisconnected}, got)
}

// fakeCredSource counts fetches and returns scripted credentials.
type fakeCredSource struct {
	creds *core.Credentials
	err   error
	calls int
}

func (f *fakeCredSource) Credentials(ctx context.Context) (*core.Credentials, error) {
	f.calls++
	return f.creds, f.err
}

func TestConnectFetchesCredentialsFromSource(t *testing.T) {
	impl := &fakeConnector{}
	src := &fakeCredSource{creds: &core.Credentials{AccessToken: "sourced"}}

	cfg := config.NewConnectorConfig("test-conn", "github")
	rc, err := New(cfg, impl, WithLogger(zap.NewNop()), WithCredentialSource(src))
	require.NoError(t, err)
	t.Cleanup(rc.Close)
	rc.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	require.NoError(t, rc.Connect(context.Background(), nil))
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, "sourced", rc.Credentials().AccessToken)
}

func TestConnectSkipsSourceWhenCredentialsFresh(t *testing.T) {
	impl := &fakeConnector{}
	src := &fakeCredSource{creds: &core.Credentials{AccessToken: "sourced"}}

	cfg := config.NewConnectorConfig("test-conn", "github")
	rc, err := New(cfg, impl, WithLogger(zap.NewNop()), WithCredentialSource(src))
	require.NoError(t, err)
	t.Cleanup(rc.Close)
	rc.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	fresh := &core.Credentials{AccessToken: "caller", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, rc.Connect(context.Background(), fresh))
	assert.Equal(t, 0, src.calls)
	assert.Same(t, fresh, rc.Credentials())
}

func TestReconnectRefreshesExpiredCredentials(t *testing.T) {
	impl := &fakeConnector{}
	// Tokens from the source are already expired, forcing a fetch on
	// every connection attempt.
	src := &fakeCredSource{creds: &core.Credentials{
		AccessToken: "renewed",
		ExpiresAt:   time.Now().Add(-time.Minute),
	}}

	cfg := config.NewConnectorConfig("test-conn", "github")
	rc, err := New(cfg, impl, WithLogger(zap.NewNop()), WithCredentialSource(src))
	require.NoError(t, err)
	t.Cleanup(rc.Close)
	rc.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	require.NoError(t, rc.Connect(context.Background(), nil))
	require.Equal(t, 1, src.calls)

	require.NoError(t, rc.Reconnect(context.Background()))
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, "renewed", rc.Credentials().AccessToken)
}

func TestConnectSourceFailureIsClassified(t *testing.T) {
	impl := &fakeConnector{}
	src := &fakeCredSource{err: cerrors.New(cerrors.CategoryAuth, "token endpoint rejected client")}

	cfg := config.NewConnectorConfig("test-conn", "github")
	rc, err := New(cfg, impl, WithLogger(zap.NewNop()), WithCredentialSource(src))
	require.NoError(t, err)
	t.Cleanup(rc.Close)
	rc.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	err = rc.Connect(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryAuth))
	assert.Equal(t, core.StateError, rc.State())
	assert.Equal(t, 0, impl.connectCalls)
}
