package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillcast/skillcast/internal/server/auth"
	"github.com/skillcast/skillcast/internal/server/config"
	"github.com/skillcast/skillcast/pkg/api"
)

func testConfig() config.Config {
	return config.Config{
		HTTPAddr:            "127.0.0.1:0",
		AccessSecret:        "test-access-secret",
		RefreshSecret:       "test-refresh-secret",
		DBDriver:            config.DBDriverSQLite,
		DBDSN:               ":memory:",
		LedgerDriver:        config.LedgerDriverSQL,
		LogLevel:            "info",
		AccessTokenTTL:      15 * time.Minute,
		RefreshTokenTTL:     7 * 24 * time.Hour,
		LedgerSweepInterval: time.Hour,
		AuthRateLimit:       100,
		AuthRateWindow:      time.Minute,
		ShutdownTimeout:     time.Second,
		BcryptCost:          10,
	}
}

func setupTestServer(t *testing.T, cfg config.Config) (*Server, *httptest.Server) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stores, err := OpenStores(ctx, cfg, logger)
	require.NoError(t, err)

	srv, err := New(cfg, logger, "test", stores)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return srv, ts
}

func postJSON(t *testing.T, url, bearer string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func runSessionFlow(t *testing.T, baseURL string) {
	t.Helper()

	resp := postJSON(t, baseURL+"/api/auth/register", "", api.RegisterRequest{Username: "alice", Email: "alice@x.com", Password: "Secret123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, baseURL+"/api/auth/login", "", api.LoginRequest{Email: "alice@x.com", Password: "Secret123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login api.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))

	resp = postJSON(t, baseURL+"/api/auth/refresh", "", api.TokenRequest{Token: login.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, baseURL+"/api/auth/logout", login.AccessToken, api.TokenRequest{Token: login.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, baseURL+"/api/auth/refresh", "", api.TokenRequest{Token: login.RefreshToken})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_SessionFlow(t *testing.T) {
	_, ts := setupTestServer(t, testConfig())
	runSessionFlow(t, ts.URL)
}

func TestServer_BoltLedger(t *testing.T) {
	cfg := testConfig()
	cfg.LedgerDriver = config.LedgerDriverBolt
	cfg.BoltPath = filepath.Join(t.TempDir(), "ledger.db")

	_, ts := setupTestServer(t, cfg)
	runSessionFlow(t, ts.URL)
}

func TestServer_RedisLedger(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.LedgerDriver = config.LedgerDriverRedis
	cfg.RedisAddr = mr.Addr()

	_, ts := setupTestServer(t, cfg)
	runSessionFlow(t, ts.URL)
}

func TestOpenStores_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.LedgerDriver = config.LedgerDriverRedis
	cfg.RedisAddr = addr

	_, err := OpenStores(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestOpenStores_UnknownDrivers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := testConfig()
	cfg.DBDriver = "mysql"
	_, err := OpenStores(context.Background(), cfg, logger)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.LedgerDriver = "memcached"
	_, err = OpenStores(context.Background(), cfg, logger)
	assert.Error(t, err)
}

func TestNew_RequiresSecrets(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()

	stores, err := OpenStores(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer func() { _ = stores.Close() }()

	cfg.AccessSecret = ""
	_, err = New(cfg, logger, "test", stores)
	assert.Error(t, err)
}

func TestServer_HealthAndNotFound(t *testing.T) {
	_, ts := setupTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "active", health.Status)
	assert.Equal(t, "test", health.Version)

	resp, err = http.Get(ts.URL + "/api/unknown")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var notFound api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&notFound))
	assert.Equal(t, "Route not found", notFound.Error)
}

func TestServer_GateOnProtectedRoutes(t *testing.T) {
	_, ts := setupTestServer(t, testConfig())

	resp := postJSON(t, ts.URL+"/api/auth/logout", "", api.TokenRequest{Token: "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/auth/change-password", "not-a-jwt", api.ChangePasswordRequest{})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_RateLimitsAuthEndpoints(t *testing.T) {
	cfg := testConfig()
	cfg.AuthRateLimit = 2

	_, ts := setupTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		resp := postJSON(t, ts.URL+"/api/auth/login", "", api.LoginRequest{Email: "ghost@x.com", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := postJSON(t, ts.URL+"/api/auth/login", "", api.LoginRequest{Email: "ghost@x.com", Password: "nope"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Health не ограничивается
	health, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = health.Body.Close() }()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestServer_Sweep(t *testing.T) {
	srv, _ := setupTestServer(t, testConfig())
	ctx := context.Background()

	user, err := srv.service.Register(ctx, auth.NewUser{Username: "bob", Email: "bob@x.com", Password: "Secret123"})
	require.NoError(t, err)

	session, err := srv.service.Login(ctx, "bob@x.com", "Secret123")
	require.NoError(t, err)
	require.NoError(t, auth.NewLedger(srv.stores.Tokens).Record(ctx, user.ID, "expired-row", time.Now().Add(-time.Minute)))

	srv.sweep(ctx)

	tokens, err := srv.stores.Tokens.GetUserTokens(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, session.RefreshToken, tokens[0].Token)
}

func TestServer_RunAndShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.LedgerSweepInterval = 10 * time.Millisecond

	srv, _ := setupTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
