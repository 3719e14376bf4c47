package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"folios/internal/config"
	"folios/internal/feed"
	"folios/internal/models"
	"folios/internal/utils"
)

// MockDBService is a mock implementation of database.Service for testing
type MockDBService struct {
	down bool
}

func (m *MockDBService) Health() map[string]string {
	if m.down {
		return map[string]string{"message": "db down", "error": "no reachable servers"}
	}
	return map[string]string{"message": "Mock DB is healthy"}
}

func (m *MockDBService) Client() *mongo.Client { return nil }
func (m *MockDBService) Database() *mongo.Database { return nil }
func (m *MockDBService) EnsureIndexes(ctx context.Context) error { return nil }
func (m *MockDBService) Close(ctx context.Context) error { return nil }

func newTestServer(t *testing.T, db *MockDBService) *httptest.Server {
	t.Helper()
	return newTestServerWithConfig(t, db, testConfig())
}

func testConfig() *config.Config {
	return &config.Config{
		Port:           8080,
		JWTSecret:      "test-secret",
		JWTTTL:         time.Hour,
		AllowedOrigins: []string{"https://app.example"},
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		FeedHeartbeat:  time.Second,
	}
}

func newTestServerWithConfig(t *testing.T, db *MockDBService, cfg *config.Config) *httptest.Server {
	t.Helper()
	s := newServer(cfg, db, feed.NewBroadcaster(), prometheus.NewRegistry())
	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(func() {
		srv.Close()
		_ = s.broker.Close()
	})
	return srv
}

func TestHandler(t *testing.T) {
	srv := newTestServer(t, &MockDBService{})

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"Hello World"}`, string(body))
}

func TestHealth(t *testing.T) {
	resp, err := http.Get(newTestServer(t, &MockDBService{}).URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(newTestServer(t, &MockDBService{down: true}).URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	srv := newTestServer(t, &MockDBService{})

	routes := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/bookmarks"},
		{http.MethodPost, "/api/bookmarks"},
		{http.MethodDelete, "/api/bookmarks/65f000000000000000000001"},
		{http.MethodGet, "/api/bookmarks/events"},
		{http.MethodGet, "/api/me"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			req, err := http.NewRequest(rt.method, srv.URL+rt.path, strings.NewReader(`{}`))
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer not-a-jwt")

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			body, _ := io.ReadAll(resp.Body)
			assert.JSONEq(t, `{"error":"Unauthorized"}`, string(body))
		})
	}
}

func TestAuthRoutesDoNotShadowEachOther(t *testing.T) {
	srv := newTestServer(t, &MockDBService{})

	resp, err := http.Get(srv.URL + "/api/auth/success")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Authentication successful")

	resp, err = http.Post(srv.URL+"/api/auth/logout", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCorsPreflight(t *testing.T) {
	srv := newTestServer(t, &MockDBService{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/bookmarks", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	resp, err := http.Get(newTestServer(t, &MockDBService{}).URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "app_bookmark_created_total")
}

func TestRateLimitIsPerUserBehindOneIP(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	srv := newTestServerWithConfig(t, &MockDBService{}, cfg)

	token := func(name string) string {
		t.Helper()
		tok, err := utils.GenerateJWT([]byte(cfg.JWTSecret), cfg.JWTTTL, &models.User{
			ID: primitive.NewObjectID(), Email: name + "@example.com", DisplayName: name,
		})
		require.NoError(t, err)
		return tok
	}
	alice, bob := token("alice"), token("bob")

	// A malformed id deletes nothing, so no storage is touched.
	deleteAs := func(tok string) int {
		t.Helper()
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/bookmarks/bad", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, deleteAs(alice))
	assert.Equal(t, http.StatusOK, deleteAs(bob), "each user gets a separate bucket")
	assert.Equal(t, http.StatusTooManyRequests, deleteAs(alice))
	assert.Equal(t, http.StatusTooManyRequests, deleteAs(bob))
}
