package gitbot

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t testing.TB) *API {
	t.Helper()

	cfg := DefaultConfig()
	cfg.GitHub.Tokens = []string{"tok-test"}

	githubClient, err := NewGitHubClient(cfg.GitHub, slog.Default())
	require.NoError(t, err)

	bot := &GitBot{
		config:     cfg,
		logger:     slog.Default(),
		github:     githubClient,
		loc:        NewLocService(cfg.Loc, githubClient, slog.Default()),
		discord:    &Discord{config: cfg.Discord},
		linesViews: newLinesViewRegistry(DefaultLinesViewTimeout),
	}

	api, err := newAPI(bot, cfg.API)
	require.NoError(t, err)
	return api
}

func TestAPIHealthz(t *testing.T) {
	api := newTestAPI(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	api.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(xRequestIDHeader))
}

func TestAPIStatus(t *testing.T) {
	api := newTestAPI(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	api.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, false, status["discord_connected"])
	assert.EqualValues(t, 0, status["github_requests"])
	assert.EqualValues(t, 0, status["active_lines_views"])
}

func TestAPICacheStats(t *testing.T) {
	api := newTestAPI(t)

	api.bot.github.Cache().Set(CacheKey("getUser", "octocat"), &GitHubUser{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/cache", nil)
	api.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]CacheStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats["github"].Size)
	assert.EqualValues(t, 0, stats["loc"].Size)
}

func TestAPIRequestIDPassthrough(t *testing.T) {
	api := newTestAPI(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(xRequestIDHeader, "fixed-id")
	api.engine.ServeHTTP(w, req)

	assert.Equal(t, "fixed-id", w.Header().Get(xRequestIDHeader))
}
