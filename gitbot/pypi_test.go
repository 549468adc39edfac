package gitbot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPyPIClient(t testing.TB, handler http.Handler) *PyPIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewPyPIClient(srv.Client(), nil, nil)
	client.baseURL = srv.URL + "/pypi"
	client.statsBaseURL = srv.URL + "/api/packages"
	return client
}

func TestPyPIGetPackage(t *testing.T) {
	t.Parallel()

	var requests int
	client := newTestPyPIClient(
		t, http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				requests++
				require.Equal(t, "/pypi/requests/json", r.URL.Path)
				_, _ = fmt.Fprint(
					w, `{
  "info": {
    "name": "requests",
    "summary": "Python HTTP for Humans.",
    "version": "2.32.0",
    "author": "Kenneth Reitz",
    "license": "Apache-2.0",
    "home_page": "https://requests.readthedocs.io",
    "package_url": "https://pypi.org/project/requests/",
    "requires_python": ">=3.8",
    "project_urls": {"Source": "https://github.com/psf/requests"}
  },
  "urls": [
    {"upload_time_iso_8601": "2024-05-20T14:00:00.000000Z"}
  ]
}`,
				)
			},
		),
	)

	ctx := context.Background()
	pkg, err := client.GetPackage(ctx, "requests")
	require.NoError(t, err)
	assert.Equal(t, "requests", pkg.Name)
	assert.Equal(t, "2.32.0", pkg.Version)
	assert.Equal(t, "Python HTTP for Humans.", pkg.Summary)
	assert.Equal(t, ">=3.8", pkg.RequiresPython)
	assert.Equal(t, "2024-05-20T14:00:00.000000Z", pkg.ReleasedAt)
	assert.Equal(
		t,
		"https://github.com/psf/requests",
		pkg.ProjectURLs["Source"],
	)

	// second lookup comes from the cache
	_, err = client.GetPackage(ctx, "requests")
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
}

func TestPyPIGetPackageNotFound(t *testing.T) {
	t.Parallel()

	client := newTestPyPIClient(
		t, http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		),
	)
	_, err := client.GetPackage(context.Background(), "definitely-not-real")
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func TestPyPIGetRecentDownloads(t *testing.T) {
	t.Parallel()

	client := newTestPyPIClient(
		t, http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/api/packages/requests/recent", r.URL.Path)
				_, _ = fmt.Fprint(
					w,
					`{"data": {"last_day": 100, "last_week": 700, "last_month": 3000}}`,
				)
			},
		),
	)

	recent, err := client.GetRecentDownloads(context.Background(), "requests")
	require.NoError(t, err)
	assert.Equal(t, int64(100), recent.LastDay)
	assert.Equal(t, int64(700), recent.LastWeek)
	assert.Equal(t, int64(3000), recent.LastMonth)
}

func TestPyPIGetDownloadHistory(t *testing.T) {
	t.Parallel()

	client := newTestPyPIClient(
		t, http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/api/packages/requests/overall", r.URL.Path)
				require.Equal(t, "false", r.URL.Query().Get("mirrors"))
				_, _ = fmt.Fprint(
					w, `{
  "data": [
    {"category": "without_mirrors", "date": "2026-08-27", "downloads": 40},
    {"category": "without_mirrors", "date": "2026-08-26", "downloads": 10},
    {"category": "with_ci", "date": "2026-08-27", "downloads": 5}
  ]
}`,
				)
			},
		),
	)

	points, err := client.GetDownloadHistory(context.Background(), "requests")
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(
		t,
		time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC),
		points[0].Date,
	)
	assert.Equal(t, int64(10), points[0].Downloads)

	// same-date categories are summed
	assert.Equal(
		t,
		time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC),
		points[1].Date,
	)
	assert.Equal(t, int64(45), points[1].Downloads)
}

func TestSummarizeDownloads(t *testing.T) {
	t.Parallel()

	yesterday, lastWeek, lastMonth := summarizeDownloads(nil)
	assert.Zero(t, yesterday)
	assert.Zero(t, lastWeek)
	assert.Zero(t, lastMonth)

	points := make([]DownloadPoint, 0, 40)
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		points = append(
			points, DownloadPoint{
				Date:      start.AddDate(0, 0, i),
				Downloads: 1,
			},
		)
	}
	yesterday, lastWeek, lastMonth = summarizeDownloads(points)
	assert.Equal(t, int64(1), yesterday)
	assert.Equal(t, int64(7), lastWeek)
	assert.Equal(t, int64(30), lastMonth)

	// shorter history than the summary windows
	yesterday, lastWeek, lastMonth = summarizeDownloads(points[:3])
	assert.Equal(t, int64(1), yesterday)
	assert.Equal(t, int64(3), lastWeek)
	assert.Equal(t, int64(3), lastMonth)
}
