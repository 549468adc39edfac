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

func newTestCratesClient(t testing.TB, handler http.Handler) *CratesClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewCratesClient(srv.Client(), nil, nil)
	client.baseURL = srv.URL + "/api/v1/crates"
	return client
}

func TestCratesGetCrate(t *testing.T) {
	t.Parallel()

	client := newTestCratesClient(
		t, http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/api/v1/crates/serde", r.URL.Path)
				_, _ = fmt.Fprint(
					w, `{
  "crate": {
    "name": "serde",
    "description": "A generic serialization/deserialization framework",
    "downloads": 400000000,
    "max_version": "1.0.210",
    "created_at": "2014-12-05T20:20:32.000000+00:00",
    "updated_at": "2026-08-01T10:00:00.000000+00:00",
    "homepage": "https://serde.rs",
    "repository": "https://github.com/serde-rs/serde",
    "documentation": "https://docs.rs/serde",
    "keywords": ["serde", "serialization"],
    "categories": ["encoding"]
  }
}`,
				)
			},
		),
	)

	crate, err := client.GetCrate(context.Background(), "serde")
	require.NoError(t, err)
	assert.Equal(t, "serde", crate.Name)
	assert.Equal(t, "1.0.210", crate.MaxVersion)
	assert.Equal(t, int64(400000000), crate.Downloads)
	assert.Equal(t, 2014, crate.CreatedAt.Year())
	assert.Equal(t, []string{"serde", "serialization"}, crate.Keywords)
	assert.Equal(t, []string{"encoding"}, crate.Categories)
}

func TestCratesGetCrateNotFound(t *testing.T) {
	t.Parallel()

	client := newTestCratesClient(
		t, http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		),
	)
	_, err := client.GetCrate(context.Background(), "definitely-not-real")
	assert.ErrorIs(t, err, ErrCrateNotFound)
}

func TestCratesGetOwners(t *testing.T) {
	t.Parallel()

	client := newTestCratesClient(
		t, http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/api/v1/crates/serde/owners", r.URL.Path)
				_, _ = fmt.Fprint(
					w, `{
  "users": [
    {"login": "dtolnay", "name": "David Tolnay", "url": "https://github.com/dtolnay"},
    {"login": "anonymous"}
  ]
}`,
				)
			},
		),
	)

	owners, err := client.GetOwners(context.Background(), "serde")
	require.NoError(t, err)
	require.Len(t, owners, 2)
	assert.Equal(t, "David Tolnay", owners[0].DisplayName())
	assert.Equal(t, "anonymous", owners[1].DisplayName())
}

func TestCratesGetDownloadHistory(t *testing.T) {
	t.Parallel()

	client := newTestCratesClient(
		t, http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				require.Equal(
					t,
					"/api/v1/crates/serde/downloads",
					r.URL.Path,
				)
				_, _ = fmt.Fprint(
					w, `{
  "version_downloads": [
    {"version": 1, "date": "2026-08-27", "downloads": 100},
    {"version": 2, "date": "2026-08-27", "downloads": 50},
    {"version": 2, "date": "2026-08-26", "downloads": 30}
  ],
  "meta": {
    "extra_downloads": [
      {"date": "2026-08-27", "downloads": 25}
    ]
  }
}`,
				)
			},
		),
	)

	points, err := client.GetDownloadHistory(context.Background(), "serde")
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(
		t,
		time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC),
		points[0].Date,
	)
	assert.Equal(t, int64(30), points[0].Downloads)

	// per-version and extra rows for the same date are summed
	assert.Equal(
		t,
		time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC),
		points[1].Date,
	)
	assert.Equal(t, int64(175), points[1].Downloads)
}
