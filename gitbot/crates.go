package gitbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"
)

const cratesBaseURL = "https://crates.io/api/v1/crates"

// ErrCrateNotFound indicates a crates.io lookup for a crate that
// doesn't exist.
var ErrCrateNotFound = errors.New("crate not found")

// Crate is the metadata surfaced by `/crates info`.
type Crate struct {
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Downloads     int64     `json:"downloads"`
	MaxVersion    string    `json:"max_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Homepage      string    `json:"homepage,omitempty"`
	Repository    string    `json:"repository,omitempty"`
	Documentation string    `json:"documentation,omitempty"`
	Keywords      []string  `json:"keywords,omitempty"`
	Categories    []string  `json:"categories,omitempty"`
}

func (c Crate) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", c.Name),
		slog.String("max_version", c.MaxVersion),
		slog.Int64("downloads", c.Downloads),
	)
}

// CrateOwner is one entry from a crate's owners list.
type CrateOwner struct {
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	URL   string `json:"url,omitempty"`
}

// DisplayName prefers the owner's full name, falling back to login.
func (o CrateOwner) DisplayName() string {
	if o.Name != "" {
		return o.Name
	}
	return o.Login
}

// CratesClient fetches crate metadata and download statistics from the
// crates.io API.
type CratesClient struct {
	httpClient *http.Client
	cache      *ObjectCache
	logger     *slog.Logger

	baseURL string
}

// NewCratesClient creates a CratesClient sharing the given cache. A nil
// http client falls back to [http.DefaultClient].
func NewCratesClient(
	httpClient *http.Client,
	cache *ObjectCache,
	logger *slog.Logger,
) *CratesClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cache == nil {
		cache = NewObjectCache(DefaultObjectCacheSize, DefaultObjectCacheMaxAge)
	}
	if logger == nil {
		logger = slog.Default().With(loggerNameKey, "crates")
	}
	return &CratesClient{
		httpClient: httpClient,
		cache:      cache,
		logger:     logger,
		baseURL:    cratesBaseURL,
	}
}

// GetCrate fetches a crate's metadata.
func (c *CratesClient) GetCrate(
	ctx context.Context,
	name string,
) (*Crate, error) {
	cacheKey := CacheKey("getCrate", name)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(*Crate), nil
	}

	var payload struct {
		Crate struct {
			Name          string    `json:"name"`
			Description   string    `json:"description"`
			Downloads     int64     `json:"downloads"`
			MaxVersion    string    `json:"max_version"`
			CreatedAt     time.Time `json:"created_at"`
			UpdatedAt     time.Time `json:"updated_at"`
			Homepage      string    `json:"homepage"`
			Repository    string    `json:"repository"`
			Documentation string    `json:"documentation"`
			Keywords      []string  `json:"keywords"`
			Categories    []string  `json:"categories"`
		} `json:"crate"`
	}
	u := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(name))
	if err := getJSON(
		ctx, c.httpClient, u, &payload, ErrCrateNotFound,
	); err != nil {
		return nil, err
	}

	crate := &Crate{
		Name:          payload.Crate.Name,
		Description:   payload.Crate.Description,
		Downloads:     payload.Crate.Downloads,
		MaxVersion:    payload.Crate.MaxVersion,
		CreatedAt:     payload.Crate.CreatedAt,
		UpdatedAt:     payload.Crate.UpdatedAt,
		Homepage:      payload.Crate.Homepage,
		Repository:    payload.Crate.Repository,
		Documentation: payload.Crate.Documentation,
		Keywords:      payload.Crate.Keywords,
		Categories:    payload.Crate.Categories,
	}
	c.cache.Set(cacheKey, crate)
	return crate, nil
}

// GetOwners fetches a crate's owners.
func (c *CratesClient) GetOwners(
	ctx context.Context,
	name string,
) ([]CrateOwner, error) {
	cacheKey := CacheKey("getOwners", name)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]CrateOwner), nil
	}

	var payload struct {
		Users []CrateOwner `json:"users"`
	}
	u := fmt.Sprintf("%s/%s/owners", c.baseURL, url.PathEscape(name))
	if err := getJSON(
		ctx, c.httpClient, u, &payload, ErrCrateNotFound,
	); err != nil {
		return nil, err
	}
	c.cache.Set(cacheKey, payload.Users)
	return payload.Users, nil
}

// GetDownloadHistory fetches the last 90 days of download counts.
// Per-version rows are summed by date, and the API's extra_downloads
// rows (downloads of versions outside the reported set) are folded in.
func (c *CratesClient) GetDownloadHistory(
	ctx context.Context,
	name string,
) ([]DownloadPoint, error) {
	cacheKey := CacheKey("getCrateDownloads", name)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]DownloadPoint), nil
	}

	var payload struct {
		VersionDownloads []struct {
			Date      string `json:"date"`
			Downloads int64  `json:"downloads"`
		} `json:"version_downloads"`
		Meta struct {
			ExtraDownloads []struct {
				Date      string `json:"date"`
				Downloads int64  `json:"downloads"`
			} `json:"extra_downloads"`
		} `json:"meta"`
	}
	u := fmt.Sprintf("%s/%s/downloads", c.baseURL, url.PathEscape(name))
	if err := getJSON(
		ctx, c.httpClient, u, &payload, ErrCrateNotFound,
	); err != nil {
		return nil, err
	}

	byDate := map[string]int64{}
	for _, row := range payload.VersionDownloads {
		byDate[row.Date] += row.Downloads
	}
	for _, row := range payload.Meta.ExtraDownloads {
		byDate[row.Date] += row.Downloads
	}

	points := make([]DownloadPoint, 0, len(byDate))
	for date, downloads := range byDate {
		t, err := time.Parse("2006-01-02", date)
		if err != nil {
			c.logger.WarnContext(
				ctx,
				"skipping unparseable date",
				"date", date,
				"crate", name,
			)
			continue
		}
		points = append(points, DownloadPoint{Date: t, Downloads: downloads})
	}
	sort.Slice(
		points, func(i, j int) bool {
			return points[i].Date.Before(points[j].Date)
		},
	)
	c.cache.Set(cacheKey, points)
	return points, nil
}
