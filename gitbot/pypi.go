package gitbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"
)

const (
	pypiBaseURL      = "https://pypi.org/pypi"
	pypiStatsBaseURL = "https://pypistats.org/api/packages"

	registryUserAgent = "gitbot (https://github.com/Sherav/gitbot)"
)

// ErrPackageNotFound indicates a PyPI package lookup for a name that
// doesn't exist.
var ErrPackageNotFound = errors.New("package not found")

// PyPIPackage is the metadata surfaced by `/pypi info`.
type PyPIPackage struct {
	Name           string            `json:"name"`
	Summary        string            `json:"summary"`
	Version        string            `json:"version"`
	Author         string            `json:"author,omitempty"`
	License        string            `json:"license,omitempty"`
	HomePage       string            `json:"home_page,omitempty"`
	PackageURL     string            `json:"package_url"`
	RequiresPython string            `json:"requires_python,omitempty"`
	ProjectURLs    map[string]string `json:"project_urls,omitempty"`
	ReleasedAt     string            `json:"released_at,omitempty"`
}

func (p PyPIPackage) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", p.Name),
		slog.String("version", p.Version),
	)
}

// PyPIRecentDownloads holds pypistats rolling download counts.
type PyPIRecentDownloads struct {
	LastDay   int64 `json:"last_day"`
	LastWeek  int64 `json:"last_week"`
	LastMonth int64 `json:"last_month"`
}

// DownloadPoint is one day of download counts, used for chart rendering.
type DownloadPoint struct {
	Date      time.Time `json:"date"`
	Downloads int64     `json:"downloads"`
}

// PyPIClient fetches package metadata from pypi.org and download
// statistics from pypistats.org.
type PyPIClient struct {
	httpClient *http.Client
	cache      *ObjectCache
	logger     *slog.Logger

	baseURL      string
	statsBaseURL string
}

// NewPyPIClient creates a PyPIClient sharing the given cache. A nil
// http client falls back to [http.DefaultClient].
func NewPyPIClient(
	httpClient *http.Client,
	cache *ObjectCache,
	logger *slog.Logger,
) *PyPIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cache == nil {
		cache = NewObjectCache(DefaultObjectCacheSize, DefaultObjectCacheMaxAge)
	}
	if logger == nil {
		logger = slog.Default().With(loggerNameKey, "pypi")
	}
	return &PyPIClient{
		httpClient:   httpClient,
		cache:        cache,
		logger:       logger,
		baseURL:      pypiBaseURL,
		statsBaseURL: pypiStatsBaseURL,
	}
}

// getJSON fetches u and decodes the response body into target.
// A 404 is reported as notFound.
func getJSON(
	ctx context.Context,
	httpClient *http.Client,
	u string,
	target any,
	notFound error,
) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", registryUserAgent)
	req.Header.Set("Accept", "application/json")

	rv, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = rv.Body.Close()
	}()

	switch {
	case rv.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", notFound, u)
	case rv.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(rv.Body, 512))
		return fmt.Errorf(
			"unexpected status %d from %s: %s",
			rv.StatusCode, u, string(body),
		)
	}
	return json.NewDecoder(rv.Body).Decode(target)
}

// GetPackage fetches a package's metadata for its latest version.
func (p *PyPIClient) GetPackage(
	ctx context.Context,
	name string,
) (*PyPIPackage, error) {
	cacheKey := CacheKey("getPackage", name)
	if cached, ok := p.cache.Get(cacheKey); ok {
		return cached.(*PyPIPackage), nil
	}

	var payload struct {
		Info struct {
			Name           string            `json:"name"`
			Summary        string            `json:"summary"`
			Version        string            `json:"version"`
			Author         string            `json:"author"`
			License        string            `json:"license"`
			HomePage       string            `json:"home_page"`
			PackageURL     string            `json:"package_url"`
			RequiresPython string            `json:"requires_python"`
			ProjectURLs    map[string]string `json:"project_urls"`
		} `json:"info"`
		URLs []struct {
			UploadTime string `json:"upload_time_iso_8601"`
		} `json:"urls"`
	}
	u := fmt.Sprintf("%s/%s/json", p.baseURL, url.PathEscape(name))
	if err := getJSON(
		ctx, p.httpClient, u, &payload, ErrPackageNotFound,
	); err != nil {
		return nil, err
	}

	pkg := &PyPIPackage{
		Name:           payload.Info.Name,
		Summary:        payload.Info.Summary,
		Version:        payload.Info.Version,
		Author:         payload.Info.Author,
		License:        payload.Info.License,
		HomePage:       payload.Info.HomePage,
		PackageURL:     payload.Info.PackageURL,
		RequiresPython: payload.Info.RequiresPython,
		ProjectURLs:    payload.Info.ProjectURLs,
	}
	if len(payload.URLs) > 0 {
		pkg.ReleasedAt = payload.URLs[0].UploadTime
	}
	p.cache.Set(cacheKey, pkg)
	return pkg, nil
}

// GetRecentDownloads fetches the rolling day/week/month download counts.
func (p *PyPIClient) GetRecentDownloads(
	ctx context.Context,
	name string,
) (*PyPIRecentDownloads, error) {
	cacheKey := CacheKey("getRecentDownloads", name)
	if cached, ok := p.cache.Get(cacheKey); ok {
		return cached.(*PyPIRecentDownloads), nil
	}

	var payload struct {
		Data PyPIRecentDownloads `json:"data"`
	}
	u := fmt.Sprintf("%s/%s/recent", p.statsBaseURL, url.PathEscape(name))
	if err := getJSON(
		ctx, p.httpClient, u, &payload, ErrPackageNotFound,
	); err != nil {
		return nil, err
	}
	recent := payload.Data
	p.cache.Set(cacheKey, &recent)
	return &recent, nil
}

// GetDownloadHistory fetches daily download counts without mirrors,
// summed across categories and sorted by date.
func (p *PyPIClient) GetDownloadHistory(
	ctx context.Context,
	name string,
) ([]DownloadPoint, error) {
	cacheKey := CacheKey("getDownloadHistory", name)
	if cached, ok := p.cache.Get(cacheKey); ok {
		return cached.([]DownloadPoint), nil
	}

	var payload struct {
		Data []struct {
			Category  string `json:"category"`
			Date      string `json:"date"`
			Downloads int64  `json:"downloads"`
		} `json:"data"`
	}
	u := fmt.Sprintf(
		"%s/%s/overall?mirrors=false",
		p.statsBaseURL,
		url.PathEscape(name),
	)
	if err := getJSON(
		ctx, p.httpClient, u, &payload, ErrPackageNotFound,
	); err != nil {
		return nil, err
	}

	byDate := map[string]int64{}
	for _, row := range payload.Data {
		byDate[row.Date] += row.Downloads
	}
	points := make([]DownloadPoint, 0, len(byDate))
	for date, downloads := range byDate {
		t, err := time.Parse("2006-01-02", date)
		if err != nil {
			p.logger.WarnContext(
				ctx,
				"skipping unparseable date",
				"date", date,
				"package", name,
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
	p.cache.Set(cacheKey, points)
	return points, nil
}

// summarizeDownloads reduces a date-sorted download history to the
// figures shown alongside a chart: the most recent day, the sum of the
// last 7 days, and the sum of the last 30 days.
func summarizeDownloads(points []DownloadPoint) (
	yesterday int64,
	lastWeek int64,
	lastMonth int64,
) {
	if len(points) == 0 {
		return 0, 0, 0
	}
	yesterday = points[len(points)-1].Downloads
	for i, point := range points {
		fromEnd := len(points) - i
		if fromEnd <= 7 {
			lastWeek += point.Downloads
		}
		if fromEnd <= 30 {
			lastMonth += point.Downloads
		}
	}
	return yesterday, lastWeek, lastMonth
}
