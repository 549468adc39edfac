package gitbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/lmittmann/tint"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

var (
	// ErrUserNotFound indicates a GitHub user or organization lookup
	// for a name that doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrRepoNotFound indicates a repository lookup for a repo that
	// doesn't exist or isn't visible.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrFieldNotFound indicates a query that resolved its subject but
	// not the requested attribute.
	ErrFieldNotFound = errors.New("field not found")

	// ErrFileTooBig indicates a repository whose archive exceeds the
	// configured size threshold.
	ErrFileTooBig = errors.New("file too big")

	// ErrInvalidName indicates a user, org or repo name that fails
	// validation before any network request is made.
	ErrInvalidName = errors.New("invalid name")
)

// githubRepoRegex matches valid repository names.
var githubRepoRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,100}$`)

// validateGitHubName checks a user or organization name before it's
// interpolated into an API request. Names are 1-39 characters of
// alphanumerics and hyphens, with no leading, trailing, or doubled
// hyphens.
func validateGitHubName(name string) error {
	if name == "" || len(name) > 39 {
		return fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") ||
		strings.Contains(name, "--") {
		return fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return fmt.Errorf("%w: %s", ErrInvalidName, name)
		}
	}
	return nil
}

// validateGitHubRepoName checks a repository name (without the owner).
func validateGitHubRepoName(name string) error {
	if !githubRepoRegex.MatchString(name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	return nil
}

// rotatingTokenSource cycles through a fixed list of tokens, so
// successive requests draw from different rate limit pools.
type rotatingTokenSource struct {
	tokens []string
	next   atomic.Uint64
}

func (r *rotatingTokenSource) Token() (*oauth2.Token, error) {
	if len(r.tokens) == 0 {
		return nil, errors.New("no tokens available")
	}
	i := r.next.Add(1) - 1
	return &oauth2.Token{
		AccessToken: r.tokens[i%uint64(len(r.tokens))],
	}, nil
}

// GitHubUser is the profile summary shown by `/github user info`,
// assembled from the GraphQL API.
type GitHubUser struct {
	Login         string    `json:"login"`
	Name          string    `json:"name,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	URL           string    `json:"url"`
	Company       string    `json:"company,omitempty"`
	Location      string    `json:"location,omitempty"`
	WebsiteURL    string    `json:"website_url,omitempty"`
	Twitter       string    `json:"twitter,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Followers     int       `json:"followers"`
	Following     int       `json:"following"`
	PublicRepos   int       `json:"public_repos"`
	PublicGists   int       `json:"public_gists"`
	Contributions int       `json:"contributions"`
	IsOrg         bool      `json:"is_org,omitempty"`
}

func (u GitHubUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("login", u.Login),
		slog.Int("followers", u.Followers),
		slog.Int("public_repos", u.PublicRepos),
	)
}

// GitHubClient wraps the GitHub REST and GraphQL APIs with token
// rotation, client-side rate limiting, and response caching.
type GitHubClient struct {
	rest    *github.Client
	graphql *githubv4.Client
	limiter *rate.Limiter
	cache   *ObjectCache
	config  *GitHubConfig
	logger  *slog.Logger

	requestCount atomic.Int64
}

// NewGitHubClient creates a GitHubClient from config. At least one
// token must be configured.
func NewGitHubClient(
	cfg *GitHubConfig,
	logger *slog.Logger,
) (*GitHubClient, error) {
	if cfg == nil {
		return nil, errors.New("nil github config")
	}
	if len(cfg.Tokens) == 0 {
		return nil, errors.New("at least one github token is required")
	}
	if logger == nil {
		logger = slog.Default().With(loggerNameKey, "github")
	}

	source := &rotatingTokenSource{tokens: cfg.Tokens}
	baseCtx := context.Background()
	if cfg.httpClient != nil {
		baseCtx = context.WithValue(
			baseCtx,
			oauth2.HTTPClient,
			cfg.httpClient,
		)
	}
	httpClient := oauth2.NewClient(baseCtx, source)

	limit := cfg.MaxRequestsPerSecond
	if limit <= 0 {
		limit = DefaultGitHubMaxRequestsPerSecond
	}

	rest := github.NewClient(httpClient)
	if cfg.Requester != "" {
		rest.UserAgent = cfg.Requester
	}

	return &GitHubClient{
		rest:    rest,
		graphql: githubv4.NewClient(httpClient),
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
		cache:   NewObjectCache(cfg.ObjectCacheSize, cfg.ObjectCacheMaxAge),
		config:  cfg,
		logger:  logger,
	}, nil
}

// Cache exposes the client's object cache.
func (g *GitHubClient) Cache() *ObjectCache {
	return g.cache
}

// RequestCount returns the number of API requests made so far.
func (g *GitHubClient) RequestCount() int64 {
	return g.requestCount.Load()
}

func (g *GitHubClient) wait(ctx context.Context) error {
	g.requestCount.Add(1)
	return g.limiter.Wait(ctx)
}

// classifyQueryError maps a GraphQL resolution error onto one of the
// lookup sentinels. The GraphQL API reports missing subjects with a
// "Could not resolve to a ..." message naming the type; anything
// mentioning Repository means the repo itself was missing, otherwise
// the query failed on an attribute.
func classifyQueryError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "Could not resolve to a User") ||
		strings.Contains(msg, "Could not resolve to an Organization") {
		return fmt.Errorf("%w: %s", ErrUserNotFound, msg)
	}
	if strings.Contains(msg, "Repository") {
		return fmt.Errorf("%w: %s", ErrRepoNotFound, msg)
	}
	return fmt.Errorf("%w: %s", ErrFieldNotFound, msg)
}

// classifyRESTError maps a REST response onto the lookup sentinels.
func classifyRESTError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) &&
		ghErr.Response != nil &&
		ghErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", notFound, ghErr.Message)
	}
	return err
}

type userQuery struct {
	User struct {
		Login           githubv4.String
		Name            githubv4.String
		Bio             githubv4.String
		AvatarURL       githubv4.URI `graphql:"avatarUrl(size: 256)"`
		URL             githubv4.URI
		Company         githubv4.String
		Location        githubv4.String
		WebsiteURL      githubv4.String `graphql:"websiteUrl"`
		TwitterUsername githubv4.String `graphql:"twitterUsername"`
		CreatedAt       githubv4.DateTime
		Followers       struct {
			TotalCount githubv4.Int
		}
		Following struct {
			TotalCount githubv4.Int
		}
		Repositories struct {
			TotalCount githubv4.Int
		} `graphql:"repositories(privacy: PUBLIC)"`
		Gists struct {
			TotalCount githubv4.Int
		} `graphql:"gists(privacy: PUBLIC)"`
		ContributionsCollection struct {
			ContributionCalendar struct {
				TotalContributions githubv4.Int
			}
		} `graphql:"contributionsCollection(from: $from, to: $to)"`
	} `graphql:"user(login: $login)"`
}

// GetUser fetches a user profile along with their contribution count
// since the start of the current year.
func (g *GitHubClient) GetUser(
	ctx context.Context,
	login string,
) (*GitHubUser, error) {
	if err := validateGitHubName(login); err != nil {
		return nil, err
	}
	cacheKey := CacheKey("getUser", login)
	if cached, ok := g.cache.Get(cacheKey); ok {
		return cached.(*GitHubUser), nil
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	var q userQuery
	variables := map[string]any{
		"login": githubv4.String(login),
		"from":  githubv4.DateTime{Time: yearStart},
		"to":    githubv4.DateTime{Time: now},
	}
	if err := g.graphql.Query(ctx, &q, variables); err != nil {
		classified := classifyQueryError(err)
		g.logger.WarnContext(
			ctx,
			"user query failed",
			"login", login,
			tint.Err(err),
		)
		return nil, classified
	}

	user := &GitHubUser{
		Login:         string(q.User.Login),
		Name:          string(q.User.Name),
		Bio:           string(q.User.Bio),
		AvatarURL:     q.User.AvatarURL.String(),
		URL:           q.User.URL.String(),
		Company:       string(q.User.Company),
		Location:      string(q.User.Location),
		WebsiteURL:    string(q.User.WebsiteURL),
		Twitter:       string(q.User.TwitterUsername),
		CreatedAt:     q.User.CreatedAt.Time,
		Followers:     int(q.User.Followers.TotalCount),
		Following:     int(q.User.Following.TotalCount),
		PublicRepos:   int(q.User.Repositories.TotalCount),
		PublicGists:   int(q.User.Gists.TotalCount),
		Contributions: int(q.User.ContributionsCollection.ContributionCalendar.TotalContributions),
	}
	g.cache.Set(cacheKey, user)
	return user, nil
}

// GetOrg fetches an organization profile via the REST API, normalized
// into the same shape as a user profile.
func (g *GitHubClient) GetOrg(
	ctx context.Context,
	name string,
) (*GitHubUser, error) {
	if err := validateGitHubName(name); err != nil {
		return nil, err
	}
	cacheKey := CacheKey("getOrg", name)
	if cached, ok := g.cache.Get(cacheKey); ok {
		return cached.(*GitHubUser), nil
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	org, _, err := g.rest.Organizations.Get(ctx, name)
	if err != nil {
		return nil, classifyRESTError(err, ErrUserNotFound)
	}
	user := &GitHubUser{
		Login:       org.GetLogin(),
		Name:        org.GetName(),
		Bio:         org.GetDescription(),
		AvatarURL:   org.GetAvatarURL(),
		URL:         org.GetHTMLURL(),
		Company:     org.GetCompany(),
		Location:    org.GetLocation(),
		WebsiteURL:  org.GetBlog(),
		CreatedAt:   org.GetCreatedAt().Time,
		Followers:   org.GetFollowers(),
		PublicRepos: org.GetPublicRepos(),
		PublicGists: org.GetPublicGists(),
		IsOrg:       true,
	}
	g.cache.Set(cacheKey, user)
	return user, nil
}

// GetRepo fetches a single repository.
func (g *GitHubClient) GetRepo(
	ctx context.Context,
	owner string,
	repo string,
) (*github.Repository, error) {
	if err := validateGitHubName(owner); err != nil {
		return nil, err
	}
	if err := validateGitHubRepoName(repo); err != nil {
		return nil, err
	}
	cacheKey := CacheKey("getRepo", fmt.Sprintf("%s/%s", owner, repo))
	if cached, ok := g.cache.Get(cacheKey); ok {
		return cached.(*github.Repository), nil
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	repository, _, err := g.rest.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, classifyRESTError(err, ErrRepoNotFound)
	}
	g.cache.Set(cacheKey, repository)
	return repository, nil
}

// GetUserRepos fetches a user's public repositories, most recently
// pushed first.
func (g *GitHubClient) GetUserRepos(
	ctx context.Context,
	login string,
) ([]*github.Repository, error) {
	if err := validateGitHubName(login); err != nil {
		return nil, err
	}
	cacheKey := CacheKey("getUserRepos", login)
	if cached, ok := g.cache.Get(cacheKey); ok {
		return cached.([]*github.Repository), nil
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	repos, _, err := g.rest.Repositories.ListByUser(
		ctx,
		login,
		&github.RepositoryListByUserOptions{
			Type:        "owner",
			Sort:        "pushed",
			ListOptions: github.ListOptions{PerPage: 100},
		},
	)
	if err != nil {
		return nil, classifyRESTError(err, ErrUserNotFound)
	}
	public := make([]*github.Repository, 0, len(repos))
	for _, r := range repos {
		if !r.GetPrivate() {
			public = append(public, r)
		}
	}
	g.cache.Set(cacheKey, public)
	return public, nil
}

// GetOrgRepos fetches an organization's public repositories.
func (g *GitHubClient) GetOrgRepos(
	ctx context.Context,
	org string,
) ([]*github.Repository, error) {
	if err := validateGitHubName(org); err != nil {
		return nil, err
	}
	cacheKey := CacheKey("getOrgRepos", org)
	if cached, ok := g.cache.Get(cacheKey); ok {
		return cached.([]*github.Repository), nil
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	repos, _, err := g.rest.Repositories.ListByOrg(
		ctx,
		org,
		&github.RepositoryListByOrgOptions{
			Type:        "public",
			ListOptions: github.ListOptions{PerPage: 100},
		},
	)
	if err != nil {
		return nil, classifyRESTError(err, ErrUserNotFound)
	}
	g.cache.Set(cacheKey, repos)
	return repos, nil
}

// GetOrgMembers fetches an organization's public members.
func (g *GitHubClient) GetOrgMembers(
	ctx context.Context,
	org string,
) ([]*github.User, error) {
	if err := validateGitHubName(org); err != nil {
		return nil, err
	}
	cacheKey := CacheKey("getOrgMembers", org)
	if cached, ok := g.cache.Get(cacheKey); ok {
		return cached.([]*github.User), nil
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	members, _, err := g.rest.Organizations.ListMembers(
		ctx,
		org,
		&github.ListMembersOptions{
			PublicOnly:  true,
			ListOptions: github.ListOptions{PerPage: 100},
		},
	)
	if err != nil {
		return nil, classifyRESTError(err, ErrUserNotFound)
	}
	g.cache.Set(cacheKey, members)
	return members, nil
}

// GetUserOrgs fetches the organizations a user publicly belongs to.
func (g *GitHubClient) GetUserOrgs(
	ctx context.Context,
	login string,
) ([]*github.Organization, error) {
	if err := validateGitHubName(login); err != nil {
		return nil, err
	}
	cacheKey := CacheKey("getUserOrgs", login)
	if cached, ok := g.cache.Get(cacheKey); ok {
		return cached.([]*github.Organization), nil
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	orgs, _, err := g.rest.Organizations.List(
		ctx,
		login,
		&github.ListOptions{PerPage: 100},
	)
	if err != nil {
		return nil, classifyRESTError(err, ErrUserNotFound)
	}
	g.cache.Set(cacheKey, orgs)
	return orgs, nil
}

// DownloadRepoZip streams a repository's default-branch zipball into w.
// Repositories whose reported size exceeds the configured threshold are
// rejected with [ErrFileTooBig] before any download starts.
func (g *GitHubClient) DownloadRepoZip(
	ctx context.Context,
	owner string,
	repo string,
	w io.Writer,
) (int64, error) {
	repository, err := g.GetRepo(ctx, owner, repo)
	if err != nil {
		return 0, err
	}

	// REST reports size in kilobytes
	repoSize := int64(repository.GetSize()) * 1024
	threshold := g.config.RepoZipSizeThreshold
	if threshold <= 0 {
		threshold = DefaultRepoZipSizeThreshold
	}
	if repoSize > threshold {
		return 0, fmt.Errorf(
			"%w: %s/%s is %d bytes (limit %d)",
			ErrFileTooBig, owner, repo, repoSize, threshold,
		)
	}

	if err = g.wait(ctx); err != nil {
		return 0, err
	}
	archiveURL, _, err := g.rest.Repositories.GetArchiveLink(
		ctx,
		owner,
		repo,
		github.Zipball,
		&github.RepositoryContentGetOptions{},
		3,
	)
	if err != nil {
		return 0, classifyRESTError(err, ErrRepoNotFound)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		archiveURL.String(),
		nil,
	)
	if err != nil {
		return 0, err
	}
	httpClient := g.config.httpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	rv, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = rv.Body.Close()
	}()
	if rv.StatusCode != http.StatusOK {
		return 0, fmt.Errorf(
			"unexpected status %d downloading archive",
			rv.StatusCode,
		)
	}
	written, err := io.Copy(w, io.LimitReader(rv.Body, threshold+1))
	if err != nil {
		return written, err
	}
	if written > threshold {
		return written, fmt.Errorf(
			"%w: archive for %s/%s exceeded %d bytes",
			ErrFileTooBig, owner, repo, threshold,
		)
	}
	g.logger.InfoContext(
		ctx,
		"downloaded repository archive",
		"owner", owner,
		"repo", repo,
		"bytes", written,
	)
	return written, nil
}
