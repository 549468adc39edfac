package gitbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// Platforms recognized by snippet URL parsing.
const (
	PlatformGitHub = "github"
	PlatformGitLab = "gitlab"
)

var (
	// ErrUnsupportedURL indicates a message link that isn't a GitHub or
	// GitLab file URL with a line fragment.
	ErrUnsupportedURL = errors.New("unsupported snippet url")

	// ErrSnippetUnavailable indicates a snippet file that couldn't be
	// fetched from its raw URL.
	ErrSnippetUnavailable = errors.New("snippet unavailable")
)

var (
	githubLineURLRegex = regexp.MustCompile(
		`https://github\.com/(?P<repo>[^/\s]+/[^/\s]+)/blob/` +
			`(?P<path>[^#\s]+)#L(?P<first>\d+)(?:[-~:]L?(?P<second>\d+))?`,
	)
	gitlabLineURLRegex = regexp.MustCompile(
		`https://gitlab\.com/(?P<repo>[^\s]+)/-/blob/` +
			`(?P<path>[^#\s]+)#L(?P<first>\d+)(?:[-~:]L?(?P<second>\d+))?`,
	)
)

// SnippetRef identifies a span of lines in a file hosted on a supported
// platform. L2 is zero when the URL named a single line.
type SnippetRef struct {
	Platform string
	Repo     string
	Path     string
	L1       int
	L2       int
}

// RawURL returns the platform's raw content URL for the file.
func (s SnippetRef) RawURL() string {
	switch s.Platform {
	case PlatformGitHub:
		return fmt.Sprintf(
			"https://raw.githubusercontent.com/%s/%s",
			s.Repo, s.Path,
		)
	case PlatformGitLab:
		return fmt.Sprintf(
			"https://gitlab.com/%s/-/raw/%s",
			s.Repo, s.Path,
		)
	default:
		return ""
	}
}

// Language guesses the code block language tag from the file extension.
func (s SnippetRef) Language() string {
	base := s.Path
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i >= 0 && i < len(base)-1 {
		return base[i+1:]
	}
	return ""
}

// parseSnippetURL extracts the first supported file-line link found in
// content. Line numbers are normalized so L1 <= L2.
func parseSnippetURL(content string) (*SnippetRef, error) {
	for platform, re := range map[string]*regexp.Regexp{
		PlatformGitHub: githubLineURLRegex,
		PlatformGitLab: gitlabLineURLRegex,
	} {
		match := re.FindStringSubmatch(content)
		if match == nil {
			continue
		}
		ref := &SnippetRef{Platform: platform}
		for i, name := range re.SubexpNames() {
			switch name {
			case "repo":
				ref.Repo = match[i]
			case "path":
				ref.Path = match[i]
			case "first":
				ref.L1, _ = strconv.Atoi(match[i])
			case "second":
				if match[i] != "" {
					ref.L2, _ = strconv.Atoi(match[i])
				}
			}
		}
		if ref.L1 < 1 {
			ref.L1 = 1
		}
		if ref.L2 != 0 && ref.L2 < ref.L1 {
			ref.L1, ref.L2 = ref.L2, ref.L1
		}
		return ref, nil
	}
	return nil, ErrUnsupportedURL
}

// fetchSnippetFile downloads the full file behind ref from its raw URL.
func fetchSnippetFile(
	ctx context.Context,
	httpClient *http.Client,
	ref *SnippetRef,
) (string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		ref.RawURL(),
		nil,
	)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", registryUserAgent)

	rv, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = rv.Body.Close()
	}()
	if rv.StatusCode != http.StatusOK {
		return "", fmt.Errorf(
			"%w: status %d from %s",
			ErrSnippetUnavailable, rv.StatusCode, ref.RawURL(),
		)
	}
	body, err := io.ReadAll(rv.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// sliceLines returns lines l1 through l2 of text, 1-based and
// inclusive, clamped to the file. A zero l2 selects the single line l1.
func sliceLines(text string, l1 int, l2 int) string {
	lines := strings.Split(text, "\n")
	if l2 == 0 {
		l2 = l1
	}
	if l1 < 1 {
		l1 = 1
	}
	if l2 > len(lines) {
		l2 = len(lines)
	}
	if l1 > l2 {
		return ""
	}
	return strings.Join(lines[l1-1:l2], "\n")
}

// renderCodeBlock formats a span of lines as a fenced code block,
// truncated to leave headroom within a Discord message.
func renderCodeBlock(ref *SnippetRef, l1 int, l2 int, text string) string {
	snippet := sliceLines(text, l1, l2)
	fence := fmt.Sprintf("```%s\n", ref.Language())
	overhead := len(fence) + len("\n```") + 64
	allowed := discordMaxMessageLength - overhead
	if allowed < 0 {
		allowed = 0
	}
	return fmt.Sprintf("%s%s\n```", fence, truncate(snippet, allowed))
}

// renderSnippet formats a span of lines as the message content shown
// after a page step: a line range marker followed by the code block.
// The marker omits the upper bound when the range collapsed onto its
// floor.
func renderSnippet(ref *SnippetRef, l1 int, l2 int, text string) string {
	rangeTag := fmt.Sprintf("`#L%d`", l1)
	if l2 != 1 && l2 != 0 {
		rangeTag = fmt.Sprintf("`#L%d-L%d`", l1, l2)
	}
	return fmt.Sprintf(
		"%s\n%s",
		rangeTag,
		renderCodeBlock(ref, l1, l2, text),
	)
}
