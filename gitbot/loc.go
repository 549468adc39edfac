package gitbot

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lmittmann/tint"
)

// ErrClocFailed indicates the line counter subprocess exited non-zero
// or produced unparseable output.
var ErrClocFailed = errors.New("line count failed")

// ClocHeader is the header block of a cloc JSON report.
type ClocHeader struct {
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	NFiles         int     `json:"n_files"`
	NLines         int     `json:"n_lines"`
}

// ClocEntry is one language's counts in a cloc JSON report; the SUM
// entry uses the same shape.
type ClocEntry struct {
	NFiles  int `json:"nFiles"`
	Blank   int `json:"blank"`
	Comment int `json:"comment"`
	Code    int `json:"code"`
}

// ClocLanguage pairs a language name with its counts.
type ClocLanguage struct {
	Name string `json:"name"`
	ClocEntry
}

// ClocReport is a parsed cloc JSON report. Languages are ordered by
// line count, largest first.
type ClocReport struct {
	Header    ClocHeader     `json:"header"`
	Sum       ClocEntry      `json:"sum"`
	Languages []ClocLanguage `json:"languages"`
}

// UnmarshalJSON parses cloc's output shape, where every key that isn't
// "header" or "SUM" is a language.
func (r *ClocReport) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, value := range raw {
		switch key {
		case "header":
			if err := json.Unmarshal(value, &r.Header); err != nil {
				return err
			}
		case "SUM":
			if err := json.Unmarshal(value, &r.Sum); err != nil {
				return err
			}
		default:
			var entry ClocEntry
			if err := json.Unmarshal(value, &entry); err != nil {
				return err
			}
			r.Languages = append(
				r.Languages,
				ClocLanguage{Name: key, ClocEntry: entry},
			)
		}
	}
	sort.Slice(
		r.Languages, func(i, j int) bool {
			if r.Languages[i].Code != r.Languages[j].Code {
				return r.Languages[i].Code > r.Languages[j].Code
			}
			return r.Languages[i].Name < r.Languages[j].Name
		},
	)
	return nil
}

// ResultSheet renders up to limit languages as a fenced code block.
func (r *ClocReport) ResultSheet(limit int) string {
	var sb strings.Builder
	sb.WriteString("```py\n")
	for i, lang := range r.Languages {
		if i >= limit {
			break
		}
		sb.WriteString(fmt.Sprintf("%s: %d\n", lang.Name, lang.Code))
	}
	sb.WriteString("```")
	return sb.String()
}

// LocService counts lines of code in repositories by downloading their
// archive and running an external counter over the extracted tree.
type LocService struct {
	config *LocConfig
	github *GitHubClient
	cache  *ObjectCache
	logger *slog.Logger
}

// NewLocService creates a LocService with its own result cache.
func NewLocService(
	cfg *LocConfig,
	githubClient *GitHubClient,
	logger *slog.Logger,
) *LocService {
	if logger == nil {
		logger = slog.Default().With(loggerNameKey, "loc")
	}
	return &LocService{
		config: cfg,
		github: githubClient,
		cache:  NewObjectCache(cfg.CacheSize, cfg.CacheMaxAge),
		logger: logger,
	}
}

// Cache exposes the service's result cache.
func (s *LocService) Cache() *ObjectCache {
	return s.cache
}

// CountLines produces a line count report for a repository's default
// branch. Results are cached per repository unless nocache is set.
// The temporary archive and extracted tree are removed regardless of
// outcome.
func (s *LocService) CountLines(
	ctx context.Context,
	owner string,
	repo string,
	nocache bool,
) (*ClocReport, error) {
	cacheKey := CacheKey(
		"countLines",
		strings.ToLower(fmt.Sprintf("%s/%s", owner, repo)),
	)
	if !nocache {
		if cached, ok := s.cache.Get(cacheKey); ok {
			return cached.(*ClocReport), nil
		}
	}

	tempDir := s.config.TempDir
	if tempDir == "" {
		tempDir = DefaultTempDir
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, err
	}

	token, err := generateRandomHexString(16)
	if err != nil {
		return nil, err
	}
	zipPath := filepath.Join(tempDir, token+".zip")
	extractPath := filepath.Join(tempDir, token)
	defer func() {
		if rmErr := os.RemoveAll(extractPath); rmErr != nil &&
			!errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Warn("error removing extracted tree", tint.Err(rmErr))
		}
		if rmErr := os.Remove(zipPath); rmErr != nil &&
			!errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Warn("error removing archive", tint.Err(rmErr))
		}
	}()

	zipFile, err := os.Create(zipPath)
	if err != nil {
		return nil, err
	}
	_, err = s.github.DownloadRepoZip(ctx, owner, repo, zipFile)
	if closeErr := zipFile.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}

	if err = extractZip(zipPath, extractPath); err != nil {
		return nil, err
	}

	report, err := s.runCounter(ctx, extractPath)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKey, report)
	return report, nil
}

// runCounter executes the configured counter command over dir and
// parses its JSON output.
func (s *LocService) runCounter(
	ctx context.Context,
	dir string,
) (*ClocReport, error) {
	command := s.config.ClocCommand
	if command == "" {
		command = DefaultClocCommand
	}
	args := append([]string{}, s.config.ClocArgs...)
	args = append(args, "--json", dir)

	cmd := exec.CommandContext(ctx, command, args...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			s.logger.ErrorContext(
				ctx,
				"counter exited with error",
				"exit_code", exitErr.ExitCode(),
				"stderr", string(exitErr.Stderr),
			)
			return nil, fmt.Errorf(
				"%w: exit code %d",
				ErrClocFailed,
				exitErr.ExitCode(),
			)
		}
		return nil, fmt.Errorf("%w: %v", ErrClocFailed, err)
	}

	var report ClocReport
	if err = json.Unmarshal(output, &report); err != nil {
		return nil, fmt.Errorf("%w: bad output: %v", ErrClocFailed, err)
	}
	return &report, nil
}

// extractZip unpacks archive into dest, rejecting entries that would
// escape the destination directory.
func extractZip(archive string, dest string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer func() {
		_ = reader.Close()
	}()

	for _, file := range reader.File {
		target := filepath.Join(dest, filepath.Clean(file.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %s", file.Name)
		}
		if file.FileInfo().IsDir() {
			if err = os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err = copyZipEntry(file, target); err != nil {
			return err
		}
	}
	return nil
}

func copyZipEntry(file *zip.File, target string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()

	dst, err := os.OpenFile(
		target,
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC,
		file.Mode(),
	)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	if closeErr := dst.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
