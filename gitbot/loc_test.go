package gitbot

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clocSampleOutput = `{
  "header": {
    "cloc_version": "1.96",
    "elapsed_seconds": 0.25,
    "n_files": 42,
    "n_lines": 5000
  },
  "Python": {
    "nFiles": 30,
    "blank": 400,
    "comment": 300,
    "code": 3000
  },
  "Markdown": {
    "nFiles": 2,
    "blank": 40,
    "comment": 0,
    "code": 200
  },
  "YAML": {
    "nFiles": 10,
    "blank": 60,
    "comment": 100,
    "code": 900
  },
  "SUM": {
    "nFiles": 42,
    "blank": 500,
    "comment": 400,
    "code": 4100
  }
}`

func TestClocReportUnmarshal(t *testing.T) {
	t.Parallel()

	var report ClocReport
	require.NoError(t, json.Unmarshal([]byte(clocSampleOutput), &report))

	assert.Equal(t, 42, report.Header.NFiles)
	assert.Equal(t, 5000, report.Header.NLines)
	assert.Equal(t, 0.25, report.Header.ElapsedSeconds)

	assert.Equal(t, 4100, report.Sum.Code)
	assert.Equal(t, 500, report.Sum.Blank)
	assert.Equal(t, 400, report.Sum.Comment)

	require.Len(t, report.Languages, 3)
	assert.Equal(t, "Python", report.Languages[0].Name)
	assert.Equal(t, 3000, report.Languages[0].Code)
	assert.Equal(t, "YAML", report.Languages[1].Name)
	assert.Equal(t, "Markdown", report.Languages[2].Name)
}

func TestClocReportResultSheet(t *testing.T) {
	t.Parallel()

	var report ClocReport
	require.NoError(t, json.Unmarshal([]byte(clocSampleOutput), &report))

	sheet := report.ResultSheet(2)
	assert.Equal(t, "```py\nPython: 3000\nYAML: 900\n```", sheet)

	sheet = report.ResultSheet(15)
	assert.Equal(
		t,
		"```py\nPython: 3000\nYAML: 900\nMarkdown: 200\n```",
		sheet,
	)
}

func TestExtractZip(t *testing.T) {
	t.Parallel()

	tmpdir := t.TempDir()
	archive := filepath.Join(tmpdir, "repo.zip")

	zipFile, err := os.Create(archive)
	require.NoError(t, err)
	writer := zip.NewWriter(zipFile)

	entry, err := writer.Create("hello-main/app.py")
	require.NoError(t, err)
	_, err = entry.Write([]byte("print('hi')\n"))
	require.NoError(t, err)

	entry, err = writer.Create("hello-main/docs/readme.md")
	require.NoError(t, err)
	_, err = entry.Write([]byte("# hello\n"))
	require.NoError(t, err)

	require.NoError(t, writer.Close())
	require.NoError(t, zipFile.Close())

	dest := filepath.Join(tmpdir, "extracted")
	require.NoError(t, extractZip(archive, dest))

	data, err := os.ReadFile(filepath.Join(dest, "hello-main", "app.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(data))

	data, err = os.ReadFile(
		filepath.Join(dest, "hello-main", "docs", "readme.md"),
	)
	require.NoError(t, err)
	assert.Equal(t, "# hello\n", string(data))
}

func TestExtractZipRejectsEscapingEntry(t *testing.T) {
	t.Parallel()

	tmpdir := t.TempDir()
	archive := filepath.Join(tmpdir, "evil.zip")

	zipFile, err := os.Create(archive)
	require.NoError(t, err)
	writer := zip.NewWriter(zipFile)

	entry, err := writer.Create("../outside.txt")
	require.NoError(t, err)
	_, err = entry.Write([]byte("nope"))
	require.NoError(t, err)

	require.NoError(t, writer.Close())
	require.NoError(t, zipFile.Close())

	dest := filepath.Join(tmpdir, "extracted")
	err = extractZip(archive, dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes destination")
}
