package gitbot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDownloadChart(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	points := make([]DownloadPoint, 0, 14)
	for i := 0; i < 14; i++ {
		points = append(
			points, DownloadPoint{
				Date:      start.AddDate(0, 0, i),
				Downloads: int64(100 + i*10),
			},
		)
	}

	png, err := renderDownloadChart("requests downloads", points)
	require.NoError(t, err)
	require.NotEmpty(t, png)

	// PNG signature
	assert.Equal(
		t,
		[]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'},
		png[:8],
	)
}

func TestRenderDownloadChartNoData(t *testing.T) {
	t.Parallel()

	_, err := renderDownloadChart("empty", nil)
	assert.ErrorIs(t, err, ErrNoChartData)
}
