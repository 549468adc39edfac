package gitbot

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoChartData indicates a download history with no points to plot.
var ErrNoChartData = errors.New("no data points to chart")

var (
	chartLineColor = drawing.Color{R: 88, G: 101, B: 242, A: 255}
	chartFillColor = drawing.Color{R: 88, G: 101, B: 242, A: 64}
)

// renderDownloadChart renders a daily download history as a PNG
// time-series chart suitable for a Discord attachment.
func renderDownloadChart(title string, points []DownloadPoint) ([]byte, error) {
	if len(points) == 0 {
		return nil, ErrNoChartData
	}

	xValues := make([]time.Time, len(points))
	yValues := make([]float64, len(points))
	for i, point := range points {
		xValues[i] = point.Date
		yValues[i] = float64(point.Downloads)
	}

	graph := chart.Chart{
		Title:  title,
		Width:  900,
		Height: 450,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Downloads",
			ValueFormatter: func(v any) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "downloads",
				XValues: xValues,
				YValues: yValues,
				Style: chart.Style{
					StrokeColor: chartLineColor,
					StrokeWidth: 2.0,
					FillColor:   chartFillColor,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("error rendering chart: %w", err)
	}
	return buf.Bytes(), nil
}
