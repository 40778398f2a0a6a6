package render

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go-refine-pipeline/internal/metrics"
)

func TestConsoleSinkPrintsScalarsAndCurves(t *testing.T) {
	var out bytes.Buffer
	sink := NewConsoleSink(&out)

	sink.Observe(metrics.ChannelVariables, "scale", 2.5)
	sink.Observe(metrics.ChannelProfiles, "y", metrics.Curve{X: []float64{0, 1, 2}, Y: []float64{1, 2, 3}})
	require.NoError(t, sink.Flush())

	text := out.String()
	require.Contains(t, text, "scale")
	require.Contains(t, text, "2.5")
	require.Contains(t, text, "curve with 3 points")
}

func TestChartSinkFlushRendersPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.html")
	sink := NewChartSink(path)

	sink.Observe(metrics.ChannelResultEntries, "chi2", 0.5)
	sink.Observe(metrics.ChannelResultEntries, "chi2", 0.25)
	sink.Observe(metrics.ChannelProfiles, "ycalc", metrics.Curve{X: []float64{0, 1}, Y: []float64{1, 2}})
	require.NoError(t, sink.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "result_entries/chi2")
	require.Contains(t, string(data), "profiles/ycalc")
}

func TestChartSinkFlushWithoutDataWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.html")
	sink := NewChartSink(path)

	require.NoError(t, sink.Flush())
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestChartSinkCurveReplacesPrevious(t *testing.T) {
	sink := NewChartSink(filepath.Join(t.TempDir(), "metrics.html"))

	sink.Observe(metrics.ChannelProfiles, "y", metrics.Curve{X: []float64{0}, Y: []float64{1}})
	sink.Observe(metrics.ChannelProfiles, "y", metrics.Curve{X: []float64{0, 1}, Y: []float64{1, 2}})

	require.Len(t, sink.curves, 1)
	require.Len(t, sink.curves["profiles/y"].X, 2)
}
