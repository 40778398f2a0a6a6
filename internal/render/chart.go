package render

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"go-refine-pipeline/internal/metrics"
	"go-refine-pipeline/pkg/utils"
)

// ChartSink accumulates drained metric values and renders them as an
// HTML page of line charts on every flush, giving a live view that a
// browser can simply reload.
type ChartSink struct {
	Path string

	series map[string][]float64 // one series per channel/key
	curves map[string]metrics.Curve
}

// NewChartSink returns a chart sink rendering to the given HTML path.
func NewChartSink(path string) *ChartSink {
	return &ChartSink{
		Path:   path,
		series: make(map[string][]float64),
		curves: make(map[string]metrics.Curve),
	}
}

// Observe accumulates a drained value. Scalars extend their series;
// curves replace the previous curve for the same key.
func (s *ChartSink) Observe(channel, key string, value interface{}) {
	id := channel + "/" + key
	if curve, ok := value.(metrics.Curve); ok {
		s.curves[id] = curve
		return
	}
	s.series[id] = append(s.series[id], utils.Numeric(value))
}

// Flush renders all accumulated series and curves to the HTML page.
// Nothing is rendered until at least one value arrived.
func (s *ChartSink) Flush() error {
	if len(s.series) == 0 && len(s.curves) == 0 {
		return nil
	}

	page := components.NewPage()
	page.SetPageTitle("Sequential refinement metrics")

	ids := make([]string, 0, len(s.series))
	for id := range s.series {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		page.AddCharts(s.seriesChart(id, s.series[id]))
	}

	curveIDs := make([]string, 0, len(s.curves))
	for id := range s.curves {
		curveIDs = append(curveIDs, id)
	}
	sort.Strings(curveIDs)
	for _, id := range curveIDs {
		page.AddCharts(s.curveChart(id, s.curves[id]))
	}

	out, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("failed to create chart page %s: %w", s.Path, err)
	}
	defer out.Close()
	if err := page.Render(out); err != nil {
		return fmt.Errorf("failed to render chart page: %w", err)
	}
	return nil
}

func (s *ChartSink) seriesChart(id string, values []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: id}),
		charts.WithXAxisOpts(opts.XAxis{Name: "sample"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	labels := make([]string, len(values))
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		labels[i] = strconv.Itoa(i + 1)
		data[i] = opts.LineData{Value: v}
	}
	line.SetXAxis(labels)
	line.AddSeries(id, data,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}),
	)
	return line
}

func (s *ChartSink) curveChart(id string, curve metrics.Curve) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: id}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	labels := make([]string, len(curve.X))
	data := make([]opts.LineData, len(curve.Y))
	for i := range curve.X {
		labels[i] = strconv.FormatFloat(curve.X[i], 'g', 6, 64)
		if i < len(curve.Y) {
			data[i] = opts.LineData{Value: curve.Y[i]}
		}
	}
	line.SetXAxis(labels)
	line.AddSeries(id, data,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
	)
	return line
}
