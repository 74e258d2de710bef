package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/pipeline"
)

// ChartOptions controls the HTML chart page.
type ChartOptions struct {
	// Title defaults to the key joint and rep count.
	Title string
	// AssetsHost overrides where the echarts script is loaded from.
	AssetsHost string
}

// RenderChart writes an interactive HTML chart of the key joint signal to
// w, with each detected set shaded and each peak marked.
func RenderChart(res *pipeline.Result, w io.Writer) error {
	return RenderChartWithOptions(res, w, ChartOptions{})
}

// RenderChartWithOptions is RenderChart with page options.
func RenderChartWithOptions(res *pipeline.Result, w io.Writer, o ChartOptions) error {
	if res == nil || !res.Selected || res.Signal.Len() == 0 {
		return ErrNoSignal
	}
	sig := res.Signal

	title := o.Title
	if title == "" {
		title = fmt.Sprintf("%s: %d reps", sig.Joint, res.TotalReps())
	}
	init := opts.Initialization{PageTitle: title, Width: "100%", Height: "600px"}
	if o.AssetsHost != "" {
		init.AssetsHost = o.AssetsHost
	}

	lo, hi := sig.Bounds()
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("projection=%s sets=%d frames=%d", sig.Projection, len(res.Sets), res.FrameCount),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "5%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Signal", Min: lo, Max: hi}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	areas := make([]opts.MarkAreaNameCoordItem, 0, len(res.Sets))
	for i, set := range res.Sets {
		areas = append(areas, opts.MarkAreaNameCoordItem{
			Name:        fmt.Sprintf("Set %d: %d reps", i+1, set.RepCount),
			Coordinate0: []interface{}{set.StartTime, lo},
			Coordinate1: []interface{}{set.EndTime, hi},
		})
	}

	line.AddSeries("raw", lineData(sig.Timestamps, sig.Raw),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: 1, Color: "#aaaaaa"}),
	)
	line.AddSeries("smoothed", lineData(sig.Timestamps, sig.Values),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithMarkAreaNameCoordItemOpts(areas...),
		charts.WithMarkAreaStyleOpts(opts.MarkAreaStyle{
			ItemStyle: &opts.ItemStyle{Color: "rgba(255, 187, 120, 0.3)"},
			Label:     &opts.Label{Show: opts.Bool(true), Position: "insideTop"},
		}),
	)

	cycles := res.Cycles()
	peaks := make([]opts.ScatterData, 0, len(cycles))
	for _, c := range cycles {
		peaks = append(peaks, opts.ScatterData{Value: []interface{}{c.PeakTime, sig.Values[c.PeakIndex]}})
	}
	scatter := charts.NewScatter()
	scatter.AddSeries("peaks", peaks, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	line.Overlap(scatter)

	return line.Render(w)
}

func lineData(ts, values []float64) []opts.LineData {
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		data[i] = opts.LineData{Value: []interface{}{ts[i], v}}
	}
	return data
}
