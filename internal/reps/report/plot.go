package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/willGauntletAi/tiktok-sub000/internal/reps/l3cycles"
	"github.com/willGauntletAi/tiktok-sub000/internal/reps/pipeline"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrNoSignal is returned when the result has no selected joint to draw.
var ErrNoSignal = errors.New("result has no key joint signal")

const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
)

var (
	rawColor    = color.RGBA{R: 170, G: 170, B: 170, A: 255}
	signalColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	startColor  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	peakColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	endColor    = color.RGBA{R: 148, G: 103, B: 189, A: 255}
	setFill     = color.RGBA{R: 255, G: 187, B: 120, A: 70}
)

// PlotSignal writes a plot of the key joint signal to path. The image
// format follows the file extension (png, svg, pdf).
func PlotSignal(res *pipeline.Result, path string) error {
	p, err := newSignalPlot(res)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("save signal plot: %w", err)
	}
	return nil
}

// WritePNG writes the signal plot to w as PNG.
func WritePNG(res *pipeline.Result, w io.Writer) error {
	p, err := newSignalPlot(res)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

func newSignalPlot(res *pipeline.Result) (*plot.Plot, error) {
	if res == nil || !res.Selected || res.Signal.Len() == 0 {
		return nil, ErrNoSignal
	}
	sig := res.Signal

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s): %d reps in %d sets", sig.Joint, sig.Projection, res.TotalReps(), len(res.Sets))
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Signal"

	// Set spans go first so the signal draws on top of them.
	lo, hi := sig.Bounds()
	if hi == lo {
		hi = lo + 1
	}
	for _, set := range res.Sets {
		span, err := plotter.NewPolygon(plotter.XYs{
			{X: set.StartTime, Y: lo},
			{X: set.EndTime, Y: lo},
			{X: set.EndTime, Y: hi},
			{X: set.StartTime, Y: hi},
		})
		if err != nil {
			return nil, err
		}
		span.Color = setFill
		span.LineStyle.Width = 0
		p.Add(span)
	}

	raw, err := plotter.NewLine(seriesXYs(sig.Timestamps, sig.Raw))
	if err != nil {
		return nil, err
	}
	raw.Color = rawColor
	raw.Width = vg.Points(0.75)
	p.Add(raw)
	p.Legend.Add("raw", raw)

	smoothed, err := plotter.NewLine(seriesXYs(sig.Timestamps, sig.Values))
	if err != nil {
		return nil, err
	}
	smoothed.Color = signalColor
	smoothed.Width = vg.Points(1.5)
	p.Add(smoothed)
	p.Legend.Add("smoothed", smoothed)

	starts, peaks, ends := cycleMarkers(res.Cycles(), sig.Values)
	for _, m := range []struct {
		label string
		xys   plotter.XYs
		color color.Color
		shape draw.GlyphDrawer
	}{
		{"start", starts, startColor, draw.TriangleGlyph{}},
		{"peak", peaks, peakColor, draw.CircleGlyph{}},
		{"end", ends, endColor, draw.BoxGlyph{}},
	} {
		if len(m.xys) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(m.xys)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = m.color
		sc.GlyphStyle.Shape = m.shape
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add(m.label, sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

func seriesXYs(ts, values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i] = plotter.XY{X: ts[i], Y: v}
	}
	return pts
}

// cycleMarkers returns the boundary and peak points of each cycle. Cycles
// in a set share boundaries, so a start is skipped when it repeats the
// previous end.
func cycleMarkers(cycles []l3cycles.Cycle, values []float64) (starts, peaks, ends plotter.XYs) {
	for i, c := range cycles {
		if i == 0 || cycles[i-1].EndIndex != c.StartIndex {
			starts = append(starts, plotter.XY{X: c.StartTime, Y: values[c.StartIndex]})
		}
		peaks = append(peaks, plotter.XY{X: c.PeakTime, Y: values[c.PeakIndex]})
		ends = append(ends, plotter.XY{X: c.EndTime, Y: values[c.EndIndex]})
	}
	return starts, peaks, ends
}
