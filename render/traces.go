package render

import (
	"fmt"
	"io"
	"math"

	"github.com/fale/sit"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/drgolem/psglab/epoch"
)

const traceHeight = 120

// Traces draws one row per channel of an epoch window as a PNG.
// Padding is left blank.
func Traces(w io.Writer, charts []epoch.ChartSignal, width vg.Length) error {
	if len(charts) == 0 {
		return fmt.Errorf("no channels to draw")
	}

	plots := make([][]*plot.Plot, len(charts))
	for i, ch := range charts {
		p := plot.New()
		p.Y.Label.Text = ch.Label
		if ch.Unit != "" {
			p.Y.Label.Text += " (" + ch.Unit + ")"
		}
		p.Y.Min, p.Y.Max = ch.PhysicalMin, ch.PhysicalMax
		p.Y.Tick.Marker = sit.Ticker{}
		p.X.Tick.Marker = sit.Ticker{}
		if i == len(charts)-1 {
			p.X.Label.Text = "Time (s)"
		}

		for _, run := range finiteRuns(ch.Points) {
			l, err := plotter.NewLine(run)
			if err != nil {
				return fmt.Errorf("%s: %w", ch.Label, err)
			}
			l.LineStyle.Width = vg.Points(0.5)
			p.Add(l)
		}
		if n := len(ch.Points); n > 0 {
			p.X.Min = ch.Points[0].X
			p.X.Max = ch.Points[n-1].X
		}
		plots[i] = []*plot.Plot{p}
	}

	canvas := vgimg.New(width, vg.Length(traceHeight*len(charts)))
	dc := draw.New(canvas)
	tiles := draw.Tiles{
		Rows: len(charts),
		Cols: 1,
		PadY: vg.Millimeter,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	png := vgimg.PngCanvas{Canvas: canvas}
	_, err := png.WriteTo(w)
	return err
}

// finiteRuns splits points at NaN values.
func finiteRuns(points []epoch.Point) []plotter.XYs {
	var runs []plotter.XYs
	var cur plotter.XYs
	for _, pt := range points {
		if math.IsNaN(pt.Y) || math.IsInf(pt.Y, 0) {
			if len(cur) > 0 {
				runs = append(runs, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: pt.X, Y: pt.Y})
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}
