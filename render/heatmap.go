package render

import (
	"fmt"
	"image/color"
	"io"

	"github.com/fale/sit"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/drgolem/psglab/display"
)

const legendColors = 12

type HeatMapOptions struct {
	Gradient      display.Gradient
	Width, Height vg.Length
	Title         string

	Peaks         bool
	PeakLag       int
	PeakThreshold float64
}

type Option func(opt *HeatMapOptions)

func WithGradient(g display.Gradient) Option {
	return func(opt *HeatMapOptions) {
		opt.Gradient = g
	}
}

func WithSize(width, height vg.Length) Option {
	return func(opt *HeatMapOptions) {
		opt.Width = width
		opt.Height = height
	}
}

func WithTitle(title string) Option {
	return func(opt *HeatMapOptions) {
		opt.Title = title
	}
}

// WithPeaks overlays the strongest spectral peak of every time column.
func WithPeaks(lag int, threshold float64) Option {
	return func(opt *HeatMapOptions) {
		opt.Peaks = true
		opt.PeakLag = lag
		opt.PeakThreshold = threshold
	}
}

// HeatMap draws img as a PNG, hours on X and frequency on Y, coloured
// over img.Range.
func HeatMap(w io.Writer, img *display.Image, opts ...Option) error {
	o := HeatMapOptions{
		Gradient: display.DefaultGradients().Lookup("blue_red"),
		Width:    500,
		Height:   500,
		Title:    "Spectrogram",
	}
	for _, fn := range opts {
		fn(&o)
	}

	rows, cols := img.Data.Dims()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("empty image %dx%d", rows, cols)
	}

	pal := o.Gradient
	h := plotter.NewHeatMap(imageGrid{img}, pal)
	h.Rasterized = true
	h.Min, h.Max = img.Range.Low, img.Range.High
	if !(h.Max > h.Min) {
		h.Max = h.Min + 1
	}
	colors := pal.Colors()
	h.Underflow = colors[0]
	h.Overflow = colors[len(colors)-1]

	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = "Time (h)"
	p.Y.Label.Text = "Frequency (Hz)"
	p.Add(h)

	if o.Peaks {
		pts := PeakTrack(img, o.PeakLag, o.PeakThreshold)
		if len(pts) > 0 {
			s, err := plotter.NewScatter(pts)
			if err != nil {
				return err
			}
			s.GlyphStyle.Color = color.RGBA{R: 255, G: 215, B: 0, A: 255}
			s.GlyphStyle.Shape = draw.CrossGlyph{}
			s.GlyphStyle.Radius = 3
			p.Add(s)
		}
	}

	p.X.Padding = 0
	p.Y.Padding = 0
	p.Y.Tick.Marker = sit.Ticker{}
	p.X.Tick.Marker = sit.Ticker{}

	// Create a legend.
	l := plot.NewLegend()
	thumbs := plotter.PaletteThumbnailers(pal.Sample(legendColors))
	for i := len(thumbs) - 1; i >= 0; i-- {
		t := thumbs[i]
		if i != 0 && i != len(thumbs)-1 {
			l.Add("", t)
			continue
		}
		var val float64
		switch i {
		case 0:
			val = h.Min
		case len(thumbs) - 1:
			val = h.Max
		}
		l.Add(fmt.Sprintf("%.1f dB", val), t)
	}

	canvas := vgimg.New(o.Width, o.Height)
	dc := draw.New(canvas)
	l.Top = true
	// Calculate the width of the legend.
	r := l.Rectangle(dc)
	legendWidth := r.Max.X - r.Min.X
	l.YOffs = -p.Title.TextStyle.FontExtents().Height // Adjust the legend down a little.

	l.Draw(dc)
	dc = draw.Crop(dc, 0, -legendWidth-vg.Millimeter, 0, 0) // Make space for the legend.

	p.Draw(dc)

	png := vgimg.PngCanvas{Canvas: canvas}
	_, err := png.WriteTo(w)
	return err
}

// imageGrid adapts a display image to plotter.GridXYZ.
type imageGrid struct {
	img *display.Image
}

func (g imageGrid) Dims() (c, r int) {
	r, c = g.img.Data.Dims()
	return c, r
}

func (g imageGrid) Z(c, r int) float64 {
	return g.img.Data.At(r, c)
}

func (g imageGrid) X(c int) float64 {
	return g.img.Hours[c]
}

func (g imageGrid) Y(r int) float64 {
	return g.img.Freqs[r]
}
