package render

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/drgolem/psglab/display"
	"github.com/drgolem/psglab/epoch"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// peakImage has a 30 dB ridge at row peakRow over low level noise.
func peakImage(rows, cols, peakRow int) *display.Image {
	rng := rand.New(rand.NewSource(5))
	data := mat.NewDense(rows, cols, nil)
	freqs := make([]float64, rows)
	hours := make([]float64, cols)
	for r := 0; r < rows; r++ {
		freqs[r] = 0.5 + float64(r)*0.25
		for c := 0; c < cols; c++ {
			v := rng.Float64() * 0.1
			if r == peakRow {
				v += 30
			}
			data.Set(r, c, v)
		}
	}
	for c := range hours {
		hours[c] = float64(c) * 30 / 3600
	}
	return &display.Image{
		Freqs: freqs,
		Hours: hours,
		Data:  data,
		Range: display.Range{Low: 0, High: 30},
	}
}

func TestPeakTrack(t *testing.T) {
	img := peakImage(80, 6, 40)
	pts := PeakTrack(img, 10, 5)
	require.Len(t, pts, 6)
	for c, pt := range pts {
		assert.Equal(t, img.Hours[c], pt.X)
		assert.Equal(t, img.Freqs[40], pt.Y)
	}

	assert.Empty(t, PeakTrack(img, 1, 5))
	assert.Empty(t, PeakTrack(img, 100, 5))
}

func withSilentColumn(img *display.Image, col int) *display.Image {
	rows, _ := img.Data.Dims()
	for r := 0; r < rows; r++ {
		img.Data.Set(r, col, math.Inf(-1))
	}
	return img
}

func TestPeakTrackSilentColumn(t *testing.T) {
	img := withSilentColumn(peakImage(80, 6, 40), 2)
	pts := PeakTrack(img, 10, 5)
	require.Len(t, pts, 5)
	for _, pt := range pts {
		assert.NotEqual(t, img.Hours[2], pt.X)
		assert.Equal(t, img.Freqs[40], pt.Y)
	}
}

func TestHeatMapPNG(t *testing.T) {
	tests := []struct {
		name string
		img  *display.Image
		opts []Option
	}{
		{"default", peakImage(40, 20, 10), nil},
		{"peaks", peakImage(40, 20, 10), []Option{WithPeaks(8, 5), WithTitle("C3")}},
		{"single column", peakImage(40, 1, 10), []Option{WithGradient(display.DefaultGradients().Lookup("heat_r"))}},
		{"flat range", func() *display.Image {
			img := peakImage(10, 3, 2)
			img.Range = display.Range{Low: 5, High: 5}
			return img
		}(), []Option{WithSize(200, 150)}},
		{"silent column", withSilentColumn(peakImage(40, 5, 10), 1), []Option{WithPeaks(8, 5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, HeatMap(&buf, tt.img, tt.opts...))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func TestTraces(t *testing.T) {
	points := make([]epoch.Point, 300)
	for i := range points {
		y := 50 * math.Sin(float64(i)/10)
		if i < 100 {
			y = math.NaN()
		}
		points[i] = epoch.Point{X: float64(i) / 10, Y: y}
	}
	charts := []epoch.ChartSignal{
		{Label: "EEG", Unit: "uV", PhysicalMin: -100, PhysicalMax: 100, Points: points},
		{Label: "EOG", Unit: "uV", PhysicalMin: -100, PhysicalMax: 100, Points: points[:150]},
	}

	var buf bytes.Buffer
	require.NoError(t, Traces(&buf, charts, 600))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	assert.Error(t, Traces(&buf, nil, 600))
}

func TestFiniteRuns(t *testing.T) {
	nan := math.NaN()
	pts := []epoch.Point{{X: 0, Y: nan}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: nan}, {X: 4, Y: 4}}
	runs := finiteRuns(pts)
	require.Len(t, runs, 2)
	assert.Len(t, runs[0], 2)
	assert.Len(t, runs[1], 1)
}
