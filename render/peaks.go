package render

import (
	"math"

	"github.com/MicahParks/peakdetect"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/plotter"

	"github.com/drgolem/psglab/display"
)

// PeakTrack runs a z-score peak detector up the frequency axis of every
// time column and returns the strongest positive peak of each column as
// (hours, Hz). Columns without a peak are skipped. Non-finite dB values
// are clamped to the low end of img.Range.
func PeakTrack(img *display.Image, lag int, threshold float64) plotter.XYs {
	const influence = 0

	rows, cols := img.Data.Dims()
	if lag < 2 || rows <= lag {
		return nil
	}

	pts := make(plotter.XYs, 0, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, img.Data)
		for i, v := range col {
			if math.IsInf(v, 0) || math.IsNaN(v) {
				col[i] = img.Range.Low
			}
		}

		detector := peakdetect.NewPeakDetector()
		if err := detector.Initialize(influence, threshold, col[:lag]); err != nil {
			continue
		}

		best := -1
		for i, v := range col[lag:] {
			if detector.Next(v) != peakdetect.SignalPositive {
				continue
			}
			if best < 0 || v > col[best] {
				best = i + lag
			}
		}
		if best >= 0 {
			pts = append(pts, plotter.XY{X: img.Hours[j], Y: img.Freqs[best]})
		}
	}
	return pts
}
