package epoch

import (
	"math"
)

// Chunk is a run of samples. Offset is the stream time of the first
// sample in seconds, NaN for padding.
type Chunk struct {
	Offset  float64
	Samples []float64
}

func (c Chunk) IsPadding() bool {
	return math.IsNaN(c.Offset)
}

// Window holds the chunks of the last read, indexed like the header
// signals. Annotation channels have no chunks.
type Window struct {
	Channels [][]Chunk
}

func (w Window) Len(ch int) int {
	if ch < 0 || ch >= len(w.Channels) {
		return 0
	}
	n := 0
	for _, c := range w.Channels[ch] {
		n += len(c.Samples)
	}
	return n
}

// Samples flattens channel ch, padding included as NaN.
func (w Window) Samples(ch int) []float64 {
	if ch < 0 || ch >= len(w.Channels) {
		return nil
	}
	out := make([]float64, 0, w.Len(ch))
	for _, c := range w.Channels[ch] {
		out = append(out, c.Samples...)
	}
	return out
}

// PaddingCount is the number of synthetic samples in channel ch.
func (w Window) PaddingCount(ch int) int {
	if ch < 0 || ch >= len(w.Channels) {
		return 0
	}
	n := 0
	for _, c := range w.Channels[ch] {
		if c.IsPadding() {
			n += len(c.Samples)
		}
	}
	return n
}

func (w Window) padded() bool {
	for ch := range w.Channels {
		if w.PaddingCount(ch) > 0 {
			return true
		}
	}
	return false
}

type Point struct {
	X, Y float64
}

// ChartSignal is one data channel of the window ready for plotting.
// X is aligned time in seconds, Y the physical value or NaN for padding.
type ChartSignal struct {
	Channel     int
	Label       string
	Unit        string
	PhysicalMin float64
	PhysicalMax float64
	Points      []Point
}

func (r *Reader) ChartSignals() []ChartSignal {
	startSec := float64(r.Tell()-int64(r.lastCount)*EpochMillis) / 1000

	var out []ChartSignal
	for _, ch := range r.header.DataSignals() {
		s := r.header.Signals[ch]
		fs := s.SampleRate()
		samples := r.window.Samples(ch)

		points := make([]Point, len(samples))
		for j, v := range samples {
			points[j] = Point{X: startSec + float64(j)/fs, Y: v}
		}
		out = append(out, ChartSignal{
			Channel:     ch,
			Label:       s.Label,
			Unit:        s.Unit,
			PhysicalMin: s.PhysicalMin,
			PhysicalMax: s.PhysicalMax,
			Points:      points,
		})
	}
	return out
}
