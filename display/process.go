package display

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/drgolem/psglab/dsp"
)

const (
	DefaultBandLow  = 0.5
	DefaultBandHigh = 25.0
	DefaultTrim     = 2.5
)

var (
	ErrEmptyBand    = errors.New("no frequencies in band")
	ErrInvalidPower = errors.New("invalid power")
	ErrNoValues     = errors.New("no values")
)

// Range is the suggested colour scale of an image.
type Range struct {
	Low, High float64
}

// Image is a log scaled, band limited spectrogram ready for rendering.
// Data is indexed [frequency, time] in dB. Zero power is -Inf.
type Image struct {
	Freqs []float64
	Hours []float64
	Data  *mat.Dense
	Range Range
}

type ProcessOptions struct {
	BandLow  float64
	BandHigh float64
	Trim     float64
}

type Option func(opt *ProcessOptions)

// WithBand keeps frequencies in [low, high].
func WithBand(low, high float64) Option {
	return func(opt *ProcessOptions) {
		opt.BandLow = low
		opt.BandHigh = high
	}
}

// WithTrim sets the percentage cut from each end for the colour range.
func WithTrim(pct float64) Option {
	return func(opt *ProcessOptions) {
		opt.Trim = pct
	}
}

func Process(s *dsp.Spectrogram, opts ...Option) (*Image, error) {
	o := ProcessOptions{
		BandLow:  DefaultBandLow,
		BandHigh: DefaultBandHigh,
		Trim:     DefaultTrim,
	}
	for _, fn := range opts {
		fn(&o)
	}

	var rows []int
	for k, f := range s.Freqs {
		if f >= o.BandLow && f <= o.BandHigh {
			rows = append(rows, k)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: [%g, %g] Hz", ErrEmptyBand, o.BandLow, o.BandHigh)
	}

	cols := len(s.Times)
	data := mat.NewDense(len(rows), cols, nil)
	freqs := make([]float64, len(rows))
	for i, k := range rows {
		freqs[i] = s.Freqs[k]
		for j := 0; j < cols; j++ {
			p := s.Power.At(k, j)
			if math.IsNaN(p) || p < 0 {
				return nil, fmt.Errorf("%w: %g at %g Hz, %g s", ErrInvalidPower, p, s.Freqs[k], s.Times[j])
			}
			data.Set(i, j, 10*math.Log10(p))
		}
	}

	hours := make([]float64, cols)
	for j, t := range s.Times {
		hours[j] = t / 3600
	}

	// A flat recording has no finite dB value at all.
	rng, err := Percentiles(data.RawMatrix().Data, o.Trim)
	if errors.Is(err, ErrNoValues) {
		rng, err = Range{}, nil
	}
	if err != nil {
		return nil, err
	}

	return &Image{
		Freqs: freqs,
		Hours: hours,
		Data:  data,
		Range: rng,
	}, nil
}

// Percentiles returns the trim and 100-trim percentiles of the finite
// values, interpolating linearly at (n-1)q. NaN and ±Inf are skipped.
func Percentiles(values []float64, trim float64) (Range, error) {
	if trim < 0 || trim > 50 || math.IsNaN(trim) {
		return Range{}, fmt.Errorf("trim %g outside [0, 50]", trim)
	}

	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return Range{}, ErrNoValues
	}
	slices.Sort(sorted)

	q := trim / 100
	return Range{
		Low:  percentile(sorted, q),
		High: percentile(sorted, 1-q),
	}, nil
}

func percentile(sorted []float64, q float64) float64 {
	pos := float64(len(sorted)-1) * q
	i := int(math.Floor(pos))
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(i)
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}
