package dsp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrEmptySignal       = errors.New("empty signal")
	ErrEmptyWindow       = errors.New("empty window")
	ErrWindowTooLong     = errors.New("window longer than signal")
	ErrInvalidSampleRate = errors.New("invalid sample rate")
)

// Spectrogram is one sided power spectral density over time.
// Power is indexed [frequency, time].
type Spectrogram struct {
	Freqs []float64
	Times []float64
	Power *mat.Dense
}

// STFT computes non overlapping, mean detrended, windowed power spectra.
type STFT struct {
	FrameLen   int
	Window     []float64
	SampleRate float64
}

// New returns a new STFT instance. The frame length is the window length.
func New(window []float64, sampleRate float64) *STFT {
	return &STFT{
		FrameLen:   len(window),
		Window:     window,
		SampleRate: sampleRate,
	}
}

// NumFrames returns the number of frames that will be analyzed in STFT.
// Trailing samples that do not fill a frame are dropped.
func (s *STFT) NumFrames(input []float64) int {
	if s.FrameLen == 0 {
		return 0
	}
	return len(input) / s.FrameLen
}

// FrameAt returns frame at specified index given an input signal.
// Note that it doesn't make copy of input.
func (s *STFT) FrameAt(input []float64, index int) []float64 {
	return input[index*s.FrameLen : (index+1)*s.FrameLen]
}

// Freqs returns the frequency of each one sided bin.
func (s *STFT) Freqs() []float64 {
	freqs := make([]float64, s.FrameLen/2+1)
	for k := range freqs {
		freqs[k] = float64(k) * s.SampleRate / float64(s.FrameLen)
	}
	return freqs
}

// Times returns frame centres in seconds.
func (s *STFT) Times(numFrames int) []float64 {
	times := make([]float64, numFrames)
	for j := range times {
		times[j] = (float64(j*s.FrameLen) + float64(s.FrameLen)/2) / s.SampleRate
	}
	return times
}

func (s *STFT) validate(input []float64) error {
	switch {
	case s.SampleRate <= 0 || math.IsNaN(s.SampleRate) || math.IsInf(s.SampleRate, 0):
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, s.SampleRate)
	case s.FrameLen == 0:
		return ErrEmptyWindow
	case len(input) == 0:
		return ErrEmptySignal
	case s.FrameLen > len(input):
		return fmt.Errorf("%w: %d > %d samples", ErrWindowTooLong, s.FrameLen, len(input))
	}
	return nil
}

// Spectrogram returns the power spectrogram of input. Frames are
// transformed in parallel.
func (s *STFT) Spectrogram(ctx context.Context, input []float64) (*Spectrogram, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	n := s.FrameLen
	numFrames := s.NumFrames(input)
	numBins := n/2 + 1
	power := mat.NewDense(numBins, numFrames, nil)

	scale := 1 / (s.SampleRate * floats.Dot(s.Window, s.Window))
	nyquist := -1
	if n%2 == 0 {
		nyquist = n / 2
	}

	workers := min(runtime.GOMAXPROCS(0), numFrames)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			// fourier.FFT keeps scratch state, one per worker
			fft := fourier.NewFFT(n)
			buf := make([]float64, n)
			var coeff []complex128
			for j := w; j < numFrames; j += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				frame := s.FrameAt(input, j)
				mean := stat.Mean(frame, nil)
				for i, v := range frame {
					buf[i] = (v - mean) * s.Window[i]
				}
				coeff = fft.Coefficients(coeff, buf)
				for k, c := range coeff {
					p := (real(c)*real(c) + imag(c)*imag(c)) * scale
					if k != 0 && k != nyquist {
						p *= 2
					}
					power.Set(k, j, p)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Spectrogram{
		Freqs: s.Freqs(),
		Times: s.Times(numFrames),
		Power: power,
	}, nil
}

// ComputeSpectrogram computes the single window spectrogram of x sampled
// at fs. The segment length is len(window).
func ComputeSpectrogram(ctx context.Context, x, window []float64, fs float64) (*Spectrogram, error) {
	return New(window, fs).Spectrogram(ctx, x)
}
