package dsp

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/drgolem/psglab/multitaper"
)

// MultitaperSpectrogram runs one spectrogram per taper in parallel and
// returns their weighted sum.
func MultitaperSpectrogram(ctx context.Context, x []float64, fs float64, tapers *multitaper.TaperSet) (*Spectrogram, error) {
	if tapers == nil || tapers.Len() == 0 {
		return nil, ErrEmptyWindow
	}

	results := make([]*Spectrogram, tapers.Len())
	g, ctx := errgroup.WithContext(ctx)
	for i := range results {
		i := i
		g.Go(func() error {
			s, err := ComputeSpectrogram(ctx, x, tapers.Taper(i), fs)
			if err != nil {
				return err
			}
			s.Power.Scale(tapers.Weights[i], s.Power)
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := results[0]
	for _, s := range results[1:] {
		out.Power.Add(out.Power, s.Power)
	}
	return out, nil
}

// ComputeMultitaper generates tapers of length nperseg for concentration c
// and computes the multitaper spectrogram of x. nil tables means the
// embedded ones.
func ComputeMultitaper(ctx context.Context, x []float64, fs float64, nperseg int, c float64, tables *multitaper.Tables) (*Spectrogram, error) {
	if tables == nil {
		var err error
		if tables, err = multitaper.DefaultTables(); err != nil {
			return nil, err
		}
	}
	if nperseg > len(x) && len(x) > 0 {
		return nil, fmt.Errorf("%w: %d > %d samples", ErrWindowTooLong, nperseg, len(x))
	}
	tapers, err := tables.Generate(nperseg, c)
	if err != nil {
		return nil, err
	}
	return MultitaperSpectrogram(ctx, x, fs, tapers)
}
