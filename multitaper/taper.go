package multitaper

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const maxTapers = 10

// half widths of the Hermite function support for k = 1..10 tapers
var halfWidths = [maxTapers]float64{5.4, 6.0, 7.3, 8.1, 8.7, 9.3, 9.8, 10.3, 10.9, 11.2}

func halfWidth(k int) float64 {
	if k < 1 || k > maxTapers {
		return 1.0
	}
	return halfWidths[k-1]
}

// TaperSet is k unit norm tapers of length n (one per row of Tapers) and
// their combination weights.
type TaperSet struct {
	Tapers        *mat.Dense
	Weights       []float64
	Concentration float64
}

func (s *TaperSet) Len() int {
	return len(s.Weights)
}

func (s *TaperSet) Size() int {
	_, n := s.Tapers.Dims()
	return n
}

// Taper returns a copy of taper i.
func (s *TaperSet) Taper(i int) []float64 {
	return mat.Row(nil, i, s.Tapers)
}

// Generate builds Hermite function tapers of length n for the tabulated
// concentration nearest to c.
func (t *Tables) Generate(n int, c float64) (*TaperSet, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid taper length %d", n)
	}

	row, used := t.Nearest(c)
	weights := t.Weights(row)
	k := len(weights)
	if k == 0 {
		return nil, fmt.Errorf("no taper weights for concentration %g", used)
	}

	scale := halfWidth(k) / float64(n)
	axis := make([]float64, n)
	for i := range axis {
		axis[i] = (float64(i) - float64(n-1)/2) * scale
	}

	tapers := mat.NewDense(k, n, nil)
	for j, x := range axis {
		h0, h1 := 1.0, 2*x
		env := math.Exp(-x * x / 2)
		tapers.Set(0, j, h0*env)
		if k > 1 {
			tapers.Set(1, j, h1*env)
		}
		for i := 2; i < k; i++ {
			h := 2*x*h1 - 2*float64(i-1)*h0
			tapers.Set(i, j, h*env)
			h0, h1 = h1, h
		}
	}

	for i := 0; i < k; i++ {
		taper := tapers.RawRowView(i)
		norm := floats.Norm(taper, 2)
		if norm == 0 || math.IsNaN(norm) {
			return nil, fmt.Errorf("degenerate taper %d of length %d", i, n)
		}
		floats.Scale(1/norm, taper)
	}

	return &TaperSet{
		Tapers:        tapers,
		Weights:       weights,
		Concentration: used,
	}, nil
}

// Generate uses the embedded tables.
func Generate(n int, c float64) (*TaperSet, error) {
	t, err := DefaultTables()
	if err != nil {
		return nil, err
	}
	return t.Generate(n, c)
}
