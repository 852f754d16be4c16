package multitaper

import (
	"bytes"
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/drgolem/psglab/logging"
)

//go:generate go run ./internal/gentables

var (
	//go:embed data/concentrations.bin
	concentrationsBin []byte

	//go:embed data/weights.bin
	weightsBin []byte
)

var ErrInvalidTable = errors.New("invalid coefficient table")

// Tables holds the tabulated concentrations and one row of taper weights
// per concentration. Immutable after construction.
type Tables struct {
	concentrations []float64
	weights        *mat.Dense
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
	defaultErr    error
)

// DefaultTables decodes the embedded tables on first use.
func DefaultTables() (*Tables, error) {
	defaultOnce.Do(func() {
		defaultTables, defaultErr = LoadTables(concentrationsBin, weightsBin)
	})
	return defaultTables, defaultErr
}

// LoadTables decodes a concentration list (uint32 count, float64 values)
// and a weight table (uint32 rows, uint32 cols, row major float64 values).
// All little endian.
func LoadTables(concentrations, weights []byte) (*Tables, error) {
	var n uint32
	cr := bytes.NewReader(concentrations)
	if err := binary.Read(cr, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: concentrations: %v", ErrInvalidTable, err)
	}
	conc := make([]float64, n)
	if err := binary.Read(cr, binary.LittleEndian, conc); err != nil {
		return nil, fmt.Errorf("%w: concentrations: %v", ErrInvalidTable, err)
	}

	var dims [2]uint32
	wr := bytes.NewReader(weights)
	if err := binary.Read(wr, binary.LittleEndian, &dims); err != nil {
		return nil, fmt.Errorf("%w: weights: %v", ErrInvalidTable, err)
	}
	rows, cols := int(dims[0]), int(dims[1])
	if rows != int(n) || cols == 0 {
		return nil, fmt.Errorf("%w: %d concentrations, weight table %dx%d", ErrInvalidTable, n, rows, cols)
	}
	w := make([]float64, rows*cols)
	if err := binary.Read(wr, binary.LittleEndian, w); err != nil {
		return nil, fmt.Errorf("%w: weights: %v", ErrInvalidTable, err)
	}

	return &Tables{
		concentrations: conc,
		weights:        mat.NewDense(rows, cols, w),
	}, nil
}

func (t *Tables) Concentrations() []float64 {
	return append([]float64(nil), t.concentrations...)
}

// Nearest returns the row index of the tabulated concentration closest to c.
// A warning is logged when c is not tabulated.
func (t *Tables) Nearest(c float64) (int, float64) {
	best := 0
	for i, v := range t.concentrations {
		if math.Abs(v-c) < math.Abs(t.concentrations[best]-c) {
			best = i
		}
	}
	if got := t.concentrations[best]; got != c {
		logging.Warn("concentration not tabulated, using nearest", logging.Fields{
			"requested": c,
			"used":      got,
		})
	}
	return best, t.concentrations[best]
}

// Weights returns the leading non-zero weights of row, at most maxTapers,
// renormalized to sum to one.
func (t *Tables) Weights(row int) []float64 {
	var w []float64
	for _, v := range mat.Row(nil, row, t.weights) {
		if v == 0 {
			continue
		}
		w = append(w, v)
		if len(w) == maxTapers {
			break
		}
	}
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}
