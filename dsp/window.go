package dsp

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowKind selects how segments are tapered.
type WindowKind int

const (
	WindowMultitaper WindowKind = iota
	WindowHann
	WindowHamming
	WindowRectangular
)

var windowNames = map[WindowKind]string{
	WindowMultitaper:  "multitaper",
	WindowHann:        "hann",
	WindowHamming:     "hamming",
	WindowRectangular: "rectangular",
}

func (k WindowKind) String() string {
	if name, ok := windowNames[k]; ok {
		return name
	}
	return fmt.Sprintf("WindowKind(%d)", int(k))
}

func ParseWindowKind(name string) (WindowKind, error) {
	for k, v := range windowNames {
		if strings.EqualFold(v, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown window %q", name)
}

// Window returns a single taper of length n. Multitaper windows are built
// by the multitaper package and are not available here.
func Window(kind WindowKind, n int) ([]float64, error) {
	if n <= 0 {
		return nil, ErrEmptyWindow
	}
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	switch kind {
	case WindowHann:
		return window.Hann(ones), nil
	case WindowHamming:
		return window.Hamming(ones), nil
	case WindowRectangular:
		return window.Rectangular(ones), nil
	}
	return nil, fmt.Errorf("no single taper for %v", kind)
}
