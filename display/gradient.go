package display

import (
	"image/color"
	"slices"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

const (
	gradientColors = 256
	reverseSuffix  = "_r"
)

// Gradient is a named sequence of colours from low to high.
// It satisfies palette.Palette.
type Gradient struct {
	Name   string
	colors []color.Color
}

func (g Gradient) Colors() []color.Color {
	return g.colors
}

// At maps v in [0, 1] to a colour. Values outside are clamped.
func (g Gradient) At(v float64) color.Color {
	if len(g.colors) == 0 {
		return color.White
	}
	v = min(max(v, 0), 1)
	return g.colors[int(v*float64(len(g.colors)-1)+0.5)]
}

// Sample returns n evenly spaced colours of g, endpoints included.
func (g Gradient) Sample(n int) Gradient {
	if n < 2 {
		n = 2
	}
	c := make([]color.Color, n)
	for i := range c {
		c[i] = g.At(float64(i) / float64(n-1))
	}
	return Gradient{Name: g.Name, colors: c}
}

func (g Gradient) reversed() Gradient {
	c := slices.Clone(g.colors)
	slices.Reverse(c)
	return Gradient{Name: g.Name + reverseSuffix, colors: c}
}

// Gradients is an immutable name to gradient table.
type Gradients struct {
	byName map[string]Gradient
}

var DefaultGradients = sync.OnceValue(func() *Gradients {
	maps := map[string]palette.Palette{
		"blue_red":            moreland.SmoothBlueRed().Palette(gradientColors),
		"purple_orange":       moreland.SmoothPurpleOrange().Palette(gradientColors),
		"green_purple":        moreland.SmoothGreenPurple().Palette(gradientColors),
		"blue_tan":            moreland.SmoothBlueTan().Palette(gradientColors),
		"green_red":           moreland.SmoothGreenRed().Palette(gradientColors),
		"black_body":          moreland.BlackBody().Palette(gradientColors),
		"extended_black_body": moreland.ExtendedBlackBody().Palette(gradientColors),
		"kindlmann":           moreland.Kindlmann().Palette(gradientColors),
		"extended_kindlmann":  moreland.ExtendedKindlmann().Palette(gradientColors),
		"heat":                palette.Heat(gradientColors, 1),
	}
	return NewGradients(maps)
})

// NewGradients builds a table from palettes.
func NewGradients(palettes map[string]palette.Palette) *Gradients {
	g := &Gradients{byName: make(map[string]Gradient, len(palettes))}
	for name, p := range palettes {
		g.byName[name] = Gradient{Name: name, colors: slices.Clone(p.Colors())}
	}
	return g
}

// Lookup resolves name. A "_r" suffix reverses the gradient. Unknown
// names give an opaque white gradient.
func (g *Gradients) Lookup(name string) Gradient {
	if grad, ok := g.byName[name]; ok {
		return grad
	}
	if base, ok := strings.CutSuffix(name, reverseSuffix); ok {
		if grad, ok := g.byName[base]; ok {
			return grad.reversed()
		}
	}
	return Gradient{Name: name, colors: []color.Color{color.White, color.White}}
}

func (g *Gradients) Names() []string {
	names := make([]string, 0, len(g.byName))
	for name := range g.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
