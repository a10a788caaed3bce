// Package analysis computes class coverage on reconstructed images and
// segmentation quality against ground truth.
package analysis

import (
	"image"
	"sort"

	"gonum.org/v1/gonum/floats"

	"fieldseg/pkg/classmap"
)

// Coverage maps class name to the percentage of pixels of that class
type Coverage map[string]float64

// Total returns the sum of all class percentages. For images painted only
// in well separated class colours it is 100.
func (c Coverage) Total() float64 {
	values := make([]float64, 0, len(c))
	for _, name := range c.Names() {
		values = append(values, c[name])
	}
	return floats.Sum(values)
}

// Names returns the class names in sorted order
func (c Coverage) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Analyzer measures class coverage using a shared class table
type Analyzer struct {
	table *classmap.Table
}

// NewAnalyzer creates an analyzer over table
func NewAnalyzer(table *classmap.Table) *Analyzer {
	return &Analyzer{table: table}
}

// Ratios counts, for each class independently, the pixels within tolerance
// of its colour and reports them as a percentage of the whole image.
// Padding included in a stitched canvas counts towards the total.
func (a *Analyzer) Ratios(img image.Image) Coverage {
	classes := a.table.Classes()
	counts := make([]int, len(classes))

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.At(x, y)
			for id := range classes {
				if a.table.Matches(c, id) {
					counts[id]++
				}
			}
		}
	}

	total := float64(b.Dx() * b.Dy())
	out := make(Coverage, len(classes))
	for id, cls := range classes {
		if total == 0 {
			out[cls.Name] = 0
			continue
		}
		out[cls.Name] = float64(counts[id]) / total * 100
	}
	return out
}
