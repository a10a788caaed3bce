package inference

import (
	"context"
	"image"
	"image/color"

	"fieldseg/pkg/classmap"
)

// PaletteModel scores every pixel by its closeness to each class colour.
// The score of class k is the negated L-infinity distance to the class
// colour, so an image already painted in class colours is reproduced
// exactly. Fully transparent pixels, which only occur in tile padding, score
// as background. It stands in for the network in dry runs and tests.
type PaletteModel struct {
	table *classmap.Table
}

// NewPaletteModel returns a PaletteModel over table
func NewPaletteModel(table *classmap.Table) *PaletteModel {
	return &PaletteModel{table: table}
}

// Predict implements Model
func (m *PaletteModel) Predict(ctx context.Context, tile image.Image) (*Scores, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	classes := m.table.Classes()
	b := tile.Bounds()
	s := NewScores(len(classes), b.Dx(), b.Dy())

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px := color.NRGBAModel.Convert(tile.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := y*b.Dx() + x
			if px.A == 0 {
				for k := range classes {
					s.Planes[k][i] = -256
				}
				s.Planes[classmap.Background][i] = 0
				continue
			}
			for k, cls := range classes {
				s.Planes[k][i] = -float64(distance(px, cls))
			}
		}
	}
	return s, nil
}

func distance(px color.NRGBA, cls classmap.Class) int {
	best := linf(px, cls.Color)
	for _, a := range cls.Aliases {
		if d := linf(px, a); d < best {
			best = d
		}
	}
	return best
}

func linf(a, b color.NRGBA) int {
	d := 0
	for _, v := range [3]int{int(a.R) - int(b.R), int(a.G) - int(b.G), int(a.B) - int(b.B)} {
		if v < 0 {
			v = -v
		}
		if v > d {
			d = v
		}
	}
	return d
}
